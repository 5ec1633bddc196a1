package check

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/misintel/misintel/internal/analysis"
	"github.com/misintel/misintel/internal/cache"
	"github.com/misintel/misintel/internal/model"
	"github.com/misintel/misintel/pkg/speech"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

func verdict(confidence int) model.AnalysisResult {
	res := model.AnalysisResult{
		IsFake:     false,
		Confidence: confidence,
		Summary:    "Consistent with trusted reporting",
		Reasons:    []string{"Multiple outlets report the same facts"},
	}
	res.AttachEvidence(model.EmptyEvidence())
	res.Fill()
	return res
}

func newService(deps Deps, opts ...Option) *Service {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewService(deps, opts...)
}

func TestCheck_NotConfigured(t *testing.T) {
	svc := newService(Deps{})
	_, err := svc.Check(context.Background(), model.AnalysisRequest{Kind: model.KindText, Text: "hi"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConfigured))
}

func TestCheck_InvalidInput(t *testing.T) {
	an := &mockAnalyzer{}
	svc := newService(Deps{Analyzer: an})

	tests := []struct {
		name string
		req  model.AnalysisRequest
	}{
		{"empty text", model.AnalysisRequest{Kind: model.KindText, Text: "   "}},
		{"empty url", model.AnalysisRequest{Kind: model.KindURL}},
		{"relative url", model.AnalysisRequest{Kind: model.KindURL, URL: "example.com/a"}},
		{"missing image", model.AnalysisRequest{Kind: model.KindImage}},
		{"missing audio", model.AnalysisRequest{Kind: model.KindAudio}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Check(context.Background(), tt.req)
			var ie *model.InputError
			require.ErrorAs(t, err, &ie)
		})
	}
	an.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestCheck_MissingImageMessage(t *testing.T) {
	svc := newService(Deps{Analyzer: &mockAnalyzer{}})
	_, err := svc.Check(context.Background(), model.AnalysisRequest{Kind: model.KindImage})
	var ie *model.InputError
	require.ErrorAs(t, err, &ie)
	assert.Contains(t, ie.Reason, "Image input is required")
}

func TestCheck_Text(t *testing.T) {
	an := &mockAnalyzer{}
	an.On("Analyze", mock.Anything, mock.MatchedBy(func(in analysis.Input) bool {
		return in.Content == "COVID vaccines are safe" && in.URL == ""
	})).Return(verdict(82), analysis.PathModel).Once()

	ev := &fakeEvidence{ev: model.EmptyEvidence()}
	content := &fakeContent{}
	spy := &spyCache{}
	rec := &fakeRecorder{}
	svc := newService(Deps{
		Content:  content,
		Authors:  &fakeAuthors{info: model.AuthorInfo{Name: "X"}},
		Evidence: ev,
		Analyzer: an,
		Cache:    spy,
	}, WithRecorder(rec))

	res, err := svc.Check(context.Background(), model.AnalysisRequest{Kind: model.KindText, Text: "  COVID vaccines are safe \n"})
	require.NoError(t, err)

	assert.Equal(t, 82, res.Confidence)
	assert.Equal(t, "COVID vaccines are safe", res.InputText)
	assert.Empty(t, res.InputURL)
	assert.Nil(t, res.Author)
	assert.False(t, res.FromCache)
	assert.Equal(t, fixedNow, res.Timestamp)
	assert.Equal(t, "COVID vaccines are safe", ev.content)
	assert.Empty(t, ev.url)
	assert.Zero(t, content.calls)
	assert.Zero(t, spy.gets)
	assert.Zero(t, spy.puts)
	assert.Equal(t, []recorded{{model.KindText, analysis.PathModel}}, rec.seen)
	an.AssertExpectations(t)
}

func TestCheck_URLCachesThenServesFromCache(t *testing.T) {
	an := &mockAnalyzer{}
	an.On("Analyze", mock.Anything, mock.Anything).Return(verdict(80), analysis.PathModel).Once()

	rec := &fakeRecorder{}
	svc := newService(Deps{
		Content:  &fakeContent{text: "Article body"},
		Authors:  &fakeAuthors{info: model.AuthorInfo{Name: "Jane Doe", CredibilityScore: 88}},
		Evidence: &fakeEvidence{ev: model.EmptyEvidence()},
		Analyzer: an,
		Cache:    cache.NewAnalysisCache(cache.NewMemory(), 0),
	}, WithRecorder(rec))

	req := model.AnalysisRequest{Kind: model.KindURL, URL: "http://example.com/article"}
	first, err := svc.Check(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	require.NotNil(t, first.Author)
	assert.Equal(t, "Jane Doe", first.Author.Name)
	assert.Equal(t, "http://example.com/article", first.InputURL)

	second, err := svc.Check(context.Background(), req)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.Equal(t, first.Timestamp, second.Timestamp)
	require.NotNil(t, second.CachedAt)

	assert.Equal(t, []recorded{
		{model.KindURL, analysis.PathModel},
		{model.KindURL, analysis.PathCache},
	}, rec.seen)
	an.AssertExpectations(t)
}

func TestCheck_ForceFreshBypassesCache(t *testing.T) {
	an := &mockAnalyzer{}
	an.On("Analyze", mock.Anything, mock.Anything).Return(verdict(80), analysis.PathModel).Twice()

	svc := newService(Deps{
		Content:  &fakeContent{text: "Article body"},
		Analyzer: an,
		Cache:    cache.NewAnalysisCache(cache.NewMemory(), 0),
	})

	req := model.AnalysisRequest{Kind: model.KindURL, URL: "http://example.com/article"}
	_, err := svc.Check(context.Background(), req)
	require.NoError(t, err)

	req.ForceFresh = true
	res, err := svc.Check(context.Background(), req)
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	an.AssertExpectations(t)
}

func TestCheck_EmptyExtractionUsesPlaceholder(t *testing.T) {
	an := &mockAnalyzer{}
	an.On("Analyze", mock.Anything, mock.MatchedBy(func(in analysis.Input) bool {
		return in.Content == "URL content analysis: https://example.com/x"
	})).Return(verdict(75), analysis.PathFallback).Once()

	ev := &fakeEvidence{ev: model.EmptyEvidence()}
	svc := newService(Deps{Content: &fakeContent{}, Evidence: ev, Analyzer: an})

	_, err := svc.Check(context.Background(), model.AnalysisRequest{Kind: model.KindURL, URL: " https://example.com/x "})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/x", ev.url)
	an.AssertExpectations(t)
}

func TestCheck_PartialResultNotCached(t *testing.T) {
	partial := analysis.PartialFailure(model.EmptyEvidence())
	an := &mockAnalyzer{}
	an.On("Analyze", mock.Anything, mock.Anything).Return(partial, analysis.PathPartial).Twice()

	svc := newService(Deps{
		Content:  &fakeContent{text: "body"},
		Analyzer: an,
		Cache:    cache.NewAnalysisCache(cache.NewMemory(), 0),
	})

	req := model.AnalysisRequest{Kind: model.KindURL, URL: "http://example.com/p"}
	for range 2 {
		res, err := svc.Check(context.Background(), req)
		require.NoError(t, err)
		assert.False(t, res.FromCache)
		assert.Equal(t, analysis.PartialFailureError, res.Error)
	}
	an.AssertExpectations(t)
}

func TestCheck_CacheErrorsDegrade(t *testing.T) {
	an := &mockAnalyzer{}
	an.On("Analyze", mock.Anything, mock.Anything).Return(verdict(90), analysis.PathModel).Once()

	svc := newService(Deps{Content: &fakeContent{text: "body"}, Analyzer: an, Cache: failingCache{}})
	res, err := svc.Check(context.Background(), model.AnalysisRequest{Kind: model.KindURL, URL: "http://example.com/a"})
	require.NoError(t, err)
	assert.Equal(t, 90, res.Confidence)
}

func TestCheck_Image(t *testing.T) {
	t.Run("ocr text", func(t *testing.T) {
		an := &mockAnalyzer{}
		an.On("Analyze", mock.Anything, mock.MatchedBy(func(in analysis.Input) bool {
			return in.Content == "Aliens landed in Ohio"
		})).Return(verdict(70), analysis.PathModel).Once()

		svc := newService(Deps{Analyzer: an, OCR: &fakeOCR{text: " Aliens landed in Ohio\n"}})
		res, err := svc.Check(context.Background(), model.AnalysisRequest{Kind: model.KindImage, Image: []byte{1}})
		require.NoError(t, err)
		assert.Equal(t, "Aliens landed in Ohio", res.ExtractedText)
		assert.Empty(t, res.InputText)
		an.AssertExpectations(t)
	})

	t.Run("ocr failure is reported verbatim", func(t *testing.T) {
		svc := newService(Deps{Analyzer: &mockAnalyzer{}, OCR: &fakeOCR{err: errors.New("ocr: tesseract failed: bad image")}})
		_, err := svc.Check(context.Background(), model.AnalysisRequest{Kind: model.KindImage, Image: []byte{1}})
		var ie *model.InputError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "ocr: tesseract failed: bad image", ie.Reason)
	})

	t.Run("blank ocr text uses placeholder", func(t *testing.T) {
		an := &mockAnalyzer{}
		an.On("Analyze", mock.Anything, mock.MatchedBy(func(in analysis.Input) bool {
			return in.Content == ImagePlaceholder
		})).Return(verdict(75), analysis.PathFallback).Once()

		svc := newService(Deps{Analyzer: an, OCR: &fakeOCR{text: "  "}})
		_, err := svc.Check(context.Background(), model.AnalysisRequest{Kind: model.KindImage, Image: []byte{1}})
		require.NoError(t, err)
		an.AssertExpectations(t)
	})

	t.Run("no engine", func(t *testing.T) {
		svc := newService(Deps{Analyzer: &mockAnalyzer{}})
		_, err := svc.Check(context.Background(), model.AnalysisRequest{Kind: model.KindImage, Image: []byte{1}})
		assert.True(t, errors.Is(err, ErrNotConfigured))
	})
}

func TestCheck_Audio(t *testing.T) {
	t.Run("transcript", func(t *testing.T) {
		an := &mockAnalyzer{}
		an.On("Analyze", mock.Anything, mock.MatchedBy(func(in analysis.Input) bool {
			return in.Content == "the election was moved to friday"
		})).Return(verdict(88), analysis.PathModel).Once()

		svc := newService(Deps{Analyzer: an, Speech: &fakeSpeech{tr: &speech.Transcript{Text: "the election was moved to friday"}}})
		res, err := svc.Check(context.Background(), model.AnalysisRequest{Kind: model.KindAudio, Audio: []byte{1}, AudioType: "audio/webm"})
		require.NoError(t, err)
		assert.Equal(t, "the election was moved to friday", res.ExtractedText)
	})

	t.Run("no speech", func(t *testing.T) {
		svc := newService(Deps{Analyzer: &mockAnalyzer{}, Speech: &fakeSpeech{tr: &speech.Transcript{}}})
		_, err := svc.Check(context.Background(), model.AnalysisRequest{Kind: model.KindAudio, Audio: []byte{1}})
		var ie *model.InputError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "No speech detected in audio", ie.Summary)
	})

	t.Run("not configured", func(t *testing.T) {
		svc := newService(Deps{Analyzer: &mockAnalyzer{}})
		_, err := svc.Check(context.Background(), model.AnalysisRequest{Kind: model.KindAudio, Audio: []byte{1}})
		assert.True(t, errors.Is(err, ErrNotConfigured))
	})
}

type blockingAnalyzer struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
}

func (b *blockingAnalyzer) Analyze(context.Context, analysis.Input) (model.AnalysisResult, analysis.Path) {
	b.mu.Lock()
	b.calls++
	first := b.calls == 1
	b.mu.Unlock()
	if first {
		close(b.started)
	}
	<-b.release
	return verdict(80), analysis.PathModel
}

func TestCheck_ConcurrentURLChecksShareOneRun(t *testing.T) {
	an := &blockingAnalyzer{started: make(chan struct{}), release: make(chan struct{})}
	svc := newService(Deps{
		Content:  &fakeContent{text: "body"},
		Analyzer: an,
		Cache:    cache.NewAnalysisCache(cache.NewMemory(), 0),
	})
	req := model.AnalysisRequest{Kind: model.KindURL, URL: "http://example.com/burst"}

	var wg sync.WaitGroup
	results := make([]model.AnalysisResult, 5)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], _ = svc.Check(context.Background(), req)
	}()
	<-an.started

	for i := 1; i < len(results); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], _ = svc.Check(context.Background(), req)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(an.release)
	wg.Wait()

	assert.Equal(t, 1, an.calls)
	for _, r := range results {
		assert.Equal(t, 80, r.Confidence)
	}
}
