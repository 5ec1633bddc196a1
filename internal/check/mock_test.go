package check

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/misintel/misintel/internal/analysis"
	"github.com/misintel/misintel/internal/model"
	"github.com/misintel/misintel/pkg/speech"
)

type mockAnalyzer struct {
	mock.Mock
}

func (m *mockAnalyzer) Analyze(ctx context.Context, in analysis.Input) (model.AnalysisResult, analysis.Path) {
	args := m.Called(ctx, in)
	return args.Get(0).(model.AnalysisResult), args.Get(1).(analysis.Path)
}

type fakeContent struct {
	text  string
	calls int
}

func (f *fakeContent) Extract(context.Context, string) string {
	f.calls++
	return f.text
}

type fakeAuthors struct {
	info model.AuthorInfo
}

func (f *fakeAuthors) Extract(context.Context, string) model.AuthorInfo { return f.info }

type fakeEvidence struct {
	mu      sync.Mutex
	ev      model.Evidence
	content string
	url     string
}

func (f *fakeEvidence) Gather(_ context.Context, content, targetURL string) model.Evidence {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.content, f.url = content, targetURL
	return f.ev
}

type fakeOCR struct {
	text string
	err  error
}

func (f *fakeOCR) ExtractImage(context.Context, []byte, string) (string, error) {
	return f.text, f.err
}

type fakeSpeech struct {
	tr  *speech.Transcript
	err error
}

func (f *fakeSpeech) Recognize(context.Context, []byte, string) (*speech.Transcript, error) {
	return f.tr, f.err
}

type failingCache struct{}

func (failingCache) Get(context.Context, string) (*model.AnalysisResult, error) {
	return nil, context.DeadlineExceeded
}

func (failingCache) Put(context.Context, string, model.AnalysisResult) (time.Duration, error) {
	return 0, context.DeadlineExceeded
}

type recorded struct {
	kind model.InputKind
	path analysis.Path
}

type fakeRecorder struct {
	mu   sync.Mutex
	seen []recorded
}

func (f *fakeRecorder) ObserveCheck(kind model.InputKind, path analysis.Path, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seen = append(f.seen, recorded{kind, path})
}

type spyCache struct {
	gets, puts int
}

func (s *spyCache) Get(context.Context, string) (*model.AnalysisResult, error) {
	s.gets++
	return nil, nil
}

func (s *spyCache) Put(context.Context, string, model.AnalysisResult) (time.Duration, error) {
	s.puts++
	return time.Hour, nil
}
