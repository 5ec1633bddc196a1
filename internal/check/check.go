// Package check runs the advanced-check pipeline: validate, cache lookup,
// content acquisition, author attribution alongside evidence gathering,
// model analysis and cache write.
package check

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/misintel/misintel/internal/analysis"
	"github.com/misintel/misintel/internal/cache"
	"github.com/misintel/misintel/internal/model"
	"github.com/misintel/misintel/internal/ocr"
	"github.com/misintel/misintel/internal/scrape"
	"github.com/misintel/misintel/pkg/speech"
)

// ErrNotConfigured is returned when a required AI or recognition key is missing.
var ErrNotConfigured = eris.New("check: not configured")

// ImagePlaceholder stands in for an image whose OCR produced no text.
const ImagePlaceholder = "Image analysis - content extraction from uploaded image"

// ContentExtractor returns the readable text of a URL, or "" when none could
// be extracted.
type ContentExtractor interface {
	Extract(ctx context.Context, url string) string
}

// AuthorExtractor attributes a URL to an author. It never fails.
type AuthorExtractor interface {
	Extract(ctx context.Context, url string) model.AuthorInfo
}

// EvidenceGatherer collects verification evidence. It never fails.
type EvidenceGatherer interface {
	Gather(ctx context.Context, content, targetURL string) model.Evidence
}

// Analyzer produces a verdict with its fallback chain. It never fails.
type Analyzer interface {
	Analyze(ctx context.Context, in analysis.Input) (model.AnalysisResult, analysis.Path)
}

// ResultCache stores results of URL checks.
type ResultCache interface {
	Get(ctx context.Context, rawURL string) (*model.AnalysisResult, error)
	Put(ctx context.Context, rawURL string, res model.AnalysisResult) (time.Duration, error)
}

// Recorder observes completed checks.
type Recorder interface {
	ObserveCheck(kind model.InputKind, path analysis.Path, elapsed time.Duration)
}

// Deps are the collaborators of a Service. Analyzer is required for checks;
// a nil Cache disables caching and a nil Authors skips attribution.
type Deps struct {
	Content  ContentExtractor
	Authors  AuthorExtractor
	Evidence EvidenceGatherer
	Analyzer Analyzer
	Cache    ResultCache
	OCR      ocr.Extractor
	Speech   speech.Client
}

// Option configures a Service.
type Option func(*Service)

// WithRecorder sets the check observer.
func WithRecorder(r Recorder) Option {
	return func(s *Service) { s.recorder = r }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// Service orchestrates one check per call. It is safe for concurrent use.
type Service struct {
	deps     Deps
	recorder Recorder
	now      func() time.Time
	flight   singleflight.Group
}

// NewService creates a Service.
func NewService(deps Deps, opts ...Option) *Service {
	s := &Service{deps: deps, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Check runs req through the pipeline. Errors are limited to
// *model.InputError (rejected input) and ErrNotConfigured; every upstream
// failure past validation degrades inside the result instead.
func (s *Service) Check(ctx context.Context, req model.AnalysisRequest) (model.AnalysisResult, error) {
	if s.deps.Analyzer == nil {
		return model.AnalysisResult{}, eris.Wrap(ErrNotConfigured, "check: AI provider")
	}
	req.URL = strings.TrimSpace(req.URL)
	if err := req.Validate(); err != nil {
		return model.AnalysisResult{}, err
	}

	start := s.now()
	if req.Kind != model.KindURL {
		res, path, err := s.run(ctx, req)
		if err != nil {
			return model.AnalysisResult{}, err
		}
		s.observe(req.Kind, path, start)
		return res, nil
	}

	if !req.ForceFresh {
		if hit := s.cached(ctx, req.URL); hit != nil {
			s.observe(req.Kind, analysis.PathCache, start)
			return *hit, nil
		}
	}

	// Identical URL checks in flight share one pipeline run. The shared run
	// must outlive any single caller's cancellation.
	key := cache.Key(req.URL)
	if req.ForceFresh {
		key += "#fresh"
	}
	type outcome struct {
		res  model.AnalysisResult
		path analysis.Path
	}
	v, err, shared := s.flight.Do(key, func() (any, error) {
		res, path, err := s.run(context.WithoutCancel(ctx), req)
		return outcome{res, path}, err
	})
	if err != nil {
		return model.AnalysisResult{}, err
	}
	out := v.(outcome)
	if shared {
		zap.L().Debug("check: joined in-flight check", zap.String("url", req.URL))
	}
	s.observe(req.Kind, out.path, start)
	return out.res, nil
}

func (s *Service) run(ctx context.Context, req model.AnalysisRequest) (model.AnalysisResult, analysis.Path, error) {
	log := zap.L().With(zap.String("kind", string(req.Kind)))

	content, err := s.acquire(ctx, req)
	if err != nil {
		return model.AnalysisResult{}, "", err
	}

	var (
		author *model.AuthorInfo
		ev     = model.EmptyEvidence()
	)
	g, gctx := errgroup.WithContext(ctx)
	if req.Kind == model.KindURL && s.deps.Authors != nil {
		g.Go(func() error {
			info := s.deps.Authors.Extract(gctx, req.URL)
			author = &info
			return nil
		})
	}
	if s.deps.Evidence != nil {
		g.Go(func() error {
			ev = s.deps.Evidence.Gather(gctx, content, req.URL)
			return nil
		})
	}
	_ = g.Wait()

	res, path := s.deps.Analyzer.Analyze(ctx, analysis.Input{
		Content:  content,
		URL:      req.URL,
		Evidence: ev,
	})
	res.Author = author
	res.Timestamp = s.now().UTC()
	res.FromCache = false
	switch req.Kind {
	case model.KindURL:
		res.InputURL = req.URL
	case model.KindText:
		res.InputText = content
	default:
		res.ExtractedText = content
	}
	res.Fill()

	log.Info("check: analysis complete",
		zap.String("path", string(path)),
		zap.Bool("is_fake", res.IsFake),
		zap.Int("confidence", res.Confidence),
	)

	if req.Kind == model.KindURL && path.Cacheable() && s.deps.Cache != nil {
		ttl, err := s.deps.Cache.Put(ctx, req.URL, res)
		if err != nil {
			log.Warn("check: cache write failed", zap.String("url", req.URL), zap.Error(err))
		} else {
			log.Debug("check: cached result", zap.String("url", req.URL), zap.Duration("ttl", ttl))
		}
	}
	return res, path, nil
}

func (s *Service) cached(ctx context.Context, rawURL string) *model.AnalysisResult {
	if s.deps.Cache == nil {
		return nil
	}
	hit, err := s.deps.Cache.Get(ctx, rawURL)
	if err != nil {
		zap.L().Warn("check: cache read failed", zap.String("url", rawURL), zap.Error(err))
		return nil
	}
	if hit == nil {
		return nil
	}
	hit.FromCache = true
	hit.Fill()
	return hit
}

// acquire turns the request into analyzable text.
func (s *Service) acquire(ctx context.Context, req model.AnalysisRequest) (string, error) {
	switch req.Kind {
	case model.KindURL:
		var text string
		if s.deps.Content != nil {
			text = s.deps.Content.Extract(ctx, req.URL)
		}
		if text == "" {
			return scrape.Placeholder(req.URL), nil
		}
		return text, nil

	case model.KindImage:
		if s.deps.OCR == nil {
			return "", eris.Wrap(ErrNotConfigured, "check: OCR engine")
		}
		text, err := s.deps.OCR.ExtractImage(ctx, req.Image, req.ImageType)
		if err != nil {
			return "", &model.InputError{Summary: "Image text extraction failed", Reason: err.Error()}
		}
		if text = strings.TrimSpace(text); text == "" {
			return ImagePlaceholder, nil
		}
		return text, nil

	case model.KindAudio:
		if s.deps.Speech == nil {
			return "", eris.Wrap(ErrNotConfigured, "check: speech-to-text")
		}
		tr, err := s.deps.Speech.Recognize(ctx, req.Audio, req.AudioType)
		if err != nil {
			return "", &model.InputError{Summary: "Audio transcription failed", Reason: err.Error()}
		}
		if tr == nil || strings.TrimSpace(tr.Text) == "" {
			return "", &model.InputError{Summary: "No speech detected in audio", Reason: "The audio did not contain recognizable speech"}
		}
		return strings.TrimSpace(tr.Text), nil

	default:
		return strings.TrimSpace(req.Text), nil
	}
}

func (s *Service) observe(kind model.InputKind, path analysis.Path, start time.Time) {
	if s.recorder != nil {
		s.recorder.ObserveCheck(kind, path, s.now().Sub(start))
	}
}
