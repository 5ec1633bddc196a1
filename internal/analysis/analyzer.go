package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/misintel/misintel/internal/model"
)

// Generator submits a prompt to a text model and returns its raw reply.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Path records which stage produced a result.
type Path string

const (
	PathModel    Path = "model"
	PathFallback Path = "fallback"
	PathPartial  Path = "partial"
	// PathCache labels results served from the cache.
	PathCache Path = "cache"
)

// Cacheable reports whether results from this path may be cached.
func (p Path) Cacheable() bool { return p == PathModel || p == PathFallback }

// Input is one analysis job.
type Input struct {
	Content  string
	URL      string
	Evidence model.Evidence
}

// Analyzer runs the model with the fallback chain. Analyze never fails.
type Analyzer struct {
	gen       Generator
	now       func() time.Time
	heuristic func(content string, ev model.Evidence) model.AnalysisResult
}

// NewAnalyzer creates an Analyzer backed by gen.
func NewAnalyzer(gen Generator) *Analyzer {
	return &Analyzer{gen: gen, now: time.Now, heuristic: Fallback}
}

// Prompt builds the prompt for in at the analyzer's current time.
func (a *Analyzer) Prompt(in Input) string {
	return BuildPrompt(PromptInput{
		Content:  in.Content,
		URL:      in.URL,
		Evidence: in.Evidence,
		Now:      a.now(),
	})
}

// Analyze asks the model for a verdict. A model or parse failure falls back
// to the heuristic; a failure inside the heuristic yields PartialFailure.
func (a *Analyzer) Analyze(ctx context.Context, in Input) (model.AnalysisResult, Path) {
	res, err := guard(func() (model.AnalysisResult, error) {
		return a.fromModel(ctx, in)
	})
	if err == nil {
		return res, PathModel
	}
	zap.L().Warn("analysis: model path failed, using fallback heuristic", zap.Error(err))

	res, err = guard(func() (model.AnalysisResult, error) {
		return a.heuristic(in.Content, in.Evidence), nil
	})
	if err == nil {
		return res, PathFallback
	}
	zap.L().Error("analysis: fallback heuristic failed", zap.Error(err))

	return PartialFailure(in.Evidence), PathPartial
}

func (a *Analyzer) fromModel(ctx context.Context, in Input) (model.AnalysisResult, error) {
	text, err := a.gen.Generate(ctx, a.Prompt(in))
	if err != nil {
		return model.AnalysisResult{}, eris.Wrap(err, "analysis: model call")
	}
	parsed, err := ExtractJSONObject(text)
	if err != nil {
		return model.AnalysisResult{}, err
	}
	res := Normalize(parsed, in.Evidence)
	ApplySafetyOverride(&res, in.Evidence.SafetyVerdict())
	return res, nil
}

// guard runs fn, converting a panic into an error.
func guard(fn func() (model.AnalysisResult, error)) (res model.AnalysisResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.New(fmt.Sprintf("analysis: panic: %v", r))
		}
	}()
	return fn()
}
