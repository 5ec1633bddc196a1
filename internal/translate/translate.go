// Package translate renders a finished analysis into the supported Indian
// languages with one LLM call, caching the result briefly.
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"

	"github.com/misintel/misintel/internal/analysis"
	"github.com/misintel/misintel/internal/cache"
	"github.com/misintel/misintel/internal/llm"
)

// Cache and model settings for translation calls.
const (
	CacheTTL    = 180 * time.Second
	cachePrefix = "misintel:translation:"
	MaxTokens   = 8000
	Temperature = 0.1
	// SystemPrompt is the system instruction for the translation generator.
	SystemPrompt = "You are a translation API. Return only valid JSON with no markdown or explanations."
)

// Language is a supported output language.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Languages lists the outputs in response order. English is the source.
var Languages = []Language{
	{"en", "English"},
	{"hi", "Hindi (हिन्दी)"},
	{"bn", "Bengali (বাংলা)"},
	{"ta", "Tamil (தமிழ்)"},
	{"te", "Telugu (తెలుగు)"},
	{"mr", "Marathi (मराठी)"},
	{"gu", "Gujarati (ગુજરાતી)"},
	{"pa", "Punjabi (ਪੰਜਾਬੀ)"},
}

// Step is one verification step of an analysis.
type Step struct {
	ID      string `json:"id,omitempty"`
	Label   string `json:"label"`
	Details string `json:"details"`
}

// Source is the English analysis to translate.
type Source struct {
	Summary          string   `json:"summary"`
	Reasons          []string `json:"reasons"`
	IsFake           bool     `json:"isFake"`
	Confidence       int      `json:"confidence"`
	VerificationFlow []Step   `json:"verificationFlow,omitempty"`
}

// Text is the translated portion of an analysis.
type Text struct {
	Summary          string     `json:"summary"`
	Reasons          []string   `json:"reasons"`
	VerificationFlow []StepText `json:"verificationFlow,omitempty"`
}

// StepText is a translated verification step.
type StepText struct {
	Label   string `json:"label"`
	Details string `json:"details"`
}

// Translations maps language code to text.
type Translations map[string]Text

// English returns the source as the only translation.
func English(src Source) Translations {
	return Translations{"en": englishText(src)}
}

func englishText(src Source) Text {
	t := Text{Summary: src.Summary, Reasons: src.Reasons}
	for _, s := range src.VerificationFlow {
		t.VerificationFlow = append(t.VerificationFlow, StepText{Label: s.Label, Details: s.Details})
	}
	return t
}

// Translator produces Translations through an llm.Generator.
type Translator struct {
	gen   llm.Generator
	store cache.Store
}

// New creates a Translator. A nil generator only ever returns English and a
// nil store disables caching.
func New(gen llm.Generator, store cache.Store) *Translator {
	return &Translator{gen: gen, store: store}
}

// Translate returns src in every supported language. Generation or parse
// failures degrade to English only; a language the model skipped or mangled
// falls back to the English text.
func (t *Translator) Translate(ctx context.Context, src Source) Translations {
	if t.gen == nil {
		zap.L().Warn("translate: no generator configured")
		return English(src)
	}

	key := CacheKey(src)
	if cached, ok := t.cached(ctx, key); ok {
		return cached
	}

	raw, err := t.gen.Generate(ctx, Prompt(src))
	if err != nil {
		zap.L().Error("translate: generation failed", zap.Error(err))
		return English(src)
	}
	obj, err := analysis.ExtractJSONObject(raw)
	if err != nil {
		zap.L().Error("translate: unparseable response", zap.Error(err), zap.Int("length", len(raw)))
		return English(src)
	}

	out := validate(src, obj)
	t.remember(ctx, key, out)
	return out
}

// CacheKey hashes the translatable fields of src.
func CacheKey(src Source) string {
	b, _ := json.Marshal(struct {
		Summary          string   `json:"summary"`
		Reasons          []string `json:"reasons"`
		VerificationFlow []Step   `json:"verificationFlow"`
	}{src.Summary, src.Reasons, src.VerificationFlow})
	return cachePrefix + strconv.FormatUint(xxhash.Sum64(b), 36)
}

// Prompt builds the translation request.
func Prompt(src Source) string {
	var b strings.Builder
	b.WriteString("Translate this fact-check analysis to Indian languages. Return ONLY valid JSON.\n\n")
	b.WriteString("ORIGINAL:\n")
	b.WriteString("Summary: " + src.Summary + "\n")
	b.WriteString("Reasons: " + strings.Join(src.Reasons, " | ") + "\n")
	if len(src.VerificationFlow) > 0 {
		b.WriteString("\nVerification Steps:\n")
		for i, s := range src.VerificationFlow {
			fmt.Fprintf(&b, "Step %d: %s - %s\n", i+1, s.Label, s.Details)
		}
	}

	b.WriteString("\nReturn this exact JSON structure with translations:\n{\n")
	for i, l := range Languages[1:] {
		sep := ","
		if i == len(Languages)-2 {
			sep = ""
		}
		fmt.Fprintf(&b, `  %q: { "summary": "...", "reasons": ["..."], "verificationFlow": [{"label": "...", "details": "..."}] }%s`+"\n", l.Code, sep)
	}
	b.WriteString("}\n\n")
	b.WriteString(`Rules:
- Use native scripts (Devanagari for Hindi, Bengali script for Bengali, etc.)
- Keep numbers, URLs, names, percentages unchanged
- Preserve meaning exactly
- For verificationFlow, translate both "label" and "details" fields
- Return ONLY the JSON object`)
	return b.String()
}

func validate(src Source, obj map[string]any) Translations {
	en := englishText(src)
	out := Translations{"en": en}
	for _, l := range Languages[1:] {
		entry, ok := obj[l.Code].(map[string]any)
		summary, okSummary := entry["summary"].(string)
		reasons, okReasons := entry["reasons"].([]any)
		if !ok || !okSummary || !okReasons {
			zap.L().Warn("translate: missing language, using English", zap.String("lang", l.Code))
			out[l.Code] = en
			continue
		}

		t := Text{Summary: strings.TrimSpace(summary), Reasons: []string{}}
		for _, r := range reasons {
			if s := strings.TrimSpace(fmt.Sprint(r)); s != "" {
				t.Reasons = append(t.Reasons, s)
			}
		}
		if steps, ok := entry["verificationFlow"].([]any); ok {
			t.VerificationFlow = []StepText{}
			for _, s := range steps {
				m, _ := s.(map[string]any)
				t.VerificationFlow = append(t.VerificationFlow, StepText{
					Label:   field(m, "label"),
					Details: field(m, "details"),
				})
			}
		} else {
			t.VerificationFlow = en.VerificationFlow
		}
		out[l.Code] = t
	}
	return out
}

func field(m map[string]any, k string) string {
	if v, ok := m[k]; ok && v != nil {
		return strings.TrimSpace(fmt.Sprint(v))
	}
	return ""
}

func (t *Translator) cached(ctx context.Context, key string) (Translations, bool) {
	if t.store == nil {
		return nil, false
	}
	b, ok, err := t.store.Get(ctx, key)
	if err != nil || !ok {
		return nil, false
	}
	var out Translations
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, false
	}
	zap.L().Debug("translate: cache hit", zap.String("key", key))
	return out, true
}

func (t *Translator) remember(ctx context.Context, key string, out Translations) {
	if t.store == nil {
		return
	}
	b, err := json.Marshal(out)
	if err != nil {
		return
	}
	if err := t.store.Set(ctx, key, b, CacheTTL); err != nil {
		zap.L().Warn("translate: cache write failed", zap.Error(err))
	}
}
