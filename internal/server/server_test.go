package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/misintel/misintel/internal/check"
	"github.com/misintel/misintel/internal/crisis"
	"github.com/misintel/misintel/internal/model"
	"github.com/misintel/misintel/internal/ratelimit"
	"github.com/misintel/misintel/internal/translate"
	"github.com/misintel/misintel/internal/trending"
	"github.com/misintel/misintel/pkg/speech"
)

type fakeChecker struct {
	got model.AnalysisRequest
	err error
}

func (f *fakeChecker) Check(_ context.Context, req model.AnalysisRequest) (model.AnalysisResult, error) {
	f.got = req
	if f.err != nil {
		return model.AnalysisResult{}, f.err
	}
	if err := req.Validate(); err != nil {
		return model.AnalysisResult{}, err
	}
	res := model.AnalysisResult{Confidence: 80, Summary: "ok", InputText: req.Text, InputURL: req.URL}
	res.Fill()
	return res, nil
}

type fakeAuthors struct{ got string }

func (f *fakeAuthors) Extract(_ context.Context, u string) model.AuthorInfo {
	f.got = u
	return model.AuthorInfo{Name: "Jane Doe", CredibilityScore: 88, PriorArticles: []model.PriorArticle{}}
}

type fakeSpeech struct {
	tr  *speech.Transcript
	err error
}

func (f *fakeSpeech) Recognize(context.Context, []byte, string) (*speech.Transcript, error) {
	return f.tr, f.err
}

type fakeHeadlines struct {
	got   trending.Query
	items []trending.Item
	err   error
}

func (f *fakeHeadlines) Top(_ context.Context, q trending.Query) ([]trending.Item, error) {
	f.got = q
	return f.items, f.err
}

type fakeCrisis struct {
	ev  *crisis.Event
	err error
}

func (f *fakeCrisis) Status(context.Context) (*crisis.Event, error) { return f.ev, f.err }

type fakeTranslator struct{ got translate.Source }

func (f *fakeTranslator) Translate(_ context.Context, src translate.Source) translate.Translations {
	f.got = src
	out := translate.English(src)
	out["hi"] = translate.Text{Summary: "दावा झूठा है", Reasons: []string{"कारण"}}
	return out
}

type fakeMetrics struct{ limited int }

func (f *fakeMetrics) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("misintel_up 1\n"))
	})
}
func (f *fakeMetrics) InstrumentHandler(next http.Handler) http.Handler { return next }
func (f *fakeMetrics) ObserveRateLimited()                              { f.limited++ }

type filePart struct {
	field, name, contentType string
	data                     []byte
}

func multipartRequest(t *testing.T, path string, fields map[string]string, files ...filePart) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", `form-data; name="`+f.field+`"; filename="`+f.name+`"`)
		h.Set("Content-Type", f.contentType)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write(f.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	h := New(Deps{Checker: &fakeChecker{}})
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestRequestIDPropagated(t *testing.T) {
	h := New(Deps{Checker: &fakeChecker{}})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := serve(h, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}

func TestAdvancedCheck_Options(t *testing.T) {
	h := New(Deps{Checker: &fakeChecker{}})
	rec := serve(h, httptest.NewRequest(http.MethodOptions, "/advanced-check", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestAdvancedCheck_BrowserPreflight(t *testing.T) {
	h := New(Deps{Checker: &fakeChecker{}})
	req := httptest.NewRequest(http.MethodOptions, "/advanced-check", nil)
	req.Header.Set("Origin", "https://news.example")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "Content-Type")
	rec := serve(h, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "Content-Type", rec.Header().Get("Access-Control-Allow-Headers"))
}

func TestAdvancedCheck_CORSOnActualRequest(t *testing.T) {
	h := New(Deps{Checker: &fakeChecker{}})
	req := multipartRequest(t, "/advanced-check", map[string]string{"type": "text", "input": "hello"})
	req.Header.Set("Origin", "https://news.example")
	rec := serve(h, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAdvancedCheck_Text(t *testing.T) {
	ch := &fakeChecker{}
	h := New(Deps{Checker: ch})

	rec := serve(h, multipartRequest(t, "/advanced-check", map[string]string{"type": "text", "input": "COVID vaccines are safe"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	assert.Equal(t, model.KindText, ch.got.Kind)
	assert.Equal(t, "COVID vaccines are safe", ch.got.Text)
	body := decode(t, rec)
	assert.Equal(t, float64(80), body["confidence"])
	assert.Equal(t, false, body["fromCache"])
}

func TestAdvancedCheck_URLForm(t *testing.T) {
	ch := &fakeChecker{}
	h := New(Deps{Checker: ch})

	form := url.Values{"type": {"url"}, "input": {"http://example.com/article"}, "forceFresh": {"TRUE"}}
	req := httptest.NewRequest(http.MethodPost, "/advanced-check", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := serve(h, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.KindURL, ch.got.Kind)
	assert.Equal(t, "http://example.com/article", ch.got.URL)
	assert.True(t, ch.got.ForceFresh)
}

func TestAdvancedCheck_JSON(t *testing.T) {
	ch := &fakeChecker{}
	h := New(Deps{Checker: ch})

	req := httptest.NewRequest(http.MethodPost, "/advanced-check",
		strings.NewReader(`{"type":"url","input":"https://example.com/x","forceFresh":"1"}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := serve(h, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://example.com/x", ch.got.URL)
	assert.True(t, ch.got.ForceFresh)
}

func TestAdvancedCheck_ImageUpload(t *testing.T) {
	ch := &fakeChecker{}
	h := New(Deps{Checker: ch})

	rec := serve(h, multipartRequest(t, "/advanced-check", map[string]string{"type": "image"},
		filePart{field: "image", name: "shot.png", contentType: "image/png", data: []byte("png-bytes")}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.KindImage, ch.got.Kind)
	assert.Equal(t, []byte("png-bytes"), ch.got.Image)
	assert.Equal(t, "image/png", ch.got.ImageType)
}

func TestAdvancedCheck_MissingImage(t *testing.T) {
	h := New(Deps{Checker: &fakeChecker{}})
	rec := serve(h, multipartRequest(t, "/advanced-check", map[string]string{"type": "image"}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Missing input", body["error"])
	assert.Equal(t, false, body["isFake"])
	assert.Equal(t, float64(0), body["confidence"])
	reasons := body["reasons"].([]any)
	require.Len(t, reasons, 1)
	assert.Contains(t, reasons[0], "Image input is required")
}

func TestAdvancedCheck_AudioUpload(t *testing.T) {
	ch := &fakeChecker{}
	h := New(Deps{Checker: ch})

	rec := serve(h, multipartRequest(t, "/advanced-check", map[string]string{"type": "audio"},
		filePart{field: "audio", name: "clip.webm", contentType: "audio/webm", data: []byte("opus")}))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.KindAudio, ch.got.Kind)
	assert.Equal(t, "audio/webm", ch.got.AudioType)
}

func TestAdvancedCheck_RateLimited(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	m := &fakeMetrics{}
	h := New(Deps{
		Checker: &fakeChecker{},
		Limiter: ratelimit.New(time.Minute, 1, ratelimit.WithClock(func() time.Time { return now })),
		Metrics: m,
	})

	newReq := func() *http.Request {
		req := multipartRequest(t, "/advanced-check", map[string]string{"type": "text", "input": "x"})
		req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
		return req
	}
	require.Equal(t, http.StatusOK, serve(h, newReq()).Code)

	rec := serve(h, newReq())
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{
		"isFake": false,
		"confidence": 0,
		"summary": "Analysis failed",
		"reasons": ["Request failed with status 429", "Please check your input and try again"]
	}`, rec.Body.String())
	assert.Equal(t, 1, m.limited)

	other := multipartRequest(t, "/advanced-check", map[string]string{"type": "text", "input": "x"})
	other.Header.Set("X-Forwarded-For", "198.51.100.1")
	assert.Equal(t, http.StatusOK, serve(h, other).Code)
}

func TestAdvancedCheck_NotConfigured(t *testing.T) {
	h := New(Deps{Checker: &fakeChecker{err: eris.Wrap(check.ErrNotConfigured, "check: AI provider")}})
	rec := serve(h, multipartRequest(t, "/advanced-check", map[string]string{"type": "text", "input": "x"}))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{
		"error": "Server configuration error",
		"isFake": false,
		"confidence": 0,
		"summary": "API key not configured",
		"reasons": ["Google API key missing from environment variables"]
	}`, rec.Body.String())
}

func TestAdvancedCheck_ServerError(t *testing.T) {
	h := New(Deps{Checker: &fakeChecker{err: errors.New("boom")}})
	rec := serve(h, multipartRequest(t, "/advanced-check", map[string]string{"type": "text", "input": "x"}))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "Server error", body["error"])
	assert.Equal(t, "Internal server error occurred", body["summary"])
	assert.Equal(t, []any{"boom", "Please try again later"}, body["reasons"])
}

func TestForceFresh(t *testing.T) {
	assert.True(t, forceFresh(true))
	assert.True(t, forceFresh("true"))
	assert.True(t, forceFresh(" True "))
	assert.True(t, forceFresh("1"))
	assert.True(t, forceFresh(float64(1)))
	assert.False(t, forceFresh(""))
	assert.False(t, forceFresh("yes"))
	assert.False(t, forceFresh(nil))
}

func TestSpeechToText(t *testing.T) {
	clip := filePart{field: "audio", name: "clip.wav", contentType: "audio/wav", data: []byte("RIFFdata")}

	t.Run("no file", func(t *testing.T) {
		h := New(Deps{Checker: &fakeChecker{}, Speech: &fakeSpeech{}})
		rec := serve(h, multipartRequest(t, "/speech-to-text", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"No audio file provided"}`, rec.Body.String())
	})

	t.Run("transcript", func(t *testing.T) {
		h := New(Deps{Checker: &fakeChecker{}, Speech: &fakeSpeech{tr: &speech.Transcript{
			Text:       "hello world",
			Confidence: 0.91,
			Language:   "en-US",
			Words:      []speech.Word{{Word: "hello", EndTime: 0.4}},
		}}})
		rec := serve(h, multipartRequest(t, "/speech-to-text", nil, clip))
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Equal(t, "hello world", body["transcript"])
		assert.Equal(t, "en-US", body["language"])
		assert.Equal(t, float64(len(clip.data)), body["audioLength"])
		assert.Len(t, body["words"], 1)
	})

	t.Run("no speech", func(t *testing.T) {
		h := New(Deps{Checker: &fakeChecker{}, Speech: &fakeSpeech{tr: &speech.Transcript{}}})
		rec := serve(h, multipartRequest(t, "/speech-to-text", nil, clip))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":false,"error":"No speech detected in audio","transcript":""}`, rec.Body.String())
	})

	t.Run("upstream failure", func(t *testing.T) {
		h := New(Deps{Checker: &fakeChecker{}, Speech: &fakeSpeech{err: errors.New("speech: unexpected status 403")}})
		rec := serve(h, multipartRequest(t, "/speech-to-text", nil, clip))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "speech: unexpected status 403", decode(t, rec)["error"])
	})
}

func TestAuthorInfo(t *testing.T) {
	authors := &fakeAuthors{}
	h := New(Deps{Checker: &fakeChecker{}, Authors: authors})

	rec := serve(h, multipartRequest(t, "/author-info", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"error":"URL is required"}`, rec.Body.String())

	rec = serve(h, multipartRequest(t, "/author-info", map[string]string{"url": "not a url"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = serve(h, multipartRequest(t, "/author-info", map[string]string{"url": " https://www.reuters.com/world/story "}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://www.reuters.com/world/story", authors.got)
	assert.JSONEq(t, `{"success":true,"author":{"name":"Jane Doe","credibilityScore":88,"priorArticles":[]}}`, rec.Body.String())
}

func TestTrending(t *testing.T) {
	items := []trending.Item{{Title: "Story", Link: "https://news.example/a", PublishedAt: "Tue", Source: "Wire"}}

	t.Run("ok", func(t *testing.T) {
		hl := &fakeHeadlines{items: items}
		h := New(Deps{Checker: &fakeChecker{}, Trending: hl})
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/trending?q=flood&hl=en-US&gl=US", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, trending.Query{Q: "flood", HL: "en-US", GL: "US"}, hl.got)
		assert.JSONEq(t, `{"items":[{"title":"Story","link":"https://news.example/a","publishedAt":"Tue","source":"Wire"}]}`, rec.Body.String())
	})

	t.Run("upstream status", func(t *testing.T) {
		h := New(Deps{Checker: &fakeChecker{}, Trending: &fakeHeadlines{err: &trending.UpstreamError{StatusCode: 503}}})
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/trending", nil))
		require.Equal(t, http.StatusBadGateway, rec.Code)
		assert.JSONEq(t, `{"items":[],"error":"Upstream 503"}`, rec.Body.String())
	})

	t.Run("fetch failure", func(t *testing.T) {
		h := New(Deps{Checker: &fakeChecker{}, Trending: &fakeHeadlines{err: errors.New("dial tcp: timeout")}})
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/trending", nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestMetricsRoute(t *testing.T) {
	h := New(Deps{Checker: &fakeChecker{}, Metrics: &fakeMetrics{}})
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "misintel_up 1")

	rec = serve(New(Deps{Checker: &fakeChecker{}}), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCrisisMode(t *testing.T) {
	t.Run("active", func(t *testing.T) {
		ev := &crisis.Event{
			Active:    true,
			Type:      crisis.TypeDisaster,
			Severity:  crisis.SeverityHigh,
			Message:   "Disaster alert",
			StartDate: time.Date(2026, 5, 4, 9, 30, 0, 0, time.UTC),
			Keywords:  []string{"flood", "rescue"},
		}
		h := New(Deps{Checker: &fakeChecker{}, Crisis: &fakeCrisis{ev: ev}})
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/crisis-mode", nil))
		require.Equal(t, http.StatusOK, rec.Code)

		body := decode(t, rec)
		assert.Equal(t, true, body["success"])
		assert.NotEmpty(t, body["timestamp"])
		c := body["crisis"].(map[string]any)
		assert.Equal(t, "disaster", c["type"])
		assert.Equal(t, "high", c["severity"])
		assert.Equal(t, "2026-05-04T09:30:00Z", c["start_date"])
		assert.Equal(t, []any{"flood", "rescue"}, c["keywords"])
	})

	t.Run("none", func(t *testing.T) {
		rec := serve(New(Deps{Checker: &fakeChecker{}}), httptest.NewRequest(http.MethodGet, "/crisis-mode", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, true, body["success"])
		assert.Nil(t, body["crisis"])
	})

	t.Run("failure", func(t *testing.T) {
		h := New(Deps{Checker: &fakeChecker{}, Crisis: &fakeCrisis{err: context.DeadlineExceeded}})
		rec := serve(h, httptest.NewRequest(http.MethodGet, "/crisis-mode", nil))
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.JSONEq(t, `{"success":false,"crisis":null,"error":"Failed to check crisis status"}`, rec.Body.String())
	})
}

func TestTranslate(t *testing.T) {
	post := func(h http.Handler, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/translate", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return serve(h, req)
	}

	t.Run("ok", func(t *testing.T) {
		tr := &fakeTranslator{}
		h := New(Deps{Checker: &fakeChecker{}, Translator: tr})
		rec := post(h, `{"summary":"False","reasons":["r1"],"isFake":true,"confidence":90,
			"verificationFlow":[{"id":"s1","label":"Search","details":"none"}]}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, translate.Source{
			Summary: "False", Reasons: []string{"r1"}, IsFake: true, Confidence: 90,
			VerificationFlow: []translate.Step{{ID: "s1", Label: "Search", Details: "none"}},
		}, tr.got)

		body := decode(t, rec)
		assert.Equal(t, true, body["success"])
		tl := body["translations"].(map[string]any)
		assert.Equal(t, "दावा झूठा है", tl["hi"].(map[string]any)["summary"])
		assert.Equal(t, "False", tl["en"].(map[string]any)["summary"])
	})

	t.Run("missing fields", func(t *testing.T) {
		h := New(Deps{Checker: &fakeChecker{}, Translator: &fakeTranslator{}})
		rec := post(h, `{"summary":"False"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"Missing required fields"}`, rec.Body.String())

		rec = post(h, `{"reasons":[]}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		rec = post(h, `not json`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("no translator", func(t *testing.T) {
		rec := post(New(Deps{Checker: &fakeChecker{}}), `{"summary":"False","reasons":[]}`)
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"success":true,"translations":{"en":{"summary":"False","reasons":[]}}}`, rec.Body.String())
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/translate", nil)
		req.Header.Set("Origin", "https://news.example")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := serve(New(Deps{Checker: &fakeChecker{}}), req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "POST, OPTIONS", rec.Header().Get("Access-Control-Allow-Methods"))
	})
}
