package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/misintel/misintel/internal/crisis"
	"github.com/misintel/misintel/internal/model"
	"github.com/misintel/misintel/internal/ratelimit"
	"github.com/misintel/misintel/internal/translate"
	"github.com/misintel/misintel/internal/trending"
	"github.com/misintel/misintel/pkg/speech"
)

func (s *Server) advancedCheck(w http.ResponseWriter, r *http.Request) {
	if s.deps.Limiter != nil {
		client := ratelimit.ClientID(r)
		if d := s.deps.Limiter.Allow(client); d.Limited {
			zap.L().Info("server: rate limited",
				zap.String("client", client),
				zap.Int("retry_after", d.RetryAfterSeconds),
			)
			if s.deps.Metrics != nil {
				s.deps.Metrics.ObserveRateLimited()
			}
			writeRateLimited(w, d.RetryAfterSeconds)
			return
		}
	}

	req, err := s.parseCheck(w, r)
	if err != nil {
		writeCheckError(w, err)
		return
	}

	res, err := s.deps.Checker.Check(r.Context(), req)
	if err != nil {
		writeCheckError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// checkBody is the JSON form of an advanced-check request.
type checkBody struct {
	Type       string `json:"type"`
	Input      string `json:"input"`
	ForceFresh any    `json:"forceFresh"`
}

// parseCheck reads a multipart, urlencoded or JSON advanced-check request.
func (s *Server) parseCheck(w http.ResponseWriter, r *http.Request) (model.AnalysisRequest, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)

	if isJSON(r) {
		var body checkBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return model.AnalysisRequest{}, &model.InputError{Summary: "Invalid request body", Reason: err.Error()}
		}
		return newRequest(body.Type, body.Input, forceFresh(body.ForceFresh)), nil
	}

	if err := parseForm(r, s.deps.MaxUploadBytes); err != nil {
		return model.AnalysisRequest{}, &model.InputError{Summary: "Invalid form data", Reason: err.Error()}
	}
	req := newRequest(r.FormValue("type"), r.FormValue("input"), forceFresh(r.FormValue("forceFresh")))

	var err error
	switch req.Kind {
	case model.KindImage:
		req.Image, req.ImageType, err = formFile(r, "image")
	case model.KindAudio:
		req.Audio, req.AudioType, err = formFile(r, "audio")
	}
	if err != nil {
		return model.AnalysisRequest{}, err
	}
	return req, nil
}

func newRequest(kind, input string, fresh bool) model.AnalysisRequest {
	req := model.AnalysisRequest{Kind: model.ParseInputKind(kind)}
	switch req.Kind {
	case model.KindURL:
		req.URL = input
		req.ForceFresh = fresh
	case model.KindText:
		req.Text = input
	}
	return req
}

// forceFresh accepts true, "true" in any case, or "1".
func forceFresh(v any) bool {
	switch t := v.(type) {
	case bool:
		return t
	case string:
		return strings.EqualFold(strings.TrimSpace(t), "true") || strings.TrimSpace(t) == "1"
	case float64:
		return t == 1
	default:
		return false
	}
}

func isJSON(r *http.Request) bool {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt == "application/json"
}

func parseForm(r *http.Request, maxBytes int64) error {
	err := r.ParseMultipartForm(maxBytes)
	if errors.Is(err, http.ErrNotMultipart) {
		return r.ParseForm()
	}
	return err
}

// formFile reads an uploaded file. A missing file yields nil data so request
// validation reports it.
func formFile(r *http.Request, field string) ([]byte, string, error) {
	f, hdr, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", &model.InputError{Summary: "Invalid " + field + " upload", Reason: err.Error()}
	}
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", &model.InputError{Summary: "Invalid " + field + " upload", Reason: err.Error()}
	}
	return data, hdr.Header.Get("Content-Type"), nil
}

type speechFailure struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Transcript string `json:"transcript"`
}

type speechSuccess struct {
	Success     bool          `json:"success"`
	Transcript  string        `json:"transcript"`
	Confidence  float64       `json:"confidence"`
	Language    string        `json:"language"`
	Words       []speech.Word `json:"words"`
	AudioLength int           `json:"audioLength"`
}

func (s *Server) speechToText(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.deps.MaxUploadBytes)
	if err := parseForm(r, s.deps.MaxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No audio file provided"})
		return
	}
	audio, mimeType, err := formFile(r, "audio")
	if err != nil || len(audio) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "No audio file provided"})
		return
	}
	if s.deps.Speech == nil {
		writeJSON(w, http.StatusInternalServerError, speechFailure{Error: "Speech-to-text is not configured"})
		return
	}

	tr, err := s.deps.Speech.Recognize(r.Context(), audio, mimeType)
	if err != nil {
		zap.L().Error("server: speech-to-text failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, speechFailure{Error: err.Error()})
		return
	}
	if tr == nil || strings.TrimSpace(tr.Text) == "" {
		writeJSON(w, http.StatusOK, speechFailure{Error: "No speech detected in audio"})
		return
	}

	writeJSON(w, http.StatusOK, speechSuccess{
		Success:     true,
		Transcript:  tr.Text,
		Confidence:  tr.Confidence,
		Language:    tr.Language,
		Words:       tr.Words,
		AudioLength: len(audio),
	})
}

func (s *Server) authorInfo(w http.ResponseWriter, r *http.Request) {
	var target string
	if isJSON(r) {
		var body struct {
			URL string `json:"url"`
		}
		_ = json.NewDecoder(io.LimitReader(r.Body, 1<<16)).Decode(&body)
		target = body.URL
	} else if err := parseForm(r, 1<<16); err == nil {
		target = r.FormValue("url")
	}

	target = strings.TrimSpace(target)
	if target == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "URL is required"})
		return
	}
	if !model.IsHTTPURL(target) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "URL must be an absolute http(s) address"})
		return
	}
	if s.deps.Authors == nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to extract author information"})
		return
	}

	info := s.deps.Authors.Extract(r.Context(), target)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "author": info})
}

type trendingResponse struct {
	Items []trending.Item `json:"items"`
	Error string          `json:"error,omitempty"`
}

func (s *Server) trending(w http.ResponseWriter, r *http.Request) {
	if s.deps.Trending == nil {
		writeJSON(w, http.StatusServiceUnavailable, trendingResponse{Items: []trending.Item{}, Error: "trending is disabled"})
		return
	}
	q := r.URL.Query()
	items, err := s.deps.Trending.Top(r.Context(), trending.Query{
		Q:  q.Get("q"),
		HL: q.Get("hl"),
		GL: q.Get("gl"),
	})
	if err != nil {
		status := http.StatusInternalServerError
		var ue *trending.UpstreamError
		if errors.As(err, &ue) {
			status = http.StatusBadGateway
		}
		zap.L().Warn("server: trending failed", zap.Error(err))
		writeJSON(w, status, trendingResponse{Items: []trending.Item{}, Error: err.Error()})
		return
	}
	if items == nil {
		items = []trending.Item{}
	}
	writeJSON(w, http.StatusOK, trendingResponse{Items: items})
}

// isoMillis matches JavaScript's Date.toISOString.
const isoMillis = "2006-01-02T15:04:05.000Z07:00"

type crisisResponse struct {
	Success   bool          `json:"success"`
	Crisis    *crisis.Event `json:"crisis"`
	Timestamp string        `json:"timestamp,omitempty"`
	Error     string        `json:"error,omitempty"`
}

func (s *Server) crisisMode(w http.ResponseWriter, r *http.Request) {
	var ev *crisis.Event
	if s.deps.Crisis != nil {
		var err error
		ev, err = s.deps.Crisis.Status(r.Context())
		if err != nil {
			zap.L().Error("server: crisis check failed", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, crisisResponse{Error: "Failed to check crisis status"})
			return
		}
	}
	writeJSON(w, http.StatusOK, crisisResponse{
		Success:   true,
		Crisis:    ev,
		Timestamp: time.Now().UTC().Format(isoMillis),
	})
}

func (s *Server) translate(w http.ResponseWriter, r *http.Request) {
	var src translate.Source
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(&src); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid JSON body"})
		return
	}
	if strings.TrimSpace(src.Summary) == "" || src.Reasons == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required fields"})
		return
	}

	var out translate.Translations
	if s.deps.Translator != nil {
		out = s.deps.Translator.Translate(r.Context(), src)
	} else {
		out = translate.English(src)
	}
	writeJSON(w, http.StatusOK, map[string]any{"translations": out, "success": true})
}
