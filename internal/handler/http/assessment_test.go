package http

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/windfall/speakscore/internal/client"
	"github.com/windfall/speakscore/internal/logger"
	"github.com/windfall/speakscore/internal/service"
)

type stubTranscriber struct {
	job     client.Transcript
	submits int
}

func (s *stubTranscriber) Submit(ctx context.Context, audioPath string) (*client.Transcript, error) {
	s.submits++
	return &client.Transcript{ID: "tr_1", Status: client.TranscriptQueued}, nil
}

func (s *stubTranscriber) Get(ctx context.Context, id string) (*client.Transcript, error) {
	job := s.job
	return &job, nil
}

type stubGenerator struct {
	reply  string
	err    error
	prompt string
}

func (s *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	s.prompt = prompt
	return s.reply, s.err
}

type stubResults struct {
	saved map[string]*service.AssessmentResult
}

func (s *stubResults) Save(ctx context.Context, id string, result *service.AssessmentResult) error {
	s.saved[id] = result
	return nil
}

func (s *stubResults) Get(ctx context.Context, id string) (*service.AssessmentResult, error) {
	if r, ok := s.saved[id]; ok {
		return r, nil
	}
	return nil, stderrors.New("not found")
}

const speakingReply = `{"scores":{"pronunciation":7,"vocabulary":6,"fluency":8,"grammer":5},
"feedback":{"pronunciation":"a","vocabulary":"b","fluency":"c","grammer":"d","overall":"e"}}`

type testEnv struct {
	router      chi.Router
	transcriber *stubTranscriber
	generator   *stubGenerator
}

func newTestEnv(t *testing.T, job client.Transcript, reply string) *testEnv {
	t.Helper()

	tr := &stubTranscriber{job: job}
	gen := &stubGenerator{reply: reply}
	svc := service.NewAssessmentService(tr, gen, nil, &stubResults{saved: map[string]*service.AssessmentResult{}},
		service.AssessmentConfig{
			UploadDir:          t.TempDir(),
			PollInterval:       time.Millisecond,
			TranscribeMaxPolls: 3,
			ReadingMaxPolls:    3,
		}, logger.NewNop())
	h := NewAssessmentHandler(logger.NewNop(), svc, 1<<20)

	r := chi.NewRouter()
	r.Post("/transcribe", h.Transcribe)
	r.Post("/analyze-reading", h.AnalyzeReading)
	r.Post("/analyze-writing", h.AnalyzeWriting)
	r.Get("/results/{id}", h.GetResult)

	return &testEnv{router: r, transcriber: tr, generator: gen}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func multipartRequest(t *testing.T, path string, audio []byte, fields map[string]string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if audio != nil {
		part, err := mw.CreateFormFile("audio", "recording.webm")
		require.NoError(t, err)
		_, err = part.Write(audio)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestTranscribe_OK(t *testing.T) {
	env := newTestEnv(t, client.Transcript{Status: client.TranscriptCompleted, Text: "hello there"}, speakingReply)

	rec := env.do(multipartRequest(t, "/transcribe", []byte("audio"), nil))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get(AssessmentIDHeader))

	body := decode(t, rec)
	assert.Equal(t, "hello there", body["transcription"])

	analysis := body["analysis"].(map[string]interface{})
	assert.Equal(t, 7.0, analysis["pronunciation"])
	assert.Equal(t, 5.0, analysis["grammer"])
	assert.Contains(t, analysis["feedback"], "Overall Assessment:\ne")
	assert.Len(t, analysis, 5)

	// stored result can be fetched again
	rec = env.do(httptest.NewRequest(http.MethodGet, "/results/"+rec.Header().Get(AssessmentIDHeader), nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestTranscribe_MissingAudio(t *testing.T) {
	env := newTestEnv(t, client.Transcript{Status: client.TranscriptCompleted}, speakingReply)

	rec := env.do(multipartRequest(t, "/transcribe", nil, map[string]string{"other": "x"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, map[string]interface{}{"error": "No audio file uploaded"}, decode(t, rec))
	assert.Zero(t, env.transcriber.submits)

	rec = env.do(httptest.NewRequest(http.MethodPost, "/transcribe", strings.NewReader("not multipart")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTranscribe_UpstreamFailure(t *testing.T) {
	env := newTestEnv(t, client.Transcript{Status: client.TranscriptError, Error: "bad audio"}, speakingReply)

	rec := env.do(multipartRequest(t, "/transcribe", []byte("audio"), nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "Transcription or analysis failed", body["error"])
	assert.Equal(t, "Transcription failed: bad audio", body["details"])
}

func TestTranscribe_Timeout(t *testing.T) {
	env := newTestEnv(t, client.Transcript{Status: client.TranscriptProcessing}, speakingReply)

	rec := env.do(multipartRequest(t, "/transcribe", []byte("audio"), nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Transcription timed out", decode(t, rec)["details"])
}

func TestAnalyzeReading(t *testing.T) {
	reply := `{"scores":{"pronunciation":8,"fluency":7,"accuracy":6,"intonation":7},
"feedback":{"pronunciation":"p","fluency":"f","accuracy":"a","intonation":"i","overall":"o"}}`
	env := newTestEnv(t, client.Transcript{Status: client.TranscriptCompleted, Text: "the cat sat"}, reply)

	rec := env.do(multipartRequest(t, "/analyze-reading", []byte("audio"), map[string]string{"text": "The cat sat on the mat."}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	assert.Equal(t, "the cat sat", body["transcription"])
	assert.Equal(t, 6.0, body["analysis"].(map[string]interface{})["accuracy"])
	assert.Contains(t, env.generator.prompt, "The cat sat on the mat.")

	rec = env.do(multipartRequest(t, "/analyze-reading", nil, map[string]string{"text": "x"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file received", decode(t, rec)["error"])
}

func TestAnalyzeWriting(t *testing.T) {
	reply := `{"scores":{"pronunciation":6,"grammer":3,"structure":5,"vocabulary":6},
"feedback":{"pronunciation":"p","grammer":"Use 'went'.","structure":"s","vocabulary":"v","overall":"o"}}`
	env := newTestEnv(t, client.Transcript{}, reply)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/analyze-writing",
		strings.NewReader(`{"text":"I has went to market yesterday."}`)))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decode(t, rec)
	_, hasTranscription := body["transcription"]
	assert.False(t, hasTranscription)

	analysis := body["analysis"].(map[string]interface{})
	assert.Equal(t, 3.0, analysis["grammer"])
	assert.Contains(t, analysis["feedback"], "Grammer: Use 'went'.")
}

func TestAnalyzeWriting_BadInput(t *testing.T) {
	env := newTestEnv(t, client.Transcript{}, "")

	rec := env.do(httptest.NewRequest(http.MethodPost, "/analyze-writing", strings.NewReader(`{"text":""}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Text is required", decode(t, rec)["error"])

	rec = env.do(httptest.NewRequest(http.MethodPost, "/analyze-writing", strings.NewReader(`{`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, env.generator.prompt)
}

func TestAnalyzeWriting_FallbackOnUnusableOutput(t *testing.T) {
	env := newTestEnv(t, client.Transcript{}, "Sorry, I can't do that.")

	rec := env.do(httptest.NewRequest(http.MethodPost, "/analyze-writing", strings.NewReader(`{"text":"hello"}`)))
	require.Equal(t, http.StatusOK, rec.Code)

	analysis := decode(t, rec)["analysis"].(map[string]interface{})
	assert.Equal(t, service.FallbackFeedback, analysis["feedback"])
	assert.Equal(t, 5.0, analysis["structure"])
}

func TestAnalyzeWriting_GenerationFailure(t *testing.T) {
	env := newTestEnv(t, client.Transcript{}, "")
	env.generator.err = stderrors.New("connection refused")

	rec := env.do(httptest.NewRequest(http.MethodPost, "/analyze-writing", strings.NewReader(`{"text":"hello"}`)))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	body := decode(t, rec)
	assert.Equal(t, "Error analyzing writing", body["error"])
	assert.Equal(t, "Speech analysis failed: connection refused", body["details"])
}
