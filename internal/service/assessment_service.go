package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/windfall/speakscore/internal/client"
	"github.com/windfall/speakscore/internal/errors"
)

// Transcriber submits audio to a speech-to-text job API and reads job state.
type Transcriber interface {
	Submit(ctx context.Context, audioPath string) (*client.Transcript, error)
	Get(ctx context.Context, id string) (*client.Transcript, error)
}

// Generator turns a prompt into free-form model text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// AudioArchive keeps a copy of submitted recordings.
type AudioArchive interface {
	UploadR2Object(ctx context.Context, key string, data []byte, contentType string) (string, error)
}

// ResultStore keeps finished results for later retrieval.
type ResultStore interface {
	Save(ctx context.Context, id string, result *AssessmentResult) error
	Get(ctx context.Context, id string) (*AssessmentResult, error)
}

// Stage names a step of the assessment pipeline. Failures report the stage
// they happened in.
type Stage string

const (
	StageReceived       Stage = "received"
	StageAudioValidated Stage = "audio_validated"
	StageTranscribing   Stage = "transcribing"
	StageTranscribed    Stage = "transcribed"
	StagePromptBuilt    Stage = "prompt_built"
	StageGenerating     Stage = "generating"
	StageGenerated      Stage = "generated"
	StageExtracting     Stage = "extracting"
	StageCompleted      Stage = "completed"
)

// AssessmentRequest is one learner submission.
type AssessmentRequest struct {
	Mode          Mode
	Audio         []byte
	AudioFilename string
	ContentType   string
	Text          string // writing mode input
	ReferenceText string // reading mode passage
}

// Analysis is the flattened score sheet sent to the browser: one numeric
// field per criterion plus a combined feedback string.
type Analysis struct {
	Scores   map[Criterion]float64
	Feedback string
}

// MarshalJSON flattens the scores next to the feedback field.
func (a Analysis) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(a.Scores)+1)
	for c, score := range a.Scores {
		out[string(c)] = score
	}
	out["feedback"] = a.Feedback
	return json.Marshal(out)
}

// UnmarshalJSON reads the flattened form written by MarshalJSON.
func (a *Analysis) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	a.Scores = make(map[Criterion]float64, len(fields))
	a.Feedback = ""
	for key, raw := range fields {
		if key == "feedback" {
			if err := json.Unmarshal(raw, &a.Feedback); err != nil {
				return fmt.Errorf("feedback: %w", err)
			}
			continue
		}
		var score float64
		if err := json.Unmarshal(raw, &score); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		a.Scores[Criterion(key)] = score
	}
	return nil
}

// AssessmentResult is the caller-facing outcome of an assessment.
type AssessmentResult struct {
	ID            string   `json:"-"`
	Transcription *string  `json:"transcription,omitempty"`
	Analysis      Analysis `json:"analysis"`
	// Degraded is set when the model output could not be used and the
	// fallback scores were returned.
	Degraded bool `json:"-"`
}

// AssessmentConfig holds the pipeline's tunables.
type AssessmentConfig struct {
	// UploadDir receives the temporary audio files.
	UploadDir string
	// PollInterval is the wait between transcription status checks.
	PollInterval time.Duration
	// TranscribeMaxPolls bounds polling in transcribe mode.
	TranscribeMaxPolls int
	// ReadingMaxPolls bounds polling in reading mode; 0 means no count limit.
	ReadingMaxPolls int
	// TranscriptionTimeout bounds the whole submit-and-poll phase; 0 disables it.
	TranscriptionTimeout time.Duration
	// GenerationTimeout bounds the model call; 0 disables it.
	GenerationTimeout time.Duration
}

// AssessmentService runs the transcribe, prompt, generate and extract pipeline.
type AssessmentService struct {
	transcriber Transcriber
	generator   Generator
	archive     AudioArchive
	results     ResultStore
	cfg         AssessmentConfig
	log         zerolog.Logger
}

// NewAssessmentService creates a new assessment service. archive and results
// may be nil.
func NewAssessmentService(
	transcriber Transcriber,
	generator Generator,
	archive AudioArchive,
	results ResultStore,
	cfg AssessmentConfig,
	log zerolog.Logger,
) *AssessmentService {
	if cfg.UploadDir == "" {
		cfg.UploadDir = os.TempDir()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 3 * time.Second
	}
	if cfg.TranscribeMaxPolls <= 0 {
		cfg.TranscribeMaxPolls = 10
	}
	return &AssessmentService{
		transcriber: transcriber,
		generator:   generator,
		archive:     archive,
		results:     results,
		cfg:         cfg,
		log:         log,
	}
}

// Assess runs one request through the pipeline. Input problems come back as
// validation errors, remote failures as upstream errors. Unusable model output
// never fails the request; the fallback assessment is returned instead.
func (s *AssessmentService) Assess(ctx context.Context, req AssessmentRequest) (*AssessmentResult, error) {
	if !req.Mode.Valid() {
		return nil, errors.Validation(fmt.Sprintf("unknown assessment mode %q", req.Mode))
	}

	id := uuid.New().String()
	log := s.log.With().Str("assessment_id", id).Str("mode", string(req.Mode)).Logger()
	log.Debug().Str("stage", string(StageReceived)).Msg("Assessment received")

	var (
		content       string
		transcription *string
	)

	if req.Mode.UsesAudio() {
		if len(req.Audio) == 0 {
			return nil, errors.Validation("No audio file uploaded")
		}
		log.Debug().Str("stage", string(StageAudioValidated)).Int("bytes", len(req.Audio)).Msg("Audio validated")

		text, err := s.transcribe(ctx, log, id, req)
		if err != nil {
			return nil, err
		}
		content = text
		transcription = &text
		event := log.Info().Str("stage", string(StageTranscribed)).Str("transcript", text)
		if req.Mode == ModeReading {
			if wer, ok := WordErrorRate(req.ReferenceText, text); ok {
				event = event.Float64("word_error_rate", wer)
			}
		}
		event.Msg("Transcription completed")
	} else {
		if strings.TrimSpace(req.Text) == "" {
			return nil, errors.Validation("Text is required")
		}
		content = req.Text
	}

	criteria := req.Mode.Criteria()
	prompt, err := BuildPrompt(req.Mode, content, req.ReferenceText)
	if err != nil {
		return nil, errors.InternalWrap("failed to build prompt", err)
	}
	log.Debug().Str("stage", string(StagePromptBuilt)).Int("prompt_len", len(prompt)).Msg("Prompt built")

	raw, err := s.generate(ctx, log, prompt)
	if err != nil {
		return nil, err
	}

	log.Debug().Str("stage", string(StageExtracting)).Msg("Extracting assessment")
	result := &AssessmentResult{ID: id, Transcription: transcription}

	parsed, err := Extract(raw, criteria)
	if err != nil {
		err = errors.Wrap(errors.ErrExtraction, "could not extract assessment", err)
		log.Warn().Err(err).Str("code", string(errors.ErrExtraction)).Str("raw_response", raw).Msg("Using fallback assessment")
		result.Degraded = true
		result.Analysis = Analysis{
			Scores:   FallbackAssessment(criteria).Scores,
			Feedback: FallbackFeedback,
		}
	} else {
		result.Analysis = Analysis{
			Scores:   parsed.Scores,
			Feedback: parsed.CombinedFeedback(criteria),
		}
	}

	if s.results != nil {
		if err := s.results.Save(ctx, id, result); err != nil {
			log.Error().Err(err).Msg("Failed to store assessment result")
		}
	}

	log.Info().
		Str("stage", string(StageCompleted)).
		Bool("degraded", result.Degraded).
		Interface("scores", result.Analysis.Scores).
		Msg("Assessment completed")

	return result, nil
}

// GetResult returns a previously stored result.
func (s *AssessmentService) GetResult(ctx context.Context, id string) (*AssessmentResult, error) {
	if s.results == nil {
		return nil, errors.NotFound("assessment result")
	}
	return s.results.Get(ctx, id)
}

// transcribe writes the audio to a temporary file, submits it and waits for
// the transcript. The temporary file is removed on every return path.
func (s *AssessmentService) transcribe(ctx context.Context, log zerolog.Logger, id string, req AssessmentRequest) (string, error) {
	if s.transcriber == nil {
		return "", stageErr(errors.UpstreamFailure("transcription service not configured", nil), StageTranscribing)
	}

	audioPath, err := writeTempAudio(s.cfg.UploadDir, req.Audio, req.AudioFilename)
	if err != nil {
		return "", errors.InternalWrap("failed to store uploaded audio", err)
	}
	defer func() {
		if err := os.Remove(audioPath); err != nil && !os.IsNotExist(err) {
			log.Error().Err(err).Str("path", audioPath).Msg("Failed to delete temporary audio file")
			return
		}
		log.Debug().Str("path", audioPath).Msg("Deleted temporary audio file")
	}()

	s.archiveAudio(ctx, log, id, req)

	if s.cfg.TranscriptionTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TranscriptionTimeout)
		defer cancel()
	}

	log.Debug().Str("stage", string(StageTranscribing)).Str("path", audioPath).Msg("Submitting audio for transcription")
	job, err := s.transcriber.Submit(ctx, audioPath)
	if err != nil {
		return "", stageErr(errors.UpstreamFailure("Failed to upload audio for transcription", err), StageTranscribing)
	}
	log.Info().Str("job_id", job.ID).Msg("Transcription request sent")

	maxPolls := s.cfg.TranscribeMaxPolls
	if req.Mode == ModeReading {
		maxPolls = s.cfg.ReadingMaxPolls
	}

	text, err := s.awaitTranscript(ctx, log, job.ID, maxPolls)
	if err != nil {
		return "", stageErr(err, StageTranscribing)
	}
	return text, nil
}

// awaitTranscript polls the job every PollInterval until it completes, fails,
// maxPolls checks have been made (0: no limit) or ctx is done.
func (s *AssessmentService) awaitTranscript(ctx context.Context, log zerolog.Logger, jobID string, maxPolls int) (string, error) {
	timer := time.NewTimer(s.cfg.PollInterval)
	defer timer.Stop()

	for attempt := 1; maxPolls == 0 || attempt <= maxPolls; attempt++ {
		job, err := s.transcriber.Get(ctx, jobID)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return "", contextErr(ctxErr)
			}
			return "", errors.UpstreamFailure("Failed to fetch transcription status", err)
		}

		log.Debug().Int("attempt", attempt).Str("status", string(job.Status)).Msg("Transcription status")

		if job.IsTerminal() {
			if job.Status == client.TranscriptError {
				return "", errors.UpstreamFailure("Transcription failed", stderrors.New(job.Error))
			}
			return job.Text, nil
		}

		if maxPolls != 0 && attempt == maxPolls {
			break
		}

		timer.Reset(s.cfg.PollInterval)
		select {
		case <-ctx.Done():
			return "", contextErr(ctx.Err())
		case <-timer.C:
		}
	}

	return "", errors.UpstreamTimeout("Transcription timed out", nil)
}

func (s *AssessmentService) generate(ctx context.Context, log zerolog.Logger, prompt string) (string, error) {
	if s.generator == nil {
		return "", stageErr(errors.UpstreamFailure("generation service not configured", nil), StageGenerating)
	}

	if s.cfg.GenerationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.GenerationTimeout)
		defer cancel()
	}

	log.Debug().Str("stage", string(StageGenerating)).Msg("Requesting analysis")
	start := time.Now()
	raw, err := s.generator.Generate(ctx, prompt)
	if err != nil {
		if stderrors.Is(err, context.DeadlineExceeded) {
			return "", stageErr(errors.UpstreamTimeout("Speech analysis timed out", err), StageGenerating)
		}
		return "", stageErr(errors.UpstreamFailure("Speech analysis failed", err), StageGenerating)
	}
	log.Debug().Str("stage", string(StageGenerated)).Dur("duration", time.Since(start)).Int("response_len", len(raw)).Msg("Analysis generated")

	return raw, nil
}

func (s *AssessmentService) archiveAudio(ctx context.Context, log zerolog.Logger, id string, req AssessmentRequest) {
	if s.archive == nil {
		return
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := fmt.Sprintf("recordings/%s/%s%s", req.Mode, id, audioExt(req.AudioFilename))

	url, err := s.archive.UploadR2Object(ctx, key, req.Audio, contentType)
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("Failed to archive audio")
		return
	}
	log.Debug().Str("url", url).Msg("Audio archived")
}

func writeTempAudio(dir string, audio []byte, filename string) (string, error) {
	f, err := os.CreateTemp(dir, "audio-*"+audioExt(filename))
	if err != nil {
		return "", err
	}

	if _, err := f.Write(audio); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}

func audioExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) > 6 || strings.ContainsAny(ext, `/\*`) {
		return ".webm"
	}
	return ext
}

func contextErr(err error) *errors.AppError {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errors.UpstreamTimeout("Transcription timed out", err)
	}
	return errors.UpstreamFailure("Transcription cancelled", err)
}

// stageErr records the failing stage on application errors.
func stageErr(err error, stage Stage) error {
	if appErr, ok := errors.As(err); ok && appErr.Details == nil {
		appErr.WithDetails(map[string]interface{}{"stage": string(stage)})
	}
	return err
}
