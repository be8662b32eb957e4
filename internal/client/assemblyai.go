package client

import (
	"context"
	"errors"
	"fmt"
	"os"

	aai "github.com/AssemblyAI/assemblyai-go-sdk"
)

// TranscriptStatus is the lifecycle state of a remote transcription job.
type TranscriptStatus string

const (
	TranscriptQueued     TranscriptStatus = "queued"
	TranscriptProcessing TranscriptStatus = "processing"
	TranscriptCompleted  TranscriptStatus = "completed"
	TranscriptError      TranscriptStatus = "error"
)

// ErrEmptyAudio is returned when there is nothing to upload.
var ErrEmptyAudio = errors.New("audio payload is empty")

// Transcript is the part of a transcription job the service reads.
type Transcript struct {
	ID     string
	Status TranscriptStatus
	Text   string
	Error  string
}

// IsTerminal reports whether the job will not change status anymore.
func (t *Transcript) IsTerminal() bool {
	return t.Status == TranscriptCompleted || t.Status == TranscriptError
}

// AssemblyAIClient wraps the AssemblyAI SDK transcript service.
type AssemblyAIClient struct {
	client *aai.Client
	apiKey string
}

// NewAssemblyAIClient creates a new AssemblyAI client. An empty baseURL
// targets the public API.
func NewAssemblyAIClient(baseURL, apiKey string) *AssemblyAIClient {
	opts := []aai.ClientOption{aai.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, aai.WithBaseURL(baseURL))
	}
	return &AssemblyAIClient{
		client: aai.NewClientWithOptions(opts...),
		apiKey: apiKey,
	}
}

// Submit uploads the audio file at audioPath and creates a transcription job
// for it. The returned transcript carries the job id and initial status.
func (c *AssemblyAIClient) Submit(ctx context.Context, audioPath string) (*Transcript, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("assemblyai api key not configured")
	}

	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat audio file: %w", err)
	}
	if info.Size() == 0 {
		return nil, ErrEmptyAudio
	}

	job, err := c.client.Transcripts.SubmitFromReader(ctx, f, &aai.TranscriptOptionalParams{})
	if err != nil {
		return nil, fmt.Errorf("failed to submit transcription: %w", err)
	}

	transcript := fromSDK(job)
	if transcript.ID == "" {
		return nil, fmt.Errorf("assemblyai returned a transcript without id")
	}
	return transcript, nil
}

// Get fetches the current state of a transcription job.
func (c *AssemblyAIClient) Get(ctx context.Context, id string) (*Transcript, error) {
	job, err := c.client.Transcripts.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get transcript %s: %w", id, err)
	}
	return fromSDK(job), nil
}

func fromSDK(t aai.Transcript) *Transcript {
	return &Transcript{
		ID:     deref(t.ID),
		Status: TranscriptStatus(t.Status),
		Text:   deref(t.Text),
		Error:  deref(t.Error),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
