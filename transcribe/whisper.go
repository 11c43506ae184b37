package transcribe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"scenecast/config"
)

var ErrEmptyTranscript = errors.New("whisper returned an empty transcript")

// WhisperClient transcribes audio through OpenAI's audio.transcriptions endpoint
type WhisperClient struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// Option customizes a WhisperClient
type Option func(*WhisperClient)

// WithEndpoint points the client at another URL, e.g. a test server
func WithEndpoint(url string) Option {
	return func(w *WhisperClient) { w.endpoint = url }
}

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(w *WhisperClient) { w.httpClient = c }
}

// NewWhisperClient creates a client; apiKey is required
func NewWhisperClient(apiKey string, opts ...Option) (*WhisperClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("OPENAI_API_KEY is required for transcription")
	}

	w := &WhisperClient{
		apiKey:     apiKey,
		model:      config.WhisperModel,
		endpoint:   config.WhisperEndpoint,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Transcribe implements generation.Transcriber. Deadlines come from ctx.
func (w *WhisperClient) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	if err := mw.WriteField("model", w.model); err != nil {
		return "", err
	}
	if err := mw.WriteField("response_format", "text"); err != nil {
		return "", err
	}

	fw, err := mw.CreateFormFile("file", "segment.wav")
	if err != nil {
		return "", err
	}
	if _, err := fw.Write(audio); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.endpoint, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+w.apiKey)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("whisper request failed: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read whisper response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("openai http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	text := strings.TrimSpace(string(b))
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}
