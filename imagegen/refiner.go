package imagegen

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cohere "github.com/cohere-ai/cohere-go/v2"
	cohereclient "github.com/cohere-ai/cohere-go/v2/client"

	"scenecast/config"
)

// Refiner rewrites a raw transcript into a short visual description
type Refiner interface {
	Refine(ctx context.Context, style, transcript string) (string, error)
}

const refinePreamble = "You turn passages from audiobooks into prompts for an image model. " +
	"Reply with one sentence describing the scene a reader would picture: setting, subjects, lighting. " +
	"No names of real people, no quotes, no preamble."

// CohereRefiner implements Refiner with the Cohere chat API
// SDK: github.com/cohere-ai/cohere-go/v2
type CohereRefiner struct {
	model string
	chat  func(ctx context.Context, req *cohere.ChatRequest) (string, error)
}

// NewCohereRefiner creates a refiner; apiKey is required
func NewCohereRefiner(apiKey, model string) (*CohereRefiner, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("COHERE_API_KEY is required for prompt refinement")
	}
	if model == "" {
		model = config.CohereChatModel
	}

	// Force HTTP/1.1 to avoid HTTP/2 protocol errors
	httpClient := &http.Client{
		Timeout: 30 * time.Second,
		Transport: &http.Transport{
			TLSNextProto:      make(map[string]func(authority string, c *tls.Conn) http.RoundTripper),
			ForceAttemptHTTP2: false,
		},
	}
	client := cohereclient.NewClient(
		cohereclient.WithToken(apiKey),
		cohereclient.WithHTTPClient(httpClient),
	)

	return &CohereRefiner{
		model: model,
		chat: func(ctx context.Context, req *cohere.ChatRequest) (string, error) {
			resp, err := client.Chat(ctx, req)
			if err != nil {
				return "", err
			}
			return resp.Text, nil
		},
	}, nil
}

// Refine asks the chat model for a one-sentence scene description
func (r *CohereRefiner) Refine(ctx context.Context, style, transcript string) (string, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return "", errors.New("nothing to refine")
	}

	message := fmt.Sprintf("Art style: %s\nPassage: %s", style, transcript)
	model := r.model
	preamble := refinePreamble

	text, err := r.chat(ctx, &cohere.ChatRequest{
		Message:  message,
		Model:    &model,
		Preamble: &preamble,
	})
	if err != nil {
		return "", fmt.Errorf("cohere chat failed: %w", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.New("cohere returned an empty refinement")
	}
	return text, nil
}
