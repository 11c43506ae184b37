package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"scenecast/config"
	"scenecast/types"
)

var (
	ErrPredictionFailed = errors.New("prediction failed")
	ErrPollExhausted    = errors.New("prediction did not finish in time")
)

// ReplicateClient generates images with Stable Diffusion XL on Replicate.
// Docs: https://replicate.com/docs/reference/http
type ReplicateClient struct {
	token        string
	baseURL      string
	version      string
	httpClient   *http.Client
	pollInterval time.Duration
	maxAttempts  int
	refiner      Refiner
}

// ReplicateOption customizes a ReplicateClient
type ReplicateOption func(*ReplicateClient)

// WithBaseURL points the client at another API root, e.g. a test server
func WithBaseURL(url string) ReplicateOption {
	return func(c *ReplicateClient) { c.baseURL = strings.TrimRight(url, "/") }
}

// WithPolling overrides the poll interval and attempt budget
func WithPolling(interval time.Duration, attempts int) ReplicateOption {
	return func(c *ReplicateClient) {
		c.pollInterval = interval
		c.maxAttempts = attempts
	}
}

// WithRefiner condenses transcripts before building the prompt
func WithRefiner(r Refiner) ReplicateOption {
	return func(c *ReplicateClient) { c.refiner = r }
}

// NewReplicateClient creates a client; token is required
func NewReplicateClient(token string, opts ...ReplicateOption) (*ReplicateClient, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("REPLICATE_API_TOKEN is required for image generation")
	}

	c := &ReplicateClient{
		token:        token,
		baseURL:      config.ReplicateBaseURL,
		version:      config.ReplicateModelVersion,
		httpClient:   &http.Client{Timeout: config.ReplicateHTTPLimit},
		pollInterval: config.PollInterval,
		maxAttempts:  config.MaxPollAttempts,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type predictionInput struct {
	Prompt            string  `json:"prompt"`
	Width             int     `json:"width"`
	Height            int     `json:"height"`
	NumOutputs        int     `json:"num_outputs"`
	Scheduler         string  `json:"scheduler"`
	NumInferenceSteps int     `json:"num_inference_steps"`
	GuidanceScale     float64 `json:"guidance_scale"`
}

type predictionRequest struct {
	Version string          `json:"version"`
	Input   predictionInput `json:"input"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  interface{}     `json:"error"`
}

// SynthesizeImage implements generation.Synthesizer. The returned handle is
// the URL of the generated image.
func (c *ReplicateClient) SynthesizeImage(ctx context.Context, style, transcript string) (types.Image, error) {
	scene := transcript
	if c.refiner != nil {
		refined, err := c.refiner.Refine(ctx, style, transcript)
		if err != nil {
			log.Printf("prompt refinement failed, using raw transcript: %v", err)
		} else {
			scene = refined
		}
	}

	prompt := BuildPrompt(style, scene)

	p, err := c.createPrediction(ctx, prompt)
	if err != nil {
		return types.Image{}, err
	}

	url, err := c.waitForOutput(ctx, p.ID)
	if err != nil {
		return types.Image{}, err
	}

	return types.Image{Handle: url, Prompt: prompt}, nil
}

func (c *ReplicateClient) createPrediction(ctx context.Context, prompt string) (*prediction, error) {
	payload := predictionRequest{
		Version: c.version,
		Input: predictionInput{
			Prompt:            prompt,
			Width:             config.ImageWidth,
			Height:            config.ImageHeight,
			NumOutputs:        1,
			Scheduler:         config.Scheduler,
			NumInferenceSteps: config.InferenceSteps,
			GuidanceScale:     config.GuidanceScale,
		},
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/predictions", bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var p prediction
	if err := c.do(req, http.StatusCreated, &p); err != nil {
		return nil, fmt.Errorf("failed to create prediction: %w", err)
	}
	if p.ID == "" {
		return nil, errors.New("replicate returned a prediction without id")
	}
	return &p, nil
}

// waitForOutput polls until the prediction succeeds, fails or the attempt
// budget runs out.
func (c *ReplicateClient) waitForOutput(ctx context.Context, id string) (string, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/predictions/"+id, nil)
		if err != nil {
			return "", err
		}

		var p prediction
		if err := c.do(req, http.StatusOK, &p); err != nil {
			return "", fmt.Errorf("failed to poll prediction %s: %w", id, err)
		}

		switch p.Status {
		case "succeeded":
			return firstOutput(p.Output)
		case "failed", "canceled":
			return "", fmt.Errorf("%w: %v", ErrPredictionFailed, p.Error)
		case "starting", "processing":
		default:
			return "", fmt.Errorf("unknown prediction status %q", p.Status)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ticker.C:
		}
	}

	return "", fmt.Errorf("%w: %d attempts", ErrPollExhausted, c.maxAttempts)
}

// firstOutput accepts both a list of URLs and a single URL
func firstOutput(raw json.RawMessage) (string, error) {
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		if len(list) > 0 && list[0] != "" {
			return list[0], nil
		}
		return "", errors.New("prediction succeeded without output")
	}

	var single string
	if err := json.Unmarshal(raw, &single); err == nil && single != "" {
		return single, nil
	}
	return "", errors.New("prediction succeeded without output")
}

func (c *ReplicateClient) do(req *http.Request, wantStatus int, out interface{}) error {
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("replicate http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
