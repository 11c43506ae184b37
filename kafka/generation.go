package kafka

import (
	"context"
	"errors"
	"log"
	"strings"

	"scenecast/generation"
)

// GenerationMessage asks for an image at a timestamp of an asset
type GenerationMessage struct {
	AssetID   string   `json:"asset_id"`
	Timestamp *float64 `json:"timestamp"`
}

// Submitter is satisfied by *generation.Coordinator
type Submitter interface {
	Submit(ctx context.Context, assetID string, timestamp float64) (string, error)
}

// NewGenerationHandler submits every valid message. Duplicates are merged
// and requests that can never succeed are marked and dropped; only
// transient failures leave the message unmarked for redelivery.
func NewGenerationHandler(s Submitter) *TypedMessageHandler[GenerationMessage] {
	return &TypedMessageHandler[GenerationMessage]{
		AlwaysMark: true,
		Validate: func(msg *GenerationMessage) bool {
			if strings.TrimSpace(msg.AssetID) == "" || msg.Timestamp == nil {
				log.Printf("kafka: skipping generation message without asset_id or timestamp")
				return false
			}
			return true
		},
		Process: func(ctx context.Context, msg *GenerationMessage) error {
			id, err := s.Submit(ctx, msg.AssetID, *msg.Timestamp)
			switch {
			case err == nil:
				log.Printf("kafka: submitted request %s for asset %s at %.2fs", id, msg.AssetID, *msg.Timestamp)
				return nil
			case errors.Is(err, generation.ErrDuplicateInFlight):
				log.Printf("kafka: merged into request %s", id)
				return nil
			case errors.Is(err, generation.ErrInvalidTimestamp), errors.Is(err, generation.ErrNotFound):
				log.Printf("kafka: dropping generation message: %v", err)
				return nil
			}
			return err
		},
	}
}
