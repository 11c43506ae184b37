package generation

import (
	"context"

	"scenecast/types"
)

// Extractor cuts [start, end] seconds out of an asset's audio
type Extractor interface {
	ExtractSegment(ctx context.Context, asset types.Asset, start, end float64) ([]byte, error)
}

// Transcriber turns audio bytes into text
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// Synthesizer produces an image for a transcript in the asset's style
type Synthesizer interface {
	SynthesizeImage(ctx context.Context, stylePrompt, transcript string) (types.Image, error)
}

// Store durably records a finished artifact and returns where it lives.
// Discard undoes a Persist whose result was dropped.
type Store interface {
	Persist(ctx context.Context, artifact types.Artifact) (string, error)
	Discard(ctx context.Context, artifact types.Artifact, ref string) error
}

// AssetResolver looks assets up by id. Unknown ids must yield an error
// wrapping ErrNotFound.
type AssetResolver interface {
	Asset(ctx context.Context, id string) (types.Asset, error)
}

// Registrar receives every successful artifact
type Registrar interface {
	Insert(artifact types.Artifact)
}

// Adapters groups the collaborators the pipeline calls
type Adapters struct {
	Extractor   Extractor
	Transcriber Transcriber
	Synthesizer Synthesizer
	Store       Store // optional
	Assets      AssetResolver
	Registry    Registrar
}

// StaticAssets resolves assets from a fixed map
type StaticAssets map[string]types.Asset

// Asset implements AssetResolver
func (s StaticAssets) Asset(_ context.Context, id string) (types.Asset, error) {
	a, ok := s[id]
	if !ok {
		return types.Asset{}, ErrNotFound
	}
	return a, nil
}
