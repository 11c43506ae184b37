package storage

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"path"
	"strings"

	"scenecast/config"
	"scenecast/types"
)

// maxImageBytes bounds image downloads
const maxImageBytes = 32 << 20

// Blobs is the object storage the artifact store writes images to.
// Both *S3 and *Local implement it.
type Blobs interface {
	Put(ctx context.Context, key string, body io.Reader, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	URL(ctx context.Context, key string) (string, error)
}

// Recorder persists artifact metadata, usually the catalog
type Recorder interface {
	SaveArtifact(ctx context.Context, artifact types.Artifact) error
	DeleteArtifact(ctx context.Context, assetID, artifactID string) error
}

var (
	_ Blobs = (*S3)(nil)
	_ Blobs = (*Local)(nil)
)

// ArtifactStore copies generated images into Blobs and records the
// artifact. It implements generation.Store.
type ArtifactStore struct {
	blobs      Blobs
	recorder   Recorder
	httpClient *http.Client
}

// NewArtifactStore creates a store; recorder may be nil
func NewArtifactStore(blobs Blobs, recorder Recorder, httpClient *http.Client) *ArtifactStore {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ArtifactStore{blobs: blobs, recorder: recorder, httpClient: httpClient}
}

// ImageKey names the stored image for an artifact
func ImageKey(assetID string, timestamp float64, suffix string) string {
	return path.Join(config.ImagesSubdir, fmt.Sprintf("%s_%d_%s.png", assetID, int64(timestamp), suffix))
}

// Persist downloads the image behind artifact.ImageHandle, stores it and
// records the artifact. It returns the blob key of the stored image.
func (s *ArtifactStore) Persist(ctx context.Context, artifact types.Artifact) (string, error) {
	data, contentType, err := s.download(ctx, artifact.ImageHandle)
	if err != nil {
		return "", err
	}

	key := ImageKey(artifact.AssetID, artifact.TimestampSeconds, randomSuffix())
	if err := s.blobs.Put(ctx, key, bytes.NewReader(data), contentType); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}

	if s.recorder != nil {
		artifact.ImageRef = key
		if err := s.recorder.SaveArtifact(ctx, artifact); err != nil {
			// Do not leave an orphaned image behind
			if derr := s.blobs.Delete(context.WithoutCancel(ctx), key); derr != nil {
				log.Printf("failed to remove orphaned image %s: %v", key, derr)
			}
			return "", fmt.Errorf("failed to record artifact: %w", err)
		}
	}

	return key, nil
}

// Discard undoes a Persist whose result will not be used. ref is the key
// Persist returned.
func (s *ArtifactStore) Discard(ctx context.Context, artifact types.Artifact, ref string) error {
	var errs []error
	if s.recorder != nil {
		if err := s.recorder.DeleteArtifact(ctx, artifact.AssetID, artifact.ArtifactID); err != nil {
			errs = append(errs, fmt.Errorf("failed to delete artifact record: %w", err))
		}
	}
	if err := s.Remove(ctx, ref); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Remove deletes stored images, ignoring keys that are already gone
func (s *ArtifactStore) Remove(ctx context.Context, keys ...string) error {
	var errs []error
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.blobs.Delete(ctx, key); err != nil && !errors.Is(err, ErrNotFound) {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}
	return errors.Join(errs...)
}

func (s *ArtifactStore) download(ctx context.Context, url string) ([]byte, string, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, "", fmt.Errorf("image handle %q is not a URL", url)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", err
	}
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("failed to download image: status %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxImageBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image: %w", err)
	}
	if len(data) > maxImageBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", maxImageBytes)
	}
	if len(data) == 0 {
		return nil, "", errors.New("downloaded image is empty")
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return data, contentType, nil
}

func randomSuffix() string {
	b := make([]byte, 4)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
