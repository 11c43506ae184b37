package storage

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"scenecast/types"
)

type fakeRecorder struct {
	saved []types.Artifact
	err   error
}

func (f *fakeRecorder) SaveArtifact(_ context.Context, a types.Artifact) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, a)
	return nil
}

func (f *fakeRecorder) DeleteArtifact(_ context.Context, assetID, artifactID string) error {
	kept := f.saved[:0]
	for _, a := range f.saved {
		if a.AssetID != assetID || a.ArtifactID != artifactID {
			kept = append(kept, a)
		}
	}
	f.saved = kept
	return nil
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write([]byte("\x89PNG fake image"))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestLocalRoundTrip(t *testing.T) {
	l, err := NewLocal(t.TempDir(), "/api/images/")
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	if err := l.Put(ctx, "images/a.png", strings.NewReader("data"), "image/png"); err != nil {
		t.Fatalf("Put: %v", err)
	}

	rc, err := l.Get(ctx, "images/a.png")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	b, _ := io.ReadAll(rc)
	rc.Close()
	if string(b) != "data" {
		t.Fatalf("content = %q", b)
	}

	if url, _ := l.URL(ctx, "images/a.png"); url != "/api/images/images/a.png" {
		t.Fatalf("URL = %q", url)
	}

	if err := l.Delete(ctx, "images/a.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := l.Delete(ctx, "images/a.png"); err != nil {
		t.Fatalf("second Delete: %v", err)
	}
	if _, err := l.Get(ctx, "images/a.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get after delete = %v; want ErrNotFound", err)
	}
}

func TestLocalPathStaysInRoot(t *testing.T) {
	root := t.TempDir()
	l, _ := NewLocal(root, "")

	for _, key := range []string{"../../etc/passwd", "/abs/path", "a/../../b"} {
		p, err := l.Path(key)
		if err != nil {
			continue
		}
		if !strings.HasPrefix(p, root) {
			t.Errorf("Path(%q) = %q escapes %q", key, p, root)
		}
	}
	if _, err := l.Path("/"); err == nil {
		t.Error("Path(\"/\") should fail")
	}
}

func TestPersist(t *testing.T) {
	root := t.TempDir()
	blobs, _ := NewLocal(root, "/api/images/")
	rec := &fakeRecorder{}
	store := NewArtifactStore(blobs, rec, nil)
	srv := imageServer(t)

	key, err := store.Persist(context.Background(), types.Artifact{
		ArtifactID:       "art-1",
		AssetID:          "a1",
		TimestampSeconds: 40.7,
		ImageHandle:      srv.URL + "/out.png",
	})
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	if !regexp.MustCompile(`^images/a1_40_[0-9a-f]{8}\.png$`).MatchString(key) {
		t.Fatalf("key = %q", key)
	}
	if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(key))); err != nil {
		t.Fatalf("image not written: %v", err)
	}
	if len(rec.saved) != 1 || rec.saved[0].ImageRef != key {
		t.Fatalf("recorded = %+v", rec.saved)
	}
}

func TestDiscardUndoesPersist(t *testing.T) {
	root := t.TempDir()
	blobs, _ := NewLocal(root, "")
	rec := &fakeRecorder{}
	store := NewArtifactStore(blobs, rec, nil)
	srv := imageServer(t)

	artifact := types.Artifact{ArtifactID: "art-1", AssetID: "a1", TimestampSeconds: 12, ImageHandle: srv.URL + "/out.png"}
	key, err := store.Persist(context.Background(), artifact)
	if err != nil {
		t.Fatalf("Persist: %v", err)
	}

	if err := store.Discard(context.Background(), artifact, key); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if len(rec.saved) != 0 {
		t.Fatalf("record survived discard: %+v", rec.saved)
	}
	if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(key))); !os.IsNotExist(err) {
		t.Fatalf("image survived discard: %v", err)
	}

	// A second discard finds nothing left and still succeeds
	if err := store.Discard(context.Background(), artifact, key); err != nil {
		t.Fatalf("repeat Discard: %v", err)
	}
}

func TestPersistFailures(t *testing.T) {
	srv := imageServer(t)

	t.Run("download fails", func(t *testing.T) {
		blobs, _ := NewLocal(t.TempDir(), "")
		store := NewArtifactStore(blobs, nil, nil)
		if _, err := store.Persist(context.Background(), types.Artifact{AssetID: "a1", ImageHandle: srv.URL + "/missing.png"}); err == nil {
			t.Fatal("expected error for 404 image")
		}
	})

	t.Run("handle is not a URL", func(t *testing.T) {
		blobs, _ := NewLocal(t.TempDir(), "")
		store := NewArtifactStore(blobs, nil, nil)
		if _, err := store.Persist(context.Background(), types.Artifact{AssetID: "a1", ImageHandle: "img_1"}); err == nil {
			t.Fatal("expected error for non-URL handle")
		}
	})

	t.Run("record fails removes image", func(t *testing.T) {
		root := t.TempDir()
		blobs, _ := NewLocal(root, "")
		store := NewArtifactStore(blobs, &fakeRecorder{err: errors.New("db locked")}, nil)

		if _, err := store.Persist(context.Background(), types.Artifact{AssetID: "a1", ImageHandle: srv.URL + "/x.png"}); err == nil {
			t.Fatal("expected error")
		}
		entries, _ := os.ReadDir(filepath.Join(root, "images"))
		for _, e := range entries {
			if !strings.HasPrefix(e.Name(), ".") {
				t.Fatalf("orphaned image left behind: %s", e.Name())
			}
		}
	})
}
