package catalog

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"scenecast/types"
)

func openTestCatalog(t *testing.T) *Catalog {
	t.Helper()
	c, err := Open(context.Background(), "sqlite://"+filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestAssetLifecycle(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	assets := []types.Asset{
		{ID: "a1", Filename: "a1.mp3", OriginalName: "Moby Dick.mp3", StylePrompt: "oil painting", DurationSeconds: 3600, Source: "/u/a1.mp3", UploadedAt: base},
		{ID: "a2", Filename: "a2.mp3", OriginalName: "Dracula.mp3", StylePrompt: "ink", Source: "/u/a2.mp3", UploadedAt: base.Add(time.Hour)},
	}
	for _, a := range assets {
		if err := c.CreateAsset(ctx, a); err != nil {
			t.Fatalf("CreateAsset(%s): %v", a.ID, err)
		}
	}

	if err := c.CreateAsset(ctx, assets[0]); !errors.Is(err, ErrExists) {
		t.Fatalf("duplicate CreateAsset = %v; want ErrExists", err)
	}

	got, err := c.GetAsset(ctx, "a1")
	if err != nil {
		t.Fatalf("GetAsset: %v", err)
	}
	if got.OriginalName != "Moby Dick.mp3" || got.DurationSeconds != 3600 || !got.Ready || !got.UploadedAt.Equal(base) {
		t.Fatalf("asset = %+v", got)
	}

	unknown, err := c.GetAsset(ctx, "a2")
	if err != nil {
		t.Fatal(err)
	}
	if unknown.DurationKnown() {
		t.Fatalf("a2 duration should be unknown, got %v", unknown.DurationSeconds)
	}

	list, err := c.ListAssets(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "a2" {
		t.Fatalf("ListAssets = %+v; want newest first", list)
	}

	if _, err := c.GetAsset(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("GetAsset(missing) = %v; want ErrNotFound", err)
	}
}

func TestArtifacts(t *testing.T) {
	c := openTestCatalog(t)
	ctx := context.Background()

	if err := c.CreateAsset(ctx, types.Asset{ID: "a1", Filename: "f", OriginalName: "o", Source: "s"}); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i, ts := range []float64{40, 10, 10.4} {
		err := c.SaveArtifact(ctx, types.Artifact{
			ArtifactID:       string(rune('x' + i)),
			AssetID:          "a1",
			TimestampSeconds: ts,
			TranscriptText:   "text",
			ImageHandle:      "https://img",
			ImageRef:         "images/k.png",
			CreatedAt:        base.Add(time.Duration(i) * time.Second),
		})
		if err != nil {
			t.Fatalf("SaveArtifact(%v): %v", ts, err)
		}
	}

	if err := c.SaveArtifact(ctx, types.Artifact{ArtifactID: "z", AssetID: "nope"}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("SaveArtifact for unknown asset = %v; want ErrNotFound", err)
	}

	list, err := c.ListArtifacts(ctx, "a1")
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{40, 10, 10.4}
	if len(list) != len(want) {
		t.Fatalf("ListArtifacts len = %d", len(list))
	}
	for i := range want {
		if list[i].TimestampSeconds != want[i] {
			t.Fatalf("artifact %d ts = %v; want %v (creation order)", i, list[i].TimestampSeconds, want[i])
		}
	}
	if list[0].ImageRef != "images/k.png" {
		t.Fatalf("image ref = %q", list[0].ImageRef)
	}

	if err := c.DeleteArtifact(ctx, "a1", "y"); err != nil {
		t.Fatalf("DeleteArtifact: %v", err)
	}
	if err := c.DeleteArtifact(ctx, "a1", "y"); err != nil {
		t.Fatalf("DeleteArtifact on a missing row: %v", err)
	}
	if list, _ := c.ListArtifacts(ctx, "a1"); len(list) != 2 || list[0].ArtifactID != "x" || list[1].ArtifactID != "z" {
		t.Fatalf("artifacts after DeleteArtifact = %+v", list)
	}

	removed, err := c.DeleteAsset(ctx, "a1")
	if err != nil {
		t.Fatalf("DeleteAsset: %v", err)
	}
	if len(removed) != 2 {
		t.Fatalf("DeleteAsset returned %d artifacts; want 2", len(removed))
	}
	if list, _ := c.ListArtifacts(ctx, "a1"); len(list) != 0 {
		t.Fatalf("artifacts left after delete: %d", len(list))
	}
	if _, err := c.DeleteAsset(ctx, "a1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second DeleteAsset = %v; want ErrNotFound", err)
	}
}

func TestRebind(t *testing.T) {
	pg := &Catalog{d: postgresDialect}
	if got := pg.rebind("a = ? AND b = ?"); got != "a = $1 AND b = $2" {
		t.Fatalf("rebind = %q", got)
	}
	lite := &Catalog{d: sqliteDialect}
	if got := lite.rebind("a = ?"); got != "a = ?" {
		t.Fatalf("sqlite rebind = %q", got)
	}
}
