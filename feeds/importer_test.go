package feeds

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"scenecast/catalog"
	"scenecast/types"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
<channel>
  <title>Public Domain Audiobooks</title>
  <item>
    <title>Chapter 1</title>
    <enclosure url="https://cdn.example.com/book/ch1.mp3" length="1000" type="audio/mpeg"/>
    <itunes:duration>01:02:03</itunes:duration>
  </item>
  <item>
    <title>Cover art</title>
    <enclosure url="https://cdn.example.com/book/cover.jpg" length="10" type="image/jpeg"/>
  </item>
  <item>
    <title>Chapter 2</title>
    <enclosure url="https://cdn.example.com/book/ch2.m4a?token=x" length="1000" type=""/>
    <itunes:duration>754</itunes:duration>
  </item>
  <item>
    <title>Chapter 3</title>
    <enclosure url="https://cdn.example.com/book/ch3.mp3" length="1000" type="audio/mpeg"/>
  </item>
</channel>
</rss>`

type fakeCreator struct {
	assets map[string]types.Asset
}

func (f *fakeCreator) CreateAsset(_ context.Context, a types.Asset) error {
	if _, ok := f.assets[a.ID]; ok {
		return fmt.Errorf("asset %s: %w", a.ID, catalog.ErrExists)
	}
	f.assets[a.ID] = a
	return nil
}

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestImport(t *testing.T) {
	srv := feedServer(t)
	creator := &fakeCreator{assets: map[string]types.Asset{}}
	imp := NewImporter(creator)

	res, err := imp.Import(context.Background(), srv.URL, "woodcut", 0)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if len(res.Imported) != 3 || res.Skipped != 1 {
		t.Fatalf("imported %d skipped %d; want 3 and 1", len(res.Imported), res.Skipped)
	}

	ch1 := res.Imported[0]
	if ch1.ID != types.GenerateID("https://cdn.example.com/book/ch1.mp3") {
		t.Fatalf("id = %q", ch1.ID)
	}
	if ch1.DurationSeconds != 3723 || ch1.StylePrompt != "woodcut" || ch1.Filename != "ch1.mp3" || ch1.OriginalName != "Chapter 1" {
		t.Fatalf("chapter 1 = %+v", ch1)
	}
	if res.Imported[1].Filename != "ch2.m4a" || res.Imported[1].DurationSeconds != 754 {
		t.Fatalf("chapter 2 = %+v", res.Imported[1])
	}
	if res.Imported[2].DurationKnown() {
		t.Fatal("chapter 3 has no duration in the feed")
	}

	// Importing again registers nothing new.
	again, err := imp.Import(context.Background(), srv.URL, "woodcut", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(again.Imported) != 0 || again.Skipped != 4 {
		t.Fatalf("second import: imported %d skipped %d", len(again.Imported), again.Skipped)
	}
}

func TestImportLimit(t *testing.T) {
	srv := feedServer(t)
	imp := NewImporter(&fakeCreator{assets: map[string]types.Asset{}})

	res, err := imp.Import(context.Background(), srv.URL, "", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Imported) != 1 {
		t.Fatalf("imported %d; want 1", len(res.Imported))
	}
}

func TestParseDuration(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"754", 754, true},
		{"12:34", 754, true},
		{"1:02:03", 3723, true},
		{"", 0, false},
		{"abc", 0, false},
		{"1:2:3:4", 0, false},
		{"0", 0, false},
	}
	for _, c := range cases {
		got, ok := ParseDuration(c.in)
		if got != c.want || ok != c.ok {
			t.Errorf("ParseDuration(%q) = %v, %v; want %v, %v", c.in, got, ok, c.want, c.ok)
		}
	}
}
