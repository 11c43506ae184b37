package feeds

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"scenecast/catalog"
	"scenecast/types"
)

// DefaultLimit caps how many episodes one import registers
const DefaultLimit = 10

// AssetCreator is satisfied by *catalog.Catalog
type AssetCreator interface {
	CreateAsset(ctx context.Context, asset types.Asset) error
}

// Result reports what an import did
type Result struct {
	Imported []types.Asset `json:"imported"`
	Skipped  int           `json:"skipped"`
}

// Importer registers the audio enclosures of a podcast or audiobook feed as
// assets. The audio stays remote; ffmpeg reads it over HTTP when extracting.
type Importer struct {
	creator AssetCreator
	parser  *gofeed.Parser
}

// NewImporter creates an importer
func NewImporter(creator AssetCreator) *Importer {
	return &Importer{creator: creator, parser: gofeed.NewParser()}
}

// Import fetches feedURL and registers up to limit audio episodes
func (i *Importer) Import(ctx context.Context, feedURL, stylePrompt string, limit int) (Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	feed, err := i.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return Result{}, fmt.Errorf("failed to fetch feed: %w", err)
	}

	res := Result{Imported: []types.Asset{}}
	for _, item := range feed.Items {
		if len(res.Imported) >= limit {
			break
		}

		audioURL := audioEnclosure(item)
		if audioURL == "" {
			res.Skipped++
			continue
		}

		asset := types.Asset{
			ID:           types.GenerateID(audioURL),
			Filename:     fileName(audioURL),
			OriginalName: strings.TrimSpace(item.Title),
			StylePrompt:  stylePrompt,
			Source:       audioURL,
			Ready:        true,
			UploadedAt:   time.Now().UTC(),
		}
		if asset.OriginalName == "" {
			asset.OriginalName = asset.Filename
		}
		if item.ITunesExt != nil {
			if d, ok := ParseDuration(item.ITunesExt.Duration); ok {
				asset.DurationSeconds = d
			}
		}

		if err := i.creator.CreateAsset(ctx, asset); err != nil {
			if errors.Is(err, catalog.ErrExists) {
				res.Skipped++
				continue
			}
			return res, fmt.Errorf("failed to register %s: %w", audioURL, err)
		}
		res.Imported = append(res.Imported, asset)
	}

	log.Printf("feeds: imported %d episodes from %s (%d skipped)", len(res.Imported), feedURL, res.Skipped)
	return res, nil
}

// audioEnclosure returns the first audio enclosure URL of the item
func audioEnclosure(item *gofeed.Item) string {
	for _, enc := range item.Enclosures {
		if enc == nil || enc.URL == "" {
			continue
		}
		if strings.HasPrefix(enc.Type, "audio/") {
			return enc.URL
		}
		switch strings.ToLower(path.Ext(fileName(enc.URL))) {
		case ".mp3", ".m4a", ".m4b", ".mp4", ".aac", ".ogg":
			return enc.URL
		}
	}
	return ""
}

func fileName(raw string) string {
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		return path.Base(u.Path)
	}
	return path.Base(raw)
}

// ParseDuration understands the itunes:duration forms "SS", "MM:SS" and "HH:MM:SS"
func ParseDuration(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}

	parts := strings.Split(s, ":")
	if len(parts) > 3 {
		return 0, false
	}

	total := 0.0
	for _, p := range parts {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil || v < 0 {
			return 0, false
		}
		total = total*60 + v
	}
	if total <= 0 {
		return 0, false
	}
	return total, true
}
