package media

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	ffmpeg "github.com/u2takey/ffmpeg-go"

	"scenecast/config"
	"scenecast/types"
)

var ErrEmptyWindow = errors.New("extraction window is empty")

// FFmpegExtractor cuts audio segments with the ffmpeg binary and returns
// them as 16kHz mono WAV, the format Whisper works best with.
type FFmpegExtractor struct {
	// Binary defaults to "ffmpeg" on PATH
	Binary string
}

// NewFFmpegExtractor checks that ffmpeg is available
func NewFFmpegExtractor() (*FFmpegExtractor, error) {
	path, err := exec.LookPath("ffmpeg")
	if err != nil {
		return nil, fmt.Errorf("ffmpeg not found: %w", err)
	}
	return &FFmpegExtractor{Binary: path}, nil
}

// ExtractSegment implements generation.Extractor
func (e *FFmpegExtractor) ExtractSegment(ctx context.Context, asset types.Asset, start, end float64) ([]byte, error) {
	if asset.Source == "" {
		return nil, fmt.Errorf("asset %s has no audio source", asset.ID)
	}
	if end <= start {
		return nil, fmt.Errorf("%w: [%.2f, %.2f]", ErrEmptyWindow, start, end)
	}

	binary := e.Binary
	if binary == "" {
		binary = "ffmpeg"
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, SegmentArgs(asset.Source, start, end)...)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("ffmpeg failed: %w: %s", err, lastLine(stderr.String()))
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("ffmpeg produced no audio for [%.2f, %.2f]", start, end)
	}

	return stdout.Bytes(), nil
}

// SegmentArgs builds the ffmpeg arguments that write [start, end] of src to stdout
func SegmentArgs(src string, start, end float64) []string {
	return ffmpeg.Input(src, ffmpeg.KwArgs{
		"ss": fmt.Sprintf("%.3f", start),
		"t":  fmt.Sprintf("%.3f", end-start),
	}).
		Output("pipe:1", ffmpeg.KwArgs{
			"ar": strconv.Itoa(config.SampleRate),
			"ac": strconv.Itoa(config.Channels),
			"f":  "wav",
		}).
		GetArgs()
}

// ProbeDuration returns the duration in seconds reported by ffprobe
func ProbeDuration(path string) (float64, error) {
	out, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, fmt.Errorf("ffprobe failed: %w", err)
	}
	return parseProbeDuration(out)
}

type probeOutput struct {
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

func parseProbeDuration(raw string) (float64, error) {
	var p probeOutput
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		return 0, fmt.Errorf("failed to decode ffprobe output: %w", err)
	}
	if p.Format.Duration == "" {
		return 0, errors.New("ffprobe reported no duration")
	}
	d, err := strconv.ParseFloat(p.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", p.Format.Duration, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid duration %v", d)
	}
	return d, nil
}

func lastLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.LastIndexByte(s, '\n'); i >= 0 {
		return s[i+1:]
	}
	return s
}
