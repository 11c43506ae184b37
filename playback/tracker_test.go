package playback

import (
	"math"
	"testing"
	"time"

	"scenecast/types"
)

func loadedTracker(t *testing.T, duration float64) *Tracker {
	t.Helper()
	tr := NewTracker()
	tr.Load(types.Asset{ID: "a1", DurationSeconds: duration, Ready: true})
	if !tr.ReportStatusEvent(types.EventCanPlay) {
		t.Fatal("canplay should move Loading to Ready")
	}
	return tr
}

func TestLoadResetsState(t *testing.T) {
	tr := loadedTracker(t, 120)
	tr.Play()
	tr.ReportPosition(42)

	tr.Load(types.Asset{ID: "a2"})

	st := tr.State()
	if st.AssetID != "a2" || st.Status != types.PlaybackLoading {
		t.Fatalf("state after load = %+v", st)
	}
	if st.PositionSeconds != 0 || st.DurationSeconds != 0 {
		t.Fatalf("stale position or duration leaked: %+v", st)
	}

	// Position reports while loading belong to nobody.
	tr.ReportPosition(50)
	if got := tr.SnapshotPosition(); got != 0 {
		t.Fatalf("position while loading = %v; want 0", got)
	}
}

func TestLoadHookSeesPreviousAsset(t *testing.T) {
	tr := NewTracker()

	var calls [][2]string
	tr.OnLoad(func(prev, next string) {
		calls = append(calls, [2]string{prev, next})
	})

	tr.Load(types.Asset{ID: "a1"})
	tr.Load(types.Asset{ID: "a2"})

	want := [][2]string{{"", "a1"}, {"a1", "a2"}}
	if len(calls) != len(want) {
		t.Fatalf("hook calls = %v", calls)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Fatalf("call %d = %v; want %v", i, calls[i], want[i])
		}
	}
}

func TestSeekClamping(t *testing.T) {
	cases := []struct {
		name   string
		target float64
		want   float64
	}{
		{"negative clamps to zero", -5, 0},
		{"inside range", 30, 30},
		{"beyond duration clamps", 500, 120},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr := loadedTracker(t, 120)
			if !tr.Seek(c.target) {
				t.Fatalf("Seek(%v) returned false", c.target)
			}
			st := tr.State()
			if st.PositionSeconds != c.want {
				t.Fatalf("position = %v; want %v", st.PositionSeconds, c.want)
			}
			if st.Status != types.PlaybackSeeking {
				t.Fatalf("status = %s; want seeking", st.Status)
			}
		})
	}
}

func TestSeekNoOps(t *testing.T) {
	cases := []struct {
		name     string
		duration float64
		target   float64
	}{
		{"NaN", 120, math.NaN()},
		{"positive infinity", 120, math.Inf(1)},
		{"unknown duration", 0, 10},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr := loadedTracker(t, c.duration)
			tr.ReportPosition(7)
			before := tr.State()

			if tr.Seek(c.target) {
				t.Fatal("Seek should be a no-op")
			}
			if after := tr.State(); after != before {
				t.Fatalf("state changed: %+v -> %+v", before, after)
			}
		})
	}
}

func TestSeekReturnsToPreviousStatus(t *testing.T) {
	cases := []struct {
		name  string
		setup func(*Tracker)
		want  types.PlaybackStatus
	}{
		{"from playing", func(tr *Tracker) { tr.Play() }, types.PlaybackPlaying},
		{"from paused", func(tr *Tracker) { tr.Play(); tr.Pause() }, types.PlaybackPaused},
		{"from ready", func(tr *Tracker) {}, types.PlaybackPaused},
		{"from ended", func(tr *Tracker) { tr.Play(); tr.ReportStatusEvent(types.EventEnded) }, types.PlaybackPaused},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			tr := loadedTracker(t, 120)
			c.setup(tr)

			tr.Seek(60)
			if !tr.ReportStatusEvent(types.EventSeeked) {
				t.Fatal("seeked should complete the seek")
			}
			if got := tr.State().Status; got != c.want {
				t.Fatalf("status after seek = %s; want %s", got, c.want)
			}
		})
	}
}

func TestPositionReportsWaitForSeeked(t *testing.T) {
	tr := loadedTracker(t, 120)
	tr.Play()
	tr.ReportPosition(20)

	tr.Seek(80)
	tr.ReportPosition(21) // tick from before the seek
	if got := tr.SnapshotPosition(); got != 80 {
		t.Fatalf("position while seeking = %v; want seek target 80", got)
	}

	tr.ReportStatusEvent(types.EventSeeked)
	tr.ReportPosition(81)
	if got := tr.SnapshotPosition(); got != 81 {
		t.Fatalf("position after seeked = %v; want 81", got)
	}
}

func TestStatusTransitions(t *testing.T) {
	tr := loadedTracker(t, 120)

	steps := []struct {
		evt  types.MediaEvent
		want types.PlaybackStatus
	}{
		{types.EventPlaying, types.PlaybackPlaying},
		{types.EventWaiting, types.PlaybackBuffering},
		{types.EventCanPlay, types.PlaybackPlaying},
		{types.EventPaused, types.PlaybackPaused},
		{types.EventPlaying, types.PlaybackPlaying},
		{types.EventEnded, types.PlaybackEnded},
	}
	for i, step := range steps {
		tr.ReportStatusEvent(step.evt)
		if got := tr.State().Status; got != step.want {
			t.Fatalf("step %d (%s): status = %s; want %s", i, step.evt, got, step.want)
		}
	}

	if got := tr.SnapshotPosition(); got != 120 {
		t.Fatalf("position at end = %v; want 120", got)
	}
	if tr.Play() {
		t.Fatal("Play should not leave Ended")
	}
}

func TestPauseWhileBufferingResumesPaused(t *testing.T) {
	tr := loadedTracker(t, 120)
	tr.Play()
	tr.ReportStatusEvent(types.EventWaiting)
	tr.Pause()

	if got := tr.State().Status; got != types.PlaybackBuffering {
		t.Fatalf("status = %s; want buffering", got)
	}
	tr.ReportStatusEvent(types.EventCanPlay)
	if got := tr.State().Status; got != types.PlaybackPaused {
		t.Fatalf("status = %s; want paused", got)
	}
}

func TestReportPositionAndDuration(t *testing.T) {
	tr := NewTracker()
	tr.ReportPosition(10)
	if tr.SnapshotPosition() != 0 {
		t.Fatal("idle tracker should ignore positions")
	}

	tr.Load(types.Asset{ID: "a1"})
	tr.ReportStatusEvent(types.EventCanPlay)
	tr.ReportDuration(90)
	tr.ReportPosition(100)
	if got := tr.SnapshotPosition(); got != 90 {
		t.Fatalf("position = %v; want clamp to 90", got)
	}

	tr.ReportPosition(math.NaN())
	tr.ReportPosition(-1)
	if got := tr.SnapshotPosition(); got != 90 {
		t.Fatalf("invalid reports changed position to %v", got)
	}

	tr.ReportDuration(60)
	if got := tr.SnapshotPosition(); got != 60 {
		t.Fatalf("shrinking duration should clamp position, got %v", got)
	}
}

func TestSubscribersSeeOrderedSnapshots(t *testing.T) {
	tr := NewTracker()
	defer tr.Close()

	id, ch := tr.Subscribe()
	tr.Load(types.Asset{ID: "a1", DurationSeconds: 120})
	tr.ReportStatusEvent(types.EventCanPlay)
	tr.Play()

	want := []types.PlaybackStatus{types.PlaybackLoading, types.PlaybackReady, types.PlaybackPlaying}
	for i, w := range want {
		select {
		case st := <-ch:
			if st.Status != w {
				t.Fatalf("snapshot %d status = %s; want %s", i, st.Status, w)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for snapshot %d", i)
		}
	}

	tr.Unsubscribe(id)
}
