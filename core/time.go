package core

import (
	"time"
)

// NewTime creates a new time service
func NewTime(cfg TimeConfiguration) *Time {
	var interval time.Duration
	if cfg.FramesPerSecond <= 0 {
		interval = time.Nanosecond
	} else {
		interval = time.Second / (time.Duration)(cfg.FramesPerSecond)
	}

	return &Time{
		fps:       cfg.FramesPerSecond,
		interval:  interval,
		fpsTicker: time.NewTicker(interval),
	}
}

// Time contains all the time services and tickers.
// The frame loop waits on it when nothing else paces frames,
// an XR runtime paces frames on its own.
type Time struct {
	fps       int
	interval  time.Duration
	fpsTicker *time.Ticker
	frames    uint64
}

// Fps gets the set frames per second
func (t *Time) Fps() int {
	return t.fps
}

// Interval is the time between two frames
func (t *Time) Interval() time.Duration {
	return t.interval
}

// WaitFrame blocks until the next frame tick and counts the frame
func (t *Time) WaitFrame() {
	<-t.fpsTicker.C
	t.frames++
}

// Frames is the number of frames waited for
func (t *Time) Frames() uint64 {
	return t.frames
}

// Stop releases the ticker
func (t *Time) Stop() {
	t.fpsTicker.Stop()
}
