// Package playback records tracked device poses into kar archives and
// replays them through an XR runtime, so the engine can run a session
// without headset hardware.
package playback

import (
	"errors"
	"fmt"
	"io"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/devblok/koruxr/utility/kar"
	"github.com/devblok/koruxr/xr"
)

// Version of the recording format
const Version = 1

// Archive entry names
const (
	headerEntry = "recording"
	framePrefix = "frames/"
)

// ErrNoFrames is returned when loading a recording without frames
var ErrNoFrames = errors.New("playback: recording has no frames")

// Header describes a recording
type Header struct {
	Runtime   string
	Author    string
	FrameRate int
	Views     []xr.View
}

// Frame is one recorded poll
type Frame struct {
	Index     uint64
	State     xr.FrameState
	Locations []xr.DeviceLocation
}

// Recording is a sequence of frames
type Recording struct {
	Header Header
	Frames []Frame
}

// FramePeriod is the time between two frames
func (r *Recording) FramePeriod() time.Duration {
	if r.Header.FrameRate <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(r.Header.FrameRate)
}

// Devices lists every device seen in the recording, head first
func (r *Recording) Devices() []xr.TrackedDevice {
	seen := make(map[xr.TrackedDevice]bool)
	var devices []xr.TrackedDevice
	for _, f := range r.Frames {
		for _, l := range f.Locations {
			if !seen[l.Device] {
				seen[l.Device] = true
				devices = append(devices, l.Device)
			}
		}
	}
	sortDevices(devices)
	return devices
}

func frameName(i int) string {
	return fmt.Sprintf("%s%08d", framePrefix, i)
}

// WriteTo writes the recording as a kar archive
func (r *Recording) WriteTo(w io.Writer) (int64, error) {
	builder := kar.NewBuilder(kar.Header{
		Author:      r.Header.Author,
		DateCreated: time.Now().Unix(),
		Version:     Version,
	})

	header, err := gobEncode(r.Header)
	if err != nil {
		return 0, err
	}
	if err := builder.Add(headerEntry, header); err != nil {
		return 0, err
	}
	for i, f := range r.Frames {
		data, err := gobEncode(f)
		if err != nil {
			return 0, fmt.Errorf("playback: frame %d: %w", f.Index, err)
		}
		if err := builder.Add(frameName(i), data); err != nil {
			return 0, err
		}
	}
	return builder.WriteTo(w)
}

// Load reads a recording from an archive
func Load(ar *kar.Archive) (*Recording, error) {
	if v := ar.Header().Version; v != Version {
		return nil, fmt.Errorf("playback: recording version %d, want %d", v, Version)
	}

	rec := &Recording{}
	data, err := ar.ReadAll(headerEntry)
	if err != nil {
		return nil, err
	}
	if err := gobDecode(&rec.Header, data); err != nil {
		return nil, fmt.Errorf("playback: header: %w", err)
	}

	for i := 0; ; i++ {
		data, err := ar.ReadAll(frameName(i))
		if errors.Is(err, kar.ErrNotFound) {
			break
		} else if err != nil {
			return nil, err
		}
		var f Frame
		if err := gobDecode(&f, data); err != nil {
			return nil, fmt.Errorf("playback: frame %d: %w", i, err)
		}
		rec.Frames = append(rec.Frames, f)
	}
	if len(rec.Frames) == 0 {
		return nil, ErrNoFrames
	}

	log.WithFields(log.Fields{
		"runtime": rec.Header.Runtime,
		"frames":  len(rec.Frames),
		"rate":    rec.Header.FrameRate,
	}).Debug("playback: recording loaded")
	return rec, nil
}

// LoadFile reads a recording from a memory mapped file
func LoadFile(path string) (*Recording, error) {
	f, err := kar.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f.Archive)
}
