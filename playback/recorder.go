package playback

import (
	"bytes"
	"encoding/gob"
	"io"
	"sort"
	"sync"

	"github.com/devblok/koruxr/tracking"
	"github.com/devblok/koruxr/xr"
)

// Recorder collects published tracking snapshots into a Recording
type Recorder struct {
	mutex     sync.Mutex
	recording Recording
}

// NewRecorder creates a recorder, header describes the recorded session
func NewRecorder(header Header) *Recorder {
	return &Recorder{recording: Recording{Header: header}}
}

// Attach records every snapshot the registry publishes from now on
func (r *Recorder) Attach(registry *tracking.Registry) {
	registry.Subscribe(r.Record)
}

// Record adds a snapshot as the next frame. Untracked devices are
// recorded as such, they replay as untracked.
func (r *Recorder) Record(snapshot *tracking.Snapshot) {
	samples := snapshot.Samples()
	frame := Frame{
		Index:     snapshot.Frame,
		State:     snapshot.FrameState,
		Locations: make([]xr.DeviceLocation, len(samples)),
	}
	for i, s := range samples {
		frame.Locations[i] = xr.DeviceLocation{
			Device:          s.Device,
			Pose:            s.Pose,
			LinearVelocity:  s.LinearVelocity,
			AngularVelocity: s.AngularVelocity,
			Tracked:         s.Valid,
		}
	}

	r.mutex.Lock()
	r.recording.Frames = append(r.recording.Frames, frame)
	r.mutex.Unlock()
}

// Len is the number of frames recorded
func (r *Recorder) Len() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.recording.Frames)
}

// Recording returns a copy of what was recorded so far
func (r *Recorder) Recording() *Recording {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return &Recording{
		Header: r.recording.Header,
		Frames: append([]Frame(nil), r.recording.Frames...),
	}
}

// WriteTo writes the recorded frames as a kar archive
func (r *Recorder) WriteTo(w io.Writer) (int64, error) {
	return r.Recording().WriteTo(w)
}

func sortDevices(devices []xr.TrackedDevice) {
	sort.Slice(devices, func(i, j int) bool { return devices[i].Less(devices[j]) })
}

func gobEncode(data interface{}) ([]byte, error) {
	var encoded bytes.Buffer
	if err := gob.NewEncoder(&encoded).Encode(data); err != nil {
		return nil, err
	}
	return encoded.Bytes(), nil
}

func gobDecode(obj interface{}, bts []byte) error {
	return gob.NewDecoder(bytes.NewReader(bts)).Decode(obj)
}
