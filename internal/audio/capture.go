package audio

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Recording parameters. Every captured message uses the same encoding so the
// backend and playback side never have to negotiate formats.
const (
	CaptureSampleRate  = 44100
	CaptureBitrateKbps = 128
	captureExt         = ".m4a"
	capturePrefix      = "rec_"
)

// CaptureState is the lifecycle of the capture controller.
type CaptureState int

const (
	CaptureIdle CaptureState = iota
	CaptureRecording
)

// Device is the platform recorder the controller drives. Start begins
// writing to the requested path; Stop releases the device and returns the
// path of the file actually produced (the extension may differ if the
// encoder fell back to another container).
type Device interface {
	Start(path string) error
	Stop() (string, error)
}

// Capture owns the record-message lifecycle: Idle -> Recording -> Idle.
// A second Start while recording is rejected with ErrAlreadyRecording
// instead of leaking a device handle.
type Capture struct {
	dir string
	dev Device
	now func() time.Time

	mu       sync.Mutex
	state    CaptureState
	path     string
	lastBase string
	lastSeq  int
}

// NewCapture builds a controller writing uniquely named files under dir.
func NewCapture(dir string, dev Device) *Capture {
	if dir == "" {
		dir = filepath.Join("data", "audio")
	}
	return &Capture{dir: dir, dev: dev, now: time.Now}
}

// Start allocates a time-stamped output file and begins capture. On device
// failure the controller stays Idle and the error is returned.
func (c *Capture) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == CaptureRecording {
		return ErrAlreadyRecording
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return fmt.Errorf("create audio directory: %w", err)
	}

	// The name is second-granular, so repeated starts within one second get
	// a monotonic suffix instead of truncating the previous recording.
	base := capturePrefix + c.now().UTC().Format("20060102150405")
	if base == c.lastBase {
		c.lastSeq++
	} else {
		c.lastBase = base
		c.lastSeq = 0
	}
	name := base
	if c.lastSeq > 0 {
		name = fmt.Sprintf("%s_%d", base, c.lastSeq)
	}
	path := filepath.Join(c.dir, name+captureExt)

	if err := c.dev.Start(path); err != nil {
		log.Printf("audio capture start failed: %v", err)
		return fmt.Errorf("start recorder: %w", err)
	}

	c.state = CaptureRecording
	c.path = path
	return nil
}

// Stop ends the capture and returns the recorded file for upload. The
// controller returns to Idle even when the device fails to stop cleanly.
func (c *Capture) Stop() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != CaptureRecording {
		return "", ErrNotRecording
	}

	// Back to Idle no matter what the device does.
	defer func() {
		c.state = CaptureIdle
		c.path = ""
	}()

	path, err := c.dev.Stop()
	if err != nil {
		return "", fmt.Errorf("stop recorder: %w", err)
	}
	if path == "" {
		path = c.path
	}
	return path, nil
}

// State reports the current controller state.
func (c *Capture) State() CaptureState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}
