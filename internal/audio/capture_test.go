package audio

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

type deviceMock struct {
	started  []string
	stopped  int
	startErr error
	stopErr  error
	stopPath string
}

func (d *deviceMock) Start(path string) error {
	if d.startErr != nil {
		return d.startErr
	}
	d.started = append(d.started, path)
	return nil
}

func (d *deviceMock) Stop() (string, error) {
	d.stopped++
	if d.stopErr != nil {
		return "", d.stopErr
	}
	if d.stopPath != "" {
		return d.stopPath, nil
	}
	if len(d.started) == 0 {
		return "", nil
	}
	return d.started[len(d.started)-1], nil
}

func newTestCapture(t *testing.T, dev *deviceMock) *Capture {
	t.Helper()
	c := NewCapture(t.TempDir(), dev)
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 45, 0, time.UTC) }
	return c
}

func TestCaptureStartStop(t *testing.T) {
	dev := &deviceMock{}
	c := newTestCapture(t, dev)

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if c.State() != CaptureRecording {
		t.Fatal("expected Recording state after Start")
	}
	if len(dev.started) != 1 {
		t.Fatalf("expected 1 device start, got %d", len(dev.started))
	}

	name := filepath.Base(dev.started[0])
	if !strings.HasPrefix(name, capturePrefix) || !strings.HasSuffix(name, captureExt) {
		t.Fatalf("unexpected file name %q", name)
	}
	if !strings.Contains(name, "20260301123045") {
		t.Fatalf("expected time-stamped name, got %q", name)
	}

	path, err := c.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if path != dev.started[0] {
		t.Fatalf("expected %q, got %q", dev.started[0], path)
	}
	if c.State() != CaptureIdle {
		t.Fatal("expected Idle state after Stop")
	}
}

func TestCaptureDoubleStartRejected(t *testing.T) {
	dev := &deviceMock{}
	c := newTestCapture(t, dev)

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := c.Start(); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("expected ErrAlreadyRecording, got %v", err)
	}
	if len(dev.started) != 1 {
		t.Fatalf("second Start must not touch the device, got %d starts", len(dev.started))
	}
	if c.State() != CaptureRecording {
		t.Fatal("first recording must keep running")
	}
}

func TestCaptureStopWithoutStart(t *testing.T) {
	c := newTestCapture(t, &deviceMock{})
	if _, err := c.Stop(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("expected ErrNotRecording, got %v", err)
	}
}

func TestCaptureStartDeviceFailureStaysIdle(t *testing.T) {
	dev := &deviceMock{startErr: errors.New("mic busy")}
	c := newTestCapture(t, dev)

	if err := c.Start(); err == nil {
		t.Fatal("expected error from Start")
	}
	if c.State() != CaptureIdle {
		t.Fatal("expected Idle state after failed Start")
	}
}

func TestCaptureStopDeviceFailureReturnsToIdle(t *testing.T) {
	dev := &deviceMock{stopErr: errors.New("release failed")}
	c := newTestCapture(t, dev)

	if err := c.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := c.Stop(); err == nil {
		t.Fatal("expected error from Stop")
	}
	if c.State() != CaptureIdle {
		t.Fatal("controller must return to Idle even when the device stop fails")
	}
}

func TestCaptureNameCollisionBumps(t *testing.T) {
	dev := &deviceMock{}
	c := newTestCapture(t, dev)

	// The clock is pinned, so every Start lands in the same second. Each
	// recording must still get its own file.
	for i := 0; i < 3; i++ {
		if err := c.Start(); err != nil {
			t.Fatalf("Start %d failed: %v", i+1, err)
		}
		if _, err := c.Stop(); err != nil {
			t.Fatalf("Stop %d failed: %v", i+1, err)
		}
	}

	seen := map[string]bool{}
	for _, path := range dev.started {
		if seen[path] {
			t.Fatalf("file name %q reused within one second", path)
		}
		seen[path] = true
	}
	if len(seen) != 3 {
		t.Fatalf("expected 3 distinct recordings, got %d", len(seen))
	}
}
