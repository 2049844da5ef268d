package audio

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

func TestFileRecorderStagesAndEncodes(t *testing.T) {
	dir := t.TempDir()
	outPath := filepath.Join(dir, "rec_test.m4a")

	rec := NewFileRecorder(CaptureSampleRate)

	var encodedRaw, encodedOut string
	rec.encode = func(rawPath, out string) (string, error) {
		encodedRaw = rawPath
		encodedOut = out
		return out, nil
	}

	if err := rec.Start(outPath); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	payload := []byte{0x01, 0x02, 0x03, 0x04}
	if _, err := rec.Write(payload); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	got, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if got != outPath {
		t.Fatalf("expected %q, got %q", outPath, got)
	}
	if encodedRaw != outPath+".pcm" || encodedOut != outPath {
		t.Fatalf("unexpected encode args: %q -> %q", encodedRaw, encodedOut)
	}

	if _, err := os.Stat(outPath + ".pcm"); !os.IsNotExist(err) {
		t.Fatal("expected staging pcm file removed after Stop")
	}
}

func TestFileRecorderStopWhileIdle(t *testing.T) {
	rec := NewFileRecorder(0)
	path, err := rec.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if path != "" {
		t.Fatalf("expected empty path, got %q", path)
	}
}

func TestFileRecorderWriteWhileIdleIsDropped(t *testing.T) {
	rec := NewFileRecorder(0)
	if _, err := rec.Write([]byte{0x00}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

func TestWavFallback(t *testing.T) {
	dir := t.TempDir()
	rawPath := filepath.Join(dir, "sample.pcm")
	pcm := bytes.Repeat([]byte{0x10, 0x20}, 100)
	if err := os.WriteFile(rawPath, pcm, 0o644); err != nil {
		t.Fatalf("write pcm: %v", err)
	}

	wavPath := filepath.Join(dir, "sample.wav")
	if err := pcmToWav(rawPath, wavPath, CaptureSampleRate); err != nil {
		t.Fatalf("pcmToWav failed: %v", err)
	}

	data, err := os.ReadFile(wavPath)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	if len(data) != 44+len(pcm) {
		t.Fatalf("expected %d bytes, got %d", 44+len(pcm), len(data))
	}
	if string(data[:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		t.Fatal("missing RIFF/WAVE markers")
	}

	rate := binary.LittleEndian.Uint32(data[24:28])
	if rate != CaptureSampleRate {
		t.Fatalf("expected sample rate %d, got %d", CaptureSampleRate, rate)
	}
	size := binary.LittleEndian.Uint32(data[40:44])
	if int(size) != len(pcm) {
		t.Fatalf("expected data size %d, got %d", len(pcm), size)
	}
}
