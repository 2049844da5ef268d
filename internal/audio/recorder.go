package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

const (
	pcmChannels = 1
	pcmBitDepth = 16
)

// FileRecorder is the default capture Device: it stages raw PCM on disk and
// encodes it to AAC-in-MPEG4 when the recording stops. Feed it PCM16-LE via
// Write (or wrap a stream with Writer). Hosts without ffmpeg fall back to an
// uncompressed WAV next to the requested path.
type FileRecorder struct {
	sampleRate int

	mu      sync.Mutex
	outPath string
	rawPath string
	rawFile *os.File

	encode func(rawPath, outPath string) (string, error)
}

// NewFileRecorder builds a recorder capturing at the given PCM sample rate.
func NewFileRecorder(sampleRate int) *FileRecorder {
	if sampleRate <= 0 {
		sampleRate = CaptureSampleRate
	}

	r := &FileRecorder{sampleRate: sampleRate}
	r.encode = r.defaultEncode
	return r
}

// Start opens the staging file for the requested output path.
func (r *FileRecorder) Start(path string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rawFile != nil {
		_ = r.rawFile.Close()
	}

	rawPath := path + ".pcm"
	rawFile, err := os.OpenFile(rawPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open raw pcm file: %w", err)
	}

	r.outPath = path
	r.rawPath = rawPath
	r.rawFile = rawFile
	return nil
}

// Stop closes the staging file, encodes it, and returns the encoded path.
func (r *FileRecorder) Stop() (string, error) {
	r.mu.Lock()
	if r.rawFile == nil {
		r.mu.Unlock()
		return "", nil
	}

	outPath := r.outPath
	rawPath := r.rawPath
	rawFile := r.rawFile

	r.outPath = ""
	r.rawPath = ""
	r.rawFile = nil
	r.mu.Unlock()

	if err := rawFile.Close(); err != nil {
		return "", fmt.Errorf("close raw pcm file: %w", err)
	}

	encodedPath, err := r.encode(rawPath, outPath)
	if err != nil {
		return "", err
	}

	_ = os.Remove(rawPath)
	return encodedPath, nil
}

// Write appends PCM bytes to the active recording. Writes while idle are
// dropped.
func (r *FileRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.rawFile == nil {
		return len(p), nil
	}

	if _, err := r.rawFile.Write(p); err != nil {
		return 0, fmt.Errorf("write raw pcm bytes: %w", err)
	}
	return len(p), nil
}

// Writer tees a PCM stream into the recorder while passing it through to dst.
func (r *FileRecorder) Writer(dst io.Writer) io.Writer {
	return io.MultiWriter(dst, r)
}

func (r *FileRecorder) defaultEncode(rawPath, outPath string) (string, error) {
	if err := encodeAAC(rawPath, outPath, r.sampleRate); err == nil {
		return outPath, nil
	}

	wavPath := strings.TrimSuffix(outPath, captureExt) + ".wav"
	if err := pcmToWav(rawPath, wavPath, r.sampleRate); err != nil {
		return "", fmt.Errorf("encode wav fallback: %w", err)
	}
	return wavPath, nil
}

func encodeAAC(rawPath, outPath string, sampleRate int) error {
	cmd := exec.Command(
		"ffmpeg",
		"-y",
		"-f", "s16le",
		"-ar", strconv.Itoa(sampleRate),
		"-ac", strconv.Itoa(pcmChannels),
		"-i", rawPath,
		"-c:a", "aac",
		"-b:a", strconv.Itoa(CaptureBitrateKbps)+"k",
		outPath,
	)
	return cmd.Run()
}

func pcmToWav(rawPath, wavPath string, sampleRate int) error {
	pcmData, err := os.ReadFile(rawPath)
	if err != nil {
		return fmt.Errorf("read raw pcm data: %w", err)
	}

	out, err := os.OpenFile(wavPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open wav output: %w", err)
	}
	defer func() { _ = out.Close() }()

	header, err := wavHeader(len(pcmData), sampleRate, pcmChannels, pcmBitDepth)
	if err != nil {
		return fmt.Errorf("build wav header: %w", err)
	}

	if _, err := out.Write(header); err != nil {
		return fmt.Errorf("write wav header: %w", err)
	}
	if _, err := out.Write(pcmData); err != nil {
		return fmt.Errorf("write wav payload: %w", err)
	}
	return nil
}

func wavHeader(dataSize, sampleRate, channels, bitDepth int) ([]byte, error) {
	byteRate := sampleRate * channels * bitDepth / 8
	blockAlign := channels * bitDepth / 8
	chunkSize := 36 + dataSize

	buf := bytes.NewBuffer(make([]byte, 0, 44))
	buf.WriteString("RIFF")
	for _, v := range []any{uint32(chunkSize)} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	buf.WriteString("WAVE")
	buf.WriteString("fmt ")
	fields := []any{
		uint32(16),
		uint16(1),
		uint16(channels),
		uint32(sampleRate),
		uint32(byteRate),
		uint16(blockAlign),
		uint16(bitDepth),
	}
	for _, v := range fields {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			return nil, err
		}
	}
	buf.WriteString("data")
	if err := binary.Write(buf, binary.LittleEndian, uint32(dataSize)); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
