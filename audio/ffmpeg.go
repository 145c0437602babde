package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/charmbracelet/log"
)

// FFmpegSource captures a microphone through an ffmpeg subprocess that
// writes signed 16-bit mono PCM at the configured rate to stdout.
type FFmpegSource struct {
	Format Format
	Input  string // ffmpeg demuxer, e.g. "avfoundation", "alsa", "pulse"
	Device string

	log *log.Logger
}

func NewFFmpegSource(format Format, input, device string, logger *log.Logger) *FFmpegSource {
	return &FFmpegSource{
		Format: format,
		Input:  input,
		Device: device,
		log:    logger,
	}
}

func (s *FFmpegSource) args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", s.Input,
		"-i", s.Device,
		"-ac", "1",
		"-ar", strconv.Itoa(s.Format.SampleRate),
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-fflags", "nobuffer",
		"-flags", "low_delay",
		"-",
	}
}

// Run blocks until ctx is cancelled or ffmpeg exits, calling emit once
// per chunk from the capture goroutine.
func (s *FFmpegSource) Run(ctx context.Context, emit func(Chunk)) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", s.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	s.log.Info("capturing", "input", s.Input, "device", s.Device, "rate", s.Format.SampleRate)

	readErr := ReadPCM16(stdout, s.Format.ChunkSize, emit)
	waitErr := cmd.Wait()

	if ctx.Err() != nil {
		return nil
	}
	if readErr != nil {
		return readErr
	}
	if waitErr != nil {
		return fmt.Errorf("ffmpeg exited: %w", waitErr)
	}
	return nil
}

// ReadPCM16 slices a little-endian s16 mono stream into chunks of
// chunkSize samples. A trailing partial chunk is dropped.
func ReadPCM16(r io.Reader, chunkSize int, emit func(Chunk)) error {
	buffer := make([]byte, chunkSize*2)
	for {
		_, err := io.ReadFull(r, buffer)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read pcm: %w", err)
		}

		samples := make([]float32, chunkSize)
		for i := range samples {
			v := int16(binary.LittleEndian.Uint16(buffer[i*2:]))
			samples[i] = float32(v) / 32768
		}
		emit(NewChunk(samples))
	}
}
