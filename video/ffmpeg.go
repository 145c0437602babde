package video

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image/jpeg"
	"io"
	"os/exec"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
)

const maxFrameBytes = 8 << 20

// FFmpegSource runs the capture loop: ffmpeg reads the camera and writes
// an MJPEG stream to stdout, and every decoded image replaces the Store's
// current frame.
type FFmpegSource struct {
	Input  string // ffmpeg demuxer, e.g. "avfoundation", "v4l2"
	Device string
	Width  int
	Height int
	FPS    int

	log *log.Logger
}

func NewFFmpegSource(input, device string, width, height, fps int, logger *log.Logger) *FFmpegSource {
	return &FFmpegSource{
		Input:  input,
		Device: device,
		Width:  width,
		Height: height,
		FPS:    fps,
		log:    logger,
	}
}

func (s *FFmpegSource) args() []string {
	return []string{
		"-hide_banner",
		"-loglevel", "error",
		"-f", s.Input,
		"-framerate", strconv.Itoa(s.FPS),
		"-video_size", fmt.Sprintf("%dx%d", s.Width, s.Height),
		"-i", s.Device,
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "5",
		"-",
	}
}

func (s *FFmpegSource) Run(ctx context.Context, store *Store) error {
	cmd := exec.CommandContext(ctx, "ffmpeg", s.args()...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}
	s.log.Info("capturing", "input", s.Input, "device", s.Device, "size", fmt.Sprintf("%dx%d", s.Width, s.Height))

	readErr := ReadMJPEG(stdout, store, s.log)
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

// ReadMJPEG stores every complete JPEG found in r. Frame dimensions are
// read from the first image header and assumed stable afterwards.
func ReadMJPEG(r io.Reader, store *Store, logger *log.Logger) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 256<<10), maxFrameBytes)
	scanner.Split(ScanJPEG)

	width, height := 0, 0
	for scanner.Scan() {
		data := append([]byte(nil), scanner.Bytes()...)
		if width == 0 {
			cfg, err := jpeg.DecodeConfig(bytes.NewReader(data))
			if err != nil {
				logger.Warn("undecodable frame", "error", err, "bytes", len(data))
				continue
			}
			width, height = cfg.Width, cfg.Height
			logger.Debug("first frame", "width", width, "height", height)
		}
		store.Put(data, width, height, time.Now())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read mjpeg: %w", err)
	}
	return nil
}
