package vision

import (
	"bufio"
	"bytes"
	"context"
	"image/jpeg"
	"io"
	"os/exec"
	"strings"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"facestream/internal/domain/entity"
	"facestream/internal/domain/port"
	"facestream/internal/log"
)

const megabyte = 1024 * 1024

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// SplitJPEG режет поток MJPEG на кадры по маркерам SOI/EOI. Для bufio.Scanner.
func SplitJPEG(data []byte, atEOF bool) (advance int, token []byte, err error) {
	start := bytes.Index(data, jpegSOI)
	if start == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		// мусор до маркера не нужен, последний байт может быть началом SOI
		if len(data) > 1 {
			return len(data) - 1, nil, nil
		}
		return 0, nil, nil
	}
	end := bytes.Index(data[start+2:], jpegEOI)
	if end == -1 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}
	stop := start + 2 + end + 2
	return stop, data[start:stop], nil
}

// MJPEGSource читает кадры из потока склеенных JPEG.
type MJPEGSource struct {
	scanner *bufio.Scanner
	closer  io.Closer
	index   atomic.Uint64
	now     func() time.Time
}

var _ port.FrameSource = (*MJPEGSource)(nil)

// NewMJPEGSource оборачивает поток. closer может быть nil.
func NewMJPEGSource(r io.Reader, closer io.Closer) *MJPEGSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, megabyte), 64*megabyte)
	scanner.Split(SplitJPEG)
	return &MJPEGSource{scanner: scanner, closer: closer, now: time.Now}
}

// Read возвращает следующий кадр, io.EOF в конце потока.
func (s *MJPEGSource) Read(ctx context.Context) (*entity.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			// после ошибки Scanner больше не читает, поток считаем законченным
			return nil, errors.Wrapf(io.EOF, "read mjpeg stream: %v", err)
		}
		return nil, io.EOF
	}
	at := s.now()

	img, err := jpeg.Decode(bytes.NewReader(withHuffmanTables(s.scanner.Bytes())))
	if err != nil {
		return nil, errors.Wrapf(port.ErrFrameUnavailable, "decode jpeg: %v", err)
	}
	return &entity.Frame{Image: img, CapturedAt: at, Index: s.index.Add(1) - 1}, nil
}

// Close закрывает поток.
func (s *MJPEGSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// FFmpegSource кадры из всего, что читает ffmpeg: файл, URL, устройство.
type FFmpegSource struct {
	*MJPEGSource
	cmd *safeCommand
}

// newFFmpegCmd ffmpeg, который выдаёт кадры MJPEG в stdout.
func newFFmpegCmd(input string, inputArgs ...string) *safeCommand {
	args := []string{"-hide_banner", "-loglevel", "error"}
	args = append(args, inputArgs...)
	args = append(args, "-i", input, "-f", "image2pipe", "-vcodec", "mjpeg", "-q:v", "3", "-")
	return newSafeCommand("ffmpeg", args...)
}

// OpenFFmpegSource запускает ffmpeg для input.
func OpenFFmpegSource(input string, inputArgs ...string) (*FFmpegSource, error) {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return nil, errors.Wrap(err, "ffmpeg not found")
	}
	cmd := newFFmpegCmd(input, inputArgs...)
	out, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "create ffmpeg stdout pipe")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "start ffmpeg")
	}
	return &FFmpegSource{MJPEGSource: NewMJPEGSource(out, nil), cmd: cmd}, nil
}

// Read как у MJPEGSource. В конце потока печатает stderr ffmpeg, если он не пуст.
func (s *FFmpegSource) Read(ctx context.Context) (*entity.Frame, error) {
	frame, err := s.MJPEGSource.Read(ctx)
	if errors.Is(err, io.EOF) {
		if logs := strings.TrimSpace(s.cmd.logs()); logs != "" {
			log.Warn("ffmpeg finished with output", "stderr", logs)
		}
	}
	return frame, err
}

// Close останавливает ffmpeg.
func (s *FFmpegSource) Close() error {
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
	}
	// после Kill Wait всегда вернёт ошибку сигнала
	s.cmd.Wait()
	return nil
}
