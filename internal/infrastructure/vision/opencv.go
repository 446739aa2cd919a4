//go:build gocv
// +build gocv

package vision

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"
	"time"

	"gocv.io/x/gocv"

	"facestream/internal/domain/entity"
	"facestream/internal/domain/port"
	"facestream/internal/domain/region"
)

// OpenCVAvailable собрано ли с OpenCV.
const OpenCVAvailable = true

const keyEsc = 27

// CameraSource кадры из gocv.VideoCapture: номер камеры, файл или URL.
type CameraSource struct {
	capture *gocv.VideoCapture
	mat     gocv.Mat
	file    bool
	index   uint64
	now     func() time.Time
}

var _ port.FrameSource = (*CameraSource)(nil)

// OpenCamera открывает устройство. "0" означает первую камеру.
func OpenCamera(device string) (*CameraSource, error) {
	var (
		capture *gocv.VideoCapture
		err     error
		file    bool
	)
	if id, convErr := strconv.Atoi(device); convErr == nil {
		capture, err = gocv.OpenVideoCapture(id)
	} else {
		capture, err = gocv.OpenVideoCapture(device)
		file = true
	}
	if err != nil {
		return nil, fmt.Errorf("open capture %s: %w", device, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("capture %s is not opened", device)
	}
	return &CameraSource{capture: capture, mat: gocv.NewMat(), file: file, now: time.Now}, nil
}

// Read читает кадр. Для файла после последнего кадра возвращает io.EOF.
func (c *CameraSource) Read(ctx context.Context) (*entity.Frame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if ok := c.capture.Read(&c.mat); !ok || c.mat.Empty() {
		if c.file && c.exhausted() {
			return nil, io.EOF
		}
		return nil, port.ErrFrameUnavailable
	}
	at := c.now()

	img, err := c.mat.ToImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", port.ErrFrameUnavailable, err)
	}
	frame := &entity.Frame{Image: img, CapturedAt: at, Index: c.index}
	c.index++
	return frame, nil
}

func (c *CameraSource) exhausted() bool {
	total := c.capture.Get(gocv.VideoCaptureFrameCount)
	pos := c.capture.Get(gocv.VideoCapturePosFrames)
	return total <= 0 || pos >= total
}

func (c *CameraSource) Close() error {
	c.mat.Close()
	return c.capture.Close()
}

// PreviewWindow окно с маской лица. ESC или закрытие окна останавливает поток.
type PreviewWindow struct {
	window *gocv.Window
}

var _ port.Previewer = (*PreviewWindow)(nil)

// NewPreviewWindow создаёт окно.
func NewPreviewWindow(title string) (*PreviewWindow, error) {
	return &PreviewWindow{window: gocv.NewWindow(title)}, nil
}

// Show показывает только пиксели под маской кожи.
func (p *PreviewWindow) Show(frame *entity.Frame, sample entity.ColorSample) bool {
	src, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return true
	}
	defer src.Close()

	if sample.Mask != nil {
		mask, err := gocv.ImageGrayToMatGray(toGray(sample.Mask))
		if err == nil {
			masked := gocv.NewMat()
			gocv.BitwiseAndWithMask(src, src, &masked, mask)
			p.window.IMShow(masked)
			masked.Close()
			mask.Close()
		}
	} else {
		p.window.IMShow(src)
	}

	if p.window.WaitKey(1) == keyEsc {
		return false
	}
	return p.window.IsOpen()
}

func (p *PreviewWindow) Close() error {
	return p.window.Close()
}

// CVSampler считает цвет кожи через FillPoly и MeanWithMask.
// Правило заливки у OpenCV своё, на границе контура результат может отличаться от RegionSampler.
type CVSampler struct{}

var _ port.ColorSampler = CVSampler{}

func (CVSampler) Sample(img image.Image, landmarks []entity.Landmark) (entity.ColorSample, error) {
	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return entity.ColorSample{}, fmt.Errorf("image to mat: %w", err)
	}
	defer src.Close()
	if src.Empty() {
		return entity.ColorSample{}, errors.New("empty image")
	}

	bounds := image.Rect(0, 0, src.Cols(), src.Rows())
	mask := gocv.Zeros(src.Rows(), src.Cols(), gocv.MatTypeCV8U)
	defer mask.Close()

	for _, r := range region.SkinRegions() {
		pts, err := region.Points(r.Indices, landmarks, bounds)
		if err != nil {
			return entity.ColorSample{}, fmt.Errorf("region %s: %w", r.Name, err)
		}
		fill := color.RGBA{}
		if r.Include {
			fill = color.RGBA{R: 255, G: 255, B: 255, A: 255}
		}
		pv := gocv.NewPointsVectorFromPoints([][]image.Point{pts})
		gocv.FillPoly(&mask, pv, fill)
		pv.Close()
	}

	sample := entity.ColorSample{Pixels: gocv.CountNonZero(mask)}
	if sample.Pixels > 0 {
		// каналы в Mat идут как BGR
		mean := src.MeanWithMask(mask)
		sample.Color = entity.RGB{R: mean.Val3, G: mean.Val2, B: mean.Val1}
	}
	if m, err := mask.ToImage(); err == nil {
		sample.Mask = m
	}
	return sample, nil
}

func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	g := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			g.Set(x-b.Min.X, y-b.Min.Y, img.At(x, y))
		}
	}
	return g
}
