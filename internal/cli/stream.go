package cli

import (
	"context"
	"strings"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"facestream/config"
	"facestream/internal/container"
	"facestream/internal/domain/entity"
	"facestream/internal/log"
)

func newStreamCmd(cfg *config.Config) *cobra.Command {
	var progress bool

	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Capture the camera and send face records to the listener",
		Long: `Reads frames from the camera, finds the face with the landmarker worker,
averages the skin color inside the face polygon and writes one JSON line
per frame to the TCP listener at --host:--port.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStream(cmd.Context(), cfg, progress)
		},
	}

	f := cmd.Flags()
	f.StringVar(&cfg.CameraSource, "source", cfg.CameraSource, "frame source: "+strings.Join(config.CameraSources, ", "))
	f.StringVarP(&cfg.CameraDevice, "device", "d", cfg.CameraDevice, "camera index, device path or video file")
	f.IntVar(&cfg.CameraWidth, "width", cfg.CameraWidth, "capture width (v4l2)")
	f.IntVar(&cfg.CameraHeight, "height", cfg.CameraHeight, "capture height (v4l2)")
	f.StringVar(&cfg.FFmpegFormat, "ffmpeg-format", cfg.FFmpegFormat, "ffmpeg input format, e.g. v4l2 or avfoundation")
	f.StringVar(&cfg.WorkerPython, "python", cfg.WorkerPython, "python interpreter for the landmarker worker")
	f.StringVar(&cfg.WorkerScript, "worker", cfg.WorkerScript, "landmarker worker script")
	f.IntVar(&cfg.MaxSide, "max-side", cfg.MaxSide, "downscale frames to this size before detection, 0 keeps the original")
	f.StringVar(&cfg.Sampler, "sampler", cfg.Sampler, "color sampler: "+strings.Join(config.Samplers, ", "))
	f.BoolVar(&cfg.SkipEmpty, "skip-empty", cfg.SkipEmpty, "do not send records for frames without a face")
	f.BoolVar(&cfg.Preview, "preview", cfg.Preview, "show the masked face in a window (needs -tags gocv)")
	f.StringVar(&cfg.PidFile, "pid-file", cfg.PidFile, "refuse to start if another streamer holds this pid file")
	f.BoolVarP(&progress, "progress", "p", false, "show a record counter on stderr")

	return cmd
}

func runStream(ctx context.Context, cfg *config.Config, progress bool) error {
	if cfg.PidFile != "" {
		release, err := acquirePidFile(cfg.PidFile)
		if err != nil {
			return err
		}
		defer release()
	}

	var bar *progressbar.ProgressBar
	var onRecord func(*entity.FaceRecord)
	if progress {
		bar = newRecordBar()
		onRecord = func(*entity.FaceRecord) { _ = bar.Add(1) }
	}

	s, err := container.NewStream(ctx, cfg, onRecord)
	if err != nil {
		return err
	}
	defer s.Close()

	if cfg.MetricsAddr != "" {
		go func() {
			if err := s.Metrics.StartServer(ctx, cfg.MetricsAddr); err != nil {
				log.Warn("metrics server stopped", "error", err)
			}
		}()
	}

	log.Info("streaming",
		"source", cfg.CameraSource,
		"device", cfg.CameraDevice,
		"listener", cfg.Addr(),
		"sampler", cfg.Sampler,
	)
	notify(daemon.SdNotifyReady)
	defer notify(daemon.SdNotifyStopping)

	err = s.Service.Run(ctx)
	if bar != nil {
		_ = bar.Finish()
	}
	log.Info("streamer stopped",
		"frames", s.Metrics.FramesCaptured.Load(),
		"records", s.Metrics.RecordsSent.Load(),
		"fps", s.Metrics.FPS(),
	)
	return err
}
