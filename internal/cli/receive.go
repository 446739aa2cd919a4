package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"facestream/config"
	"facestream/internal/container"
	"facestream/internal/log"
)

// streamerStopTimeout сколько ждать стример после SIGINT.
const streamerStopTimeout = 5 * time.Second

func newReceiveCmd(cfg *config.Config) *cobra.Command {
	var spawn bool

	cmd := &cobra.Command{
		Use:   "receive",
		Short: "Listen for face records, keep the latest ones and publish summaries",
		Long: `Accepts streamer connections on --host:--port, keeps the most recent
records in memory, persists them (Postgres when DATABASE_URL is set),
writes periodic summaries to CSV, Prometheus and Telegram and serves
the monitor API and websocket on --http.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReceive(cmd.Context(), cfg, spawn)
		},
	}

	f := cmd.Flags()
	f.IntVar(&cfg.BufferSize, "buffer", cfg.BufferSize, "how many recent records to keep")
	f.DurationVar(&cfg.PersistInterval, "persist-interval", cfg.PersistInterval, "how often to flush records to storage")
	f.DurationVar(&cfg.SummaryInterval, "summary-interval", cfg.SummaryInterval, "how often to compute the summary")
	f.DurationVar(&cfg.PulseWindow, "pulse-window", cfg.PulseWindow, "how many seconds of records feed the heart-rate estimate")
	f.StringVar(&cfg.CSVPath, "csv", cfg.CSVPath, "summary CSV file, empty disables it")
	f.StringVar(&cfg.DatabaseURL, "db", cfg.DatabaseURL, "Postgres connection string, empty keeps records in memory")
	f.StringVar(&cfg.HTTPAddr, "http", cfg.HTTPAddr, "monitor API address, empty disables it")
	f.DurationVar(&cfg.NotifyInterval, "telegram-interval", cfg.NotifyInterval, "minimum time between Telegram summaries")
	f.BoolVar(&spawn, "spawn", false, "start a streamer child process connected to this listener")

	return cmd
}

func runReceive(ctx context.Context, cfg *config.Config, spawn bool) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r, err := container.NewReceive(ctx, cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	stop := make(chan struct{})
	go r.Hub.Run(stop)
	defer close(stop)

	var wg sync.WaitGroup
	errc := make(chan error, 4)
	run := func(name string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(); err != nil {
				errc <- fmt.Errorf("%s: %w", name, err)
			}
		}()
	}

	run("listener", func() error { return r.Listener.Serve(ctx) })
	run("persistence", func() error {
		r.Service.RunPersistence(ctx, cfg.PersistInterval)
		return nil
	})
	run("summary", func() error {
		r.Summary.Run(ctx, cfg.SummaryInterval)
		return nil
	})
	if cfg.HTTPAddr != "" {
		run("monitor", func() error { return r.Monitor.ListenAndServe(ctx, cfg.HTTPAddr) })
	}
	if r.Bot != nil {
		run("telegram", func() error { return r.Bot.Run(ctx) })
	}

	if spawn {
		child, err := startStreamer(ctx, cfg)
		if err != nil {
			cancel()
			wg.Wait()
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			// стример может закончить работу сам (файл кончился), слушатель остаётся
			if err := child.Wait(); err != nil && ctx.Err() == nil {
				log.Warn("streamer exited", "error", err)
				return
			}
			log.Info("streamer exited")
		}()
	}

	log.Info("receiving",
		"listen", r.Listener.Addr().String(),
		"http", cfg.HTTPAddr,
		"buffer", cfg.BufferSize,
		"telegram", r.Bot != nil,
	)
	notify(daemon.SdNotifyReady)
	defer notify(daemon.SdNotifyStopping)

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errc:
	}
	// RunPersistence сохраняет остаток буфера при отмене
	cancel()
	wg.Wait()
	return runErr
}

// startStreamer запускает "facestream stream" с тем же адресом слушателя.
func startStreamer(ctx context.Context, cfg *config.Config) (*exec.Cmd, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("find executable: %w", err)
	}

	args := []string{"stream",
		"--host", cfg.Host,
		"--port", strconv.Itoa(cfg.Port),
		"--log-level", cfg.LogLevel,
	}
	cmd := exec.CommandContext(ctx, exe, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Cancel = func() error { return cmd.Process.Signal(os.Interrupt) }
	cmd.WaitDelay = streamerStopTimeout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start streamer: %w", err)
	}
	log.Info("streamer started", "pid", cmd.Process.Pid)
	return cmd, nil
}
