// Package cli команды facestream: stream, receive, version.
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"facestream/config"
	"facestream/internal/log"
)

// Version версия приложения.
const Version = "0.1.0"

// NewRootCmd собирает дерево команд. Флаги пишут прямо в cfg, значения по умолчанию из окружения.
func NewRootCmd(cfg *config.Config) *cobra.Command {
	root := &cobra.Command{
		Use:           "facestream",
		Short:         "Stream per-frame face signals (skin color, blendshapes, head pose) over TCP",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log.Init(cfg.LogLevel)
			return cfg.Validate()
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.PersistentFlags().StringVar(&cfg.Host, "host", cfg.Host, "listener host")
	root.PersistentFlags().IntVar(&cfg.Port, "port", cfg.Port, "listener port")
	root.PersistentFlags().StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	root.PersistentFlags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (stream only, receive uses --http)")

	root.AddCommand(newStreamCmd(cfg), newReceiveCmd(cfg), newVersionCmd())
	return root
}

// Execute точка входа из main.
func Execute() {
	// Ctrl+C и SIGTERM отменяют контекст команды
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(2)
	}

	if err := NewRootCmd(cfg).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(1)
	}
}

// notify сообщает systemd о состоянии, вне systemd ничего не делает.
func notify(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		log.Debug("systemd notify failed", "state", state, "error", err)
		return
	}
	if sent {
		log.Debug("systemd notified", "state", state)
	}
}
