package cli

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"facestream/internal/infrastructure/vision"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build features",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "facestream %s (%s/%s, opencv=%t)\n", Version, runtime.GOOS, runtime.GOARCH, vision.OpenCVAvailable)
		},
	}
}
