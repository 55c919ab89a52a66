package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/raysh454/convotap/internal/demoserver"
	"github.com/raysh454/convotap/internal/logging"
)

func newDemoCmd(opts *rootOptions) *cobra.Command {
	cfg := demoserver.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run a local demo chat backend",
		Long: `Run a local chat page whose prompts are posted to /backend-api/conversation.
Capture from it with:

  convotap serve --target-endpoint http://127.0.0.1:9999/backend-api/conversation`,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := opts.logLevel
			if level == "" {
				level = "info"
			}
			logger := logging.NewLogger(cmd.OutOrStdout(), "demoserver", level)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return demoserver.NewDemoServer(cfg, logger).Start(ctx)
		},
	}

	cmd.Flags().StringVar(&cfg.Addr, "addr", cfg.Addr, "listen address")
	cmd.Flags().DurationVar(&cfg.ChunkDelay, "chunk-delay", cfg.ChunkDelay, "pause between streamed reply chunks")
	return cmd
}
