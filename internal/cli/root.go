// Package cli is the convotap command line: the capture daemon, the terminal
// popup and one-shot client commands.
package cli

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raysh454/convotap/internal/app"
	"github.com/raysh454/convotap/internal/logging"
	"github.com/raysh454/convotap/internal/webclient"
)

type rootOptions struct {
	configPath string
	logLevel   string
	daemonAddr string
}

// NewRootCmd builds the convotap command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "convotap",
		Short: "convotap - capture a chat app's conversation API exchange from a live browser",
		Long: `convotap attaches to browser tabs of a chat application over the DevTools
protocol, captures the request and response of its conversation API call and
keeps the latest exchange for inspection.

- serve:  run the capture daemon (launches or connects to a browser)
- popup:  live terminal view of the latest captured exchange
- latest: print the latest captured exchange once
- check:  re-check the debugger attachment of a tab
- demo:   run a local demo chat backend to capture from`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "config file (default ~/.config/convotap/config.yaml)")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn, error")
	cmd.PersistentFlags().StringVar(&opts.daemonAddr, "daemon", "", "daemon address for client commands (default server.listen_addr)")

	cmd.AddCommand(newServeCmd(opts))
	cmd.AddCommand(newPopupCmd(opts))
	cmd.AddCommand(newLatestCmd(opts))
	cmd.AddCommand(newCheckCmd(opts))
	cmd.AddCommand(newDemoCmd(opts))

	return cmd
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return NewRootCmd().ExecuteContext(ctx)
}

func (o *rootOptions) loadConfig() (*app.Config, error) {
	cfg, err := app.LoadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	return cfg, nil
}

func (o *rootOptions) daemonURL(cfg *app.Config) string {
	addr := o.daemonAddr
	if addr == "" {
		addr = cfg.Server.ListenAddr
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	return addr
}

// newClient builds a daemon client logging to w.
func (o *rootOptions) newClient(cfg *app.Config, w io.Writer) (*webclient.Client, logging.Logger, error) {
	logger := logging.NewLogger(w, "cli", cfg.LogLevel)
	wc, err := webclient.NewHTTPTransport(logger, nil)
	if err != nil {
		return nil, nil, err
	}
	c, err := webclient.NewClient(o.daemonURL(cfg), wc, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("daemon client: %w", err)
	}
	return c, logger, nil
}
