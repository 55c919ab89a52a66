package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/raysh454/convotap/internal/app"
	"github.com/raysh454/convotap/internal/popup"
	"github.com/raysh454/convotap/internal/webclient"
)

func newPopupCmd(opts *rootOptions) *cobra.Command {
	var (
		tabID   string
		tabURL  string
		logFile string
	)

	cmd := &cobra.Command{
		Use:   "popup",
		Short: "Live terminal view of the latest captured exchange",
		Long: `Open a terminal view of the latest captured exchange. The view updates
whenever the daemon captures a new exchange.

Keys: r re-checks the debugger attachment, c clears the display (the stored
snapshot is kept), q quits.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}

			// the terminal belongs to the UI; logs go to a file or nowhere
			var w io.Writer = io.Discard
			if logFile != "" {
				path, err := app.ExpandPath(logFile)
				if err != nil {
					return err
				}
				if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
					return fmt.Errorf("create log dir: %w", err)
				}
				f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
				if err != nil {
					return fmt.Errorf("open log file: %w", err)
				}
				defer f.Close()
				w = f
			}

			client, logger, err := opts.newClient(cfg, w)
			if err != nil {
				return err
			}
			return popup.Run(cmd.Context(), client, logger, popup.Options{TabID: tabID, TabURL: tabURL})
		},
	}

	cmd.Flags().StringVar(&tabID, "tab-id", "", "tab to re-check (default: the active tab)")
	cmd.Flags().StringVar(&tabURL, "tab-url", "", "URL of --tab-id")
	cmd.Flags().StringVar(&logFile, "log-file", "", "append popup logs to this file")
	return cmd
}

func newLatestCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Print the latest captured exchange",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			client, logger, err := opts.newClient(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}

			snap, err := client.Latest(cmd.Context())
			if errors.Is(err, webclient.ErrNoSnapshot) {
				fmt.Fprintln(cmd.OutOrStdout(), popup.Placeholder)
				return nil
			}
			if err != nil {
				return err
			}

			if asJSON {
				b, err := json.Marshal(snap)
				if err != nil {
					return fmt.Errorf("encode snapshot: %w", err)
				}
				_, err = cmd.OutOrStdout().Write(pretty.Pretty(b))
				return err
			}

			p, err := popup.NewPresenter(client, logger)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), p.Show(snap).String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "print the raw snapshot as JSON")
	return cmd
}

func newCheckCmd(opts *rootOptions) *cobra.Command {
	var (
		tabID  string
		tabURL string
	)

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Re-check the debugger attachment of a tab",
		Long: `Ask the daemon to re-check the debugger attachment of a tab and print the
resulting status. Without --tab-id the active tab is checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			client, _, err := opts.newClient(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			status, err := client.CheckDebugger(cmd.Context(), tabID, tabURL)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), status)
			return nil
		},
	}

	cmd.Flags().StringVar(&tabID, "tab-id", "", "tab to check (default: the active tab)")
	cmd.Flags().StringVar(&tabURL, "tab-url", "", "URL of --tab-id")
	return cmd
}
