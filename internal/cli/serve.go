package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/convotap/internal/app"
	"github.com/raysh454/convotap/internal/browser"
	"github.com/raysh454/convotap/internal/logging"
	"github.com/raysh454/convotap/internal/store"
)

type serveFlags struct {
	listen         string
	storageRoot    string
	storeDriver    string
	cdpURL         string
	execPath       string
	headless       bool
	mode           string
	targetOrigin   string
	targetEndpoint string
	attachDelay    time.Duration
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	var f serveFlags

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the capture daemon",
		Long: `Run the capture daemon.

Without --cdp-url a browser is launched with a dedicated profile under the
storage root. With --cdp-url the daemon connects to an already running
browser started with --remote-debugging-port.

Every open tab on the target origin gets a debugger attachment; tabs that
navigate to it later are attached automatically.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			f.apply(cmd, cfg)

			logger := logging.NewLogger(cmd.OutOrStdout(), "convotap", cfg.LogLevel)
			a, err := app.NewApplication(cfg, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.Run(ctx)
		},
	}

	f.register(cmd)
	return cmd
}

// register binds the serve flags with defaults taken from DefaultConfig.
func (f *serveFlags) register(cmd *cobra.Command) {
	def := app.DefaultConfig()
	fl := cmd.Flags()
	fl.StringVar(&f.listen, "listen", def.Server.ListenAddr, "daemon API listen address")
	fl.StringVar(&f.storageRoot, "storage-root", def.StorageRoot, "directory for the snapshot database and browser profile")
	fl.StringVar(&f.storeDriver, "store", string(def.Store.Driver), "snapshot store: sqlite or memory")
	fl.StringVar(&f.cdpURL, "cdp-url", "", "DevTools URL of a running browser, e.g. http://127.0.0.1:9222")
	fl.StringVar(&f.execPath, "exec-path", "", "browser binary to launch")
	fl.BoolVar(&f.headless, "headless", false, "launch the browser headless")
	fl.StringVar(&f.mode, "mode", string(def.Browser.Mode), "capture mode: network or intercept")
	fl.StringVar(&f.targetOrigin, "target-origin", def.Capture.TargetOrigin, "origin of the tabs to attach to")
	fl.StringVar(&f.targetEndpoint, "target-endpoint", def.Capture.TargetEndpoint, "conversation API URL to capture")
	fl.DurationVar(&f.attachDelay, "attach-delay", def.Capture.AttachDelay, "wait between a tab update and the attach attempt")
}

// apply overlays the flags the user set on cfg.
func (f *serveFlags) apply(cmd *cobra.Command, cfg *app.Config) {
	changed := cmd.Flags().Changed

	if changed("listen") {
		cfg.Server.ListenAddr = f.listen
	}
	if changed("storage-root") {
		cfg.StorageRoot = f.storageRoot
	}
	if changed("store") {
		cfg.Store.Driver = store.Driver(f.storeDriver)
	}
	if changed("cdp-url") {
		cfg.Browser.CDPURL = f.cdpURL
	}
	if changed("exec-path") {
		cfg.Browser.ExecPath = f.execPath
	}
	if changed("headless") {
		cfg.Browser.Headless = f.headless
	}
	if changed("mode") {
		cfg.Browser.Mode = browser.CaptureMode(f.mode)
	}
	if changed("target-endpoint") {
		cfg.Capture.TargetEndpoint = f.targetEndpoint
		if !changed("target-origin") {
			// follow the endpoint's origin
			cfg.Capture.TargetOrigin = ""
		}
	}
	if changed("target-origin") {
		cfg.Capture.TargetOrigin = f.targetOrigin
	}
	if changed("attach-delay") {
		cfg.Capture.AttachDelay = f.attachDelay
	}
}
