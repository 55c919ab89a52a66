package browser

type CaptureMode string

const (
	// ModeNetwork observes Network domain events and reads bodies after loading finishes.
	ModeNetwork CaptureMode = "network"
	// ModeIntercept pauses matching responses with the Fetch domain.
	ModeIntercept CaptureMode = "intercept"
)

type Config struct {
	// CDPURL is the DevTools endpoint of a running browser, e.g.
	// http://127.0.0.1:9222 or a ws://.../devtools/browser/<id> URL.
	// When empty a browser is launched.
	CDPURL string `yaml:"cdp_url"`

	// ExecPath overrides the browser binary when launching.
	ExecPath string `yaml:"exec_path"`

	// Headless only applies when launching.
	Headless bool `yaml:"headless"`

	// DebugPort is the remote debugging port of a launched browser.
	DebugPort int `yaml:"debug_port"`

	// UserDataDir is the profile directory of a launched browser.
	UserDataDir string `yaml:"user_data_dir"`

	Mode CaptureMode `yaml:"mode"`

	// EventBuffer is the capacity of the event queue.
	EventBuffer int `yaml:"event_buffer"`
}

func DefaultConfig() Config {
	return Config{
		DebugPort:   9222,
		Mode:        ModeNetwork,
		EventBuffer: 1024,
	}
}
