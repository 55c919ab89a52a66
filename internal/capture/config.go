package capture

import (
	"time"

	"github.com/raysh454/convotap/internal/model"
)

type Config struct {
	// TargetOrigin selects the tabs that get a debugging attachment. Empty
	// means the origin of TargetEndpoint.
	TargetOrigin string `yaml:"target_origin"`

	// TargetEndpoint is the conversation API URL whose exchanges are captured.
	TargetEndpoint string `yaml:"target_endpoint"`

	// AttachDelay is the wait between a tab update and the attach attempt.
	AttachDelay time.Duration `yaml:"attach_delay"`

	// Source tags snapshots produced from browser events.
	Source string `yaml:"-"`
}

func DefaultConfig() Config {
	return Config{
		TargetOrigin:   "https://chatgpt.com",
		TargetEndpoint: "https://chatgpt.com/backend-api/conversation",
		AttachDelay:    100 * time.Millisecond,
		Source:         model.SourceNetwork,
	}
}
