package instance

import (
	"os"

	"github.com/angelmondragon/licensegate/pkg/env"
)

// GetID returns the process instance identifier used in startup logs.
func GetID() string {
	if id := env.First("", env.Prefix+"INSTANCE_ID", "DYNO"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "local"
}
