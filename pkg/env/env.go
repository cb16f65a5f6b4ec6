package env

import (
	"os"
	"strings"
)

// Prefix namespaces every variable the service reads.
const Prefix = "LICENSEGATE_"

// Get returns LICENSEGATE_<name>, falling back to the bare name and then to fallback.
func Get(name, fallback string) string {
	return First(fallback, Prefix+name, name)
}

// First returns the first non-blank value among keys, or fallback.
func First(fallback string, keys ...string) string {
	for _, key := range keys {
		if val := strings.TrimSpace(os.Getenv(key)); val != "" {
			return val
		}
	}
	return fallback
}
