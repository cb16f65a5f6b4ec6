package notifications

import (
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/licensegate/pkg/db/models"
)

// EventLicenseIssued is the event name published when a key is created for an owner.
const EventLicenseIssued = "license.issued"

// IssuedEvent is the JSON payload delivered to the owner-facing channel.
type IssuedEvent struct {
	EventID   string     `json:"event_id"`
	Event     string     `json:"event"`
	Key       string     `json:"key"`
	Owner     string     `json:"owner"`
	ExpiresAt *time.Time `json:"expires_at"`
	Notes     string     `json:"notes,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Message   string     `json:"message"`
}

// RenderMessage formats the text sent to the owner of a new key.
func RenderMessage(license models.License) string {
	var b strings.Builder
	b.WriteString("Your license key\n")
	fmt.Fprintf(&b, "```%s```\n", license.Key)
	b.WriteString("Add this to your `config.yml` under `license.key`.\n")
	if license.ExpiresAt != nil {
		fmt.Fprintf(&b, "Expires: **%s**", license.ExpiresAt.UTC().Format(time.RFC3339))
	} else {
		b.WriteString("Never expires")
	}
	if license.Notes != "" {
		fmt.Fprintf(&b, "\nNotes: %s", license.Notes)
	}
	return b.String()
}
