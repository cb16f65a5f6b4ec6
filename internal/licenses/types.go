package licenses

import (
	"time"

	"github.com/angelmondragon/licensegate/pkg/db/models"
)

// Regime selects how keys are trusted for a deployment.
type Regime string

const (
	// RegimeSigned keys self-verify through their tag; the store only records revocations.
	RegimeSigned Regime = "signed"
	// RegimeStateful keys are valid only while a matching active row exists.
	RegimeStateful Regime = "stateful"
)

type RevokeStatus string

const (
	RevokeStatusRevoked        RevokeStatus = "revoked"
	RevokeStatusAlreadyRevoked RevokeStatus = "already_revoked"
	RevokeStatusBlacklisted    RevokeStatus = "blacklisted"
)

// Validation failure reasons returned to callers.
const (
	ReasonInvalidKey = "invalid key"
	ReasonRevoked    = "revoked"
	ReasonExpired    = "expired"
)

const (
	maxCreateAttempts = 5
	maxKeyLength      = 128

	unknownOwner    = "unknown"
	manualRevokeTag = "manually revoked"
	generatedNote   = "generated manually"
)

// CreateInput holds the fields an admin supplies when issuing a key.
type CreateInput struct {
	Owner     string
	ExpiresAt *time.Time
	Notes     string
}

type RevokeResult struct {
	Status  RevokeStatus
	License models.License
}

// ValidationResult is the outcome for a presented key. Owner is set only when Valid.
type ValidationResult struct {
	Valid  bool
	Reason string
	Owner  string
}

func invalid(reason string) ValidationResult {
	return ValidationResult{Valid: false, Reason: reason}
}
