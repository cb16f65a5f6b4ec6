package licenses

import (
	"context"
	"errors"

	"github.com/angelmondragon/licensegate/pkg/db/models"
)

var (
	// ErrNotFound is returned when no license row exists for a key.
	ErrNotFound = errors.New("license not found")
	// ErrDuplicateKey is returned by Insert when the key already exists.
	ErrDuplicateKey = errors.New("license key already exists")
)

// Store persists license records. Implementations must enforce key uniqueness
// on Insert and make MarkRevoked and RecordAddress atomic per key.
type Store interface {
	Insert(ctx context.Context, license *models.License) error
	FindByKey(ctx context.Context, key string) (*models.License, error)
	FindByOwner(ctx context.Context, owner string) ([]models.License, error)
	// ListAll returns licenses newest first; limit <= 0 means no limit.
	ListAll(ctx context.Context, limit int) ([]models.License, error)
	// MarkRevoked flips active to false. alreadyRevoked is true when the row was inactive before the call.
	MarkRevoked(ctx context.Context, key string) (license *models.License, alreadyRevoked bool, err error)
	// RecordAddress sets server_ip only when it is still unset and reports whether it did.
	RecordAddress(ctx context.Context, key, address string) (bool, error)
	Ping(ctx context.Context) error
}
