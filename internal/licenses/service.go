package licenses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/angelmondragon/licensegate/pkg/db/models"
	pkgerrors "github.com/angelmondragon/licensegate/pkg/errors"
	"github.com/angelmondragon/licensegate/pkg/logger"
	"github.com/angelmondragon/licensegate/pkg/metrics"
)

type keyCodec interface {
	Generate() (string, error)
	Verify(key string) bool
	Signed() bool
}

// Notifier delivers a newly issued key to its owner. Failures are logged, never returned to the caller.
type Notifier interface {
	LicenseIssued(ctx context.Context, license models.License) error
}

// Service exposes license issuance, revocation, validation and read semantics.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.License, error)
	GenerateUnassigned(ctx context.Context, actor string) (*models.License, error)
	Revoke(ctx context.Context, key string) (*RevokeResult, error)
	Validate(ctx context.Context, key, address string) (ValidationResult, error)
	List(ctx context.Context, limit int) ([]models.License, error)
	Lookup(ctx context.Context, owner string) ([]models.License, error)
	Regime() Regime
	Ping(ctx context.Context) error
}

type service struct {
	store     Store
	codec     keyCodec
	notifier  Notifier
	metrics   *metrics.LicenseMetrics
	logg      *logger.Logger
	listLimit int
	now       func() time.Time
}

// NewService builds a license service. notifier and recorder may be nil;
// listLimit applies when List is called without an explicit limit.
func NewService(store Store, codec keyCodec, notifier Notifier, recorder *metrics.LicenseMetrics, logg *logger.Logger, listLimit int) (Service, error) {
	if store == nil {
		return nil, fmt.Errorf("license store required")
	}
	if codec == nil {
		return nil, fmt.Errorf("key codec required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if listLimit < 0 {
		return nil, fmt.Errorf("list limit must not be negative")
	}
	return &service{
		store:     store,
		codec:     codec,
		notifier:  notifier,
		metrics:   recorder,
		logg:      logg,
		listLimit: listLimit,
		now:       time.Now,
	}, nil
}

func (s *service) Regime() Regime {
	if s.codec.Signed() {
		return RegimeSigned
	}
	return RegimeStateful
}

func (s *service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.License, error) {
	defer s.observe("create", s.now())

	owner := strings.TrimSpace(input.Owner)
	if owner == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner is required")
	}

	created, err := s.issue(ctx, owner, input.ExpiresAt, strings.TrimSpace(input.Notes))
	if err != nil {
		s.metrics.IncFailure("create")
		return nil, err
	}

	s.notify(ctx, *created)
	return created, nil
}

// GenerateUnassigned issues a key owned by the calling admin, for handing out manually.
func (s *service) GenerateUnassigned(ctx context.Context, actor string) (*models.License, error) {
	defer s.observe("genkey", s.now())

	actor = strings.TrimSpace(actor)
	if actor == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "actor is required")
	}

	created, err := s.issue(ctx, actor, nil, generatedNote)
	if err != nil {
		s.metrics.IncFailure("genkey")
		return nil, err
	}
	return created, nil
}

// issue draws keys until one inserts cleanly, up to maxCreateAttempts.
func (s *service) issue(ctx context.Context, owner string, expiresAt *time.Time, notes string) (*models.License, error) {
	var exp *time.Time
	if expiresAt != nil {
		utc := expiresAt.UTC()
		exp = &utc
	}

	for attempt := 1; attempt <= maxCreateAttempts; attempt++ {
		key, err := s.codec.Generate()
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate license key")
		}

		license := &models.License{
			Key:       key,
			Owner:     owner,
			Active:    true,
			CreatedAt: s.now().UTC().Truncate(time.Microsecond),
			ExpiresAt: exp,
			Notes:     notes,
		}

		err = s.store.Insert(ctx, license)
		if err == nil {
			s.metrics.IncIssued()
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{
				"license": logger.Redact(key),
				"owner":   owner,
				"attempt": attempt,
			}), "license issued")
			return license, nil
		}
		if !errors.Is(err, ErrDuplicateKey) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert license")
		}
		s.logg.Warn(s.logg.WithField(ctx, "attempt", attempt), "license key collision, regenerating")
	}

	return nil, pkgerrors.New(pkgerrors.CodeConflict, "could not generate a unique license key").
		WithDetails(map[string]any{"attempts": maxCreateAttempts})
}

func (s *service) notify(ctx context.Context, license models.License) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.LicenseIssued(ctx, license); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"license": logger.Redact(license.Key),
			"owner":   license.Owner,
			"error":   err.Error(),
		}), "license notification failed")
	}
}

func (s *service) Revoke(ctx context.Context, key string) (*RevokeResult, error) {
	defer s.observe("revoke", s.now())

	key = strings.TrimSpace(key)
	if key == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "key is required")
	}
	ctx = s.logg.WithLicense(ctx, key)

	row, already, err := s.store.MarkRevoked(ctx, key)
	switch {
	case err == nil:
		status := RevokeStatusRevoked
		if already {
			status = RevokeStatusAlreadyRevoked
		}
		return s.revoked(ctx, status, *row), nil
	case !errors.Is(err, ErrNotFound):
		s.metrics.IncFailure("revoke")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke license")
	}

	if !s.codec.Signed() {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "license not found")
	}

	stub := &models.License{
		Key:       key,
		Owner:     unknownOwner,
		Active:    false,
		CreatedAt: s.now().UTC().Truncate(time.Microsecond),
		Notes:     manualRevokeTag,
	}
	if !s.codec.Verify(key) {
		// A tag that does not verify never validates, so nothing is stored for it.
		return s.revoked(ctx, RevokeStatusBlacklisted, *stub), nil
	}
	err = s.store.Insert(ctx, stub)
	if errors.Is(err, ErrDuplicateKey) {
		// A concurrent create or revoke inserted the row first; revoke that row instead.
		row, already, err = s.store.MarkRevoked(ctx, key)
		if err != nil {
			s.metrics.IncFailure("revoke")
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "revoke license")
		}
		status := RevokeStatusRevoked
		if already {
			status = RevokeStatusAlreadyRevoked
		}
		return s.revoked(ctx, status, *row), nil
	}
	if err != nil {
		s.metrics.IncFailure("revoke")
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "blacklist license")
	}
	return s.revoked(ctx, RevokeStatusBlacklisted, *stub), nil
}

func (s *service) revoked(ctx context.Context, status RevokeStatus, license models.License) *RevokeResult {
	s.metrics.IncRevoked(string(status))
	s.logg.Info(s.logg.WithField(ctx, "status", string(status)), "license revoked")
	return &RevokeResult{Status: status, License: license}
}

// Validate decides whether key is usable now. Checks run in order: structure
// and tag (signed) or existence (stateful), revocation, expiry. On success the
// caller address is bound to the license if none is recorded yet; that write
// is best effort. The returned error is non-nil only when the store fails.
func (s *service) Validate(ctx context.Context, key, address string) (ValidationResult, error) {
	defer s.observe("validate", s.now())

	result, err := s.validate(ctx, strings.TrimSpace(key), strings.TrimSpace(address))
	if err != nil {
		s.metrics.IncFailure("validate")
		return ValidationResult{}, err
	}
	if result.Valid {
		s.metrics.IncValidation("valid")
	} else {
		s.metrics.IncValidation(result.Reason)
	}
	return result, nil
}

func (s *service) validate(ctx context.Context, key, address string) (ValidationResult, error) {
	if key == "" || len(key) > maxKeyLength {
		return invalid(ReasonInvalidKey), nil
	}
	ctx = s.logg.WithLicense(ctx, key)

	signed := s.codec.Signed()
	if signed && !s.codec.Verify(key) {
		return invalid(ReasonInvalidKey), nil
	}

	row, err := s.store.FindByKey(ctx, key)
	switch {
	case errors.Is(err, ErrNotFound):
		if !signed {
			return invalid(ReasonInvalidKey), nil
		}
		// Signed keys without a row were never revoked.
		return ValidationResult{Valid: true}, nil
	case err != nil:
		return ValidationResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup license")
	}

	if !row.Active {
		return invalid(ReasonRevoked), nil
	}
	if row.Expired(s.now()) {
		return invalid(ReasonExpired), nil
	}

	if address != "" && row.ServerIP == nil {
		if _, err := s.store.RecordAddress(ctx, key, address); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "recording license address failed")
		}
	}
	return ValidationResult{Valid: true, Owner: row.Owner}, nil
}

func (s *service) List(ctx context.Context, limit int) ([]models.License, error) {
	if limit < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "limit must not be negative")
	}
	if limit == 0 {
		limit = s.listLimit
	}
	rows, err := s.store.ListAll(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list licenses")
	}
	return rows, nil
}

func (s *service) Lookup(ctx context.Context, owner string) ([]models.License, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner is required")
	}
	rows, err := s.store.FindByOwner(ctx, owner)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup licenses")
	}
	return rows, nil
}

func (s *service) observe(op string, started time.Time) {
	s.metrics.ObserveDuration(op, s.now().Sub(started))
}
