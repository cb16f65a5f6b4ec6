package licenses

import (
	"context"
	"errors"

	"github.com/angelmondragon/licensegate/pkg/db"
	"github.com/angelmondragon/licensegate/pkg/db/models"
	"gorm.io/gorm"
)

// Repository exposes license persistence operations.
type Repository struct {
	client *db.Client
	db     *gorm.DB
}

// NewRepository constructs a license repository on the shared database client.
func NewRepository(client *db.Client) *Repository {
	return &Repository{client: client, db: client.DB()}
}

// Insert adds a new license row. The primary key rejects reused keys.
func (r *Repository) Insert(ctx context.Context, license *models.License) error {
	err := r.db.WithContext(ctx).Create(license).Error
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || db.IsUniqueViolation(err, "") {
		return ErrDuplicateKey
	}
	return err
}

func (r *Repository) FindByKey(ctx context.Context, key string) (*models.License, error) {
	var row models.License
	err := r.db.WithContext(ctx).Where("key = ?", key).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// FindByOwner returns every license for owner, newest first.
func (r *Repository) FindByOwner(ctx context.Context, owner string) ([]models.License, error) {
	var rows []models.License
	err := r.db.WithContext(ctx).
		Where("owner = ?", owner).
		Order("created_at DESC").
		Order("key DESC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repository) ListAll(ctx context.Context, limit int) ([]models.License, error) {
	query := r.db.WithContext(ctx).Model(&models.License{}).Order("created_at DESC").Order("key DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	var rows []models.License
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkRevoked uses a conditional update so concurrent revokes cannot both
// observe an active row. The update and the read-back share a transaction.
func (r *Repository) MarkRevoked(ctx context.Context, key string) (*models.License, bool, error) {
	var (
		row            models.License
		alreadyRevoked bool
	)
	err := r.client.WithTx(ctx, func(tx *gorm.DB) error {
		res := tx.Model(&models.License{}).
			Where("key = ? AND active = ?", key, true).
			Update("active", false)
		if res.Error != nil {
			return res.Error
		}
		alreadyRevoked = res.RowsAffected == 0
		return tx.Where("key = ?", key).Take(&row).Error
	})
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, ErrNotFound
	}
	if err != nil {
		return nil, false, err
	}
	return &row, alreadyRevoked, nil
}

func (r *Repository) RecordAddress(ctx context.Context, key, address string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.License{}).
		Where("key = ? AND server_ip IS NULL", key).
		Update("server_ip", address)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx)
}
