package licenses

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/angelmondragon/licensegate/pkg/config"
	"github.com/angelmondragon/licensegate/pkg/db"
	"github.com/angelmondragon/licensegate/pkg/db/models"
	"github.com/angelmondragon/licensegate/pkg/logger"
	"github.com/angelmondragon/licensegate/pkg/migrate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newSQLiteRepository opens a sqlite file the way cmd/api does and builds its schema
// from the embedded goose migrations.
func newSQLiteRepository(t *testing.T) *Repository {
	t.Helper()
	ctx := context.Background()
	cfg := &config.Config{
		App: config.AppConfig{Env: "test"},
		DB:  config.DBConfig{Driver: config.DBDriverSQLite, DSN: filepath.Join(t.TempDir(), "licenses.db")},
	}
	logg := logger.New(logger.Options{ServiceName: "licenses-test", Output: io.Discard})

	client, err := db.New(ctx, cfg.DB, logg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	require.NoError(t, migrate.MaybeRunDev(ctx, cfg, logg, client))
	return NewRepository(client)
}

func storeImplementations(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	return map[string]func(t *testing.T) Store{
		"sqlite": func(t *testing.T) Store { return newSQLiteRepository(t) },
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
	}
}

func licenseAt(key, owner string, created time.Time) *models.License {
	return &models.License{Key: key, Owner: owner, Active: true, CreatedAt: created.UTC()}
}

func TestStoreInsertRejectsDuplicateKey(t *testing.T) {
	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			now := time.Now()

			require.NoError(t, store.Insert(ctx, licenseAt("LIC-0001-0002-0003", "alice", now)))
			err := store.Insert(ctx, licenseAt("LIC-0001-0002-0003", "bob", now))
			assert.ErrorIs(t, err, ErrDuplicateKey)

			got, err := store.FindByKey(ctx, "LIC-0001-0002-0003")
			require.NoError(t, err)
			assert.Equal(t, "alice", got.Owner, "original row must be untouched")
		})
	}
}

func TestStoreFindByKeyNotFound(t *testing.T) {
	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			_, err := newStore(t).FindByKey(context.Background(), "LIC-FFFF-FFFF-FFFF")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreOrderingAndLimit(t *testing.T) {
	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

			require.NoError(t, store.Insert(ctx, licenseAt("LIC-0000-0000-0001", "alice", base)))
			require.NoError(t, store.Insert(ctx, licenseAt("LIC-0000-0000-0002", "bob", base.Add(time.Hour))))
			require.NoError(t, store.Insert(ctx, licenseAt("LIC-0000-0000-0003", "alice", base.Add(2*time.Hour))))

			all, err := store.ListAll(ctx, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "LIC-0000-0000-0003", all[0].Key)
			assert.Equal(t, "LIC-0000-0000-0001", all[2].Key)

			limited, err := store.ListAll(ctx, 2)
			require.NoError(t, err)
			require.Len(t, limited, 2)
			assert.Equal(t, "LIC-0000-0000-0002", limited[1].Key)

			alice, err := store.FindByOwner(ctx, "alice")
			require.NoError(t, err)
			require.Len(t, alice, 2)
			assert.Equal(t, "LIC-0000-0000-0003", alice[0].Key)
			for _, row := range alice {
				assert.Equal(t, "alice", row.Owner)
			}

			nobody, err := store.FindByOwner(ctx, "carol")
			require.NoError(t, err)
			assert.Empty(t, nobody)
		})
	}
}

func TestStoreMarkRevokedIsMonotonic(t *testing.T) {
	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			require.NoError(t, store.Insert(ctx, licenseAt("LIC-AAAA-BBBB-CCCC", "alice", time.Now())))

			row, already, err := store.MarkRevoked(ctx, "LIC-AAAA-BBBB-CCCC")
			require.NoError(t, err)
			assert.False(t, already)
			assert.False(t, row.Active)

			row, already, err = store.MarkRevoked(ctx, "LIC-AAAA-BBBB-CCCC")
			require.NoError(t, err)
			assert.True(t, already)
			assert.False(t, row.Active)

			_, _, err = store.MarkRevoked(ctx, "LIC-0000-0000-0000")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreRecordAddressOnlyOnce(t *testing.T) {
	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			require.NoError(t, store.Insert(ctx, licenseAt("LIC-AAAA-BBBB-CCCC", "alice", time.Now())))

			set, err := store.RecordAddress(ctx, "LIC-AAAA-BBBB-CCCC", "10.0.0.1")
			require.NoError(t, err)
			assert.True(t, set)

			set, err = store.RecordAddress(ctx, "LIC-AAAA-BBBB-CCCC", "10.0.0.2")
			require.NoError(t, err)
			assert.False(t, set)

			row, err := store.FindByKey(ctx, "LIC-AAAA-BBBB-CCCC")
			require.NoError(t, err)
			assert.Equal(t, "10.0.0.1", row.BoundAddress())

			set, err = store.RecordAddress(ctx, "LIC-0000-0000-0000", "10.0.0.3")
			require.NoError(t, err)
			assert.False(t, set)
		})
	}
}

func TestStorePersistsInactiveRowsAndExpiry(t *testing.T) {
	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			exp := time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC)

			stub := &models.License{Key: "LIC-1111-2222-3333", Owner: "unknown", Active: false, CreatedAt: time.Now().UTC(), Notes: "manually revoked", ExpiresAt: &exp}
			require.NoError(t, store.Insert(ctx, stub))

			row, err := store.FindByKey(ctx, stub.Key)
			require.NoError(t, err)
			assert.False(t, row.Active)
			assert.Equal(t, "manually revoked", row.Notes)
			require.NotNil(t, row.ExpiresAt)
			assert.True(t, exp.Equal(*row.ExpiresAt))
		})
	}
}

func TestStoreConcurrentRevokeReportsOneWinner(t *testing.T) {
	for name, newStore := range storeImplementations(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()
			require.NoError(t, store.Insert(ctx, licenseAt("LIC-AAAA-BBBB-CCCC", "alice", time.Now())))

			const workers = 16
			var (
				wg      sync.WaitGroup
				mu      sync.Mutex
				winners int
				errs    []error
			)
			for i := 0; i < workers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, already, err := store.MarkRevoked(ctx, "LIC-AAAA-BBBB-CCCC")
					mu.Lock()
					defer mu.Unlock()
					switch {
					case err != nil:
						errs = append(errs, err)
					case !already:
						winners++
					}
				}()
			}
			wg.Wait()
			assert.Empty(t, errs)
			assert.Equal(t, 1, winners)

			row, err := store.FindByKey(ctx, "LIC-AAAA-BBBB-CCCC")
			require.NoError(t, err)
			assert.False(t, row.Active)
		})
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.Insert(ctx, licenseAt("LIC-AAAA-BBBB-CCCC", "alice", time.Now())))

	row, err := store.FindByKey(ctx, "LIC-AAAA-BBBB-CCCC")
	require.NoError(t, err)
	row.Active = false
	row.Owner = "mallory"

	again, err := store.FindByKey(ctx, "LIC-AAAA-BBBB-CCCC")
	require.NoError(t, err)
	assert.True(t, again.Active)
	assert.Equal(t, "alice", again.Owner)
}
