package licenses

import (
	"context"
	"sort"
	"sync"

	"github.com/angelmondragon/licensegate/pkg/db/models"
)

// MemoryStore keeps licenses in process memory. Records are lost on restart.
type MemoryStore struct {
	mu   sync.RWMutex
	rows map[string]*memoryRow
	seq  uint64
}

type memoryRow struct {
	license models.License
	seq     uint64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{rows: make(map[string]*memoryRow)}
}

func (m *MemoryStore) Insert(_ context.Context, license *models.License) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rows[license.Key]; exists {
		return ErrDuplicateKey
	}
	m.seq++
	m.rows[license.Key] = &memoryRow{license: cloneLicense(*license), seq: m.seq}
	return nil
}

func (m *MemoryStore) FindByKey(_ context.Context, key string) (*models.License, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	row, ok := m.rows[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := cloneLicense(row.license)
	return &out, nil
}

func (m *MemoryStore) FindByOwner(_ context.Context, owner string) ([]models.License, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*memoryRow, 0)
	for _, row := range m.rows {
		if row.license.Owner == owner {
			matched = append(matched, row)
		}
	}
	return newestFirst(matched, 0), nil
}

func (m *MemoryStore) ListAll(_ context.Context, limit int) ([]models.License, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	all := make([]*memoryRow, 0, len(m.rows))
	for _, row := range m.rows {
		all = append(all, row)
	}
	return newestFirst(all, limit), nil
}

func (m *MemoryStore) MarkRevoked(_ context.Context, key string) (*models.License, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[key]
	if !ok {
		return nil, false, ErrNotFound
	}
	already := !row.license.Active
	row.license.Active = false
	out := cloneLicense(row.license)
	return &out, already, nil
}

func (m *MemoryStore) RecordAddress(_ context.Context, key, address string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	row, ok := m.rows[key]
	if !ok || row.license.ServerIP != nil {
		return false, nil
	}
	addr := address
	row.license.ServerIP = &addr
	return true, nil
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func newestFirst(rows []*memoryRow, limit int) []models.License {
	sort.Slice(rows, func(i, j int) bool {
		if !rows[i].license.CreatedAt.Equal(rows[j].license.CreatedAt) {
			return rows[i].license.CreatedAt.After(rows[j].license.CreatedAt)
		}
		return rows[i].seq > rows[j].seq
	})
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}
	out := make([]models.License, len(rows))
	for i, row := range rows {
		out[i] = cloneLicense(row.license)
	}
	return out
}

// cloneLicense copies pointer fields so callers cannot mutate stored rows.
func cloneLicense(l models.License) models.License {
	if l.ServerIP != nil {
		ip := *l.ServerIP
		l.ServerIP = &ip
	}
	if l.ExpiresAt != nil {
		exp := *l.ExpiresAt
		l.ExpiresAt = &exp
	}
	return l
}
