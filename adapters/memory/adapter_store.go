package memory

import (
	"context"
	"fmt"
	"sync"

	provisioner "github.com/datakaveri/dx-resource-server-sub001"
	"github.com/datakaveri/dx-resource-server-sub001/model"
)

// AdapterStore is an in-memory provisioner.AdapterRepository.
type AdapterStore struct {
	mu      sync.RWMutex
	rows    []model.AdapterRecord // Ordered by ID
	nextID  int64
	writes  int
	failure error
}

// NewAdapterStore creates an empty store.
func NewAdapterStore() *AdapterStore {
	return &AdapterStore{}
}

// FailWith makes every later call return err. A nil err clears the failure.
func (s *AdapterStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// Writes returns the number of successful mutations.
func (s *AdapterStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Len returns the number of rows.
func (s *AdapterStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// ExistsByExchangeName implements provisioner.AdapterRepository.
func (s *AdapterStore) ExistsByExchangeName(_ context.Context, exchangeName string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return false, s.failure
	}
	return s.indexOf(exchangeName) >= 0, nil
}

// ExistsByResourceID implements provisioner.AdapterRepository.
func (s *AdapterStore) ExistsByResourceID(_ context.Context, resourceID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return false, s.failure
	}
	for i := range s.rows {
		if s.rows[i].ResourceID == resourceID {
			return true, nil
		}
	}
	return false, nil
}

// FindByExchangeName implements provisioner.AdapterRepository.
func (s *AdapterStore) FindByExchangeName(_ context.Context, exchangeName string) (*model.AdapterRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, s.failure
	}
	i := s.indexOf(exchangeName)
	if i < 0 {
		return nil, nil
	}
	rec := s.rows[i]
	return &rec, nil
}

// FindAllByProviderID implements provisioner.AdapterRepository.
func (s *AdapterStore) FindAllByProviderID(_ context.Context, providerID string) ([]model.AdapterRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, s.failure
	}

	out := []model.AdapterRecord{}
	for _, r := range s.rows {
		if r.ProviderID == providerID {
			out = append(out, r)
		}
	}
	return out, nil
}

// ListAfter implements provisioner.AdapterRepository.
func (s *AdapterStore) ListAfter(_ context.Context, afterID int64, limit int) ([]model.AdapterRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, s.failure
	}

	out := []model.AdapterRecord{}
	for _, r := range s.rows {
		if r.ID <= afterID {
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, r)
	}
	return out, nil
}

// Insert implements provisioner.AdapterRepository.
func (s *AdapterStore) Insert(_ context.Context, m model.AdapterRecord) (model.AdapterRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return m, s.failure
	}
	if s.indexOf(m.ExchangeName) >= 0 {
		return m, provisioner.NewError(provisioner.ErrCodeConflict,
			fmt.Sprintf("adapter already recorded: %s", m.ExchangeName))
	}

	s.nextID++
	m.ID = s.nextID
	s.rows = append(s.rows, m)
	s.writes++
	return m, nil
}

// DeleteByExchangeName implements provisioner.AdapterRepository.
func (s *AdapterStore) DeleteByExchangeName(_ context.Context, exchangeName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	i := s.indexOf(exchangeName)
	if i < 0 {
		return provisioner.ErrNotFound
	}
	s.rows = append(s.rows[:i], s.rows[i+1:]...)
	s.writes++
	return nil
}

// indexOf returns the position of exchangeName or -1. Caller holds mu.
func (s *AdapterStore) indexOf(exchangeName string) int {
	for i := range s.rows {
		if s.rows[i].ExchangeName == exchangeName {
			return i
		}
	}
	return -1
}

var _ provisioner.AdapterRepository = (*AdapterStore)(nil)
