package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	provisioner "github.com/datakaveri/dx-resource-server-sub001"
	"github.com/datakaveri/dx-resource-server-sub001/model"
)

// SubscriptionStore is an in-memory provisioner.SubscriptionRepository.
// Rows are kept in insertion order.
type SubscriptionStore struct {
	mu      sync.RWMutex
	rows    []model.SubscriptionRecord
	nextID  int64
	writes  int
	failure error
}

// NewSubscriptionStore creates an empty store.
func NewSubscriptionStore() *SubscriptionStore {
	return &SubscriptionStore{}
}

// FailWith makes every later call return err. A nil err clears the failure.
func (s *SubscriptionStore) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failure = err
}

// Writes returns the number of successful mutations.
func (s *SubscriptionStore) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

// Len returns the number of rows.
func (s *SubscriptionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// ExistsByQueueName implements provisioner.SubscriptionRepository.
func (s *SubscriptionStore) ExistsByQueueName(_ context.Context, queueName string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return false, s.failure
	}
	for i := range s.rows {
		if s.rows[i].QueueName == queueName {
			return true, nil
		}
	}
	return false, nil
}

// ExistsByQueueAndEntity implements provisioner.SubscriptionRepository.
func (s *SubscriptionStore) ExistsByQueueAndEntity(_ context.Context, queueName, entityID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return false, s.failure
	}
	return s.indexOf(queueName, entityID) >= 0, nil
}

// FindByQueueAndEntity implements provisioner.SubscriptionRepository.
func (s *SubscriptionStore) FindByQueueAndEntity(_ context.Context, queueName, entityID string) (*model.SubscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, s.failure
	}
	i := s.indexOf(queueName, entityID)
	if i < 0 {
		return nil, nil
	}
	rec := s.rows[i]
	return &rec, nil
}

// FindByQueueName implements provisioner.SubscriptionRepository.
func (s *SubscriptionStore) FindByQueueName(_ context.Context, queueName string) ([]model.SubscriptionRecord, error) {
	return s.filter(func(r *model.SubscriptionRecord) bool { return r.QueueName == queueName })
}

// FindByUserID implements provisioner.SubscriptionRepository.
func (s *SubscriptionStore) FindByUserID(_ context.Context, userID string) ([]model.SubscriptionRecord, error) {
	return s.filter(func(r *model.SubscriptionRecord) bool { return r.UserID == userID })
}

// Insert implements provisioner.SubscriptionRepository.
func (s *SubscriptionStore) Insert(_ context.Context, m model.SubscriptionRecord) (model.SubscriptionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return m, s.failure
	}
	if s.indexOf(m.QueueName, m.EntityID) >= 0 {
		return m, provisioner.NewError(provisioner.ErrCodeConflict,
			fmt.Sprintf("subscription already recorded: %s (entity %s)", m.QueueName, m.EntityID))
	}

	s.nextID++
	m.ID = s.nextID
	s.rows = append(s.rows, m)
	s.writes++
	return m, nil
}

// UpdateExpiry implements provisioner.SubscriptionRepository.
func (s *SubscriptionStore) UpdateExpiry(_ context.Context, queueName, entityID string, expiry time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}
	i := s.indexOf(queueName, entityID)
	if i < 0 {
		return provisioner.ErrNotFound
	}
	s.rows[i].ExtendExpiry(expiry)
	s.writes++
	return nil
}

// DeleteByQueueName implements provisioner.SubscriptionRepository.
func (s *SubscriptionStore) DeleteByQueueName(_ context.Context, queueName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failure != nil {
		return s.failure
	}

	kept := s.rows[:0]
	for _, r := range s.rows {
		if r.QueueName != queueName {
			kept = append(kept, r)
		}
	}
	if len(kept) == len(s.rows) {
		return provisioner.ErrNotFound
	}
	s.rows = kept
	s.writes++
	return nil
}

// indexOf returns the position of the pair or -1. Caller holds mu.
func (s *SubscriptionStore) indexOf(queueName, entityID string) int {
	for i := range s.rows {
		if s.rows[i].QueueName == queueName && s.rows[i].EntityID == entityID {
			return i
		}
	}
	return -1
}

func (s *SubscriptionStore) filter(keep func(*model.SubscriptionRecord) bool) ([]model.SubscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.failure != nil {
		return nil, s.failure
	}

	out := []model.SubscriptionRecord{}
	for i := range s.rows {
		if keep(&s.rows[i]) {
			out = append(out, s.rows[i])
		}
	}
	return out, nil
}

var _ provisioner.SubscriptionRepository = (*SubscriptionStore)(nil)
