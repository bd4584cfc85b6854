package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"virtual-wallet/backend/internal/account/domain"
)

// MemoryRepository keeps accounts in process memory. Used when DATABASE_URL is empty and in tests.
type MemoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*domain.Account
	byPhone map[string]string
	nowF    func() time.Time
}

// NewMemoryRepository returns an empty MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		byID:    make(map[string]*domain.Account),
		byPhone: make(map[string]string),
		nowF:    time.Now,
	}
}

func (r *MemoryRepository) Create(ctx context.Context, a *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.byPhone[a.Phone]; ok {
		return nil, ErrDuplicatePhone
	}
	c := clone(a)
	c.ID = uuid.New().String()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = r.nowF().UTC()
	}
	r.byID[c.ID] = c
	r.byPhone[c.Phone] = c.ID
	return clone(c), nil
}

func (r *MemoryRepository) GetByPhone(ctx context.Context, phone string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byPhone[phone]
	if !ok {
		return nil, nil
	}
	return clone(r.byID[id]), nil
}

func (r *MemoryRepository) GetByID(ctx context.Context, id string) (*domain.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.byID[id]
	if !ok {
		return nil, nil
	}
	return clone(a), nil
}

func (r *MemoryRepository) Update(ctx context.Context, a *domain.Account) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur, ok := r.byID[a.ID]
	if !ok {
		return nil, ErrNotFound
	}
	cur.Email = cloneString(a.Email)
	cur.Name = cloneString(a.Name)
	cur.PasswordHash = a.PasswordHash
	cur.Status = a.Status
	cur.MFAEnabled = a.MFAEnabled
	return clone(cur), nil
}

func (r *MemoryRepository) Delete(ctx context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.byID[id]
	if !ok {
		return false, nil
	}
	delete(r.byPhone, a.Phone)
	delete(r.byID, id)
	return true, nil
}

func clone(a *domain.Account) *domain.Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Email = cloneString(a.Email)
	c.Name = cloneString(a.Name)
	return &c
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
