package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"app/internal/model"
)

// MemoryStore is an in-memory implementation of every repository interface.
// It backs tests and local development without a database while honoring the
// same atomicity contracts as the postgres implementations.
type MemoryStore struct {
	mu        sync.RWMutex
	accounts  map[string]*model.Account
	byEmail   map[string]string
	sessions  map[string]*model.Session
	overrides map[string]map[model.Feature]struct{}

	// usage counters get a lock per account so concurrent consumption on one
	// account serializes without different accounts contending.
	usageMu sync.Mutex
	usage   map[string]*accountUsage
}

type accountUsage struct {
	mu      sync.Mutex
	windows map[time.Time]int64
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		accounts:  make(map[string]*model.Account),
		byEmail:   make(map[string]string),
		sessions:  make(map[string]*model.Session),
		overrides: make(map[string]map[model.Feature]struct{}),
		usage:     make(map[string]*accountUsage),
	}
}

func ctxErr(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}

func (s *MemoryStore) CreateAccount(ctx context.Context, a *model.Account) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	email := strings.ToLower(a.Email)
	if _, exists := s.byEmail[email]; exists {
		return ErrDuplicateEmail
	}
	now := time.Now().UTC()
	a.Email = email
	a.CreatedAt = now
	a.UpdatedAt = now
	cp := *a
	s.accounts[a.ID] = &cp
	s.byEmail[email] = a.ID
	return nil
}

func (s *MemoryStore) GetAccountByEmail(ctx context.Context, email string) (*model.Account, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, nil
	}
	return s.snapshotAccount(id), nil
}

func (s *MemoryStore) GetAccountByID(ctx context.Context, id string) (*model.Account, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotAccount(id), nil
}

// snapshotAccount copies the account with its overrides attached; callers
// must hold at least a read lock.
func (s *MemoryStore) snapshotAccount(id string) *model.Account {
	a, ok := s.accounts[id]
	if !ok {
		return nil
	}
	cp := *a
	cp.FeatureOverrides = nil
	for f := range s.overrides[id] {
		cp.FeatureOverrides = append(cp.FeatureOverrides, f)
	}
	sort.Slice(cp.FeatureOverrides, func(i, j int) bool {
		return cp.FeatureOverrides[i] < cp.FeatureOverrides[j]
	})
	return &cp
}

func (s *MemoryStore) UpdateTier(ctx context.Context, id string, tier model.Tier) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		a.Tier = tier
		a.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *MemoryStore) DisableAccount(ctx context.Context, id string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.accounts[id]; ok {
		a.Disabled = true
		a.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (s *MemoryStore) CreateSession(ctx context.Context, sess *model.Session) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *sess
	s.sessions[sess.TokenHash] = &cp
	return nil
}

func (s *MemoryStore) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*model.Session, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[tokenHash]
	if !ok {
		return nil, nil
	}
	cp := *sess
	return &cp, nil
}

func (s *MemoryStore) DeleteSessionByTokenHash(ctx context.Context, tokenHash string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, tokenHash)
	return nil
}

func (s *MemoryStore) AddOverride(ctx context.Context, accountID string, feature model.Feature) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.overrides[accountID] == nil {
		s.overrides[accountID] = make(map[model.Feature]struct{})
	}
	s.overrides[accountID][feature] = struct{}{}
	return nil
}

func (s *MemoryStore) RemoveOverride(ctx context.Context, accountID string, feature model.Feature) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.overrides[accountID], feature)
	return nil
}

func (s *MemoryStore) ListOverrides(ctx context.Context, accountID string) ([]model.Feature, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var features []model.Feature
	for f := range s.overrides[accountID] {
		features = append(features, f)
	}
	sort.Slice(features, func(i, j int) bool { return features[i] < features[j] })
	return features, nil
}

func (s *MemoryStore) accountUsage(accountID string) *accountUsage {
	s.usageMu.Lock()
	defer s.usageMu.Unlock()
	u, ok := s.usage[accountID]
	if !ok {
		u = &accountUsage{windows: make(map[time.Time]int64)}
		s.usage[accountID] = u
	}
	return u
}

func (s *MemoryStore) ConsumeInWindow(ctx context.Context, accountID string, windowStart time.Time, units int64, limit model.Quota) (int64, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	u := s.accountUsage(accountID)
	u.mu.Lock()
	defer u.mu.Unlock()

	consumed := u.windows[windowStart]
	total := model.SaturatingAdd(consumed, units)
	if !limit.Unlimited && total > limit.Limit {
		return consumed, ErrLimitReached
	}
	u.windows[windowStart] = total
	return total, nil
}

func (s *MemoryStore) GetConsumed(ctx context.Context, accountID string, windowStart time.Time) (int64, error) {
	if err := ctxErr(ctx); err != nil {
		return 0, err
	}
	u := s.accountUsage(accountID)
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.windows[windowStart], nil
}

func (s *MemoryStore) ListCounters(ctx context.Context, accountID string) ([]model.UsageCounter, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	u := s.accountUsage(accountID)
	u.mu.Lock()
	defer u.mu.Unlock()

	var counters []model.UsageCounter
	for ws, consumed := range u.windows {
		counters = append(counters, model.UsageCounter{AccountID: accountID, WindowStart: ws, Consumed: consumed})
	}
	sort.Slice(counters, func(i, j int) bool { return counters[i].WindowStart.Before(counters[j].WindowStart) })
	return counters, nil
}
