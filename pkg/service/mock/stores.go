// Copyright (c) 2025 AccelByte Inc. All Rights Reserved.
// This is licensed software from AccelByte Inc, for limitations
// and restrictions contact your company contract manager.

package mock

import (
	"context"
	"fmt"
	"math"
	"sync"

	"github.com/AccelByte/extend-guided-progression/pkg/service"
)

// ProgressStore is an in-memory mock implementation of service.ProgressStore for testing
type ProgressStore struct {
	mu   sync.Mutex
	rows map[string]*service.UserProgress

	// GetErr, CreateErr and UpdateErr are returned by the matching method when set
	GetErr    error
	CreateErr error
	UpdateErr error

	// ConflictsLeft makes the next N updates fail with service.ErrConflict
	ConflictsLeft int

	// Call tracking
	GetCalls    int
	CreateCalls int
	UpdateCalls int
}

// NewProgressStore creates an empty mock ProgressStore
func NewProgressStore() *ProgressStore {
	return &ProgressStore{rows: make(map[string]*service.UserProgress)}
}

// WithProgress seeds a stored row
func (m *ProgressStore) WithProgress(p *service.UserProgress) *ProgressStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[p.UserID] = p.Clone()
	return m
}

// Stored returns a copy of the stored row, or nil
func (m *ProgressStore) Stored(userID string) *service.UserProgress {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.rows[userID]; ok {
		return p.Clone()
	}
	return nil
}

func (m *ProgressStore) GetProgress(ctx context.Context, userID string) (*service.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	p, ok := m.rows[userID]
	if !ok {
		return nil, service.ErrNotFound
	}
	return p.Clone(), nil
}

func (m *ProgressStore) CreateProgress(ctx context.Context, p *service.UserProgress) (*service.UserProgress, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CreateCalls++

	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	if existing, ok := m.rows[p.UserID]; ok {
		return existing.Clone(), nil
	}
	m.rows[p.UserID] = p.Clone()
	return p, nil
}

func (m *ProgressStore) UpdateProgress(ctx context.Context, p *service.UserProgress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.UpdateCalls++

	if m.UpdateErr != nil {
		return m.UpdateErr
	}
	if m.ConflictsLeft > 0 {
		m.ConflictsLeft--
		if stored, ok := m.rows[p.UserID]; ok {
			stored.Version++
		}
		return service.ErrConflict
	}
	stored, ok := m.rows[p.UserID]
	if !ok {
		return service.ErrNotFound
	}
	if stored.Version != p.Version {
		return service.ErrConflict
	}
	p.Version++
	m.rows[p.UserID] = p.Clone()
	return nil
}

// XPStore is an in-memory mock implementation of service.XPStore for testing
type XPStore struct {
	mu     sync.Mutex
	totals map[string]int
	logs   map[string][]service.XPEntry
	once   map[string]map[string]bool

	GetErr error
	AddErr error

	AddCalls []service.XPEntry
}

// NewXPStore creates an empty mock XPStore
func NewXPStore() *XPStore {
	return &XPStore{
		totals: make(map[string]int),
		logs:   make(map[string][]service.XPEntry),
		once:   make(map[string]map[string]bool),
	}
}

// WithTotal seeds a user's total
func (m *XPStore) WithTotal(userID string, total int) *XPStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totals[userID] = total
	return m
}

// Total returns the stored total
func (m *XPStore) Total(userID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totals[userID]
}

func (m *XPStore) GetXP(ctx context.Context, userID string, levelFor func(int) int) (*service.UserXP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.GetErr != nil {
		return nil, m.GetErr
	}
	total := m.totals[userID]
	return &service.UserXP{UserID: userID, Total: total, Level: levelFor(total)}, nil
}

func (m *XPStore) AddXP(ctx context.Context, userID string, entry service.XPEntry, levelFor func(int) int) (*service.UserXP, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.AddCalls = append(m.AddCalls, entry)

	if m.AddErr != nil {
		return nil, 0, m.AddErr
	}
	prev := m.totals[userID]
	if entry.Amount > 0 && prev > math.MaxInt-entry.Amount {
		return nil, 0, fmt.Errorf("%w: %d + %d", service.ErrOverflow, prev, entry.Amount)
	}
	if entry.Once {
		if m.once[userID][entry.Reason] {
			return nil, 0, fmt.Errorf("%w: %s", service.ErrAlreadyApplied, entry.Reason)
		}
		if m.once[userID] == nil {
			m.once[userID] = make(map[string]bool)
		}
		m.once[userID][entry.Reason] = true
	}
	m.totals[userID] = prev + entry.Amount
	m.logs[userID] = append(m.logs[userID], entry)
	return &service.UserXP{UserID: userID, Total: prev + entry.Amount, Level: levelFor(prev + entry.Amount)}, levelFor(prev), nil
}

func (m *XPStore) History(ctx context.Context, userID string, limit int) ([]service.XPEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	log := m.logs[userID]
	if limit > 0 && len(log) > limit {
		log = log[len(log)-limit:]
	}
	return append([]service.XPEntry(nil), log...), nil
}

// BadgeStore is an in-memory mock implementation of service.BadgeStore for testing
type BadgeStore struct {
	mu     sync.Mutex
	badges map[string][]service.UserBadge

	ListErr   error
	InsertErr error
	RemoveErr error

	InsertCalls int
	RemoveCalls []string
}

// NewBadgeStore creates an empty mock BadgeStore
func NewBadgeStore() *BadgeStore {
	return &BadgeStore{badges: make(map[string][]service.UserBadge)}
}

// WithBadge seeds an unlocked badge
func (m *BadgeStore) WithBadge(userID string, b service.UserBadge) *BadgeStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.badges[userID] = append(m.badges[userID], b)
	return m
}

func (m *BadgeStore) ListBadges(ctx context.Context, userID string) ([]service.UserBadge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return append([]service.UserBadge(nil), m.badges[userID]...), nil
}

func (m *BadgeStore) InsertBadge(ctx context.Context, userID string, b service.UserBadge) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InsertCalls++

	if m.InsertErr != nil {
		return false, m.InsertErr
	}
	for _, existing := range m.badges[userID] {
		if existing.BadgeID == b.BadgeID {
			return false, nil
		}
	}
	m.badges[userID] = append(m.badges[userID], b)
	return true, nil
}

func (m *BadgeStore) RemoveBadge(ctx context.Context, userID, badgeID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RemoveCalls = append(m.RemoveCalls, badgeID)

	if m.RemoveErr != nil {
		return m.RemoveErr
	}
	kept := m.badges[userID][:0]
	for _, b := range m.badges[userID] {
		if b.BadgeID != badgeID {
			kept = append(kept, b)
		}
	}
	m.badges[userID] = kept
	return nil
}

// EntitlementGranter is a mock implementation of service.EntitlementGranter for testing
type EntitlementGranter struct {
	mu sync.Mutex

	Err    error
	Grants []GrantCall
}

// GrantCall tracks parameters for GrantEntitlement calls
type GrantCall struct {
	UserID   string
	ItemID   string
	Quantity int
}

func (m *EntitlementGranter) GrantEntitlement(ctx context.Context, userID, itemID string, quantity int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Grants = append(m.Grants, GrantCall{UserID: userID, ItemID: itemID, Quantity: quantity})
	return m.Err
}
