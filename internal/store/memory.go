package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	kwikpik "github.com/kwikpik/kwikpik-go"
	"github.com/kwikpik/kwikpik-go/internal/models"
)

// Memory is a Store held in process memory. A single mutex serializes every
// operation, which gives the callback methods the same all-or-nothing
// behaviour as the Postgres transactions.
type Memory struct {
	mu         sync.Mutex
	businesses map[string]models.Business // by id
	keys       map[string]string          // api key hash -> business id
	wallets    map[string]models.Wallet   // by business id
	requests   map[string]models.Request
	payments   map[string]models.Payment // by request id
}

var _ Store = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		businesses: make(map[string]models.Business),
		keys:       make(map[string]string),
		wallets:    make(map[string]models.Wallet),
		requests:   make(map[string]models.Request),
		payments:   make(map[string]models.Payment),
	}
}

func (m *Memory) Close() {}

func (m *Memory) CreateBusiness(_ context.Context, b models.Business, w models.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.businesses[b.ID]; ok {
		return fmt.Errorf("business %s: %w", b.ID, ErrDuplicate)
	}
	if _, ok := m.keys[b.APIKeyHash]; ok {
		return fmt.Errorf("api key: %w", ErrDuplicate)
	}
	b.UpdatedAt = b.CreatedAt
	w.BusinessID = b.ID
	w.UpdatedAt = w.CreatedAt
	m.businesses[b.ID] = b
	m.keys[b.APIKeyHash] = b.ID
	m.wallets[b.ID] = w
	return nil
}

func (m *Memory) BusinessByKeyHash(_ context.Context, hash string) (*models.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id, ok := m.keys[hash]
	if !ok {
		return nil, ErrNotFound
	}
	b := m.businesses[id]
	return &b, nil
}

func (m *Memory) BusinessByID(_ context.Context, id string) (*models.Business, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.businesses[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &b, nil
}

func (m *Memory) WalletByBusiness(_ context.Context, businessID string) (*models.Wallet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.wallets[businessID]
	if !ok {
		return nil, ErrNotFound
	}
	return &w, nil
}

func (m *Memory) InsertRequests(_ context.Context, rs []models.Request) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, r := range rs {
		if _, ok := m.requests[r.ID]; ok {
			return fmt.Errorf("request %s: %w", r.ID, ErrDuplicate)
		}
	}
	for _, r := range rs {
		m.requests[r.ID] = r.Clone()
	}
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id string) (*models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.requests[id]
	if !ok {
		return nil, ErrNotFound
	}
	r = r.Clone()
	return &r, nil
}

func (m *Memory) ListRequests(_ context.Context, businessID string, limit, offset int) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var owned []models.Request
	for _, r := range m.requests {
		if r.BusinessID == businessID {
			owned = append(owned, r.Clone())
		}
	}
	sort.Slice(owned, func(i, j int) bool {
		if !owned[i].CreatedAt.Equal(owned[j].CreatedAt) {
			return owned[i].CreatedAt.After(owned[j].CreatedAt)
		}
		return owned[i].ID > owned[j].ID
	})

	if offset >= len(owned) {
		return []models.Request{}, nil
	}
	end := min(offset+limit, len(owned))
	return owned[offset:end], nil
}

func (m *Memory) UpdateRequests(_ context.Context, ids []string, fn func(*models.Request) error) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids = dedupe(ids)
	out := make([]models.Request, 0, len(ids))
	for _, id := range ids {
		r, ok := m.requests[id]
		if !ok {
			return nil, fmt.Errorf("request %s: %w", id, ErrNotFound)
		}
		r = r.Clone()
		if err := fn(&r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	for _, r := range out {
		m.requests[r.ID] = r.Clone()
	}
	return out, nil
}

func (m *Memory) Pay(_ context.Context, businessID, requestID string, fn func(*models.Wallet, *models.Request) (*models.Payment, error)) (*models.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	w, ok := m.wallets[businessID]
	if !ok {
		return nil, fmt.Errorf("wallet: %w", ErrNotFound)
	}
	r, ok := m.requests[requestID]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", requestID, ErrNotFound)
	}
	r = r.Clone()

	p, err := fn(&w, &r)
	if err != nil {
		return nil, err
	}
	if _, ok := m.payments[p.RequestID]; ok {
		return nil, fmt.Errorf("payment for %s: %w", p.RequestID, ErrDuplicate)
	}

	m.wallets[businessID] = w
	m.requests[requestID] = r
	m.payments[p.RequestID] = *p
	return p, nil
}

func (m *Memory) DispatchConfirmed(_ context.Context, assign func(models.Request) string, now time.Time) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Request
	for _, r := range m.pendingLocked(false) {
		rider := assign(r)
		r.RiderID = &rider
		r.InTransit = true
		r.UpdatedAt = now
		m.requests[r.ID] = r
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *Memory) CompleteInTransit(_ context.Context, now time.Time) ([]models.Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []models.Request
	for _, r := range m.pendingLocked(true) {
		if p, ok := m.payments[r.ID]; ok && p.Status == kwikpik.PaymentPending {
			p.Status = kwikpik.PaymentPaid
			m.payments[r.ID] = p

			w := m.wallets[r.BusinessID]
			w.Balance -= p.Amount
			w.BookBalance -= p.Amount
			w.UpdatedAt = now
			m.wallets[r.BusinessID] = w
		}
		r.Status = kwikpik.StatusDelivered
		r.InTransit = false
		r.UpdatedAt = now
		m.requests[r.ID] = r
		out = append(out, r.Clone())
	}
	return out, nil
}

// PaymentFor returns the payment recorded against a request.
func (m *Memory) PaymentFor(requestID string) (models.Payment, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.payments[requestID]
	return p, ok
}

// pendingLocked lists confirmed requests with the given transit flag, oldest
// first. Callers hold m.mu.
func (m *Memory) pendingLocked(inTransit bool) []models.Request {
	var out []models.Request
	for _, r := range m.requests {
		if r.Status == kwikpik.StatusConfirmed && r.InTransit == inTransit {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}
