package store

import (
	"context"
	"errors"
	"time"

	"github.com/kwikpik/kwikpik-go/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("already exists")
)

// Store persists sandbox state. Callback-style methods run the callback with
// the affected rows locked and persist whatever it left in them; an error
// from the callback aborts without writing anything.
type Store interface {
	CreateBusiness(ctx context.Context, b models.Business, w models.Wallet) error
	BusinessByKeyHash(ctx context.Context, hash string) (*models.Business, error)
	BusinessByID(ctx context.Context, id string) (*models.Business, error)
	WalletByBusiness(ctx context.Context, businessID string) (*models.Wallet, error)

	InsertRequests(ctx context.Context, rs []models.Request) error
	GetRequest(ctx context.Context, id string) (*models.Request, error)
	// ListRequests returns a business's requests, newest first.
	ListRequests(ctx context.Context, businessID string, limit, offset int) ([]models.Request, error)
	// UpdateRequests applies fn to every request in ids as one unit.
	UpdateRequests(ctx context.Context, ids []string, fn func(*models.Request) error) ([]models.Request, error)

	// Pay locks the business wallet and the request, lets fn check them and
	// build the payment, then stores the payment along with fn's changes to
	// the wallet's book balance and the request's paid flag.
	Pay(ctx context.Context, businessID, requestID string, fn func(*models.Wallet, *models.Request) (*models.Payment, error)) (*models.Payment, error)

	// DispatchConfirmed puts every confirmed request that is not yet moving
	// in transit with the rider chosen by assign.
	DispatchConfirmed(ctx context.Context, assign func(models.Request) string, now time.Time) ([]models.Request, error)
	// CompleteInTransit delivers every in-transit request, settles its
	// payment and debits the owning wallet.
	CompleteInTransit(ctx context.Context, now time.Time) ([]models.Request, error)

	Close()
}

func dedupe(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
