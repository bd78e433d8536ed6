package models

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	kwikpik "github.com/kwikpik/kwikpik-go"
)

// Business is a sandbox account. Only the digest of its API key is stored.
type Business struct {
	ID          string
	Name        string
	Email       string
	PhoneNumber string
	APIKeyHash  string
	IsVerified  bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HashAPIKey returns the digest stored in Business.APIKeyHash.
func HashAPIKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return hex.EncodeToString(sum[:])
}

func (b Business) Account() kwikpik.Account {
	return kwikpik.Account{
		ID:          b.ID,
		Name:        b.Name,
		Email:       b.Email,
		PhoneNumber: b.PhoneNumber,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
		IsVerified:  b.IsVerified,
	}
}

// Wallet holds a business's funds. BookBalance is the sum of pending payments.
type Wallet struct {
	ID          string
	BusinessID  string
	Balance     float64
	BookBalance float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Available is what a new payment may draw on.
func (w Wallet) Available() float64 {
	return w.Balance - w.BookBalance
}

func (w Wallet) AccountWallet() kwikpik.AccountWallet {
	return kwikpik.AccountWallet{
		ID:          w.ID,
		UserID:      w.BusinessID,
		Balance:     w.Balance,
		BookBalance: w.BookBalance,
		CreatedAt:   w.CreatedAt,
		UpdatedAt:   w.UpdatedAt,
	}
}

// Request is a stored dispatch request.
type Request struct {
	ID         string
	BusinessID string
	Status     kwikpik.RequestStatus
	RiderID    *string
	InTransit  bool
	Amount     float64
	Paid       bool
	Message    kwikpik.RequestMessage
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Clone returns a copy of r that shares no pointers with it.
func (r Request) Clone() Request {
	r.RiderID = clonePtr(r.RiderID)
	r.Message.PackageDetails.Weight = clonePtr(r.Message.PackageDetails.Weight)
	r.Message.PackageDetails.Value = clonePtr(r.Message.PackageDetails.Value)
	return r
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func (r Request) Single() kwikpik.SingleRequestResponse {
	return kwikpik.SingleRequestResponse{
		RequestMessage: r.Message,
		ID:             r.ID,
		Status:         r.Status,
		RiderID:        r.RiderID,
		IsInTransit:    r.InTransit,
		Amount:         r.Amount,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func (r Request) Listed() kwikpik.AccountRequest {
	return kwikpik.AccountRequest{
		RequestMessage: r.Message,
		ID:             r.ID,
		Status:         r.Status,
		RiderID:        r.RiderID,
		InTransit:      r.InTransit,
		CreatedAt:      r.CreatedAt,
	}
}

// Payment records the intent to pay for one request. It stays PENDING until
// the delivery completes.
type Payment struct {
	ID        string
	WalletID  string
	RequestID string
	Amount    float64
	Status    kwikpik.PaymentStatus
	Kind      kwikpik.PaymentKind
	PromoCode string
	CreatedAt time.Time
}

func (p Payment) Wire() kwikpik.Payment {
	return kwikpik.Payment{
		ID:        p.ID,
		Amount:    p.Amount,
		WalletID:  p.WalletID,
		RequestID: p.RequestID,
		Status:    p.Status,
		Kind:      p.Kind,
	}
}
