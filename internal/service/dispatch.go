package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	kwikpik "github.com/kwikpik/kwikpik-go"
	"github.com/kwikpik/kwikpik-go/internal/domain"
	"github.com/kwikpik/kwikpik-go/internal/events"
	"github.com/kwikpik/kwikpik-go/internal/models"
	"github.com/kwikpik/kwikpik-go/internal/schema"
	"github.com/kwikpik/kwikpik-go/internal/store"
)

var (
	ErrUnauthorized      = errors.New("invalid api key")
	ErrRequestNotFound   = errors.New("request not found")
	ErrNotOwner          = errors.New("request belongs to another account")
	ErrNotEditable       = errors.New("request can no longer be changed")
	ErrAlreadyConfirmed  = errors.New("request already confirmed")
	ErrAlreadyPaid       = errors.New("request already paid for")
	ErrNotPaid           = errors.New("request has not been paid for")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrAmountMismatch    = errors.New("amount does not match the request amount")
	ErrNoRequests        = errors.New("no requests given")
)

// ValidationError lists every schema violation of a rejected payload.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return strings.Join(e.Messages, "; ")
}

const (
	PageSize       = 20
	tokenLifetime  = 24 * time.Hour
	defaultDesc    = "no description"
	messageConfirm = "request broadcast to riders"
)

type DispatchService struct {
	store  store.Store
	events events.Publisher
	logger *slog.Logger
	secret []byte
	now    func() time.Time
	newID  func() string
}

type Option func(*DispatchService)

func WithClock(now func() time.Time) Option {
	return func(s *DispatchService) { s.now = now }
}

func WithIDs(newID func() string) Option {
	return func(s *DispatchService) { s.newID = newID }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *DispatchService) { s.logger = l }
}

func NewDispatchService(st store.Store, pub events.Publisher, jwtSecret string, opts ...Option) *DispatchService {
	s := &DispatchService{
		store:  st,
		events: pub,
		logger: slog.Default(),
		secret: []byte(jwtSecret),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.events == nil {
		s.events = events.Nop{}
	}
	return s
}

// Provision creates a business owning apiKey with a funded wallet, unless the
// key is already taken. Either way it returns the key's business.
func (s *DispatchService) Provision(ctx context.Context, name, email, apiKey string, balance float64) (*models.Business, error) {
	hash := models.HashAPIKey(apiKey)
	if b, err := s.store.BusinessByKeyHash(ctx, hash); err == nil {
		return b, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := s.now()
	b := models.Business{
		ID:         s.newID(),
		Name:       name,
		Email:      email,
		APIKeyHash: hash,
		IsVerified: true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	w := models.Wallet{ID: s.newID(), BusinessID: b.ID, Balance: balance, CreatedAt: now, UpdatedAt: now}
	if err := s.store.CreateBusiness(ctx, b, w); err != nil {
		return nil, fmt.Errorf("provision business: %w", err)
	}
	return &b, nil
}

// Authenticate resolves an API key to its business.
func (s *DispatchService) Authenticate(ctx context.Context, apiKey string) (*models.Business, error) {
	b, err := s.store.BusinessByKeyHash(ctx, models.HashAPIKey(apiKey))
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	return b, err
}

// Account returns the wire account with a freshly signed session token.
func (s *DispatchService) Account(b *models.Business) (kwikpik.Account, error) {
	now := s.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   b.ID,
		Issuer:    "kwikpik-sandbox",
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(tokenLifetime)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return kwikpik.Account{}, fmt.Errorf("sign token: %w", err)
	}

	account := b.Account()
	account.Token = signed
	return account, nil
}

// AuthenticateToken resolves a session token issued by Account.
func (s *DispatchService) AuthenticateToken(ctx context.Context, raw string) (*models.Business, error) {
	id, err := s.VerifyToken(raw)
	if err != nil {
		return nil, err
	}
	b, err := s.store.BusinessByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrUnauthorized
	}
	return b, err
}

// VerifyToken returns the business id a session token was issued to.
func (s *DispatchService) VerifyToken(raw string) (string, error) {
	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}
	return claims.Subject, nil
}

func (s *DispatchService) Wallet(ctx context.Context, b *models.Business) (kwikpik.AccountWallet, error) {
	w, err := s.store.WalletByBusiness(ctx, b.ID)
	if err != nil {
		return kwikpik.AccountWallet{}, err
	}
	return w.AccountWallet(), nil
}

// Initialize validates, prices and stores new requests. Nothing is stored
// unless every request is valid.
func (s *DispatchService) Initialize(ctx context.Context, b *models.Business, rs []kwikpik.DispatchRequest) ([]kwikpik.InitRequestResponse, error) {
	if len(rs) == 0 {
		return nil, ErrNoRequests
	}

	now := s.now()
	records := make([]models.Request, 0, len(rs))
	for _, r := range rs {
		if err := validate(schema.DispatchRequest, r); err != nil {
			return nil, err
		}
		msg := messageOf(b.ID, r)
		amount, err := price(msg)
		if err != nil {
			return nil, err
		}
		records = append(records, models.Request{
			ID:         s.newID(),
			BusinessID: b.ID,
			Status:     kwikpik.StatusInitialized,
			Amount:     amount,
			Message:    msg,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}

	if err := s.store.InsertRequests(ctx, records); err != nil {
		return nil, fmt.Errorf("insert requests: %w", err)
	}

	out := make([]kwikpik.InitRequestResponse, len(records))
	for i, r := range records {
		amount := r.Amount
		out[i] = kwikpik.InitRequestResponse{ID: r.ID, Data: r.Message, Type: string(r.Status), Amount: &amount}
		s.publish(ctx, events.RequestInitialized, r, amount)
	}
	return out, nil
}

// Confirm broadcasts paid-for requests. The batch fails as a whole if any
// request cannot be confirmed.
func (s *DispatchService) Confirm(ctx context.Context, b *models.Business, ids []string) ([]kwikpik.ConfirmRequestResponse, error) {
	if len(ids) == 0 {
		return nil, ErrNoRequests
	}
	now := s.now()
	confirmed, err := s.store.UpdateRequests(ctx, ids, func(r *models.Request) error {
		if r.BusinessID != b.ID {
			return ErrNotOwner
		}
		switch {
		case r.Status == kwikpik.StatusConfirmed:
			return ErrAlreadyConfirmed
		case r.Status != kwikpik.StatusInitialized:
			return ErrNotEditable
		case !r.Paid:
			return ErrNotPaid
		}
		r.Status = kwikpik.StatusConfirmed
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return nil, mapStoreErr(err)
	}

	out := make([]kwikpik.ConfirmRequestResponse, len(confirmed))
	for i, r := range confirmed {
		out[i] = kwikpik.ConfirmRequestResponse{ID: r.ID, Data: messageConfirm, Type: string(r.Status)}
		s.publish(ctx, events.RequestConfirmed, r, nil)
	}
	return out, nil
}

func (s *DispatchService) Get(ctx context.Context, b *models.Business, id string) (kwikpik.SingleRequestResponse, error) {
	r, err := s.store.GetRequest(ctx, id)
	if err != nil {
		return kwikpik.SingleRequestResponse{}, mapStoreErr(err)
	}
	if r.BusinessID != b.ID {
		return kwikpik.SingleRequestResponse{}, ErrNotOwner
	}
	return r.Single(), nil
}

// List returns one page of the business's requests, newest first. Pages
// below 1 read as 1.
func (s *DispatchService) List(ctx context.Context, b *models.Business, page int) ([]kwikpik.AccountRequest, error) {
	page = max(page, 1)
	rs, err := s.store.ListRequests(ctx, b.ID, PageSize, (page-1)*PageSize)
	if err != nil {
		return nil, err
	}
	out := make([]kwikpik.AccountRequest, len(rs))
	for i, r := range rs {
		out[i] = r.Listed()
	}
	return out, nil
}

// Update applies the set fields of upd to an unpaid, unconfirmed request and
// reprices it.
func (s *DispatchService) Update(ctx context.Context, b *models.Business, id string, upd kwikpik.RequestUpdate) (kwikpik.UpdateRequestResponse, error) {
	if err := validate(schema.RequestUpdate, upd); err != nil {
		return kwikpik.UpdateRequestResponse{}, err
	}

	now := s.now()
	updated, err := s.store.UpdateRequests(ctx, []string{id}, func(r *models.Request) error {
		if err := editable(b, r); err != nil {
			return err
		}
		apply(&r.Message, upd)
		amount, err := price(r.Message)
		if err != nil {
			return err
		}
		r.Amount = amount
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return kwikpik.UpdateRequestResponse{}, mapStoreErr(err)
	}

	s.publish(ctx, events.RequestUpdated, updated[0], upd)
	return kwikpik.UpdateRequestResponse{
		ID:   id,
		Type: "UPDATED_RIDE_REQUEST",
		Data: kwikpik.UpdatedRequest{RequestID: id, RequestUpdate: upd},
	}, nil
}

// Delete cancels an unpaid, unconfirmed request.
func (s *DispatchService) Delete(ctx context.Context, b *models.Business, id string) (kwikpik.DeleteRequestResponse, error) {
	now := s.now()
	cancelled, err := s.store.UpdateRequests(ctx, []string{id}, func(r *models.Request) error {
		if err := editable(b, r); err != nil {
			return err
		}
		r.Status = kwikpik.StatusCancelled
		r.UpdatedAt = now
		return nil
	})
	if err != nil {
		return kwikpik.DeleteRequestResponse{}, mapStoreErr(err)
	}

	s.publish(ctx, events.RequestCancelled, cancelled[0], nil)
	resp := kwikpik.DeleteRequestResponse{ID: id, Type: string(kwikpik.StatusCancelled)}
	resp.Data.RequestMessageID = id
	return resp, nil
}

// Pay reserves the request's amount on the wallet. The wallet is debited
// when the delivery completes.
func (s *DispatchService) Pay(ctx context.Context, b *models.Business, in kwikpik.PaymentInput) (kwikpik.Payment, error) {
	now := s.now()
	p, err := s.store.Pay(ctx, b.ID, in.RequestID, func(w *models.Wallet, r *models.Request) (*models.Payment, error) {
		if r.BusinessID != b.ID {
			return nil, ErrNotOwner
		}
		if r.Paid {
			return nil, ErrAlreadyPaid
		}
		if r.Status != kwikpik.StatusInitialized {
			return nil, ErrNotEditable
		}
		if w.Balance <= w.BookBalance || w.Available() < r.Amount {
			return nil, ErrInsufficientFunds
		}
		if !sameAmount(in.Amount, r.Amount) {
			return nil, fmt.Errorf("%w: expected %.2f, got %.2f", ErrAmountMismatch, r.Amount, in.Amount)
		}

		w.BookBalance += r.Amount
		w.UpdatedAt = now
		r.Paid = true
		r.UpdatedAt = now
		return &models.Payment{
			ID:        s.newID(),
			WalletID:  w.ID,
			RequestID: r.ID,
			Amount:    r.Amount,
			Status:    kwikpik.PaymentPending,
			Kind:      kwikpik.PaymentFiat,
			PromoCode: in.PromoCode,
			CreatedAt: now,
		}, nil
	})
	if err != nil {
		return kwikpik.Payment{}, mapStoreErr(err)
	}

	s.emit(ctx, events.Event{
		Type: events.PaymentCreated, BusinessID: b.ID, RequestID: p.RequestID, At: now, Data: p.Wire(),
	})
	return p.Wire(), nil
}

// AdvanceDeliveries moves the delivery simulation one step: requests already
// in transit are delivered, then newly confirmed ones are given a rider.
func (s *DispatchService) AdvanceDeliveries(ctx context.Context) (dispatched, delivered int, err error) {
	now := s.now()

	done, err := s.store.CompleteInTransit(ctx, now)
	for _, r := range done {
		s.publish(ctx, events.RequestDelivered, r, nil)
	}
	if err != nil {
		return 0, len(done), fmt.Errorf("complete deliveries: %w", err)
	}

	moving, err := s.store.DispatchConfirmed(ctx, func(models.Request) string {
		return "rider-" + s.newID()
	}, now)
	if err != nil {
		return 0, len(done), fmt.Errorf("dispatch riders: %w", err)
	}
	for _, r := range moving {
		s.publish(ctx, events.RequestDispatched, r, map[string]any{"riderId": r.RiderID})
	}

	if len(done) > 0 || len(moving) > 0 {
		s.logger.Info("deliveries advanced", "dispatched", len(moving), "delivered", len(done))
	}
	return len(moving), len(done), nil
}

func (s *DispatchService) publish(ctx context.Context, typ string, r models.Request, data any) {
	s.emit(ctx, events.Event{
		Type:       typ,
		BusinessID: r.BusinessID,
		RequestID:  r.ID,
		At:         r.UpdatedAt,
		Data:       data,
	})
}

// emit never fails the operation that raised the event.
func (s *DispatchService) emit(ctx context.Context, e events.Event) {
	if err := s.events.Publish(ctx, e); err != nil {
		s.logger.Warn("event publish failed", "type", e.Type, "request_id", e.RequestID, "error", err)
	}
}

func editable(b *models.Business, r *models.Request) error {
	switch {
	case r.BusinessID != b.ID:
		return ErrNotOwner
	case r.Status != kwikpik.StatusInitialized:
		return ErrNotEditable
	case r.Paid:
		return ErrAlreadyPaid
	}
	return nil
}

func validate(sc *schema.Schema, v any) error {
	msgs, err := sc.ValidateValue(v)
	if err != nil {
		return err
	}
	if len(msgs) > 0 {
		return &ValidationError{Messages: msgs}
	}
	return nil
}

func messageOf(businessID string, r kwikpik.DispatchRequest) kwikpik.RequestMessage {
	quantity := r.Quantity
	if quantity == 0 {
		quantity = 1
	}
	description := r.Description
	if description == "" {
		description = defaultDesc
	}
	return kwikpik.RequestMessage{
		Location: kwikpik.Coordinates{Latitude: r.Latitude, Longitude: r.Longitude},
		UserID:   businessID,
		PackageDetails: kwikpik.PackageDetails{
			Category:    r.Category,
			Product:     r.Product,
			Description: description,
			Weight:      copyFloat(r.Weight),
			Quantity:    quantity,
			Image:       r.Image,
			Value:       copyFloat(r.PackageValue),
		},
		SelectedVehicleType:  r.VehicleType,
		UserType:             kwikpik.UserBusiness,
		Destination:          kwikpik.Coordinates{Latitude: r.DestinationLatitude, Longitude: r.DestinationLongitude},
		RecipientPhoneNumber: r.RecipientPhoneNumber,
		RecipientName:        r.RecipientName,
		PhoneNumber:          r.PhoneNumber,
		SenderName:           r.SenderName,
	}
}

func apply(m *kwikpik.RequestMessage, upd kwikpik.RequestUpdate) {
	if upd.Location != nil {
		m.Location = *upd.Location
	}
	if upd.PackageDetails != nil {
		m.PackageDetails = *upd.PackageDetails
		m.PackageDetails.Weight = copyFloat(upd.PackageDetails.Weight)
		m.PackageDetails.Value = copyFloat(upd.PackageDetails.Value)
	}
	if upd.SelectedVehicleType != nil {
		m.SelectedVehicleType = *upd.SelectedVehicleType
	}
	if upd.Destination != nil {
		m.Destination = *upd.Destination
	}
	if upd.RecipientName != nil {
		m.RecipientName = *upd.RecipientName
	}
	if upd.RecipientPhoneNumber != nil {
		m.RecipientPhoneNumber = *upd.RecipientPhoneNumber
	}
	if upd.PhoneNumber != nil {
		m.PhoneNumber = *upd.PhoneNumber
	}
	if upd.SenderName != nil {
		m.SenderName = *upd.SenderName
	}
}

// price quotes a message's fare. Every vehicle that passes validation must
// have a fare.
func price(m kwikpik.RequestMessage) (float64, error) {
	amount, ok := domain.Quote(m.SelectedVehicleType, m.Location, m.Destination)
	if !ok {
		return 0, fmt.Errorf("no fare for vehicle type %q", m.SelectedVehicleType)
	}
	return amount, nil
}

// copyFloat keeps stored messages from sharing pointers with the caller.
func copyFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

func sameAmount(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}

func mapStoreErr(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrRequestNotFound
	}
	return err
}
