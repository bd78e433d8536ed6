package store

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	kwikpik "github.com/kwikpik/kwikpik-go"
	"github.com/kwikpik/kwikpik-go/internal/models"
)

//go:embed schema.sql
var schemaSQL string

const requestColumns = "id, business_id, status, rider_id, in_transit, amount, paid, message, created_at, updated_at"

// Postgres is the Store backed by a pgx connection pool.
type Postgres struct {
	Db *pgxpool.Pool
}

var _ Store = (*Postgres)(nil)

func NewPostgres(ctx context.Context, connString string) (*Postgres, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return &Postgres{Db: pool}, nil
}

func (s *Postgres) Close() {
	s.Db.Close()
}

// Migrate creates the sandbox tables when they do not exist.
func (s *Postgres) Migrate(ctx context.Context) error {
	if _, err := s.Db.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (s *Postgres) CreateBusiness(ctx context.Context, b models.Business, w models.Wallet) error {
	return pgx.BeginFunc(ctx, s.Db, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx,
			`INSERT INTO businesses (id, name, email, phone_number, api_key_hash, is_verified, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $7)`,
			b.ID, b.Name, b.Email, b.PhoneNumber, b.APIKeyHash, b.IsVerified, b.CreatedAt,
		)
		if err != nil {
			return mapWriteErr(err)
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO wallets (id, business_id, balance, book_balance, created_at, updated_at)
			 VALUES ($1, $2, $3, $4, $5, $5)`,
			w.ID, b.ID, w.Balance, w.BookBalance, w.CreatedAt,
		)
		return mapWriteErr(err)
	})
}

// SeedBusinesses bulk-loads businesses and their wallets with COPY.
func (s *Postgres) SeedBusinesses(ctx context.Context, bs []models.Business, ws []models.Wallet) (int64, error) {
	var copied int64
	err := pgx.BeginFunc(ctx, s.Db, func(tx pgx.Tx) error {
		n, err := tx.CopyFrom(ctx,
			pgx.Identifier{"businesses"},
			[]string{"id", "name", "email", "phone_number", "api_key_hash", "is_verified", "created_at", "updated_at"},
			pgx.CopyFromSlice(len(bs), func(i int) ([]any, error) {
				b := bs[i]
				return []any{b.ID, b.Name, b.Email, b.PhoneNumber, b.APIKeyHash, b.IsVerified, b.CreatedAt, b.CreatedAt}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy businesses: %w", err)
		}
		copied = n

		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"wallets"},
			[]string{"id", "business_id", "balance", "book_balance", "created_at", "updated_at"},
			pgx.CopyFromSlice(len(ws), func(i int) ([]any, error) {
				w := ws[i]
				return []any{w.ID, w.BusinessID, w.Balance, w.BookBalance, w.CreatedAt, w.CreatedAt}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copy wallets: %w", err)
		}
		return nil
	})
	return copied, err
}

const businessColumns = "id, name, email, phone_number, api_key_hash, is_verified, created_at, updated_at"

func (s *Postgres) BusinessByKeyHash(ctx context.Context, hash string) (*models.Business, error) {
	return s.businessWhere(ctx, "api_key_hash", hash)
}

func (s *Postgres) BusinessByID(ctx context.Context, id string) (*models.Business, error) {
	return s.businessWhere(ctx, "id", id)
}

// businessWhere looks a business up by one unique column.
func (s *Postgres) businessWhere(ctx context.Context, column, value string) (*models.Business, error) {
	var b models.Business
	err := s.Db.QueryRow(ctx,
		"SELECT "+businessColumns+" FROM businesses WHERE "+column+" = $1", value,
	).Scan(&b.ID, &b.Name, &b.Email, &b.PhoneNumber, &b.APIKeyHash, &b.IsVerified, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, mapReadErr(err)
	}
	return &b, nil
}

func (s *Postgres) WalletByBusiness(ctx context.Context, businessID string) (*models.Wallet, error) {
	w, err := scanWallet(s.Db.QueryRow(ctx,
		"SELECT id, business_id, balance, book_balance, created_at, updated_at FROM wallets WHERE business_id = $1",
		businessID,
	))
	if err != nil {
		return nil, mapReadErr(err)
	}
	return w, nil
}

func (s *Postgres) InsertRequests(ctx context.Context, rs []models.Request) error {
	batch := &pgx.Batch{}
	for _, r := range rs {
		batch.Queue(
			"INSERT INTO requests ("+requestColumns+") VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)",
			r.ID, r.BusinessID, r.Status, r.RiderID, r.InTransit, r.Amount, r.Paid, r.Message, r.CreatedAt, r.UpdatedAt,
		)
	}
	return pgx.BeginFunc(ctx, s.Db, func(tx pgx.Tx) error {
		return mapWriteErr(tx.SendBatch(ctx, batch).Close())
	})
}

func (s *Postgres) GetRequest(ctx context.Context, id string) (*models.Request, error) {
	r, err := scanRequest(s.Db.QueryRow(ctx, "SELECT "+requestColumns+" FROM requests WHERE id = $1", id))
	if err != nil {
		return nil, mapReadErr(err)
	}
	return r, nil
}

func (s *Postgres) ListRequests(ctx context.Context, businessID string, limit, offset int) ([]models.Request, error) {
	rows, err := s.Db.Query(ctx,
		"SELECT "+requestColumns+" FROM requests WHERE business_id = $1 ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3",
		businessID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	return collectRequests(rows)
}

func (s *Postgres) UpdateRequests(ctx context.Context, ids []string, fn func(*models.Request) error) ([]models.Request, error) {
	ids = dedupe(ids)
	var out []models.Request
	err := pgx.BeginFunc(ctx, s.Db, func(tx pgx.Tx) error {
		// Lock in id order so concurrent batches cannot deadlock.
		rows, err := tx.Query(ctx,
			"SELECT "+requestColumns+" FROM requests WHERE id = ANY($1) ORDER BY id FOR UPDATE", ids)
		if err != nil {
			return fmt.Errorf("lock acquisition failed: %w", err)
		}
		locked, err := collectRequests(rows)
		if err != nil {
			return err
		}

		byID := make(map[string]*models.Request, len(locked))
		for i := range locked {
			byID[locked[i].ID] = &locked[i]
		}

		out = make([]models.Request, 0, len(ids))
		for _, id := range ids {
			r, ok := byID[id]
			if !ok {
				return fmt.Errorf("request %s: %w", id, ErrNotFound)
			}
			if err := fn(r); err != nil {
				return err
			}
			if err := saveRequest(ctx, tx, r); err != nil {
				return err
			}
			out = append(out, *r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Postgres) Pay(ctx context.Context, businessID, requestID string, fn func(*models.Wallet, *models.Request) (*models.Payment, error)) (*models.Payment, error) {
	var payment *models.Payment
	err := pgx.BeginFunc(ctx, s.Db, func(tx pgx.Tx) error {
		// Wallet before request, the same order CompleteInTransit uses.
		w, err := scanWallet(tx.QueryRow(ctx,
			"SELECT id, business_id, balance, book_balance, created_at, updated_at FROM wallets WHERE business_id = $1 FOR UPDATE",
			businessID,
		))
		if err != nil {
			return fmt.Errorf("wallet: %w", mapReadErr(err))
		}
		r, err := scanRequest(tx.QueryRow(ctx, "SELECT "+requestColumns+" FROM requests WHERE id = $1 FOR UPDATE", requestID))
		if err != nil {
			return fmt.Errorf("request %s: %w", requestID, mapReadErr(err))
		}

		p, err := fn(w, r)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			"UPDATE wallets SET book_balance = $1, updated_at = $2 WHERE id = $3",
			w.BookBalance, w.UpdatedAt, w.ID,
		); err != nil {
			return fmt.Errorf("wallet update failed: %w", err)
		}
		if err := saveRequest(ctx, tx, r); err != nil {
			return err
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO payments (id, wallet_id, request_id, amount, status, kind, promo_code, created_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			p.ID, p.WalletID, p.RequestID, p.Amount, p.Status, p.Kind, p.PromoCode, p.CreatedAt,
		); err != nil {
			return fmt.Errorf("payment insert failed: %w", mapWriteErr(err))
		}
		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *Postgres) DispatchConfirmed(ctx context.Context, assign func(models.Request) string, now time.Time) ([]models.Request, error) {
	var out []models.Request
	err := pgx.BeginFunc(ctx, s.Db, func(tx pgx.Tx) error {
		rows, err := tx.Query(ctx,
			"SELECT "+requestColumns+" FROM requests WHERE status = $1 AND NOT in_transit ORDER BY created_at FOR UPDATE SKIP LOCKED",
			kwikpik.StatusConfirmed,
		)
		if err != nil {
			return err
		}
		pending, err := collectRequests(rows)
		if err != nil {
			return err
		}
		for i := range pending {
			r := &pending[i]
			rider := assign(*r)
			r.RiderID = &rider
			r.InTransit = true
			r.UpdatedAt = now
			if err := saveRequest(ctx, tx, r); err != nil {
				return err
			}
		}
		out = pending
		return nil
	})
	return out, err
}

func (s *Postgres) CompleteInTransit(ctx context.Context, now time.Time) ([]models.Request, error) {
	rows, err := s.Db.Query(ctx,
		"SELECT id, business_id FROM requests WHERE status = $1 AND in_transit ORDER BY created_at",
		kwikpik.StatusConfirmed,
	)
	if err != nil {
		return nil, err
	}
	type ref struct{ id, businessID string }
	refs, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (ref, error) {
		var r ref
		err := row.Scan(&r.id, &r.businessID)
		return r, err
	})
	if err != nil {
		return nil, err
	}

	var delivered []models.Request
	for _, ref := range refs {
		r, err := s.completeOne(ctx, ref.id, ref.businessID, now)
		if err != nil {
			return delivered, err
		}
		if r != nil {
			delivered = append(delivered, *r)
		}
	}
	return delivered, nil
}

// completeOne settles a single delivery. It returns nil when the request
// moved on since it was listed.
func (s *Postgres) completeOne(ctx context.Context, id, businessID string, now time.Time) (*models.Request, error) {
	var done *models.Request
	err := pgx.BeginFunc(ctx, s.Db, func(tx pgx.Tx) error {
		var walletID string
		if err := tx.QueryRow(ctx,
			"SELECT id FROM wallets WHERE business_id = $1 FOR UPDATE", businessID,
		).Scan(&walletID); err != nil {
			return fmt.Errorf("wallet: %w", mapReadErr(err))
		}
		r, err := scanRequest(tx.QueryRow(ctx, "SELECT "+requestColumns+" FROM requests WHERE id = $1 FOR UPDATE", id))
		if err != nil {
			return mapReadErr(err)
		}
		if r.Status != kwikpik.StatusConfirmed || !r.InTransit {
			return nil
		}

		var amount float64
		err = tx.QueryRow(ctx,
			"UPDATE payments SET status = $1 WHERE request_id = $2 AND status = $3 RETURNING amount",
			kwikpik.PaymentPaid, id, kwikpik.PaymentPending,
		).Scan(&amount)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			// nothing pending to settle
		case err != nil:
			return fmt.Errorf("payment settle failed: %w", err)
		default:
			if _, err := tx.Exec(ctx,
				"UPDATE wallets SET balance = balance - $1, book_balance = book_balance - $1, updated_at = $2 WHERE id = $3",
				amount, now, walletID,
			); err != nil {
				return fmt.Errorf("wallet debit failed: %w", err)
			}
		}

		r.Status = kwikpik.StatusDelivered
		r.InTransit = false
		r.UpdatedAt = now
		if err := saveRequest(ctx, tx, r); err != nil {
			return err
		}
		done = r
		return nil
	})
	return done, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*models.Request, error) {
	var r models.Request
	err := row.Scan(&r.ID, &r.BusinessID, &r.Status, &r.RiderID, &r.InTransit, &r.Amount, &r.Paid, &r.Message, &r.CreatedAt, &r.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func collectRequests(rows pgx.Rows) ([]models.Request, error) {
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (models.Request, error) {
		r, err := scanRequest(row)
		if err != nil {
			return models.Request{}, err
		}
		return *r, nil
	})
}

func scanWallet(row scanner) (*models.Wallet, error) {
	var w models.Wallet
	if err := row.Scan(&w.ID, &w.BusinessID, &w.Balance, &w.BookBalance, &w.CreatedAt, &w.UpdatedAt); err != nil {
		return nil, err
	}
	return &w, nil
}

func saveRequest(ctx context.Context, tx pgx.Tx, r *models.Request) error {
	_, err := tx.Exec(ctx,
		`UPDATE requests SET status = $1, rider_id = $2, in_transit = $3, amount = $4, paid = $5, message = $6, updated_at = $7
		 WHERE id = $8`,
		r.Status, r.RiderID, r.InTransit, r.Amount, r.Paid, r.Message, r.UpdatedAt, r.ID,
	)
	if err != nil {
		return fmt.Errorf("request %s update failed: %w", r.ID, err)
	}
	return nil
}

func mapReadErr(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

func mapWriteErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w", pgErr.ConstraintName, ErrDuplicate)
	}
	return err
}
