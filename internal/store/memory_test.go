package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	kwikpik "github.com/kwikpik/kwikpik-go"
	"github.com/kwikpik/kwikpik-go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func seeded(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory()
	require.NoError(t, m.CreateBusiness(testContext(t),
		models.Business{ID: "biz-1", Name: "Mama Put", APIKeyHash: models.HashAPIKey("k1"), CreatedAt: epoch},
		models.Wallet{ID: "w-1", Balance: 1000, CreatedAt: epoch},
	))
	return m
}

func request(id string, at time.Time) models.Request {
	return models.Request{ID: id, BusinessID: "biz-1", Status: kwikpik.StatusInitialized, Amount: 100, CreatedAt: at, UpdatedAt: at}
}

func TestMemoryBusinessLookup(t *testing.T) {
	m := seeded(t)

	b, err := m.BusinessByKeyHash(testContext(t), models.HashAPIKey("k1"))
	require.NoError(t, err)
	assert.Equal(t, "biz-1", b.ID)

	_, err = m.BusinessByKeyHash(testContext(t), models.HashAPIKey("nope"))
	assert.ErrorIs(t, err, ErrNotFound)

	w, err := m.WalletByBusiness(testContext(t), "biz-1")
	require.NoError(t, err)
	assert.Equal(t, "biz-1", w.BusinessID)

	err = m.CreateBusiness(testContext(t),
		models.Business{ID: "biz-2", APIKeyHash: models.HashAPIKey("k1")}, models.Wallet{ID: "w-2"})
	assert.ErrorIs(t, err, ErrDuplicate)
}

func TestMemoryListIsNewestFirstAndPaged(t *testing.T) {
	m := seeded(t)
	var rs []models.Request
	for i := 0; i < 25; i++ {
		rs = append(rs, request(fmt.Sprintf("r%02d", i), epoch.Add(time.Duration(i)*time.Minute)))
	}
	require.NoError(t, m.InsertRequests(testContext(t), rs))

	page, err := m.ListRequests(testContext(t), "biz-1", 20, 0)
	require.NoError(t, err)
	require.Len(t, page, 20)
	assert.Equal(t, "r24", page[0].ID)
	assert.Equal(t, "r05", page[19].ID)

	page, err = m.ListRequests(testContext(t), "biz-1", 20, 20)
	require.NoError(t, err)
	assert.Len(t, page, 5)

	page, err = m.ListRequests(testContext(t), "biz-1", 20, 40)
	require.NoError(t, err)
	assert.Empty(t, page)

	page, err = m.ListRequests(testContext(t), "someone-else", 20, 0)
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemoryUpdateIsAllOrNothing(t *testing.T) {
	m := seeded(t)
	require.NoError(t, m.InsertRequests(testContext(t), []models.Request{request("a", epoch), request("b", epoch)}))

	boom := errors.New("boom")
	_, err := m.UpdateRequests(testContext(t), []string{"a", "b"}, func(r *models.Request) error {
		if r.ID == "b" {
			return boom
		}
		r.Status = kwikpik.StatusConfirmed
		return nil
	})
	assert.ErrorIs(t, err, boom)

	a, err := m.GetRequest(testContext(t), "a")
	require.NoError(t, err)
	assert.Equal(t, kwikpik.StatusInitialized, a.Status)

	_, err = m.UpdateRequests(testContext(t), []string{"a", "missing"}, func(*models.Request) error { return nil })
	assert.ErrorIs(t, err, ErrNotFound)

	out, err := m.UpdateRequests(testContext(t), []string{"b", "a", "b"}, func(r *models.Request) error {
		r.Status = kwikpik.StatusConfirmed
		return nil
	})
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "b", out[0].ID)
}

func TestMemoryDeliveryLifecycle(t *testing.T) {
	m := seeded(t)
	require.NoError(t, m.InsertRequests(testContext(t), []models.Request{request("a", epoch)}))

	_, err := m.Pay(testContext(t), "biz-1", "a", func(w *models.Wallet, r *models.Request) (*models.Payment, error) {
		w.BookBalance += r.Amount
		r.Paid = true
		return &models.Payment{ID: "p1", WalletID: w.ID, RequestID: r.ID, Amount: r.Amount, Status: kwikpik.PaymentPending}, nil
	})
	require.NoError(t, err)
	_, err = m.UpdateRequests(testContext(t), []string{"a"}, func(r *models.Request) error {
		r.Status = kwikpik.StatusConfirmed
		return nil
	})
	require.NoError(t, err)

	delivered, err := m.CompleteInTransit(testContext(t), epoch)
	require.NoError(t, err)
	assert.Empty(t, delivered, "not in transit yet")

	moving, err := m.DispatchConfirmed(testContext(t), func(models.Request) string { return "rider-1" }, epoch)
	require.NoError(t, err)
	require.Len(t, moving, 1)
	assert.True(t, moving[0].InTransit)
	assert.Equal(t, "rider-1", *moving[0].RiderID)

	delivered, err = m.CompleteInTransit(testContext(t), epoch.Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, delivered, 1)
	assert.Equal(t, kwikpik.StatusDelivered, delivered[0].Status)
	assert.False(t, delivered[0].InTransit)

	w, err := m.WalletByBusiness(testContext(t), "biz-1")
	require.NoError(t, err)
	assert.Equal(t, 900.0, w.Balance)
	assert.Equal(t, 0.0, w.BookBalance)

	p, ok := m.PaymentFor("a")
	require.True(t, ok)
	assert.Equal(t, kwikpik.PaymentPaid, p.Status)
}

func TestMemoryPayRejectionWritesNothing(t *testing.T) {
	m := seeded(t)
	require.NoError(t, m.InsertRequests(testContext(t), []models.Request{request("a", epoch)}))

	boom := errors.New("insufficient")
	_, err := m.Pay(testContext(t), "biz-1", "a", func(w *models.Wallet, r *models.Request) (*models.Payment, error) {
		w.BookBalance = 12345
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)

	w, err := m.WalletByBusiness(testContext(t), "biz-1")
	require.NoError(t, err)
	assert.Zero(t, w.BookBalance)

	_, err = m.Pay(testContext(t), "biz-1", "missing", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryReadsDoNotAliasStoredRequests(t *testing.T) {
	m := seeded(t)
	weight := 3.0
	r := request("r-1", epoch)
	r.Message.PackageDetails.Weight = &weight
	require.NoError(t, m.InsertRequests(testContext(t), []models.Request{r}))

	weight = 10
	got, err := m.GetRequest(testContext(t), "r-1")
	require.NoError(t, err)
	assert.Equal(t, 3.0, *got.Message.PackageDetails.Weight)

	*got.Message.PackageDetails.Weight = 20
	listed, err := m.ListRequests(testContext(t), "biz-1", 10, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, 3.0, *listed[0].Message.PackageDetails.Weight)
}
