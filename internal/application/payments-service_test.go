package application

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RaikyD/krusty-orders-service/internal/domain"
	"github.com/RaikyD/krusty-orders-service/internal/repository"
)

func TestCashPaymentReturnsChange(t *testing.T) {
	f := newFixture(t)
	o := f.takeout(t)

	receipt, err := f.payments.ProcessCashPayment(context.Background(), cashier, o.ID, money("20.00"))
	require.NoError(t, err)
	require.NotNil(t, receipt.Change)
	assert.True(t, money("7.00").Equal(*receipt.Change), "change %s", receipt.Change)
	assert.Equal(t, domain.PaymentCash, receipt.Method)
	assert.Equal(t, domain.StatusConfirmed, f.status(t, o))

	stored, err := f.payments.GetPayment(context.Background(), cashier, o.ID)
	require.NoError(t, err)
	assert.True(t, money("7.00").Equal(*stored.Change))
}

func TestCashPaymentExactAmount(t *testing.T) {
	f := newFixture(t)
	o := f.takeout(t)

	receipt, err := f.payments.ProcessCashPayment(context.Background(), manager, o.ID, money("13"))
	require.NoError(t, err)
	assert.True(t, receipt.Change.IsZero())
}

func TestCashPaymentShortfall(t *testing.T) {
	f := newFixture(t)
	o := f.takeout(t)

	_, err := f.payments.ProcessCashPayment(context.Background(), cashier, o.ID, money("12.99"))
	assert.ErrorIs(t, err, domain.ErrInsufficientPayment)
	assert.Equal(t, 0, f.store.PaymentCount(o.ID))
	assert.Equal(t, domain.StatusPending, f.status(t, o))

	// still payable
	_, err = f.payments.ProcessCashPayment(context.Background(), cashier, o.ID, money("15"))
	require.NoError(t, err)
}

func TestCashPaymentRejectsFractionalCents(t *testing.T) {
	f := newFixture(t)
	o := f.takeout(t)

	_, err := f.payments.ProcessCashPayment(context.Background(), cashier, o.ID, money("20.005"))
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, f.store.PaymentCount(o.ID))
	assert.Equal(t, domain.StatusPending, f.status(t, o))
}

func TestSecondSettlementIsRejected(t *testing.T) {
	f := newFixture(t)
	o := f.takeout(t)
	ctx := context.Background()

	_, err := f.payments.ProcessPayment(ctx, cashier, o.ID, domain.PaymentCard)
	require.NoError(t, err)

	_, err = f.payments.ProcessPayment(ctx, cashier, o.ID, domain.PaymentCard)
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
	_, err = f.payments.ProcessCashPayment(ctx, cashier, o.ID, money("100"))
	assert.ErrorIs(t, err, domain.ErrAlreadyPaid)
	assert.Equal(t, 1, f.store.PaymentCount(o.ID))
}

func TestPaymentRequiresPendingOrder(t *testing.T) {
	f := newFixture(t)
	o := f.takeout(t)
	_, err := f.orders.Transition(context.Background(), cashier, o.ID, domain.StatusCancelled)
	require.NoError(t, err)

	_, err = f.payments.ProcessPayment(context.Background(), cashier, o.ID, domain.PaymentOnline)
	assert.ErrorIs(t, err, domain.ErrOrderNotPayable)

	_, err = f.payments.ProcessPayment(context.Background(), cashier, uuid.New(), domain.PaymentOnline)
	assert.ErrorIs(t, err, domain.ErrOrderNotFound)
}

func TestPaymentAuthorization(t *testing.T) {
	f := newFixture(t)
	o := f.takeout(t)

	_, err := f.payments.ProcessPayment(context.Background(), customer, o.ID, domain.PaymentCard)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.payments.ProcessCashPayment(context.Background(), cook, o.ID, money("20"))
	assert.ErrorIs(t, err, domain.ErrForbidden)
	assert.Equal(t, domain.StatusPending, f.status(t, o))

	_, err = f.payments.ProcessPayment(context.Background(), cashier, o.ID, domain.PaymentCash)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = f.payments.GetPayment(context.Background(), stranger, o.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)
	_, err = f.payments.GetPayment(context.Background(), customer, o.ID)
	assert.ErrorIs(t, err, domain.ErrPaymentNotFound)
}

func TestConcurrentSettlementHasOneWinner(t *testing.T) {
	f := newFixture(t)
	o := f.takeout(t)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.payments.ProcessPayment(context.Background(), cashier, o.ID, domain.PaymentCard)
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			assert.True(t, errors.Is(err, domain.ErrAlreadyPaid) || errors.Is(err, domain.ErrConflict), err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, f.store.PaymentCount(o.ID))
}

// sagaStore hides SettleOrder and can fail the confirm step.
type sagaStore struct {
	repository.Store
	mu       sync.Mutex
	failPuts int
}

func (s *sagaStore) PutOrder(ctx context.Context, o *domain.Order, expected domain.Status) error {
	s.mu.Lock()
	fail := s.failPuts > 0
	s.failPuts--
	s.mu.Unlock()
	if fail {
		return errors.New("store timeout")
	}
	return s.Store.PutOrder(ctx, o, expected)
}

func TestSagaSettlementWithoutAtomicStore(t *testing.T) {
	mem := repository.NewMemoryStore()
	store := &sagaStore{Store: mem}
	f := newFixtureWith(t, mem, store)
	o := f.takeout(t)

	receipt, err := f.payments.ProcessPayment(context.Background(), cashier, o.ID, domain.PaymentOnline)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, receipt.OrderStatus)
	assert.Equal(t, domain.StatusConfirmed, f.status(t, o))
}

func TestSagaVoidsPaymentWhenConfirmFails(t *testing.T) {
	mem := repository.NewMemoryStore()
	store := &sagaStore{Store: mem}
	f := newFixtureWith(t, mem, store)
	o := f.takeout(t)

	store.failPuts = 2
	_, err := f.payments.ProcessPayment(context.Background(), cashier, o.ID, domain.PaymentCard)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, domain.StatusPending, f.status(t, o))

	_, err = mem.GetPaymentByOrder(context.Background(), o.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound, "voided payments must not count as settled")
	assert.Equal(t, 2, mem.PaymentCount(o.ID))

	// the order stays payable
	_, err = f.payments.ProcessPayment(context.Background(), cashier, o.ID, domain.PaymentCard)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusConfirmed, f.status(t, o))
}
