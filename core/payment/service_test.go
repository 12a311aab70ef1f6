package payment_test

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomopay/core"
	"github.com/trezcool/masomopay/core/payment"
	"github.com/trezcool/masomopay/tests"
)

type serviceEnv struct {
	*pollerEnv
	svc        *payment.Service
	translator ut.Translator
}

func newServiceEnv(t *testing.T) *serviceEnv {
	t.Helper()
	env := newPollerEnv(t, fastOpts)
	translator := core.NewTranslator()
	svc := payment.NewService(env.gw, env.poller, env.logger, core.NewValidator(translator))
	t.Cleanup(svc.Shutdown)
	return &serviceEnv{pollerEnv: env, svc: svc, translator: translator}
}

func TestService_Checkout(t *testing.T) {
	env := newServiceEnv(t)
	env.gw.CheckFunc = testutil.PaidOnCheck(1)
	rec := new(recorder)

	pmt, s, err := env.svc.Checkout(context.Background(), env.ledger, payment.NewPayment{CourseID: " go-101 ", Amount: 5000}, rec)
	require.NoError(t, err)
	assert.Equal(t, "go-101", pmt.CourseID)
	assert.Equal(t, pmt.TransactionCode, s.Code())
	assert.NotEmpty(t, pmt.Payload)
	assert.Equal(t, []payment.NewPayment{{CourseID: "go-101", Amount: 5000}}, env.gw.Created())

	assert.Equal(t, payment.StatusSuccess, wait(t, s))
	entry, err := env.svc.Lookup(env.ledger, pmt.TransactionCode)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, entry.Status)
}

func TestService_Checkout_invalid(t *testing.T) {
	env := newServiceEnv(t)

	tests := []struct {
		name   string
		np     payment.NewPayment
		fields []string
	}{
		{name: "empty", np: payment.NewPayment{}, fields: []string{"course_id", "amount"}},
		{name: "blank course", np: payment.NewPayment{CourseID: "   ", Amount: 100}, fields: []string{"course_id"}},
		{name: "negative amount", np: payment.NewPayment{CourseID: "go-101", Amount: -5}, fields: []string{"amount"}},
		{name: "bad discount code", np: payment.NewPayment{CourseID: "go-101", Amount: 100, DiscountCode: "50% OFF"}, fields: []string{"discount_code"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, s, err := env.svc.Checkout(context.Background(), env.ledger, tt.np, nil)
			assert.Nil(t, s)
			verrs, ok := errors.Cause(err).(validator.ValidationErrors)
			require.True(t, ok, "got %v", err)
			msgs := core.TranslateErrors(verrs, env.translator)
			for _, f := range tt.fields {
				assert.Contains(t, msgs, f)
			}
			assert.Len(t, msgs, len(tt.fields))
		})
	}
	assert.Empty(t, env.gw.Created(), "invalid payments never reach the backend")
}

func TestService_Checkout_creationFails(t *testing.T) {
	env := newServiceEnv(t)
	previous := testutil.NewCode()
	env.ledger.Set(previous, payment.StatusExpired)

	backendErr := &payment.GatewayError{StatusCode: http.StatusConflict, Message: "Course already purchased."}
	env.gw.CreateFunc = func(context.Context, payment.NewPayment) (payment.Payment, error) {
		return payment.Payment{}, backendErr
	}

	_, s, err := env.svc.Checkout(context.Background(), env.ledger, payment.NewPayment{CourseID: "go-101", Amount: 100}, nil)
	assert.Nil(t, s)
	assert.Equal(t, backendErr, errors.Cause(err))

	// no side effects
	_, ok := env.ledger.Get(previous)
	assert.True(t, ok, "ledger left untouched")
	assert.Equal(t, 0, env.gw.TotalChecks())
}

// releaseOnClear returns a ledger whose checks all answer "paid", but only after the ledger was first cleared.
func releaseOnClear(t *testing.T, env *serviceEnv) *payment.Ledger {
	t.Helper()
	release := make(chan struct{})
	var once sync.Once
	releaseChecks := func() { once.Do(func() { close(release) }) }
	t.Cleanup(releaseChecks)

	env.gw.CheckFunc = func(context.Context, payment.TransactionCode, int) (bool, error) {
		<-release
		return true, nil
	}
	store := &testutil.HookedStore{Store: env.store, AfterDelete: func(string) { releaseChecks() }}
	return payment.NewLedger(store, prefix, "42", env.logger)
}

func TestService_Replace(t *testing.T) {
	env := newServiceEnv(t)
	ledger := releaseOnClear(t, env)

	old := testutil.NewCode()
	prev, err := env.svc.Resume(ledger, old, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return env.gw.Checks(old) == 1 }, time.Second, 10*time.Millisecond)

	pmt, s, err := env.svc.Replace(context.Background(), prev, ledger, payment.NewPayment{CourseID: "go-102", Amount: 100}, nil)
	require.NoError(t, err)

	// stopped before the ledger was cleared
	assert.Equal(t, payment.StatusCancelled, prev.Outcome())
	assert.Equal(t, payment.StatusSuccess, wait(t, s))

	// the answer of its last check is dropped
	assert.Never(t, func() bool {
		_, ok := ledger.Get(old)
		return ok
	}, 2*fastOpts.Interval, 20*time.Millisecond)
	_, err = env.svc.Lookup(ledger, pmt.TransactionCode)
	assert.NoError(t, err)
	assert.Equal(t, 1, env.store.Len(ledger.Namespace()))
}

func TestService_Replace_creationFails(t *testing.T) {
	env := newServiceEnv(t)

	prev, err := env.svc.Resume(env.ledger, testutil.NewCode(), nil)
	require.NoError(t, err)

	env.gw.CreateFunc = func(context.Context, payment.NewPayment) (payment.Payment, error) {
		return payment.Payment{}, &payment.GatewayError{StatusCode: http.StatusServiceUnavailable}
	}
	_, s, err := env.svc.Replace(context.Background(), prev, env.ledger, payment.NewPayment{CourseID: "go-101", Amount: 100}, nil)
	assert.Nil(t, s)
	assert.Error(t, err)

	select {
	case <-prev.Done():
		t.Fatal("previous session stopped by a failed checkout")
	default:
	}
	assert.Equal(t, payment.StatusPending, prev.Outcome())
}

func TestService_Checkout_invalidCodeFromBackend(t *testing.T) {
	env := newServiceEnv(t)
	env.gw.CreateFunc = func(_ context.Context, np payment.NewPayment) (payment.Payment, error) {
		return payment.Payment{TransactionCode: "x", CourseID: np.CourseID, Amount: np.Amount}, nil
	}

	_, s, err := env.svc.Checkout(context.Background(), env.ledger, payment.NewPayment{CourseID: "go-101", Amount: 100}, nil)
	assert.Nil(t, s)
	assert.Error(t, err)
	assert.Equal(t, 0, env.gw.TotalChecks())
}

func TestService_newPaymentIsolation(t *testing.T) {
	env := newServiceEnv(t)
	previous := testutil.NewCode()
	env.ledger.Set(previous, payment.StatusSuccess)
	env.gw.CheckFunc = testutil.PaidOnCheck(1)

	pmt, s, err := env.svc.Checkout(context.Background(), env.ledger, payment.NewPayment{CourseID: "go-102", Amount: 100}, nil)
	require.NoError(t, err)
	assert.Equal(t, payment.StatusSuccess, wait(t, s))

	_, err = env.svc.Lookup(env.ledger, previous)
	assert.Equal(t, payment.ErrNotFound, err, "previous outcomes are cleared")
	_, err = env.svc.Lookup(env.ledger, pmt.TransactionCode)
	assert.NoError(t, err)
	assert.Equal(t, 1, env.store.Len(env.ledger.Namespace()))
}

func TestService_Resume(t *testing.T) {
	env := newServiceEnv(t)

	t.Run("invalid code", func(t *testing.T) {
		s, err := env.svc.Resume(env.ledger, "not a code!", nil)
		assert.Nil(t, s)
		assert.True(t, core.IsValidationError(err))
	})

	t.Run("resolved code", func(t *testing.T) {
		code := testutil.NewCode()
		env.ledger.Set(code, payment.StatusExpired)
		rec := new(recorder)

		s, err := env.svc.Resume(env.ledger, code, rec)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusExpired, s.Outcome())
		_, expired := rec.counts()
		assert.Equal(t, 1, expired)
		assert.Equal(t, 0, env.gw.Checks(code))
	})

	t.Run("pending code", func(t *testing.T) {
		code := testutil.NewCode()
		env.gw.CheckFunc = testutil.PaidOnCheck(2)

		s, err := env.svc.Resume(env.ledger, code, nil)
		require.NoError(t, err)
		assert.Equal(t, payment.StatusSuccess, wait(t, s))
		assert.Equal(t, 2, env.gw.Checks(code))
	})
}

func TestService_Shutdown(t *testing.T) {
	env := newServiceEnv(t)
	ctx, cancel := context.WithCancel(context.Background())

	_, s, err := env.svc.Checkout(ctx, env.ledger, payment.NewPayment{CourseID: "go-101", Amount: 100}, nil)
	require.NoError(t, err)

	// the session outlives the request
	cancel()
	time.Sleep(50 * time.Millisecond)
	select {
	case <-s.Done():
		t.Fatal("session stopped with its request")
	default:
	}

	env.svc.Shutdown()
	assert.Equal(t, payment.StatusCancelled, wait(t, s))
}

func TestNewService(t *testing.T) {
	env := newPollerEnv(t, fastOpts)
	validate := core.NewValidator(core.NewTranslator())

	tests := []struct {
		name     string
		gateway  payment.Gateway
		poller   *payment.Poller
		logger   core.Logger
		validate *validator.Validate
	}{
		{name: "nil gateway", poller: env.poller, logger: env.logger, validate: validate},
		{name: "nil gateway pointer", gateway: (*testutil.FakeGateway)(nil), poller: env.poller, logger: env.logger, validate: validate},
		{name: "nil poller", gateway: env.gw, logger: env.logger, validate: validate},
		{name: "nil logger pointer", gateway: env.gw, poller: env.poller, logger: (*testutil.Logger)(nil), validate: validate},
		{name: "nil validator", gateway: env.gw, poller: env.poller, logger: env.logger},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Panics(t, func() { payment.NewService(tt.gateway, tt.poller, tt.logger, tt.validate) })
		})
	}

	assert.NotPanics(t, func() { payment.NewService(env.gw, env.poller, env.logger, validate).Shutdown() })
}
