package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/trezcool/masomopay/core/payment"
)

// FakeGateway is a scriptable payment.Gateway recording every call.
type FakeGateway struct {
	// CreateFunc answers CreatePayment; by default a payment with a fresh code is created.
	CreateFunc func(ctx context.Context, np payment.NewPayment) (payment.Payment, error)
	// CheckFunc answers the n-th (1-based) status check of code; by default nothing is paid.
	CheckFunc func(ctx context.Context, code payment.TransactionCode, n int) (bool, error)
	// ExpireFunc answers ExpirePayment; by default it succeeds.
	ExpireFunc func(ctx context.Context, code payment.TransactionCode) error

	mu      sync.Mutex
	created []payment.NewPayment
	checks  map[payment.TransactionCode]int
	expired []payment.TransactionCode
}

var _ payment.Gateway = (*FakeGateway)(nil)

func NewFakeGateway() *FakeGateway {
	return &FakeGateway{checks: make(map[payment.TransactionCode]int)}
}

// NewCode returns a random, valid transaction code.
func NewCode() payment.TransactionCode {
	return payment.TransactionCode("TX-" + strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:12]))
}

func (g *FakeGateway) CreatePayment(ctx context.Context, np payment.NewPayment) (payment.Payment, error) {
	g.mu.Lock()
	g.created = append(g.created, np)
	fn := g.CreateFunc
	g.mu.Unlock()

	if fn != nil {
		return fn(ctx, np)
	}
	code := NewCode()
	return payment.Payment{
		TransactionCode: code,
		CourseID:        np.CourseID,
		Amount:          np.Amount,
		DiscountCode:    np.DiscountCode,
		Payload:         []byte(`{"transactionCode":"` + code.String() + `"}`),
	}, nil
}

func (g *FakeGateway) CheckStatus(ctx context.Context, code payment.TransactionCode) (bool, error) {
	g.mu.Lock()
	g.checks[code]++
	n := g.checks[code]
	fn := g.CheckFunc
	g.mu.Unlock()

	if fn != nil {
		return fn(ctx, code, n)
	}
	return false, nil
}

func (g *FakeGateway) ExpirePayment(ctx context.Context, code payment.TransactionCode) error {
	g.mu.Lock()
	g.expired = append(g.expired, code)
	fn := g.ExpireFunc
	g.mu.Unlock()

	if fn != nil {
		return fn(ctx, code)
	}
	return nil
}

// Created returns the payments requested so far.
func (g *FakeGateway) Created() []payment.NewPayment {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payment.NewPayment(nil), g.created...)
}

// Checks returns how many status checks code got.
func (g *FakeGateway) Checks(code payment.TransactionCode) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.checks[code]
}

// TotalChecks returns how many status checks were made, all codes included.
func (g *FakeGateway) TotalChecks() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.checks {
		n += c
	}
	return n
}

// Expired returns the codes notified as expired, in order.
func (g *FakeGateway) Expired() []payment.TransactionCode {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]payment.TransactionCode(nil), g.expired...)
}

// PaidOnCheck returns a CheckFunc answering paid from the n-th check of any code on.
func PaidOnCheck(n int) func(context.Context, payment.TransactionCode, int) (bool, error) {
	return func(_ context.Context, _ payment.TransactionCode, call int) (bool, error) {
		return call >= n, nil
	}
}
