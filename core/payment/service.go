package payment

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/kat-co/vala"
	"github.com/pkg/errors"

	"github.com/trezcool/masomopay/core"
)

// Service creates course payments and hands them over to the Poller.
// Sessions outlive the calls that start them; Shutdown cancels those still polling.
type Service struct {
	gateway  Gateway
	poller   *Poller
	logger   core.Logger
	validate *validator.Validate

	base     context.Context
	shutdown context.CancelFunc
}

func NewService(gateway Gateway, poller *Poller, logger core.Logger, validate *validator.Validate) *Service {
	vala.BeginValidation().Validate(
		core.IsNotNil(gateway, "gateway"),
		core.IsNotNil(poller, "poller"),
		core.IsNotNil(logger, "logger"),
		core.IsNotNil(validate, "validate"),
	).CheckAndPanic()

	base, shutdown := context.WithCancel(context.Background())
	return &Service{
		gateway:  gateway,
		poller:   poller,
		logger:   logger,
		validate: validate,
		base:     base,
		shutdown: shutdown,
	}
}

// Shutdown cancels every session started by svc.
func (svc *Service) Shutdown() { svc.shutdown() }

// Checkout creates a payment for np and starts polling its transaction code.
// ctx only bounds the creation request.
// On failure nothing else happens: the ledger is left untouched and no session starts.
// On success every previous entry of ledger is cleared first, the new payment being the only
// one that can still resolve.
func (svc *Service) Checkout(ctx context.Context, ledger StatusLedger, np NewPayment, actions Actions) (Payment, *Session, error) {
	return svc.Replace(ctx, nil, ledger, np, actions)
}

// Replace is Checkout for a student whose previous payment is still followed by prev.
// Once the new payment is created, prev is cancelled and awaited before the ledger is cleared:
// an outcome prev was about to record cannot outlive the clearing.
// prev is left alone if the creation fails.
func (svc *Service) Replace(ctx context.Context, prev *Session, ledger StatusLedger, np NewPayment, actions Actions) (Payment, *Session, error) {
	if err := np.Validate(svc.validate); err != nil {
		return Payment{}, nil, err
	}

	pmt, err := svc.gateway.CreatePayment(ctx, np)
	if err != nil {
		return Payment{}, nil, errors.Wrap(err, "creating payment")
	}
	if err = ValidateCode(svc.validate, pmt.TransactionCode); err != nil {
		return Payment{}, nil, errors.Wrapf(err, "invalid transaction code %q", pmt.TransactionCode)
	}
	svc.logger.Info(fmt.Sprintf("payment %s: created for course %s (%d)", pmt.TransactionCode, pmt.CourseID, pmt.Amount))

	if prev != nil {
		prev.Cancel()
		if _, err = prev.Wait(ctx); err != nil {
			return Payment{}, nil, errors.Wrapf(err, "stopping session of payment %s", prev.Code())
		}
	}

	ledger.ClearAll()
	return pmt, svc.poller.Start(svc.base, ledger, pmt.TransactionCode, actions), nil
}

// Resume re-enters the reconciliation of an existing transaction code,
// e.g. after a page reload. Already resolved codes answer from the ledger.
func (svc *Service) Resume(ledger StatusLedger, code TransactionCode, actions Actions) (*Session, error) {
	if err := svc.ValidateCode(code); err != nil {
		return nil, core.NewValidationError(err, core.FieldError{Field: "transaction_code", Error: "invalid transaction code"})
	}
	return svc.poller.Start(svc.base, ledger, code, actions), nil
}

// ValidateCode checks that code looks like a transaction code.
func (svc *Service) ValidateCode(code TransactionCode) error {
	return ValidateCode(svc.validate, code)
}

// Lookup answers from the ledger only.
func (svc *Service) Lookup(ledger StatusLedger, code TransactionCode) (LedgerEntry, error) {
	entry, ok := ledger.Get(code)
	if !ok {
		return LedgerEntry{}, ErrNotFound
	}
	return entry, nil
}
