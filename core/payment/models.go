package payment

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/masomopay/core"
)

// TransactionCode is minted by the payments backend when a payment is created.
// It correlates the pending purchase with the bank transfer that eventually pays it.
type TransactionCode string

func (c TransactionCode) String() string { return string(c) }

type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusExpired Status = "EXPIRED"

	// StatusCancelled is the outcome of a Session torn down before resolution.
	// It only lives on the Session handle and is never written to a ledger.
	StatusCancelled Status = "CANCELLED"
)

// IsTerminal reports whether s is a ledger-persisted outcome.
func (s Status) IsTerminal() bool {
	return s == StatusSuccess || s == StatusExpired
}

func (s Status) String() string { return string(s) }

// LedgerEntry is the terminal outcome recorded for a transaction code.
type LedgerEntry struct {
	TransactionCode TransactionCode `json:"transaction_code"`
	Status          Status          `json:"status"`
	ResolvedAt      time.Time       `json:"resolved_at"`

	// Replayed is set on entries handed to Actions when the outcome was read back from the ledger
	// instead of being resolved by the session.
	Replayed bool `json:"-"`
}

// NewPayment contains information needed to create a new course payment.
type NewPayment struct {
	CourseID     string `json:"course_id" validate:"required,notblank,max=64"`
	Amount       int64  `json:"amount" validate:"required,gt=0"`
	DiscountCode string `json:"discount_code" validate:"omitempty,alphanum,max=32"`
}

func (np *NewPayment) Validate(validate *validator.Validate) error {
	np.CourseID = core.CleanString(np.CourseID)
	np.DiscountCode = core.CleanString(np.DiscountCode)
	return validate.Struct(np)
}

// Payment is a pending payment as created by the payments backend.
type Payment struct {
	TransactionCode TransactionCode `json:"transaction_code"`
	CourseID        string          `json:"course_id"`
	Amount          int64           `json:"amount"`
	DiscountCode    string          `json:"discount_code,omitempty"`

	// Payload is the backend response as received (bank details, QR content..).
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ValidateCode checks that code looks like a transaction code.
func ValidateCode(validate *validator.Validate, code TransactionCode) error {
	return validate.Var(code, "required,txcode")
}
