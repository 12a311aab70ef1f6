package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"

	"github.com/trezcool/masomopay/core"
)

// StatusLedger records terminal outcomes per transaction code.
// Entries are write-once: Set never replaces an existing entry.
type StatusLedger interface {
	Get(code TransactionCode) (LedgerEntry, bool)
	Set(code TransactionCode, status Status)
	ClearAll()
}

// Store persists ledger entries grouped by namespace.
// InsertEntry must be atomic: it reports false, without error, when the code already has an entry.
type Store interface {
	GetEntry(ctx context.Context, namespace string, code TransactionCode) (LedgerEntry, error)
	InsertEntry(ctx context.Context, namespace string, entry LedgerEntry) (inserted bool, err error)
	DeleteNamespace(ctx context.Context, namespace string) error
}

// UnavailableStore is a Store whose storage is disabled; every operation fails.
type UnavailableStore struct{}

var _ Store = UnavailableStore{}

func (UnavailableStore) GetEntry(context.Context, string, TransactionCode) (LedgerEntry, error) {
	return LedgerEntry{}, ErrStorageUnavailable
}

func (UnavailableStore) InsertEntry(context.Context, string, LedgerEntry) (bool, error) {
	return false, ErrStorageUnavailable
}

func (UnavailableStore) DeleteNamespace(context.Context, string) error {
	return ErrStorageUnavailable
}

var (
	storeTimeout = 5 * time.Second
	nowFunc      = time.Now // mockable
)

// Ledger is a best-effort StatusLedger over a Store, scoped to one namespace.
// Store failures never surface: Get reports no entry and Set/ClearAll do nothing.
type Ledger struct {
	store     Store
	namespace string
	logger    core.Logger
}

var _ StatusLedger = (*Ledger)(nil)

// NewLedger returns the ledger of namespace prefix+scope (e.g. "masomo.payment.status." + student ID).
func NewLedger(store Store, prefix, scope string, logger core.Logger) *Ledger {
	vala.BeginValidation().Validate(
		core.IsNotNil(store, "store"),
		core.IsNotNil(logger, "logger"),
		vala.StringNotEmpty(prefix+scope, "namespace"),
	).CheckAndPanic()

	return &Ledger{
		store:     store,
		namespace: prefix + scope,
		logger:    logger,
	}
}

func (l *Ledger) Namespace() string { return l.namespace }

// Key is the stable storage key of code.
func (l *Ledger) Key(code TransactionCode) string { return l.namespace + "." + code.String() }

func (l *Ledger) Get(code TransactionCode) (LedgerEntry, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	entry, err := l.store.GetEntry(ctx, l.namespace, code)
	if err != nil {
		if err != ErrNotFound {
			l.logger.Warn(fmt.Sprintf("ledger: reading %s: %v", l.Key(code), err), err)
		}
		return LedgerEntry{}, false
	}
	return entry, true
}

func (l *Ledger) Set(code TransactionCode, status Status) {
	if !status.IsTerminal() {
		l.logger.Warn(fmt.Sprintf("ledger: refusing non terminal status %s for %s", status, l.Key(code)))
		return
	}

	if prev, ok := l.Get(code); ok {
		if prev.Status != status {
			l.logger.Warn(fmt.Sprintf("ledger: %s already resolved as %s, ignoring %s", l.Key(code), prev.Status, status))
		}
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	entry := LedgerEntry{TransactionCode: code, Status: status, ResolvedAt: nowFunc().UTC()}
	inserted, err := l.store.InsertEntry(ctx, l.namespace, entry)
	if err != nil {
		l.logger.Warn(fmt.Sprintf("ledger: writing %s: %v", l.Key(code), err), err)
		return
	}
	if !inserted {
		l.logger.Warn(fmt.Sprintf("ledger: %s resolved concurrently, keeping first entry", l.Key(code)))
	}
}

func (l *Ledger) ClearAll() {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := l.store.DeleteNamespace(ctx, l.namespace); err != nil {
		l.logger.Warn(fmt.Sprintf("ledger: clearing %s: %v", l.namespace, err), err)
	}
}
