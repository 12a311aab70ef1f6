package sqlxstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/masomopay/core"
	"github.com/trezcool/masomopay/core/payment"
)

const table = "payment_ledger"

type ledgerRow struct {
	Namespace       string    `db:"namespace"`
	TransactionCode string    `db:"transaction_code"`
	Status          string    `db:"status"`
	ResolvedAt      null.Time `db:"resolved_at"`
	CreatedAt       time.Time `db:"created_at"`
}

// Store keeps ledger entries in the payment_ledger table (postgres or sqlite).
type Store struct {
	exec core.DBExecutor
}

var _ payment.Store = (*Store)(nil) // interface compliance check

func NewStore(exec core.DBExecutor) *Store {
	return &Store{exec: exec}
}

func (s *Store) getExec(exec []core.DBExecutor) core.DBExecutor {
	if len(exec) > 0 {
		return exec[0]
	}
	return s.exec
}

func (s *Store) boil(namespace string, entry payment.LedgerEntry) ledgerRow {
	return ledgerRow{
		Namespace:       namespace,
		TransactionCode: entry.TransactionCode.String(),
		Status:          entry.Status.String(),
		ResolvedAt:      null.NewTime(entry.ResolvedAt.UTC(), !entry.ResolvedAt.IsZero()),
		CreatedAt:       time.Now().UTC(),
	}
}

func (s *Store) unboil(row ledgerRow) payment.LedgerEntry {
	return payment.LedgerEntry{
		TransactionCode: payment.TransactionCode(row.TransactionCode),
		Status:          payment.Status(row.Status),
		ResolvedAt:      row.ResolvedAt.Time,
	}
}

// trapNoRowsErr maps "no rows" err to payment.ErrNotFound
func (s *Store) trapNoRowsErr(err error, msg string) error {
	if err == sql.ErrNoRows {
		return payment.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (s *Store) GetEntry(ctx context.Context, namespace string, code payment.TransactionCode) (payment.LedgerEntry, error) {
	return s.getEntry(ctx, namespace, code)
}

func (s *Store) getEntry(ctx context.Context, namespace string, code payment.TransactionCode, exec ...core.DBExecutor) (payment.LedgerEntry, error) {
	exe := s.getExec(exec)
	q := exe.Rebind(`SELECT namespace, transaction_code, status, resolved_at, created_at FROM ` + table +
		` WHERE namespace = ? AND transaction_code = ?`)

	var row ledgerRow
	if err := exe.GetContext(ctx, &row, q, namespace, code.String()); err != nil {
		return payment.LedgerEntry{}, s.trapNoRowsErr(err, "finding ledger entry")
	}
	return s.unboil(row), nil
}

// InsertEntry never overwrites: a second insert for the same code is ignored by the database.
func (s *Store) InsertEntry(ctx context.Context, namespace string, entry payment.LedgerEntry) (bool, error) {
	exe := s.getExec(nil)
	q := exe.Rebind(`INSERT INTO ` + table + ` (namespace, transaction_code, status, resolved_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (namespace, transaction_code) DO NOTHING`)

	row := s.boil(namespace, entry)
	res, err := exe.ExecContext(ctx, q, row.Namespace, row.TransactionCode, row.Status, row.ResolvedAt, row.CreatedAt)
	if err != nil {
		return false, errors.Wrap(err, "inserting ledger entry")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "inserting ledger entry")
	}
	return n == 1, nil
}

func (s *Store) DeleteNamespace(ctx context.Context, namespace string) error {
	_, err := s.deleteNamespace(ctx, namespace)
	return err
}

func (s *Store) deleteNamespace(ctx context.Context, namespace string, exec ...core.DBExecutor) (int, error) {
	exe := s.getExec(exec)
	q := exe.Rebind(`DELETE FROM ` + table + ` WHERE namespace = ?`)

	res, err := exe.ExecContext(ctx, q, namespace)
	if err != nil {
		return 0, errors.Wrap(err, "deleting ledger entries")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "deleting ledger entries")
	}
	return int(n), nil
}

// ClearNamespace deletes every entry of namespace and reports how many there were.
func (s *Store) ClearNamespace(ctx context.Context, namespace string) (int, error) {
	return s.deleteNamespace(ctx, namespace)
}

// ListNamespace returns the entries of namespace, oldest first.
func (s *Store) ListNamespace(ctx context.Context, namespace string) ([]payment.LedgerEntry, error) {
	q := s.exec.Rebind(`SELECT namespace, transaction_code, status, resolved_at, created_at FROM ` + table +
		` WHERE namespace = ? ORDER BY created_at ASC, transaction_code ASC`)

	rows, err := s.exec.QueryxContext(ctx, q, namespace)
	if err != nil {
		return nil, errors.Wrap(err, "listing ledger entries")
	}
	defer func() { _ = rows.Close() }()

	var entries []payment.LedgerEntry
	for rows.Next() {
		var row ledgerRow
		if err = rows.StructScan(&row); err != nil {
			return nil, errors.Wrap(err, "scanning ledger entry")
		}
		entries = append(entries, s.unboil(row))
	}
	return entries, errors.Wrap(rows.Err(), "listing ledger entries")
}
