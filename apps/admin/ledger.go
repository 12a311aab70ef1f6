package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/masomopay/core/payment"
)

const cmdTimeout = 10 * time.Second

func (cli *commandLine) namespace(studentID string) string {
	return cli.conf.Ledger.KeyPrefix + studentID
}

func (cli *commandLine) ledgerGet(studentID string, code payment.TransactionCode) error {
	if err := payment.ValidateCode(cli.validate, code); err != nil {
		return errors.Errorf("invalid transaction code %q", code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	entry, err := cli.store.GetEntry(ctx, cli.namespace(studentID), code)
	if err != nil {
		return err
	}
	return cli.printEntries(entry)
}

func (cli *commandLine) ledgerList(studentID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	entries, err := cli.store.ListNamespace(ctx, cli.namespace(studentID))
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintf(cli.out, "no payment outcome recorded for student %q\n", studentID)
		return nil
	}
	return cli.printEntries(entries...)
}

func (cli *commandLine) ledgerClear(studentID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), cmdTimeout)
	defer cancel()

	n, err := cli.store.ClearNamespace(ctx, cli.namespace(studentID))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "%d payment outcome(s) forgotten for student %q\n", n, studentID)
	return nil
}

func (cli *commandLine) printEntries(entries ...payment.LedgerEntry) error {
	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TRANSACTION CODE\tSTATUS\tRESOLVED AT")
	for _, e := range entries {
		resolvedAt := "-"
		if !e.ResolvedAt.IsZero() {
			resolvedAt = e.ResolvedAt.UTC().Format(time.RFC3339)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", e.TransactionCode, e.Status, resolvedAt)
	}
	return w.Flush()
}
