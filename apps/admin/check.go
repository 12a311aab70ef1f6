package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"

	"github.com/trezcool/masomopay/core/payment"
)

// check asks the payments backend once, the way a single poll does.
func (cli *commandLine) check(code payment.TransactionCode) error {
	if err := payment.ValidateCode(cli.validate, code); err != nil {
		return errors.Errorf("invalid transaction code %q", code)
	}

	ctx, cancel := context.WithTimeout(context.Background(), cli.conf.Payments.RequestTimeout)
	defer cancel()

	paid, err := cli.gateway.CheckStatus(ctx, code)
	if err != nil {
		return errors.Wrapf(err, "checking %s", code)
	}
	if paid {
		_, _ = fmt.Fprintf(cli.out, "%s: paid\n", code)
	} else {
		_, _ = fmt.Fprintf(cli.out, "%s: not paid\n", code)
	}
	return nil
}
