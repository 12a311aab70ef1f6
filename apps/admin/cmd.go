package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"syscall"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/masomopay/core"
	"github.com/trezcool/masomopay/core/payment"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp    = errors.New("help provided")
	errAborted = errors.New("aborted")
)

// ledgerStore is a ledger store that can also be browsed.
type ledgerStore interface {
	payment.Store
	ListNamespace(ctx context.Context, namespace string) ([]payment.LedgerEntry, error)
	ClearNamespace(ctx context.Context, namespace string) (int, error)
}

type commandLine struct {
	conf     *core.Config
	db       *sqlx.DB
	store    ledgerStore
	gateway  payment.Gateway
	validate *validator.Validate

	in  io.Reader
	out io.Writer
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS] - run database migrations (up, down, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  ledger get -student ID -code CODE - show the recorded outcome of a payment")
	_, _ = fmt.Fprintln(cli.out, "  ledger list -student ID - list the recorded outcomes of a student")
	_, _ = fmt.Fprintln(cli.out, "  ledger clear -student ID [-yes] - forget the recorded outcomes of a student")
	_, _ = fmt.Fprintln(cli.out, "  check -code CODE - ask the payments backend whether a payment was made")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "ledger":
		return cli.runLedger(args[2:])
	case "check":
		checkCmd := flag.NewFlagSet("check", flag.ExitOnError)
		checkCode := checkCmd.String("code", "", "The transaction code.")
		if err := checkCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *checkCode == "" {
			checkCmd.Usage()
			return errHelp
		}
		return cli.check(payment.TransactionCode(core.CleanString(*checkCode)))
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) runLedger(args []string) error {
	if len(args) < 1 {
		cli.printUsage()
		return errHelp
	}

	ledgerCmd := flag.NewFlagSet("ledger "+args[0], flag.ExitOnError)
	ledgerStudent := ledgerCmd.String("student", "", "The student's ID.")
	ledgerCode := ledgerCmd.String("code", "", "The transaction code (get).")
	ledgerYes := ledgerCmd.Bool("yes", false, "Do not ask for confirmation (clear).")

	switch args[0] {
	case "get", "list", "clear":
		if err := ledgerCmd.Parse(args[1:]); err != nil {
			return err
		}
	default:
		cli.printUsage()
		return errHelp
	}

	student := core.CleanString(*ledgerStudent)
	if student == "" {
		ledgerCmd.Usage()
		return errHelp
	}

	switch args[0] {
	case "get":
		code := core.CleanString(*ledgerCode)
		if code == "" {
			ledgerCmd.Usage()
			return errHelp
		}
		return cli.ledgerGet(student, payment.TransactionCode(code))
	case "list":
		return cli.ledgerList(student)
	default:
		if !*ledgerYes && !cli.confirm(fmt.Sprintf("Forget every payment outcome of student %q?", student)) {
			return errAborted
		}
		return cli.ledgerClear(student)
	}
}

// confirm asks a yes/no question; without a terminal to ask on, the answer is no.
func (cli *commandLine) confirm(question string) bool {
	if !isTerminalFunc(int(syscall.Stdin)) {
		_, _ = fmt.Fprintln(cli.out, "not a terminal: use -yes to confirm")
		return false
	}
	_, _ = fmt.Fprintf(cli.out, "%s [y/N]: ", question)
	answer, err := bufio.NewReader(cli.in).ReadString('\n')
	if err != nil && answer == "" {
		return false
	}
	answer = core.CleanString(answer, true /* lower */)
	return answer == "y" || answer == "yes"
}
