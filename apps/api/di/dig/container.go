package dig_container

import (
	"fmt"
	"log"
	"os"

	ut "github.com/go-playground/universal-translator"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/masomopay/apps/api/echo"
	"github.com/trezcool/masomopay/core"
	"github.com/trezcool/masomopay/core/payment"
	emailsvc "github.com/trezcool/masomopay/services/email"
	"github.com/trezcool/masomopay/services/gateway"
	logsvc "github.com/trezcool/masomopay/services/logger"
	"github.com/trezcool/masomopay/services/notify"
	"github.com/trezcool/masomopay/storage/database"
	"github.com/trezcool/masomopay/storage/ledger/inmem"
	"github.com/trezcool/masomopay/storage/ledger/sqlxstore"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

// LedgerBackend is where ledger entries are kept.
type LedgerBackend struct {
	Store payment.Store
	DB    *sqlx.DB // nil unless the ledger lives in a database
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newLedgerBackend(conf *core.Config, loggerParam DBLoggerParam) LedgerBackend {
	switch conf.Ledger.Driver {
	case "memory":
		return LedgerBackend{Store: inmem.NewStore()}
	case "none":
		loggerParam.Logger.Warn("ledger disabled: resolved payments will be polled again")
		return LedgerBackend{Store: payment.UnavailableStore{}}
	case database.EngineSQLite, database.EnginePostgres:
	default:
		loggerParam.Logger.Fatal(fmt.Sprintf("unknown ledger driver %q", conf.Ledger.Driver))
	}

	setUp := func() (*sqlx.DB, error) {
		if err := database.CreateIfNotExist(conf); err != nil {
			return nil, err
		}

		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(db); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return LedgerBackend{Store: sqlxstore.NewStore(db), DB: db}
}

func newLedgerFactory(conf *core.Config, backend LedgerBackend, logger core.Logger) echoapi.LedgerFactory {
	return func(studentID string) payment.StatusLedger {
		return payment.NewLedger(backend.Store, conf.Ledger.KeyPrefix, studentID, logger)
	}
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newActionsFactory(mailer *notify.Mailer) echoapi.ActionsFactory {
	return mailer.For
}

func newPoller(conf *core.Config, gw payment.Gateway, logger core.Logger) *payment.Poller {
	return payment.NewPoller(gw, logger, payment.OptionsFromConfig(conf.Payments))
}

func newServer(
	conf *core.Config,
	logger core.Logger,
	translator ut.Translator,
	paymentSvc *payment.Service,
	ledgers echoapi.LedgerFactory,
	actions echoapi.ActionsFactory,
) *echoapi.Server {
	return echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Translator: translator,
		PaymentSvc: paymentSvc,
		Ledgers:    ledgers,
		Actions:    actions,
	})
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(core.NewValidator))
	must(c.Provide(newLedgerBackend))
	must(c.Provide(newLedgerFactory))
	must(c.Provide(newEmailService))
	must(c.Provide(notify.NewMailer))
	must(c.Provide(newActionsFactory))
	must(c.Provide(gateway.NewRESTGateway, dig.As(new(payment.Gateway))))
	must(c.Provide(newPoller))
	must(c.Provide(payment.NewService))
	must(c.Provide(newServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
