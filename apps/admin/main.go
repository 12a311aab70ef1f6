package main

import (
	"fmt"
	"log"
	"os"

	"github.com/trezcool/masomopay/core"
	"github.com/trezcool/masomopay/services/gateway"
	"github.com/trezcool/masomopay/services/logger"
	"github.com/trezcool/masomopay/storage/database"
	"github.com/trezcool/masomopay/storage/ledger/sqlxstore"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	defer logger.Close()

	// set up DB
	if err := database.CreateIfNotExist(conf); err != nil {
		logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}

	// start CLI
	cli := commandLine{
		conf:     conf,
		db:       db,
		store:    sqlxstore.NewStore(db),
		gateway:  gateway.NewRESTGateway(conf),
		validate: core.NewValidator(core.NewTranslator()),
		in:       os.Stdin,
		out:      os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Error(fmt.Sprintf("error: %v", err), err)
		}
		logger.Close()
		os.Exit(1)
	}
}
