package main

import (
	"context"
	"log"
	"os"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/malalamiko/core"
	"github.com/trezcool/malalamiko/core/account"
	"github.com/trezcool/malalamiko/core/course"
	"github.com/trezcool/malalamiko/storage/database"
	sqlxrepos "github.com/trezcool/malalamiko/storage/database/sqlx"
)

var logger *log.Logger

func main() {
	logger = log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	conf := core.NewConfig()

	// set up DB
	db, err := database.Open(context.Background(), conf)
	errAndDie(err)

	// set up services
	translator := core.NewTranslator()
	validate := validator.New()
	core.InitValidators(validate, translator)
	account.InitValidators(validate, translator)

	courseRepo := sqlxrepos.NewCourseRepository(db)

	// start CLI
	cli := commandLine{
		db:         db.DB,
		courseSvc:  course.NewService(courseRepo, validate),
		accountSvc: account.NewService(sqlxrepos.NewAccountRepository(db), courseRepo, validate),
		out:        os.Stdout,
	}
	err = cli.run(os.Args)
	_ = db.Close()
	if err != nil {
		if err != errHelp {
			logger.Printf("\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err)
	}
}
