package main

import (
	"database/sql"
	"net/http"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"veery/internal/config"
	"veery/internal/directory"
	"veery/internal/relay"
	"veery/internal/server"
	"veery/internal/store"
)

func main() {
	log := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("loading configuration failed")
	}
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.WithError(err).Fatal("invalid log level")
	}
	log.SetLevel(level)

	var dir directory.Directory
	var st store.MessageStore
	switch cfg.Store {
	case "memory":
		dir = directory.NewMemory()
		st = store.NewMemory()
	default:
		db, err := sql.Open("sqlite3", cfg.DBPath)
		if err != nil {
			log.WithError(err).Fatal("opening database failed")
		}
		if dir, err = directory.NewSQLite(db); err != nil {
			log.WithError(err).Fatal("initializing user directory failed")
		}
		if st, err = store.NewSQLite(db); err != nil {
			log.WithError(err).Fatal("initializing message store failed")
		}
	}

	r := relay.New(dir, st, relay.NewRegistry(log), log)
	srv := server.New(dir, st, r, log)

	log.WithField("addr", cfg.Listen).Info("server started")
	if err := http.ListenAndServe(cfg.Listen, srv.Router()); err != nil {
		log.WithError(err).Fatal("server stopped")
	}
}
