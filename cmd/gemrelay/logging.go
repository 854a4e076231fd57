package main

import (
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/gemrelay/gemrelay/pkg/config"
)

func setupLogging(cfg config.LogConfig) {
	log.SetOutput(os.Stderr)
	if cfg.Format == "json" {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		log.WithField("level", cfg.Level).Warn("unknown log level, using info")
		level = log.InfoLevel
	}
	log.SetLevel(level)
}
