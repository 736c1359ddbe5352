package main

// main.go

import (
	"os"

	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	confFilepath := "config.json"
	if len(os.Args) == 2 {
		confFilepath = os.Args[1]
	}

	conf, err := loadConfig(confFilepath)
	if err != nil {
		Log.WithField("error", err).Fatal("failed to load config")
	}

	server, err := newServer(conf)
	if err != nil {
		Log.WithField("error", err).Fatal("failed to initialise server")
	}

	if err := server.run(); err != nil {
		Log.WithField("error", err).Fatal("web server stopped")
	}
}
