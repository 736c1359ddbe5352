package main

import (
	log "github.com/sirupsen/logrus"
)

// Log is the process-wide logger.
var Log = log.New()

func init() {
	Log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
}
