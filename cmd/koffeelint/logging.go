package main

import (
	"os"

	"gopkg.in/op/go-logging.v1"
)

var log = logging.MustGetLogger("koffeelint")

// translateLogLevel translates our verbosity flag to logging levels.
func translateLogLevel(verbosity int) logging.Level {
	switch {
	case verbosity <= 0:
		return logging.ERROR
	case verbosity == 1:
		return logging.WARNING
	case verbosity == 2:
		return logging.NOTICE
	case verbosity == 3:
		return logging.INFO
	default:
		return logging.DEBUG
	}
}

// initLogging sends all module logs to stderr at the requested verbosity.
func initLogging(verbosity int) {
	backend := logging.NewLogBackend(os.Stderr, "", 0)
	formatter := logging.MustStringFormatter("%{time:15:04:05.000} %{level:7s} %{module}: %{message}")
	leveled := logging.AddModuleLevel(logging.NewBackendFormatter(backend, formatter))
	leveled.SetLevel(translateLogLevel(verbosity), "")
	logging.SetBackend(leveled)
}
