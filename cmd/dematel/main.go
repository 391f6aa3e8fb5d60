package main

import (
	"os"

	"github.com/OFFIS-RIT/dematel/internal/util"
	"github.com/OFFIS-RIT/dematel/pkg/logger"
	"github.com/OFFIS-RIT/dematel/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: util.GetEnvBool("DEBUG", false),
	})
	logger.Init(consoleLogger)

	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
