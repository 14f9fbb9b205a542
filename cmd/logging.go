package cmd

import (
	"fmt"

	"github.com/achilleasa/darkray/log"
	"github.com/urfave/cli"
)

var logger = log.New("darkray")

// Apply the global verbosity flags to all loggers.
func setupLogging(ctx *cli.Context) error {
	level, err := logLevel(ctx)
	if err != nil {
		return err
	}
	log.SetLevel(level)
	return nil
}

// Select the log level from the global flags. An explicit --log-level wins
// over -v and -vv.
func logLevel(ctx *cli.Context) (log.Level, error) {
	if name := ctx.GlobalString("log-level"); name != "" {
		level, err := log.ParseLevel(name)
		if err != nil {
			return log.Notice, fmt.Errorf("invalid --log-level: %v", err)
		}
		return level, nil
	}

	switch {
	case ctx.GlobalBool("vv"):
		return log.Debug, nil
	case ctx.GlobalBool("v"):
		return log.Info, nil
	}
	return log.Notice, nil
}
