package cmd

import (
	"flag"
	"testing"

	"github.com/achilleasa/darkray/log"
	"github.com/urfave/cli"
)

func TestLogLevel(t *testing.T) {
	type spec struct {
		args   []string
		exp    log.Level
		expErr bool
	}
	specs := []spec{
		{nil, log.Notice, false},
		{[]string{"-v"}, log.Info, false},
		{[]string{"-vv"}, log.Debug, false},
		{[]string{"-v", "-vv"}, log.Debug, false},
		{[]string{"-vv", "--log-level", "warning"}, log.Warning, false},
		{[]string{"--log-level", "ERROR"}, log.Error, false},
		{[]string{"--log-level", "loud"}, log.Notice, true},
	}

	for index, s := range specs {
		level, err := logLevel(commandContext(t, s.args...))
		if s.expErr {
			if err == nil {
				t.Fatalf("[spec %d] expected an error", index)
			}
			continue
		}
		if err != nil {
			t.Fatalf("[spec %d] unexpected error: %v", index, err)
		}
		if level != s.exp {
			t.Fatalf("[spec %d] expected level %d; got %d", index, s.exp, level)
		}
	}
}

// Build a command context whose parent carries the given global flags.
func commandContext(t *testing.T, globalArgs ...string) *cli.Context {
	global := flag.NewFlagSet("darkray", flag.ContinueOnError)
	global.Bool("v", false, "")
	global.Bool("vv", false, "")
	global.String("log-level", "", "")
	if err := global.Parse(globalArgs); err != nil {
		t.Fatal(err)
	}

	return cli.NewContext(nil, flag.NewFlagSet("cmd", flag.ContinueOnError), cli.NewContext(nil, global, nil))
}
