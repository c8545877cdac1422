// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Command formulac compiles formulas against a metadata catalog and prints
// the generated SQL and XML as YAML documents.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jessevdk/go-flags"
)

type options struct {
	Config     string   `long:"config" short:"c" description:"YAML configuration file" env:"FORMULAC_CONFIG"`
	Catalog    string   `long:"catalog" description:"YAML catalog file. Seeded into the database when one is given"`
	SQLite     string   `long:"sqlite" description:"sqlite DSN of the catalog database"`
	Dqlite     []string `long:"dqlite" description:"dqlite node address of the catalog database. Can be specified more than once"`
	Database   string   `long:"database" description:"dqlite database name"`
	Output     string   `long:"output" short:"o" description:"type the formulas must produce"`
	Decimals   int      `long:"decimals" short:"d" description:"decimal places of the formula results"`
	SQLOptions string   `long:"sql-options" description:"comma separated SQL rewrites, or All"`
	Nesting    int      `long:"max-nesting" description:"function nesting budget"`
	NoXML      bool     `long:"no-xml" description:"do not generate XML"`
	NoSQL      bool     `long:"no-sql" description:"do not generate SQL"`
	UserID     int      `long:"user" short:"u" description:"id of the user compiling the formulas"`
	Verbose    bool     `long:"verbose" short:"v" description:"log debug messages"`

	Args struct {
		Formulas []string `positional-arg-name:"formula" required:"1"`
	} `positional-args:"yes"`
}

func main() {
	option := &options{}
	parser := flags.NewParser(option, flags.Default)
	parser.ShortDescription = `formulac`
	parser.LongDescription = `Compiles formulas into SQL and XML against a metadata catalog`

	if _, err := parser.Parse(); err != nil {
		code := 1
		if fe, ok := err.(*flags.Error); ok {
			if fe.Type == flags.ErrHelp {
				code = 0
			}
		}
		os.Exit(code)
	}

	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if option.Verbose {
		logger = level.NewFilter(logger, level.AllowDebug())
	} else {
		logger = level.NewFilter(logger, level.AllowWarn())
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		level.Info(logger).Log("msg", "received shutdown signal")
		cancel()
	}()

	isSet := func(name string) bool {
		opt := parser.FindOptionByLongName(name)
		return opt != nil && opt.IsSet()
	}
	ok, err := run(ctx, option, isSet, os.Stdout, logger)
	if err != nil {
		level.Error(logger).Log("msg", "cannot compile formulas", "err", err)
		os.Exit(1)
	}
	if !ok {
		os.Exit(1)
	}
}

// run compiles the formulas of opt and writes one YAML document per formula
// to w. It reports whether every formula compiled.
func run(ctx context.Context, opt *options, isSet func(string) bool, w io.Writer, logger log.Logger) (bool, error) {
	cfg := defaultConfig()
	if opt.Config != "" {
		var err error
		if cfg, err = loadConfig(opt.Config); err != nil {
			return false, err
		}
	}
	cfg.override(opt, isSet)

	compileOpts, err := cfg.compileOptions()
	if err != nil {
		return false, err
	}
	compileOpts.GenerateSQL = !opt.NoSQL
	compileOpts.GenerateXML = !opt.NoXML

	culture, err := cfg.Culture.culture()
	if err != nil {
		return false, err
	}

	provider, closer, err := openProvider(ctx, cfg.Catalog, logger)
	if err != nil {
		return false, err
	}
	defer closer()

	return compileAll(ctx, provider, culture, compileOpts, opt.Args.Formulas, w, logger)
}
