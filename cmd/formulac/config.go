package main

import (
	"os"
	"unicode/utf8"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/canonical/sqlformula"
	"github.com/canonical/sqlformula/meta"
)

// config is the content of a formulac configuration file. Command line
// flags override it.
type config struct {
	Output             string        `yaml:"output"`
	Decimals           int           `yaml:"decimals"`
	SQLOptions         string        `yaml:"sqlOptions"`
	MaxFunctionNesting int           `yaml:"maxFunctionNesting"`
	UserID             int           `yaml:"userId"`
	Grammar            grammarConfig `yaml:"grammar"`
	Culture            cultureConfig `yaml:"culture"`
	Catalog            catalogConfig `yaml:"catalog"`
}

type grammarConfig struct {
	Quote       string `yaml:"quote"`
	Delimiter   string `yaml:"delimiter"`
	ColumnStart string `yaml:"columnStart"`
	ColumnEnd   string `yaml:"columnEnd"`
}

type cultureConfig struct {
	DecimalSeparator string   `yaml:"decimalSeparator"`
	Yes              string   `yaml:"yes"`
	No               string   `yaml:"no"`
	DateLayouts      []string `yaml:"dateLayouts"`
}

type catalogConfig struct {
	File   string       `yaml:"file"`
	SQLite string       `yaml:"sqlite"`
	Dqlite dqliteConfig `yaml:"dqlite"`
}

type dqliteConfig struct {
	Database  string   `yaml:"database"`
	Addresses []string `yaml:"addresses"`
}

func defaultConfig() *config {
	return &config{
		Catalog: catalogConfig{Dqlite: dqliteConfig{Database: "catalog"}},
	}
}

func loadConfig(path string) (*config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot read config")
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, errors.Wrapf(err, "cannot decode config %q", path)
	}
	return cfg, nil
}

// override replaces the settings given on the command line.
func (c *config) override(opt *options, isSet func(string) bool) {
	if isSet("output") {
		c.Output = opt.Output
	}
	if isSet("decimals") {
		c.Decimals = opt.Decimals
	}
	if isSet("sql-options") {
		c.SQLOptions = opt.SQLOptions
	}
	if isSet("max-nesting") {
		c.MaxFunctionNesting = opt.Nesting
	}
	if isSet("user") {
		c.UserID = opt.UserID
	}
	if isSet("catalog") {
		c.Catalog.File = opt.Catalog
	}
	if isSet("sqlite") {
		c.Catalog.SQLite = opt.SQLite
	}
	if isSet("dqlite") {
		c.Catalog.Dqlite.Addresses = opt.Dqlite
	}
	if isSet("database") {
		c.Catalog.Dqlite.Database = opt.Database
	}
}

func (c *config) compileOptions() (sqlformula.Options, error) {
	opts := sqlformula.DefaultOptions()
	var err error
	if opts.OutputType, err = meta.ParseDataType(c.Output); err != nil {
		return opts, errors.Wrap(err, "invalid output type")
	}
	if opts.SQLOptions, err = sqlformula.ParseSQLOptions(c.SQLOptions); err != nil {
		return opts, err
	}
	if opts.Grammar, err = c.Grammar.grammar(); err != nil {
		return opts, err
	}
	opts.DecimalPoints = c.Decimals
	opts.MaxFunctionNesting = c.MaxFunctionNesting
	opts.UserID = c.UserID
	return opts, nil
}

func (g grammarConfig) grammar() (sqlformula.Grammar, error) {
	grammar := sqlformula.DefaultGrammar()
	for _, f := range []struct {
		name  string
		value string
		dest  *rune
	}{
		{"quote", g.Quote, &grammar.Quote},
		{"delimiter", g.Delimiter, &grammar.Delimiter},
		{"columnStart", g.ColumnStart, &grammar.ColumnStart},
		{"columnEnd", g.ColumnEnd, &grammar.ColumnEnd},
	} {
		if f.value == "" {
			continue
		}
		r, err := singleRune(f.value)
		if err != nil {
			return grammar, errors.Wrapf(err, "invalid grammar %s", f.name)
		}
		*f.dest = r
	}
	return grammar, nil
}

func (c cultureConfig) culture() (sqlformula.Culture, error) {
	culture := sqlformula.DefaultCulture()
	if c.DecimalSeparator != "" {
		r, err := singleRune(c.DecimalSeparator)
		if err != nil {
			return culture, errors.Wrap(err, "invalid culture decimalSeparator")
		}
		culture.DecimalSeparator = r
	}
	if c.Yes != "" {
		culture.Yes = c.Yes
	}
	if c.No != "" {
		culture.No = c.No
	}
	if len(c.DateLayouts) > 0 {
		culture.DateLayouts = c.DateLayouts
	}
	return culture, nil
}

func singleRune(s string) (rune, error) {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError || size != len(s) {
		return 0, errors.Errorf("%q is not a single character", s)
	}
	return r, nil
}
