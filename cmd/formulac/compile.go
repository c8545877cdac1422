package main

import (
	"context"
	"io"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/canonical/sqlformula"
	"github.com/canonical/sqlformula/internal/store"
	"github.com/canonical/sqlformula/meta"
)

// openProvider opens the catalog database of cfg, seeding it with the
// catalog file when there is one. A catalog file without database is
// loaded into an in memory sqlite database.
func openProvider(ctx context.Context, cfg catalogConfig, logger log.Logger) (meta.Provider, func() error, error) {
	var st *store.Store
	var err error
	switch {
	case cfg.SQLite != "" && len(cfg.Dqlite.Addresses) > 0:
		return nil, nil, errors.New("cannot use both a sqlite and a dqlite catalog")
	case cfg.SQLite != "":
		st, err = store.OpenSQLite(ctx, cfg.SQLite, store.WithLogger(logger))
	case len(cfg.Dqlite.Addresses) > 0:
		st, err = store.OpenDqlite(ctx, cfg.Dqlite.Database, cfg.Dqlite.Addresses, store.WithLogger(logger))
	case cfg.File != "":
		st, err = store.OpenSQLite(ctx, ":memory:", store.WithLogger(logger))
	default:
		return nil, nil, errors.New("no catalog: use --catalog, --sqlite or --dqlite")
	}
	if err != nil {
		return nil, nil, err
	}

	if cfg.File != "" {
		catalog, err := store.LoadCatalogFile(cfg.File)
		if err == nil {
			err = st.Seed(ctx, catalog)
		}
		if err != nil {
			st.Close()
			return nil, nil, err
		}
		level.Debug(logger).Log("msg", "loaded catalog", "file", cfg.File)
	}
	return st, st.Close, nil
}

// compileAll compiles every formula and writes the results to w as a YAML
// stream.
func compileAll(ctx context.Context, provider meta.Provider, culture sqlformula.Culture, opts sqlformula.Options, formulas []string, w io.Writer, logger log.Logger) (bool, error) {
	compiler := sqlformula.New(provider, sqlformula.WithLogger(logger), sqlformula.WithCulture(culture))

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	ok := true
	for _, formula := range formulas {
		res, err := compiler.Compile(ctx, formula, opts)
		if err != nil {
			return false, errors.Wrapf(err, "cannot compile %q", formula)
		}
		ok = ok && res.IsSuccess()
		if err := enc.Encode(newResultView(formula, res)); err != nil {
			return false, errors.Wrap(err, "cannot write result")
		}
	}
	if err := enc.Close(); err != nil {
		return false, errors.Wrap(err, "cannot write result")
	}
	return ok, nil
}

type resultView struct {
	Formula     string             `yaml:"formula"`
	Success     bool               `yaml:"success"`
	Type        string             `yaml:"type,omitempty"`
	SQL         string             `yaml:"sql,omitempty"`
	XML         string             `yaml:"xml,omitempty"`
	Aggregate   bool               `yaml:"aggregate,omitempty"`
	Aggregation string             `yaml:"aggregation,omitempty"`
	Columns     []string           `yaml:"columns,omitempty"`
	Nesting     []meta.NestingFact `yaml:"nesting,omitempty"`
	Errors      []errorView        `yaml:"errors,omitempty"`
}

type errorView struct {
	Code     string         `yaml:"code"`
	Message  string         `yaml:"message"`
	Position *int          `yaml:"position,omitempty"`
	Data     map[string]any `yaml:"data,omitempty"`
	Cause    string         `yaml:"cause,omitempty"`
}

func newResultView(formula string, res *sqlformula.ParseResult) *resultView {
	v := &resultView{
		Formula:   formula,
		Success:   res.IsSuccess(),
		SQL:       res.SQL,
		XML:       res.XML,
		Aggregate: res.IsAggregate,
		Nesting:   res.Nesting,
	}
	if res.ResultType != meta.Undefined {
		v.Type = res.ResultType.String()
	}
	if res.Aggregation != meta.NoAggregation {
		v.Aggregation = res.Aggregation.String()
	}
	for _, col := range res.ReferencedColumns {
		v.Columns = append(v.Columns, col.String())
	}
	for _, e := range res.Errors {
		ev := errorView{Code: e.Code.String(), Message: e.Message, Data: e.Data}
		if e.Pos >= 0 {
			pos := e.Pos
			ev.Position = &pos
		}
		if e.Err != nil {
			ev.Cause = e.Err.Error()
		}
		v.Errors = append(v.Errors, ev)
	}
	return v
}
