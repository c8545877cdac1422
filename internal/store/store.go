// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package store keeps the formula metadata catalog in a SQL database, either
// a local sqlite file or a dqlite cluster, and serves it as a meta.Provider.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/canonical/go-dqlite/client"
	"github.com/canonical/go-dqlite/driver"
	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/canonical/sqlformula/meta"
)

// Store is a meta.Provider over a catalog database.
type Store struct {
	db     *sql.DB
	logger log.Logger
}

var _ meta.Provider = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger of the store.
func WithLogger(logger log.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

// New returns a store over an open database. The schema is not created.
func New(db *sql.DB, opts ...Option) *Store {
	s := &Store{db: db, logger: log.NewNopLogger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// OpenSQLite opens the sqlite database at dsn and creates the catalog
// schema if it is missing.
func OpenSQLite(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open sqlite database %q", dsn)
	}
	if strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory") {
		// Every connection to an in memory database sees its own database.
		db.SetMaxOpenConns(1)
	}
	s := New(db, opts...)
	if err := s.CreateSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// OpenDqlite connects to the dqlite cluster reachable at addresses, opens
// the database called name and creates the catalog schema if it is
// missing.
func OpenDqlite(ctx context.Context, name string, addresses []string, opts ...Option) (*Store, error) {
	if len(addresses) == 0 {
		return nil, errors.New("cannot open dqlite database: no node addresses")
	}
	s := New(nil, opts...)

	nodes := make([]client.NodeInfo, len(addresses))
	for i, address := range addresses {
		nodes[i] = client.NodeInfo{ID: uint64(i + 1), Address: address, Role: client.Voter}
	}
	nodeStore := client.NewInmemNodeStore()
	if err := nodeStore.Set(ctx, nodes); err != nil {
		return nil, errors.Wrap(err, "cannot set dqlite nodes")
	}

	drv, err := driver.New(nodeStore, driver.WithLogFunc(s.dqliteLog))
	if err != nil {
		return nil, errors.Wrap(err, "cannot create dqlite driver")
	}
	// Drivers cannot be unregistered, each store gets its own name.
	driverName := "dqlite-" + uuid.New().String()
	sql.Register(driverName, drv)

	db, err := sql.Open(driverName, name)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot open dqlite database %q", name)
	}
	s.db = db
	if err := s.CreateSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) dqliteLog(l client.LogLevel, format string, a ...interface{}) {
	logger := level.Debug(s.logger)
	switch l {
	case client.LogWarn:
		logger = level.Warn(s.logger)
	case client.LogError:
		logger = level.Error(s.logger)
	}
	logger.Log("msg", fmt.Sprintf(format, a...), "component", "dqlite")
}

// DB returns the underlying database.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSchema creates the catalog tables that do not exist yet.
func (s *Store) CreateSchema(ctx context.Context) error {
	for _, stmt := range strings.Split(schema, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "cannot create catalog schema")
		}
	}
	return nil
}

const functionColumns = `id, name, category, result_type, result_arg, sql_expression, variable_args, max_nesting, aggregation`

// Functions returns all functions with their parameters, ordered by id.
func (s *Store) Functions(ctx context.Context) ([]*meta.Function, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+functionColumns+` FROM function ORDER BY id`)
	if err != nil {
		return nil, errors.Wrap(err, "cannot query functions")
	}
	var functions []*meta.Function
	byID := map[int]*meta.Function{}
	for rows.Next() {
		fn, err := scanFunction(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		functions = append(functions, fn)
		byID[fn.ID] = fn
	}
	if err := closeRows(rows); err != nil {
		return nil, errors.Wrap(err, "cannot query functions")
	}

	rows, err = s.db.QueryContext(ctx, `
SELECT function_id, idx, name, value_type, value_arg, optional, known_values
FROM parameter
ORDER BY function_id, idx`)
	if err != nil {
		return nil, errors.Wrap(err, "cannot query parameters")
	}
	for rows.Next() {
		var functionID, arg int
		var typeName string
		p := &meta.Parameter{}
		if err := rows.Scan(&functionID, &p.Index, &p.Name, &typeName, &arg, &p.Optional, &p.KnownValues); err != nil {
			rows.Close()
			return nil, errors.Wrap(err, "cannot scan parameter")
		}
		if p.Value, err = parseType(typeName, arg); err != nil {
			rows.Close()
			return nil, errors.Wrapf(err, "invalid type of parameter %d of function %d", p.Index, functionID)
		}
		if fn, ok := byID[functionID]; ok {
			fn.Parameters = append(fn.Parameters, p)
		}
	}
	if err := closeRows(rows); err != nil {
		return nil, errors.Wrap(err, "cannot query parameters")
	}
	return functions, nil
}

func scanFunction(rows *sql.Rows) (*meta.Function, error) {
	fn := &meta.Function{}
	var category, resultType, aggregation string
	var resultArg int
	if err := rows.Scan(&fn.ID, &fn.Name, &category, &resultType, &resultArg, &fn.SQL, &fn.VariableArgs, &fn.MaxNesting, &aggregation); err != nil {
		return nil, errors.Wrap(err, "cannot scan function")
	}
	fn.Category = meta.Category(category)
	var err error
	if fn.Result, err = parseType(resultType, resultArg); err != nil {
		return nil, errors.Wrapf(err, "invalid result type of function %d", fn.ID)
	}
	if fn.Aggregation, err = meta.ParseAggregationKind(aggregation); err != nil {
		return nil, errors.Wrapf(err, "invalid aggregation of function %d", fn.ID)
	}
	return fn, nil
}

const columnColumns = `entity_name, entity_id, name, title, column_id, storage_type, display_type, is_active, is_selectable,
calculated_field_id, calculated_field_type, calculated_field_active, calculated_field_public, calculated_field_owner`

// ColumnByName returns the first column whose name or title matches column,
// ignoring case. An empty entity matches any entity.
func (s *Store) ColumnByName(ctx context.Context, entity, column string) (*meta.Column, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+columnColumns+`
FROM report_column
WHERE (? = '' OR entity_name = ? COLLATE NOCASE)
AND (name = ? COLLATE NOCASE OR (title <> '' AND title = ? COLLATE NOCASE))
ORDER BY rowid
LIMIT 1`, entity, entity, column, column)
	col, err := scanColumn(row)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot get column [%s].[%s]", entity, column)
	}
	return col, nil
}

// ColumnByID returns the column with the given ids. An entity id of 0
// matches any entity.
func (s *Store) ColumnByID(ctx context.Context, entityID, columnID int) (*meta.Column, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+columnColumns+`
FROM report_column
WHERE column_id = ? AND (? = 0 OR entity_id = ?)
ORDER BY rowid
LIMIT 1`, columnID, entityID, entityID)
	col, err := scanColumn(row)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot get column [%d:%d]", entityID, columnID)
	}
	return col, nil
}

func scanColumn(row *sql.Row) (*meta.Column, error) {
	c := &meta.Column{}
	var storage, display, fieldType string
	err := row.Scan(&c.EntityName, &c.EntityID, &c.Name, &c.Title, &c.ColumnID, &storage, &display, &c.IsActive, &c.IsSelectable,
		&c.CalculatedFieldID, &fieldType, &c.CalculatedFieldActive, &c.CalculatedFieldPublic, &c.CalculatedFieldOwner)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	c.Storage = meta.StorageType(storage)
	c.Display = meta.DisplayType(display)
	if c.CalculatedFieldType, err = meta.ParseDataType(fieldType); err != nil {
		return nil, err
	}
	return c, nil
}

// CalculatedField returns the calculated field with the given id, or nil.
func (s *Store) CalculatedField(ctx context.Context, id int) (*meta.CalculatedField, error) {
	f := &meta.CalculatedField{}
	var aggregation, outputType, nesting string
	err := s.db.QueryRowContext(ctx, `
SELECT id, name, is_active, is_aggregate, aggregation, output_type, xml, nesting
FROM calculated_field
WHERE id = ?`, id).Scan(&f.ID, &f.Name, &f.IsActive, &f.IsAggregate, &aggregation, &outputType, &f.XML, &nesting)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "cannot get calculated field %d", id)
	}
	if f.Aggregation, err = meta.ParseAggregationKind(aggregation); err != nil {
		return nil, errors.Wrapf(err, "invalid aggregation of calculated field %d", id)
	}
	if f.OutputType, err = meta.ParseDataType(outputType); err != nil {
		return nil, errors.Wrapf(err, "invalid output type of calculated field %d", id)
	}
	if f.Nesting, err = decodeNesting(nesting); err != nil {
		return nil, errors.Wrapf(err, "invalid nesting of calculated field %d", id)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT ref_field_id FROM calculated_field_ref WHERE field_id = ? ORDER BY ref_field_id`, id)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot get references of calculated field %d", id)
	}
	for rows.Next() {
		var ref int
		if err := rows.Scan(&ref); err != nil {
			rows.Close()
			return nil, errors.Wrapf(err, "cannot get references of calculated field %d", id)
		}
		f.References = append(f.References, ref)
	}
	if err := closeRows(rows); err != nil {
		return nil, errors.Wrapf(err, "cannot get references of calculated field %d", id)
	}
	return f, nil
}

// ReferencesCalculatedField reports whether the calculated field uses other
// calculated fields.
func (s *Store) ReferencesCalculatedField(ctx context.Context, id int) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM calculated_field_ref WHERE field_id = ?)`, id).Scan(&exists)
	if err != nil {
		return false, errors.Wrapf(err, "cannot get references of calculated field %d", id)
	}
	return exists, nil
}

func closeRows(rows *sql.Rows) error {
	if err := rows.Err(); err != nil {
		rows.Close()
		return err
	}
	return rows.Close()
}

func parseType(name string, arg int) (meta.Type, error) {
	if arg > 0 {
		return meta.SameAsArgument(arg), nil
	}
	t, err := meta.ParseDataType(name)
	if err != nil {
		return meta.Type{}, err
	}
	return meta.Fixed(t), nil
}
