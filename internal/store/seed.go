package store

import (
	"context"
	"database/sql"
	"io"
	"os"

	"github.com/go-kit/log/level"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/canonical/sqlformula/meta"
)

// LoadCatalogFile decodes the YAML catalog at path.
func LoadCatalogFile(path string) (*meta.Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "cannot open catalog")
	}
	defer f.Close()
	c, err := DecodeCatalog(f)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot load catalog %q", path)
	}
	return c, nil
}

// DecodeCatalog decodes a YAML catalog document.
func DecodeCatalog(r io.Reader) (*meta.Catalog, error) {
	var c meta.Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "cannot decode catalog")
	}
	return &c, nil
}

// Seed inserts the catalog in a single transaction. Nothing is inserted when
// any row fails.
func (s *Store) Seed(ctx context.Context, c *meta.Catalog) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "cannot seed catalog")
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if err := seedFunctions(ctx, tx, c.Functions); err != nil {
		return err
	}
	if err := seedColumns(ctx, tx, c.Columns); err != nil {
		return err
	}
	if err := seedCalculatedFields(ctx, tx, c.CalculatedFields); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "cannot seed catalog")
	}
	level.Debug(s.logger).Log("msg", "seeded catalog", "functions", len(c.Functions), "columns", len(c.Columns), "calculated_fields", len(c.CalculatedFields))
	return nil
}

func seedFunctions(ctx context.Context, tx *sql.Tx, functions []*meta.Function) error {
	insertFunction, err := tx.PrepareContext(ctx, `
INSERT INTO function (id, name, category, result_type, result_arg, sql_expression, variable_args, max_nesting, aggregation)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "cannot prepare function insert")
	}
	defer insertFunction.Close()
	insertParameter, err := tx.PrepareContext(ctx, `
INSERT INTO parameter (function_id, idx, name, value_type, value_arg, optional, known_values)
VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "cannot prepare parameter insert")
	}
	defer insertParameter.Close()

	for _, fn := range functions {
		if _, err := insertFunction.ExecContext(ctx, fn.ID, fn.Name, string(fn.Category), typeName(fn.Result), fn.Result.Arg,
			fn.SQL, fn.VariableArgs, fn.MaxNesting, aggregationName(fn.Aggregation)); err != nil {
			return errors.Wrapf(err, "cannot insert function %q", fn.Name)
		}
		for _, p := range fn.Parameters {
			if _, err := insertParameter.ExecContext(ctx, fn.ID, p.Index, p.Name, typeName(p.Value), p.Value.Arg,
				p.Optional, p.KnownValues); err != nil {
				return errors.Wrapf(err, "cannot insert parameter %q of function %q", p.Name, fn.Name)
			}
		}
	}
	return nil
}

func seedColumns(ctx context.Context, tx *sql.Tx, columns []*meta.Column) error {
	insert, err := tx.PrepareContext(ctx, `
INSERT INTO report_column (`+columnColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "cannot prepare column insert")
	}
	defer insert.Close()

	for _, c := range columns {
		if _, err := insert.ExecContext(ctx, c.EntityName, c.EntityID, c.Name, c.Title, c.ColumnID, string(c.Storage), string(c.Display),
			c.IsActive, c.IsSelectable, c.CalculatedFieldID, dataTypeName(c.CalculatedFieldType), c.CalculatedFieldActive,
			c.CalculatedFieldPublic, c.CalculatedFieldOwner); err != nil {
			return errors.Wrapf(err, "cannot insert column [%s].[%s]", c.EntityName, c.Name)
		}
	}
	return nil
}

func seedCalculatedFields(ctx context.Context, tx *sql.Tx, fields []*meta.CalculatedField) error {
	insertField, err := tx.PrepareContext(ctx, `
INSERT INTO calculated_field (id, name, is_active, is_aggregate, aggregation, output_type, xml, nesting)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return errors.Wrap(err, "cannot prepare calculated field insert")
	}
	defer insertField.Close()
	insertRef, err := tx.PrepareContext(ctx, `INSERT INTO calculated_field_ref (field_id, ref_field_id) VALUES (?, ?)`)
	if err != nil {
		return errors.Wrap(err, "cannot prepare calculated field reference insert")
	}
	defer insertRef.Close()

	for _, f := range fields {
		nesting, err := encodeNesting(f.Nesting)
		if err != nil {
			return errors.Wrapf(err, "cannot encode nesting of calculated field %d", f.ID)
		}
		if _, err := insertField.ExecContext(ctx, f.ID, f.Name, f.IsActive, f.IsAggregate, aggregationName(f.Aggregation),
			dataTypeName(f.OutputType), f.XML, nesting); err != nil {
			return errors.Wrapf(err, "cannot insert calculated field %d", f.ID)
		}
		for _, ref := range f.References {
			if _, err := insertRef.ExecContext(ctx, f.ID, ref); err != nil {
				return errors.Wrapf(err, "cannot insert reference of calculated field %d to %d", f.ID, ref)
			}
		}
	}
	return nil
}

func encodeNesting(facts []meta.NestingFact) (string, error) {
	if len(facts) == 0 {
		return "", nil
	}
	b, err := yaml.Marshal(facts)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeNesting(s string) ([]meta.NestingFact, error) {
	if s == "" {
		return nil, nil
	}
	var facts []meta.NestingFact
	if err := yaml.Unmarshal([]byte(s), &facts); err != nil {
		return nil, err
	}
	return facts, nil
}

func typeName(t meta.Type) string {
	if t.IsContextual() {
		return ""
	}
	return dataTypeName(t.Data)
}

func dataTypeName(t meta.DataType) string {
	if t == meta.Undefined {
		return ""
	}
	return t.String()
}

func aggregationName(k meta.AggregationKind) string {
	if k == meta.NoAggregation {
		return ""
	}
	return k.String()
}
