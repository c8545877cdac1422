package sqlformula

import (
	"context"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/canonical/sqlformula/meta"
)

// resolver serves the lookups of the tokenizer and the validator. Function
// lookups go through the catalog, everything else to the provider.
type resolver struct {
	provider meta.Provider
	catalog  *FunctionCatalog
}

func (r *resolver) Function(ctx context.Context, name string) (*meta.Function, error) {
	return r.catalog.Lookup(ctx, name)
}

// Column resolves [entity].[column]. References written with numeric ids
// are looked up by id first, then by name.
func (r *resolver) Column(ctx context.Context, entity, column string) (*meta.Column, error) {
	if entityID, columnID, ok := columnIDs(entity, column); ok {
		col, err := r.provider.ColumnByID(ctx, entityID, columnID)
		if err != nil {
			return nil, errors.Wrapf(err, "cannot get column [%d:%d]", entityID, columnID)
		}
		if col != nil {
			return col, nil
		}
	}
	col, err := r.provider.ColumnByName(ctx, entity, column)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot get column [%s].[%s]", entity, column)
	}
	return col, nil
}

func (r *resolver) CalculatedField(ctx context.Context, id int) (*meta.CalculatedField, error) {
	return r.provider.CalculatedField(ctx, id)
}

func (r *resolver) ReferencesCalculatedField(ctx context.Context, id int) (bool, error) {
	return r.provider.ReferencesCalculatedField(ctx, id)
}

func columnIDs(entity, column string) (entityID, columnID int, ok bool) {
	columnID, err := strconv.Atoi(strings.TrimSpace(column))
	if err != nil {
		return 0, 0, false
	}
	if entity = strings.TrimSpace(entity); entity != "" {
		if entityID, err = strconv.Atoi(entity); err != nil {
			return 0, 0, false
		}
	}
	return entityID, columnID, true
}
