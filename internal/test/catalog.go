// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package test holds the metadata fixture shared by the package tests and
// the end to end tests of the compiler pipeline.
package test

import (
	"context"
	_ "embed"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/canonical/sqlformula/meta"
)

//go:embed testdata/catalog.yaml
var catalogYAML []byte

// Catalog returns a fresh copy of the fixture catalog.
func Catalog() *meta.Catalog {
	var c meta.Catalog
	if err := yaml.Unmarshal(catalogYAML, &c); err != nil {
		panic(errors.Wrap(err, "cannot decode fixture catalog"))
	}
	return &c
}

// CatalogYAML returns the raw fixture document.
func CatalogYAML() []byte {
	return append([]byte(nil), catalogYAML...)
}

// Provider is an in memory meta.Provider over a catalog. It also resolves
// functions by name and columns by reference, the way the compiler does.
type Provider struct {
	Catalog *meta.Catalog
	// Err, when set, is returned by every lookup.
	Err error
}

// NewProvider returns a provider over a fresh fixture catalog.
func NewProvider() *Provider {
	return &Provider{Catalog: Catalog()}
}

// AddColumn adds a column to the catalog.
func (p *Provider) AddColumn(col *meta.Column) {
	p.Catalog.Columns = append(p.Catalog.Columns, col)
}

func (p *Provider) Functions(ctx context.Context) ([]*meta.Function, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Catalog.Functions, nil
}

// Function returns the first function named name, ignoring case.
func (p *Provider) Function(ctx context.Context, name string) (*meta.Function, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	for _, f := range p.Catalog.Functions {
		if strings.EqualFold(f.Name, name) {
			return f, nil
		}
	}
	return nil, nil
}

func (p *Provider) ColumnByName(ctx context.Context, entity, column string) (*meta.Column, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	for _, c := range p.Catalog.Columns {
		if entity != "" && !strings.EqualFold(c.EntityName, entity) {
			continue
		}
		if strings.EqualFold(c.Name, column) || (c.Title != "" && strings.EqualFold(c.Title, column)) {
			return c, nil
		}
	}
	return nil, nil
}

func (p *Provider) ColumnByID(ctx context.Context, entityID, columnID int) (*meta.Column, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	for _, c := range p.Catalog.Columns {
		if c.ColumnID == columnID && (entityID == 0 || c.EntityID == entityID) {
			return c, nil
		}
	}
	return nil, nil
}

// Column resolves a reference by ids when both parts are numbers, then by
// name.
func (p *Provider) Column(ctx context.Context, entity, column string) (*meta.Column, error) {
	if id, err := strconv.Atoi(column); err == nil {
		entityID, err := strconv.Atoi(entity)
		if entity == "" || err == nil {
			col, err := p.ColumnByID(ctx, entityID, id)
			if err != nil || col != nil {
				return col, err
			}
		}
	}
	return p.ColumnByName(ctx, entity, column)
}

func (p *Provider) CalculatedField(ctx context.Context, id int) (*meta.CalculatedField, error) {
	if p.Err != nil {
		return nil, p.Err
	}
	return p.Catalog.CalculatedFieldByID(id), nil
}

func (p *Provider) ReferencesCalculatedField(ctx context.Context, id int) (bool, error) {
	if p.Err != nil {
		return false, p.Err
	}
	f := p.Catalog.CalculatedFieldByID(id)
	return f != nil && len(f.References) > 0, nil
}
