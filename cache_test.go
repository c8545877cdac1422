package sqlformula_test

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/pkg/errors"
	. "gopkg.in/check.v1"

	"github.com/canonical/sqlformula"
	"github.com/canonical/sqlformula/meta"
)

type CatalogSuite struct{}

var _ = Suite(&CatalogSuite{})

// countingSource counts the loads of a fixed function list.
type countingSource struct {
	functions []*meta.Function
	err       error
	loads     int32
}

func (s *countingSource) Functions(ctx context.Context) ([]*meta.Function, error) {
	atomic.AddInt32(&s.loads, 1)
	if s.err != nil {
		return nil, s.err
	}
	return s.functions, nil
}

func (s *countingSource) count() int {
	return int(atomic.LoadInt32(&s.loads))
}

func sourceFunctions() []*meta.Function {
	return []*meta.Function{{
		ID:         1,
		Name:       "Today",
		Result:     meta.Fixed(meta.Datetime),
		MaxNesting: 1,
	}, {
		ID:         2,
		Name:       "GSUM",
		Category:   meta.Aggregate,
		Result:     meta.Fixed(meta.Number),
		MaxNesting: 3,
		Parameters: []*meta.Parameter{{Index: 0, Name: "expression", Value: meta.Fixed(meta.Number)}},
	}, {
		ID:     3,
		Name:   "Mid",
		Result: meta.Fixed(meta.String),
		Parameters: []*meta.Parameter{
			{Index: 2, Name: "length", Value: meta.Fixed(meta.Number)},
			{Index: 0, Name: "text", Value: meta.Fixed(meta.String)},
			{Index: 1, Name: "start", Value: meta.Fixed(meta.Number)},
		},
	}, nil, {
		ID:     4,
		Name:   "mid",
		Result: meta.Fixed(meta.Number),
	}}
}

func (s *CatalogSuite) TestNormalise(c *C) {
	source := &countingSource{functions: sourceFunctions()}
	catalog := sqlformula.NewFunctionCatalog(source)

	today, err := catalog.Lookup(context.Background(), "TODAY")
	c.Assert(err, IsNil)
	c.Assert(today, NotNil)
	c.Check(today.MaxNesting, Equals, 2)

	gsum, err := catalog.Lookup(context.Background(), "gsum")
	c.Assert(err, IsNil)
	c.Check(gsum.MaxNesting, Equals, 0)

	mid, err := catalog.Lookup(context.Background(), "Mid")
	c.Assert(err, IsNil)
	c.Check(mid.ID, Equals, 3)
	c.Assert(mid.Parameters, HasLen, 3)
	for i, p := range mid.Parameters {
		c.Check(p.Index, Equals, i)
	}

	missing, err := catalog.Lookup(context.Background(), "Left")
	c.Assert(err, IsNil)
	c.Check(missing, IsNil)

	functions, err := catalog.Functions(context.Background())
	c.Assert(err, IsNil)
	c.Check(functions, HasLen, 4)

	// The source descriptors are left untouched.
	c.Check(source.functions[0].MaxNesting, Equals, 1)
	c.Check(source.functions[2].Parameters[0].Index, Equals, 2)
	c.Check(source.count(), Equals, 1)
}

func (s *CatalogSuite) TestInvalidate(c *C) {
	source := &countingSource{functions: sourceFunctions()}
	catalog := sqlformula.NewFunctionCatalog(source)

	_, err := catalog.Lookup(context.Background(), "Today")
	c.Assert(err, IsNil)
	_, err = catalog.Lookup(context.Background(), "Mid")
	c.Assert(err, IsNil)
	c.Check(source.count(), Equals, 1)

	catalog.Invalidate()
	c.Check(source.count(), Equals, 1)
	_, err = catalog.Lookup(context.Background(), "Today")
	c.Assert(err, IsNil)
	c.Check(source.count(), Equals, 2)

	source.functions = source.functions[:1]
	c.Assert(catalog.Refresh(context.Background()), IsNil)
	c.Check(source.count(), Equals, 3)
	mid, err := catalog.Lookup(context.Background(), "Mid")
	c.Assert(err, IsNil)
	c.Check(mid, IsNil)
}

func (s *CatalogSuite) TestErrorsNotCached(c *C) {
	source := &countingSource{err: errors.New("database is locked")}
	catalog := sqlformula.NewFunctionCatalog(source)

	_, err := catalog.Lookup(context.Background(), "Today")
	c.Assert(err, ErrorMatches, "cannot load function catalog: database is locked")

	c.Assert(catalog.Refresh(context.Background()), ErrorMatches, "cannot load function catalog: database is locked")

	source.err = nil
	source.functions = sourceFunctions()
	today, err := catalog.Lookup(context.Background(), "Today")
	c.Assert(err, IsNil)
	c.Check(today, NotNil)
	c.Check(source.count(), Equals, 3)
}

func (s *CatalogSuite) TestNoSource(c *C) {
	_, err := sqlformula.NewFunctionCatalog(nil).Lookup(context.Background(), "Today")
	c.Assert(err, ErrorMatches, "cannot load function catalog: no source")
}

func (s *CatalogSuite) TestConcurrentLookups(c *C) {
	source := &countingSource{functions: sourceFunctions()}
	catalog := sqlformula.NewFunctionCatalog(source)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 0 {
				catalog.Invalidate()
			}
			fn, err := catalog.Lookup(context.Background(), "Today")
			c.Check(err, IsNil)
			c.Check(fn, NotNil)
		}(i)
	}
	wg.Wait()
	c.Check(source.count() >= 1, Equals, true)
}
