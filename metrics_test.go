package sqlformula_test

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "gopkg.in/check.v1"

	"github.com/canonical/sqlformula"
	"github.com/canonical/sqlformula/internal/test"
)

type MetricsSuite struct{}

var _ = Suite(&MetricsSuite{})

func (s *MetricsSuite) TestCompileMetrics(c *C) {
	m := sqlformula.NewMetrics(prometheus.NewRegistry())
	compiler := sqlformula.New(test.NewProvider(), sqlformula.WithMetrics(m))

	for _, formula := range []string{"1 + 2", "Len([user].[name_first])", "[user].[no such column]"} {
		_, err := compiler.Compile(context.Background(), formula, sqlformula.DefaultOptions())
		c.Assert(err, IsNil)
	}

	c.Check(testutil.ToFloat64(m.Compiles.WithLabelValues("success")), Equals, 2.0)
	c.Check(testutil.ToFloat64(m.Compiles.WithLabelValues("failure")), Equals, 1.0)
	c.Check(testutil.ToFloat64(m.CompileErrors.WithLabelValues("UnknownColumnOrCalculatedField")), Equals, 1.0)
	c.Check(testutil.CollectAndCount(m.CompileSeconds), Equals, 1)
	c.Check(testutil.ToFloat64(m.SQLFallbacks), Equals, 0.0)
}

func (s *MetricsSuite) TestRegisterTwice(c *C) {
	reg := prometheus.NewRegistry()
	sqlformula.NewMetrics(reg)
	c.Check(func() { sqlformula.NewMetrics(reg) }, PanicMatches, ".*duplicate metrics collector registration attempted.*")
}
