package sqlgen_test

import (
	. "gopkg.in/check.v1"

	"github.com/canonical/sqlformula/internal/sqlgen"
)

type TemplateSuite struct{}

var _ = Suite(&TemplateSuite{})

const caseTemplate = "CASE {0} [WHEN {i:1} THEN {i+1}] ELSE {n} END"

var templateTests = []struct {
	summary  string
	input    string
	count    int
	expected string
}{{
	summary:  "no group",
	input:    "RTRIM(LTRIM({0}))",
	count:    1,
	expected: "RTRIM(LTRIM({0}))",
}, {
	summary:  "empty",
	input:    "",
	count:    3,
	expected: "",
}, {
	summary:  "one pair",
	input:    caseTemplate,
	count:    4,
	expected: "CASE {0} WHEN {1} THEN {2}  ELSE {3} END",
}, {
	summary:  "two pairs",
	input:    caseTemplate,
	count:    6,
	expected: "CASE {0} WHEN {1} THEN {2} WHEN {3} THEN {4}  ELSE {5} END",
}, {
	summary:  "three pairs",
	input:    caseTemplate,
	count:    8,
	expected: "CASE {0} WHEN {1} THEN {2} WHEN {3} THEN {4} WHEN {5} THEN {6}  ELSE {7} END",
}, {
	summary:  "single index group",
	input:    "COALESCE([{i},] NULL)",
	count:    3,
	expected: "COALESCE({0}, {1}, {2},  NULL)",
}}

func (s *TemplateSuite) TestExpandTemplate(c *C) {
	for i, t := range templateTests {
		actual := sqlgen.ExpandTemplate(t.input, t.count)
		if actual != t.expected {
			c.Errorf("test %d failed:\nsummary: %s\ninput: %s\nexpected: %q\nactual:   %q\n", i, t.summary, t.input, t.expected, actual)
		}
	}
}
