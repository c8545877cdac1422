/*
Package sqlformula compiles spreadsheet-like formulas over report columns into a T-SQL fragment and an XML syntax tree.

A formula combines literals, bracketed column references, operators and function calls:

	IF([Training].[Training Hours] > 10, "long", "short")
	DateDiff(day, [User].[User Last Hire Date], Today()) / 365
	GSUM([Training].[user_lo_rating])

Columns, calculated fields and functions are resolved through a meta.Provider.
Function descriptors are cached in a FunctionCatalog, which can be shared by several compilers and is cleared with Invalidate or Refresh.

# Compiling

A Compiler is created once per provider and may be used concurrently:

	c := sqlformula.New(provider, sqlformula.WithLogger(logger))
	opts := sqlformula.DefaultOptions()
	opts.OutputType = meta.Number
	opts.SQLOptions = sqlformula.DivisionByZero | sqlformula.NullPropagation
	res, err := c.Compile(ctx, "100 / [Transcript].[Training Point Value]", opts)

Compile only returns an error for an empty formula or a compiler without provider.
Everything that is wrong with the formula itself is reported in ParseResult.Errors as a ParseError with a Code, a fixed message and data naming the offending function, parameter or token.
A compilation stops at the first token with errors, but all the errors of that token are reported.

# Output

Columns are rendered in the SQL as [entityId:columnId] placeholders:

	100 / NULLIF([42:-1430],0)

The caller is expected to replace them with the actual column expressions of its query.
The XML holds the same tree, one element per token:

	<formula><number value="100" /><operator value="/" /><column id="-1430" entityId="42" value="[Transcript].[Training Point Value]" /></formula>

ParseResult also reports the referenced columns, whether the formula aggregates, and the nesting facts of its calls.
Store the nesting facts with a calculated field so that formulas referencing it are checked against the nesting limits of its functions.

# SQL rewrites

The SQLOption flags select rewrites applied before rendering:

	DivisionByZero   a / b         becomes  a / NULLIF(b,0)
	NullPropagation  a + b         becomes  ISNULL(a,0) + ISNULL(b,0)
	DecimalDivision  [int] / 2     becomes  [int] / 2.0
	UnicodeMarker    "你好"        becomes  N'你好'

DecimalDivision only applies to numeric formulas compiled with a positive Options.DecimalPoints.
A rewrite that fails on a malformed expression is skipped and logged.
*/
package sqlformula
