// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

package sqlformula

import (
	"context"
	"strings"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/canonical/sqlformula/internal/diag"
	"github.com/canonical/sqlformula/internal/expr"
	"github.com/canonical/sqlformula/internal/sqlgen"
	"github.com/canonical/sqlformula/internal/validate"
	"github.com/canonical/sqlformula/internal/xmlgen"
	"github.com/canonical/sqlformula/meta"
)

// Grammar holds the characters with a special meaning in formulas.
type Grammar = expr.Grammar

// Culture controls how number, date and yes/no literals are recognised.
type Culture = expr.Culture

// DefaultGrammar returns the grammar `"text"`, `[Entity].[Column]`.
func DefaultGrammar() Grammar { return expr.DefaultGrammar() }

// DefaultCulture returns an en-US like culture.
func DefaultCulture() Culture { return expr.DefaultCulture() }

// SQLOption is a set of SQL rewrites.
type SQLOption int

const (
	// DivisionByZero wraps denominators in NULLIF(x, 0).
	DivisionByZero SQLOption = 1 << iota
	// NullPropagation wraps additive operands in ISNULL(x, 0).
	NullPropagation
	// DecimalDivision turns integer divisions into decimal divisions when
	// the formula is numeric and decimal places are requested.
	DecimalDivision
	// UnicodeMarker prefixes literals with characters above 255 with N.
	UnicodeMarker

	AllSQLOptions = DivisionByZero | NullPropagation | DecimalDivision | UnicodeMarker
)

var sqlOptionNames = []struct {
	name   string
	option SQLOption
}{
	{"DivisionByZero", DivisionByZero},
	{"NullPropagation", NullPropagation},
	{"DecimalDivision", DecimalDivision},
	{"UnicodeMarker", UnicodeMarker},
}

// Has reports whether all of flags are set.
func (o SQLOption) Has(flags SQLOption) bool {
	return o&flags == flags
}

func (o SQLOption) String() string {
	var names []string
	for _, n := range sqlOptionNames {
		if o.Has(n.option) {
			names = append(names, n.name)
		}
	}
	if len(names) == 0 {
		return "None"
	}
	return strings.Join(names, ",")
}

// ParseSQLOptions parses a comma separated list of option names. "All" and
// "None" are accepted too. Names are matched ignoring case.
func ParseSQLOptions(s string) (SQLOption, error) {
	var o SQLOption
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		switch {
		case part == "", strings.EqualFold(part, "None"):
			continue
		case strings.EqualFold(part, "All"):
			o |= AllSQLOptions
			continue
		}
		found := false
		for _, n := range sqlOptionNames {
			if strings.EqualFold(part, n.name) {
				o |= n.option
				found = true
				break
			}
		}
		if !found {
			return 0, errors.Errorf("unknown sql option %q", part)
		}
	}
	return o, nil
}

// Options configures a single compilation.
type Options struct {
	// OutputType is the type the formula must produce. Undefined and Any
	// accept every type.
	OutputType meta.DataType
	// DecimalPoints is the number of decimal places the caller will show.
	// Integer divisions are only converted when it is positive.
	DecimalPoints int
	SQLOptions    SQLOption
	GenerateSQL   bool
	GenerateXML   bool
	// MaxFunctionNesting is the nesting budget of functions that allow
	// less.
	MaxFunctionNesting int
	Grammar            Grammar
	// UserID is the user compiling the formula. Their private calculated
	// fields may be referenced.
	UserID int
}

// DefaultOptions returns options with the default grammar that generate
// both SQL and XML without SQL rewrites.
func DefaultOptions() Options {
	return Options{
		Grammar:     DefaultGrammar(),
		GenerateSQL: true,
		GenerateXML: true,
	}
}

// ParseResult is the outcome of a compilation.
type ParseResult struct {
	// Errors is empty when the compilation succeeded.
	Errors []*ParseError
	// ResultType is the type computed for the formula.
	ResultType meta.DataType
	SQL        string
	XML        string
	HasSQL     bool
	HasXML     bool
	// ReferencedColumns lists the columns and calculated fields used by
	// the formula, in order of appearance.
	ReferencedColumns []*meta.Column
	// IsAggregate is set when a top level call is an aggregate function or
	// a top level reference is an aggregate calculated field.
	IsAggregate bool
	// Aggregation is set when the whole formula is one aggregation.
	Aggregation meta.AggregationKind
	// Nesting lists the calls of the formula with their nesting levels.
	Nesting []meta.NestingFact
}

// IsSuccess reports whether the compilation produced no errors.
func (r *ParseResult) IsSuccess() bool {
	return len(r.Errors) == 0
}

func failed(errs ...*ParseError) *ParseResult {
	return &ParseResult{Errors: errs}
}

// Compiler compiles formulas against the metadata of a provider. It holds
// no per compilation state and may be used concurrently.
type Compiler struct {
	provider meta.Provider
	catalog  *FunctionCatalog
	logger   log.Logger
	metrics  *Metrics
	culture  Culture
}

// Option configures a Compiler.
type Option func(*Compiler)

// WithCatalog makes the compiler resolve functions through catalog rather
// than a private catalog over the provider.
func WithCatalog(catalog *FunctionCatalog) Option {
	return func(c *Compiler) { c.catalog = catalog }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger log.Logger) Option {
	return func(c *Compiler) { c.logger = logger }
}

// WithMetrics records compilations in m.
func WithMetrics(m *Metrics) Option {
	return func(c *Compiler) { c.metrics = m }
}

// WithCulture sets the culture used to recognise literals.
func WithCulture(culture Culture) Option {
	return func(c *Compiler) { c.culture = culture }
}

// New returns a compiler over provider.
func New(provider meta.Provider, opts ...Option) *Compiler {
	c := &Compiler{
		provider: provider,
		logger:   log.NewNopLogger(),
		culture:  DefaultCulture(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.catalog == nil && provider != nil {
		c.catalog = NewFunctionCatalog(provider)
	}
	return c
}

// Catalog returns the function catalog of the compiler.
func (c *Compiler) Catalog() *FunctionCatalog {
	return c.catalog
}

// Compile compiles formula. Compile errors are reported in the result; an
// error is only returned for an empty formula or a compiler without
// provider.
func (c *Compiler) Compile(ctx context.Context, formula string, opts Options) (*ParseResult, error) {
	if strings.TrimSpace(formula) == "" {
		return nil, ErrEmptyFormula
	}
	if c.provider == nil {
		return nil, ErrNoProvider
	}

	logger := log.With(c.logger, "compile", uuid.New().String())
	start := time.Now()
	level.Debug(logger).Log("msg", "compiling formula", "formula", formula, "output", opts.OutputType, "sql_options", opts.SQLOptions)

	r := (&compilation{Compiler: c, logger: logger, opts: opts}).run(ctx, formula)

	elapsed := time.Since(start)
	c.metrics.observe(r, elapsed.Seconds())
	level.Debug(logger).Log("msg", "compiled formula", "success", r.IsSuccess(), "errors", len(r.Errors), "duration", elapsed)
	return r, nil
}

// compilation is the state of one Compile call.
type compilation struct {
	*Compiler
	logger log.Logger
	opts   Options
}

func (c *compilation) run(ctx context.Context, formula string) *ParseResult {
	res := &resolver{provider: c.provider, catalog: c.catalog}
	t := expr.NewTokenizer(formula, c.opts.Grammar, c.culture, res)
	v := validate.New(res, validate.Options{
		Culture:    c.culture,
		UserID:     c.opts.UserID,
		MaxNesting: c.opts.MaxFunctionNesting,
	})

	var tokens []expr.Token
	var columns []*meta.Column
	for {
		tok, err := t.Next(ctx)
		if err != nil {
			return c.failure(err)
		}
		if tok == nil {
			break
		}
		if call, ok := tok.(*expr.Call); ok {
			if err := t.Consolidate(ctx, call); err != nil {
				return c.failure(err)
			}
		}
		errs, err := v.Token(ctx, tok)
		if err != nil {
			return c.failure(err)
		}
		if len(errs) > 0 {
			return failed(errs...)
		}
		tokens = append(tokens, tok)
		columns = referencedColumns(tok, columns)
	}

	tokens, err := c.analyze(ctx, tokens)
	if err != nil {
		return c.failure(err)
	}

	typ, balanced := expr.Evaluate(tokens)
	actual, valid := meta.Undefined, false
	if balanced && typ != nil && typ.Primary != meta.Undefined {
		actual, valid = expr.IsExpected(typ, expectedType(c.opts.OutputType))
	}

	r := &ParseResult{ResultType: actual, ReferencedColumns: columns}
	if valid {
		tokens = completeUnaryBooleans(tokens, typ, actual)
		r.Nesting = xmlgen.Nesting(tokens)
		if c.opts.GenerateXML {
			r.XML, r.HasXML = xmlgen.Render(tokens), true
		}
		if c.opts.GenerateSQL {
			if r.SQL, err = c.generateSQL(tokens, actual); err != nil {
				level.Warn(c.logger).Log("msg", "cannot render sql", "err", err)
				return failed(diag.Wrap(err))
			}
			r.HasSQL = true
		}
	} else {
		r.Errors = []*ParseError{typeMismatch(c.opts.OutputType, actual)}
	}

	if err := c.aggregation(ctx, tokens, r); err != nil {
		return c.failure(err)
	}

	if r.IsSuccess() && c.opts.OutputType.Concrete() && c.opts.OutputType.Generic() != r.ResultType.Generic() {
		r.Errors = []*ParseError{typeMismatch(c.opts.OutputType, r.ResultType)}
	}
	if !r.IsSuccess() {
		r.SQL, r.XML, r.HasSQL, r.HasXML = "", "", false, false
	}
	return r
}

// failure turns an error of the pipeline into a failed result. Syntax
// errors are reported as is, anything else is a metadata failure.
func (c *compilation) failure(err error) *ParseResult {
	var d *diag.Error
	if errors.As(err, &d) {
		return failed(d)
	}
	level.Warn(c.logger).Log("msg", "metadata lookup failed", "err", err)
	return failed(diag.Wrap(err))
}

func (c *compilation) generateSQL(tokens []expr.Token, actual meta.DataType) (string, error) {
	o := c.opts.SQLOptions
	grammar := c.opts.Grammar
	if grammar.Quote == 0 {
		grammar.Quote = DefaultGrammar().Quote
	}
	g := &sqlgen.Generator{
		Options: sqlgen.Options{
			DivisionByZero:  o.Has(DivisionByZero),
			NullPropagation: o.Has(NullPropagation),
			DecimalDivision: o.Has(DecimalDivision) && actual == meta.Number && c.opts.DecimalPoints > 0,
			UnicodeMarker:   o.Has(UnicodeMarker),
			Quote:           grammar.Quote,
		},
		Fallback: func(err error) {
			level.Warn(c.logger).Log("msg", "sql rewrite failed, rendering without rewrites", "err", err)
			c.metrics.fallback()
		},
	}
	output := c.opts.OutputType
	if !output.Concrete() {
		output = actual
	}
	return g.Generate(tokens, output)
}

// aggregation fills the aggregate facts of r. Calculated fields referenced
// at the top level are fetched in parallel.
func (c *compilation) aggregation(ctx context.Context, tokens []expr.Token, r *ParseResult) error {
	fields := make([]*meta.CalculatedField, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	for i, tok := range tokens {
		ref, ok := tok.(*expr.ColumnRef)
		if !ok || ref.Column == nil || !ref.Column.IsCalculatedField() {
			continue
		}
		i, id := i, ref.Column.CalculatedFieldID
		g.Go(func() error {
			f, err := c.provider.CalculatedField(gctx, id)
			if err != nil {
				return errors.Wrapf(err, "cannot get calculated field %d", id)
			}
			fields[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i, tok := range tokens {
		if call, ok := tok.(*expr.Call); ok && call.Function != nil && call.Function.IsAggregate() {
			r.IsAggregate = true
		}
		if fields[i] != nil && fields[i].IsAggregate {
			r.IsAggregate = true
		}
	}

	if len(tokens) != 1 {
		return nil
	}
	switch tok := tokens[0].(type) {
	case *expr.Call:
		if tok.Function != nil && tok.Function.IsAggregate() {
			r.Aggregation = tok.Function.AggregationKind()
		}
	case *expr.ColumnRef:
		if fields[0] != nil {
			r.Aggregation = fields[0].Aggregation
		}
	}
	return nil
}

// analyze rewrites simple CASE calls over a boolean condition into IF
// calls. For a Boolean output, string literals that read as yes or no
// become boolean literals.
func (c *compilation) analyze(ctx context.Context, tokens []expr.Token) ([]expr.Token, error) {
	out := make([]expr.Token, len(tokens))
	for i, tok := range tokens {
		switch tok := tok.(type) {
		case *expr.Call:
			call, err := c.caseToIf(ctx, tok)
			if err != nil {
				return nil, err
			}
			args := make([]*expr.Argument, len(call.Args))
			for j, arg := range call.Args {
				inner, err := c.analyze(ctx, arg.Tokens)
				if err != nil {
					return nil, err
				}
				args[j] = arg.WithTokens(inner)
			}
			out[i] = call.WithArgs(args)
		case *expr.Literal:
			if sec, ok := tok.Secondary(); ok && c.opts.OutputType == meta.Boolean && tok.Kind() == expr.KindString && sec == expr.KindBoolean {
				tok.Promote()
			}
			out[i] = tok
		default:
			out[i] = tok
		}
	}
	return out, nil
}

// caseToIf rewrites CASE(cond, value, result, else) into IF(cond, result,
// else) when value is true and IF(cond, else, result) otherwise.
func (c *compilation) caseToIf(ctx context.Context, call *expr.Call) (*expr.Call, error) {
	if !call.Is("Case") || len(call.Args) != 4 {
		return call, nil
	}
	cond := call.Args[0]
	if t := cond.Type(); t == nil || (t.Primary != meta.Boolean && t.Secondary != meta.Boolean) {
		return call, nil
	}
	if len(cond.Tokens) == 1 && cond.Tokens[0].Kind() == expr.KindFunction {
		return call, nil
	}
	fn, err := c.catalog.Lookup(ctx, "If")
	if err != nil || fn == nil {
		return call, err
	}
	args := []*expr.Argument{cond, call.Args[2], call.Args[3]}
	if !startsTrue(call.Args[1]) {
		args = []*expr.Argument{cond, call.Args[3], call.Args[2]}
	}
	return call.WithFunction(fn).WithArgs(args), nil
}

func startsTrue(arg *expr.Argument) bool {
	if len(arg.Tokens) == 0 {
		return false
	}
	l, ok := arg.Tokens[0].(*expr.Literal)
	if !ok {
		return false
	}
	v, ok := l.Truth()
	return ok && v
}

// completeUnaryBooleans appends "= 1" to the boolean columns and calls
// that make up a multi token boolean formula, walking through logical
// operators.
func completeUnaryBooleans(tokens []expr.Token, typ *expr.ExprType, actual meta.DataType) []expr.Token {
	if actual != meta.Boolean || len(tokens) <= 1 {
		return tokens
	}
	unary := map[expr.Token]bool{}
	var walk func(t *expr.ExprType)
	walk = func(t *expr.ExprType) {
		if t == nil {
			return
		}
		if t.Binary != nil && t.Binary.Op.Kind == expr.Logical {
			walk(t.Binary.Left)
			walk(t.Binary.Right)
		}
		if isUnaryBoolean(t.Source) {
			unary[t.Source] = true
		}
	}
	walk(typ)
	if len(unary) == 0 {
		return tokens
	}

	equals := expr.LookupOperator("=")
	out := make([]expr.Token, 0, len(tokens)+2*len(unary))
	for _, tok := range tokens {
		out = append(out, tok)
		if unary[tok] {
			out = append(out, expr.NewOperator(equals, -1), expr.NewLiteral(expr.KindNumber, "1", -1))
		}
	}
	return out
}

func isUnaryBoolean(tok expr.Token) bool {
	switch tok := tok.(type) {
	case *expr.Call:
		return sqlgen.IsBooleanCall(tok)
	case *expr.ColumnRef:
		return tok.Column != nil && tok.Column.IsBoolean()
	}
	return false
}

func expectedType(output meta.DataType) *expr.ExprType {
	if !output.Concrete() {
		return nil
	}
	return &expr.ExprType{Primary: output}
}

func typeMismatch(expected, actual meta.DataType) *ParseError {
	if !expected.Concrete() || actual == meta.Undefined {
		return diag.New(diag.InvalidExpression)
	}
	return diag.New(diag.ExpectedOutputTypeNotFulfilled).
		With(diag.KeyExpectedType, expected.String()).
		With(diag.KeySuggestedType, actual.String())
}

// referencedColumns appends the columns referenced by tok, including
// those inside call arguments.
func referencedColumns(tok expr.Token, columns []*meta.Column) []*meta.Column {
	switch tok := tok.(type) {
	case *expr.ColumnRef:
		if tok.Column != nil {
			columns = append(columns, tok.Column)
		}
	case *expr.Call:
		for _, arg := range tok.Args {
			for _, t := range arg.Tokens {
				columns = referencedColumns(t, columns)
			}
		}
	}
	return columns
}
