/*
Package expr turns formula text into a typed token tree. It covers the front
end of the formula compiler, it does not validate metadata nor generate any
output.

The expr package is split up into three stages: tokenizing, consolidation
and type evaluation.

# Tokenizing

The Tokenizer scans the formula left to right. Each token is a Literal, an
OperatorToken, a Punct, a ColumnRef or a Call. Bracketed column references and
function names are resolved through a Resolver while scanning. A reference
that does not resolve is still returned, with a nil descriptor, and is
reported later by validation.

A quoted literal that also reads as a date or as a yes/no word carries that
second interpretation. The type evaluator may promote it when the context
asks for it.

# Consolidation

A Call pulls the tokens of its parenthesised argument list from the
tokenizer and splits them into Arguments at top level commas. Nested calls
are consolidated first and record their level and the path of enclosing
calls.

# Type evaluation

Evaluate computes the type of a token sequence. Arithmetic operators bind
tighter than relational operators, which bind tighter than logical ones.
Operand combinations are looked up in a fixed compatibility table. The type
of an Argument is computed at most once.
*/
package expr
