package expr

import (
	"strconv"
	"strings"
)

// Format returns a debug representation of a token sequence, for example
// "[Function[Trim@0(Column[70:1])] Operator[+] Number[1]]".
func Format(tokens []Token) string {
	var b strings.Builder
	b.WriteString("[")
	writeTokens(&b, tokens)
	b.WriteString("]")
	return b.String()
}

func writeTokens(b *strings.Builder, tokens []Token) {
	for i, tok := range tokens {
		if i > 0 {
			b.WriteString(" ")
		}
		writeToken(b, tok)
	}
}

func writeToken(b *strings.Builder, tok Token) {
	switch tok := tok.(type) {
	case *Call:
		b.WriteString("Function[")
		b.WriteString(tok.Name)
		if tok.Function == nil {
			b.WriteString("?")
		}
		b.WriteString("@")
		b.WriteString(strconv.Itoa(tok.Level))
		b.WriteString("(")
		for i, arg := range tok.Args {
			if i > 0 {
				b.WriteString(", ")
			}
			writeTokens(b, arg.Tokens)
		}
		b.WriteString(")]")
	case *ColumnRef:
		b.WriteString("Column[")
		if tok.Column != nil {
			b.WriteString(strconv.Itoa(tok.Column.EntityID))
			b.WriteString(":")
			b.WriteString(strconv.Itoa(tok.Column.ColumnID))
		} else {
			b.WriteString("?")
			b.WriteString(tok.text)
		}
		b.WriteString("]")
	case *Literal:
		b.WriteString(tok.kind.String())
		if sec, ok := tok.Secondary(); ok {
			b.WriteString("|")
			b.WriteString(sec.String())
		}
		b.WriteString("[")
		b.WriteString(tok.text)
		b.WriteString("]")
	default:
		b.WriteString(tok.Kind().String())
		b.WriteString("[")
		b.WriteString(tok.Text())
		b.WriteString("]")
	}
}
