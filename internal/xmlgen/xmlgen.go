// Copyright 2024 Canonical Ltd.
// Licensed under Apache 2.0, see LICENCE file for details.

// Package xmlgen serializes a validated token tree as the XML form of a
// formula and recovers function nesting facts from it.
package xmlgen

import (
	"encoding/xml"
	"io"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/canonical/sqlformula/internal/expr"
	"github.com/canonical/sqlformula/meta"
)

var escaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&apos;",
)

// Render returns the XML document of a token tree. Commas are structural
// and are not rendered.
func Render(tokens []expr.Token) string {
	var b strings.Builder
	b.WriteString("<formula>")
	for _, tok := range tokens {
		writeToken(&b, tok)
	}
	b.WriteString("</formula>")
	return b.String()
}

func writeToken(b *strings.Builder, tok expr.Token) {
	switch tok := tok.(type) {
	case *expr.Call:
		writeCall(b, tok)
	case *expr.ColumnRef:
		var id, entity string
		if tok.Column != nil {
			id = strconv.Itoa(tok.Column.ColumnID)
			entity = strconv.Itoa(tok.Column.EntityID)
		}
		b.WriteString(`<column id="` + id + `" entityId="` + entity + `" value="` + escaper.Replace(tok.Text()) + `" />`)
	case *expr.Punct:
		if tok.Kind() == expr.KindComma {
			return
		}
		writeValue(b, tok)
	default:
		writeValue(b, tok)
	}
}

func writeValue(b *strings.Builder, tok expr.Token) {
	b.WriteString("<" + strings.ToLower(tok.Kind().String()) + ` value="` + escaper.Replace(tok.Text()) + `" />`)
}

func writeCall(b *strings.Builder, call *expr.Call) {
	var id string
	if call.Function != nil {
		id = strconv.Itoa(call.Function.ID)
	}
	b.WriteString(`<function id="` + id + `" name="` + escaper.Replace(call.FunctionName()) + `" level="` + strconv.Itoa(call.Level) + `">`)
	b.WriteString("<args>")
	for i, arg := range call.Args {
		b.WriteString(`<arg i="` + strconv.Itoa(i) + `">`)
		for _, tok := range arg.Tokens {
			writeToken(b, tok)
		}
		b.WriteString("</arg>")
	}
	b.WriteString("</args></function>")
}

// Nesting returns a fact for every call of the token tree, in document
// order. The path of a fact is built from catalog names, like the one
// recovered by ParseNesting.
func Nesting(tokens []expr.Token) []meta.NestingFact {
	var facts []meta.NestingFact
	walk(tokens, nil, &facts)
	return facts
}

func walk(tokens []expr.Token, path []string, facts *[]meta.NestingFact) {
	for _, tok := range tokens {
		call, ok := tok.(*expr.Call)
		if !ok {
			continue
		}
		p := append(path[:len(path):len(path)], call.FunctionName())
		*facts = append(*facts, meta.NestingFact{
			Function: call.FunctionName(),
			Level:    call.Level,
			Path:     strings.Join(p, "->"),
		})
		for _, arg := range call.Args {
			walk(arg.Tokens, p, facts)
		}
	}
}

// ParseNesting recovers the nesting facts of a formula from its XML
// document.
func ParseNesting(doc string) ([]meta.NestingFact, error) {
	d := xml.NewDecoder(strings.NewReader(doc))
	var facts []meta.NestingFact
	var path []string
	// open records for each open element whether it is a function.
	var open []bool
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return facts, nil
		}
		if err != nil {
			return nil, errors.Wrap(err, "cannot parse formula xml")
		}
		switch t := tok.(type) {
		case xml.StartElement:
			isCall := t.Name.Local == "function"
			open = append(open, isCall)
			if !isCall {
				continue
			}
			name := attr(t, "name")
			level, _ := strconv.Atoi(attr(t, "level"))
			path = append(path, name)
			facts = append(facts, meta.NestingFact{
				Function: name,
				Level:    level,
				Path:     strings.Join(path, "->"),
			})
		case xml.EndElement:
			n := len(open)
			if n == 0 {
				continue
			}
			if open[n-1] {
				path = path[:len(path)-1]
			}
			open = open[:n-1]
		}
	}
}

func attr(e xml.StartElement, name string) string {
	for _, a := range e.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
