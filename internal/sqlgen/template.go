package sqlgen

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	iteratorPattern    = regexp.MustCompile(`\{i(:\d+)?\}`)
	startPattern       = regexp.MustCompile(`\{i:(\d+)\}`)
	stepPattern        = regexp.MustCompile(`\{i\+(\d+)\}`)
	groupPattern       = regexp.MustCompile(`^(.*?)\[(.*?)\](.*)$`)
	placeholderPattern = regexp.MustCompile(`\{(\d+)\}`)
)

// ExpandTemplate unrolls the repeating group of a SQL template for a call
// with count arguments. The group is written between square brackets; {i}
// or {i:N} is the argument index, starting at N, {i+K} the index plus K,
// and {n} the last argument. The index advances by one more than the
// largest K. Templates without a group are returned as is.
//
// For example with 8 arguments
//
//	CASE {0} [WHEN {i:1} THEN {i+1}] ELSE {n} END
//
// expands to
//
//	CASE {0} WHEN {1} THEN {2} WHEN {3} THEN {4} WHEN {5} THEN {6}  ELSE {7} END
func ExpandTemplate(tmpl string, count int) string {
	if tmpl == "" || !iteratorPattern.MatchString(tmpl) {
		return tmpl
	}

	start := 0
	if m := startPattern.FindStringSubmatch(tmpl); m != nil {
		start, _ = strconv.Atoi(m[1])
	}
	step := 1
	if all := stepPattern.FindAllStringSubmatch(tmpl, -1); len(all) > 0 {
		if k, err := strconv.Atoi(all[len(all)-1][1]); err == nil {
			step = k + 1
		}
	}
	end := count - 1
	if strings.Contains(tmpl, "{n}") {
		end--
	}

	var prefix, group, suffix string
	if m := groupPattern.FindStringSubmatch(tmpl); m != nil {
		prefix, group, suffix = m[1], m[2], m[3]
	}

	var b strings.Builder
	b.WriteString(prefix)
	for i := start; i <= end; i += step {
		s := iteratorPattern.ReplaceAllLiteralString(group, placeholder(i))
		for k := 1; k < step; k++ {
			s = strings.ReplaceAll(s, "{i+"+strconv.Itoa(k)+"}", placeholder(i+k))
		}
		b.WriteString(s)
		b.WriteString(" ")
	}
	b.WriteString(suffix)
	return strings.ReplaceAll(b.String(), "{n}", placeholder(count-1))
}

func placeholder(i int) string {
	return "{" + strconv.Itoa(i) + "}"
}

// isTemplate reports whether s has positional placeholders.
func isTemplate(s string) bool {
	return placeholderPattern.MatchString(s)
}

// format replaces the positional placeholders of tmpl with args.
func format(tmpl string, args []string) (string, error) {
	var err error
	out := placeholderPattern.ReplaceAllStringFunc(tmpl, func(m string) string {
		i, _ := strconv.Atoi(m[1 : len(m)-1])
		if i >= len(args) {
			if err == nil {
				err = errors.Errorf("template %q refers to argument %d of %d", tmpl, i, len(args))
			}
			return m
		}
		return args[i]
	})
	if err != nil {
		return "", err
	}
	return out, nil
}
