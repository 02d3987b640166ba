// Package sqlparams rewrites named-parameter SQL (:name) into positional
// PostgreSQL placeholders ($1, $2, ...).
//
// The scanner is deliberately dumb about SQL: it only locates placeholder
// tokens. A colon followed by an identifier is a placeholder unless the colon
// is itself preceded by another colon, which is how `::type` casts pass
// through untouched. The scanner has no notion of string literals, so a
// colon-identifier sequence inside a quoted literal is still rewritten;
// callers who need a literal `:word` in a string constant should parameterize
// it instead.
package sqlparams

import (
	"strconv"
	"strings"
)

// Parse rewrites every :name placeholder in sql to a positional $N token and
// returns the rewritten SQL plus the distinct parameter names in
// first-occurrence order. A name that appears several times is assigned a
// single position on first sight and every later occurrence reuses it.
func Parse(sql string) (string, []string) {
	var b strings.Builder
	b.Grow(len(sql))

	var order []string
	positions := make(map[string]int)

	for i := 0; i < len(sql); {
		c := sql[i]
		if c == ':' && (i == 0 || sql[i-1] != ':') && i+1 < len(sql) && isIdentStart(sql[i+1]) {
			j := i + 1
			for j < len(sql) && isIdentChar(sql[j]) {
				j++
			}
			name := sql[i+1 : j]
			n, seen := positions[name]
			if !seen {
				n = len(order) + 1
				positions[name] = n
				order = append(order, name)
			}
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			i = j
			continue
		}
		b.WriteByte(c)
		i++
	}

	return b.String(), order
}

// ExtractNames returns the distinct placeholder names in sql in
// first-occurrence order, using the same detection rule as Parse.
func ExtractNames(sql string) []string {
	_, order := Parse(sql)
	return order
}

// PositionalValues maps named values onto the positional slots established by
// order. A name absent from named yields nil in its slot; rejecting missing
// required parameters is the validator's job, not this layer's.
func PositionalValues(named map[string]any, order []string) []any {
	args := make([]any, len(order))
	for i, name := range order {
		if v, ok := named[name]; ok {
			args[i] = v
		}
	}
	return args
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
