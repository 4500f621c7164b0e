package schema

import (
	"fmt"
	"strings"
)

// Expand rewrites the {IDENT} tokens of a query template. A token naming a
// table becomes the qualified table name; a token naming a column becomes the
// quoted column. Any other token is an error.
//
//	SELECT {SQD_ID} FROM {SQ_DIRECTION} WHERE {SQD_NAME} = ?
func Expand(schemaName, tmpl string) (string, error) {
	var b strings.Builder
	b.Grow(len(tmpl) + len(tmpl)/4)

	rest := tmpl
	for {
		open := strings.IndexByte(rest, '{')
		if open < 0 {
			b.WriteString(rest)
			return b.String(), nil
		}
		end := strings.IndexByte(rest[open:], '}')
		if end < 0 {
			return "", fmt.Errorf("unterminated identifier in %q", tmpl)
		}
		ident := rest[open+1 : open+end]

		b.WriteString(rest[:open])
		switch {
		case tablesByName[ident].Name != "":
			b.WriteString(TableName(schemaName, ident))
		case columnOwners[ident] != "":
			b.WriteString(EscapeColumnName(ident))
		default:
			return "", fmt.Errorf("unknown identifier %q in %q", ident, tmpl)
		}
		rest = rest[open+end+1:]
	}
}

// MustExpand is Expand for templates known at compile time.
func MustExpand(schemaName, tmpl string) string {
	s, err := Expand(schemaName, tmpl)
	if err != nil {
		panic("schema: " + err.Error())
	}
	return s
}
