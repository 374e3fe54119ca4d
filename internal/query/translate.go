// Package query translates the user-facing search syntax into the FTS5
// query language.
package query

import "strings"

// MatchNothing is the expression returned for blank input: an empty phrase,
// which matches no document.
const MatchNothing = `""`

// Translate maps a user-typed query string onto an FTS5 match expression:
//
//   - quoted phrases pass through verbatim
//   - and/or/not in any casing become the AND/OR/NOT operators
//   - a leading - on a term becomes NOT, a leading + becomes AND
//   - prefix wildcards (term*) and bare terms are left untouched
//
// The function is total: it never fails, and blank input yields an
// expression matching nothing. Callers are expected to reject empty queries
// before searching; this is the backstop.
func Translate(raw string) string {
	tokens := tokenize(raw)
	if len(tokens) == 0 {
		return MatchNothing
	}

	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		switch {
		case strings.HasPrefix(tok, `"`):
			out = append(out, tok)
		case strings.EqualFold(tok, "AND"), strings.EqualFold(tok, "OR"), strings.EqualFold(tok, "NOT"):
			out = append(out, strings.ToUpper(tok))
		case len(tok) > 1 && strings.HasPrefix(tok, "-"):
			out = append(out, "NOT", tok[1:])
		case len(tok) > 1 && strings.HasPrefix(tok, "+"):
			out = append(out, "AND", tok[1:])
		default:
			out = append(out, tok)
		}
	}
	return strings.Join(out, " ")
}

// tokenize splits on whitespace while keeping double-quoted phrases as
// single tokens. An unterminated quote runs to the end of the input.
func tokenize(raw string) []string {
	var tokens []string
	var cur strings.Builder
	inQuote := false

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, cur.String())
			cur.Reset()
		}
	}

	for _, r := range raw {
		switch {
		case r == '"':
			cur.WriteRune(r)
			if inQuote {
				flush()
			}
			inQuote = !inQuote
		case !inQuote && (r == ' ' || r == '\t' || r == '\n' || r == '\r'):
			flush()
		default:
			cur.WriteRune(r)
		}
	}
	if inQuote {
		// Close the dangling phrase so the expression stays well-formed.
		cur.WriteRune('"')
	}
	flush()
	return tokens
}
