package trigger

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp
)

type token struct {
	kind tokenKind
	text string
	pos  int
}

func (t token) String() string {
	if t.kind == tokEOF {
		return "end of input"
	}
	return fmt.Sprintf("%q at %d", t.text, t.pos)
}

// twoCharOps lists operators that must be matched before their one-character
// prefixes.
var twoCharOps = []string{"**", "<=", ">=", "==", "!="}

const oneCharOps = "+-*/%()[],:.<>"

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := rune(src[i])
		switch {
		case unicode.IsSpace(c):
			i++
		case unicode.IsDigit(c) || (c == '.' && i+1 < len(src) && unicode.IsDigit(rune(src[i+1]))):
			start := i
			i = scanNumber(src, i)
			toks = append(toks, token{kind: tokNumber, text: src[start:i], pos: start})
		case c == '_' || unicode.IsLetter(c):
			start := i
			for i < len(src) && (src[i] == '_' || unicode.IsLetter(rune(src[i])) || unicode.IsDigit(rune(src[i]))) {
				i++
			}
			toks = append(toks, token{kind: tokIdent, text: src[start:i], pos: start})
		case c == '\'' || c == '"':
			start := i
			end := strings.IndexByte(src[i+1:], byte(c))
			if end < 0 {
				return nil, fmt.Errorf("%w: unterminated string at %d", ErrSyntax, start)
			}
			i += end + 2
			toks = append(toks, token{kind: tokString, text: src[start+1 : i-1], pos: start})
		default:
			matched := false
			for _, op := range twoCharOps {
				if strings.HasPrefix(src[i:], op) {
					toks = append(toks, token{kind: tokOp, text: op, pos: i})
					i += len(op)
					matched = true
					break
				}
			}
			if matched {
				continue
			}
			if strings.ContainsRune(oneCharOps, c) {
				toks = append(toks, token{kind: tokOp, text: string(c), pos: i})
				i++
				continue
			}
			return nil, fmt.Errorf("%w: unexpected character %q at %d", ErrSyntax, c, i)
		}
	}
	return append(toks, token{kind: tokEOF, pos: len(src)}), nil
}

func scanNumber(src string, i int) int {
	for i < len(src) && (unicode.IsDigit(rune(src[i])) || src[i] == '.') {
		i++
	}
	if i < len(src) && (src[i] == 'e' || src[i] == 'E') {
		j := i + 1
		if j < len(src) && (src[j] == '+' || src[j] == '-') {
			j++
		}
		if j < len(src) && unicode.IsDigit(rune(src[j])) {
			i = j
			for i < len(src) && unicode.IsDigit(rune(src[i])) {
				i++
			}
		}
	}
	return i
}
