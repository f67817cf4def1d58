package formula

import (
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokOp
	tokLParen
	tokRParen
	tokComma
	tokQuestion
	tokColon
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// mathPrefix lets formulas written for the old web editor keep working:
// Math.ceil(x) and ceil(x) are the same call.
const mathPrefix = "Math."

var operators = []string{
	"===", "!==",
	"==", "!=", "<=", ">=", "&&", "||",
	"+", "-", "*", "/", "%", "<", ">", "!",
}

func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0

	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])

		switch {
		case unicode.IsSpace(r):
			i += size

		case isDigit(r) || (r == '.' && i+1 < len(src) && isDigit(rune(src[i+1]))):
			start := i
			dots := 0
			for i < len(src) && (isDigit(rune(src[i])) || src[i] == '.') {
				if src[i] == '.' {
					dots++
				}
				i++
			}
			text := src[start:i]
			if dots > 1 {
				return nil, &Error{Expr: src, Pos: start, Kind: ErrSyntax, Detail: "malformed number " + text}
			}
			n, err := strconv.ParseFloat(text, 64)
			if err != nil {
				return nil, &Error{Expr: src, Pos: start, Kind: ErrSyntax, Detail: "malformed number " + text}
			}
			toks = append(toks, token{kind: tokNumber, text: text, num: n, pos: start})

		case isIdentStart(r):
			start := i
			i = scanIdent(src, i)
			name := src[start:i]
			if name == "Math" {
				if i >= len(src) || src[i] != '.' {
					return nil, &Error{Expr: src, Pos: start, Kind: ErrNotAllowed, Detail: "Math can only be used as Math.<function>"}
				}
				fnStart := i + 1
				i = scanIdent(src, fnStart)
				if i == fnStart {
					return nil, &Error{Expr: src, Pos: start, Kind: ErrSyntax, Detail: "missing function name after Math."}
				}
				name = mathPrefix + src[fnStart:i]
			}
			if i < len(src) && src[i] == '.' {
				return nil, &Error{Expr: src, Pos: i, Kind: ErrNotAllowed, Detail: "property access"}
			}
			toks = append(toks, token{kind: tokIdent, text: name, pos: start})

		case r == '"' || r == '\'':
			start := i
			s, next, ok := scanString(src, i)
			if !ok {
				return nil, &Error{Expr: src, Pos: start, Kind: ErrSyntax, Detail: "unterminated string"}
			}
			i = next
			toks = append(toks, token{kind: tokString, text: s, pos: start})

		case r == '(':
			toks = append(toks, token{kind: tokLParen, text: "(", pos: i})
			i++
		case r == ')':
			toks = append(toks, token{kind: tokRParen, text: ")", pos: i})
			i++
		case r == ',':
			toks = append(toks, token{kind: tokComma, text: ",", pos: i})
			i++
		case r == '?':
			toks = append(toks, token{kind: tokQuestion, text: "?", pos: i})
			i++
		case r == ':':
			toks = append(toks, token{kind: tokColon, text: ":", pos: i})
			i++

		default:
			op := matchOperator(src[i:])
			if op == "" {
				detail := "character " + strconv.QuoteRune(r)
				if r == '=' {
					detail = "assignment"
				}
				return nil, &Error{Expr: src, Pos: i, Kind: ErrNotAllowed, Detail: detail}
			}
			toks = append(toks, token{kind: tokOp, text: op, pos: i})
			i += len(op)
		}
	}

	toks = append(toks, token{kind: tokEOF, pos: len(src)})
	return toks, nil
}

func matchOperator(s string) string {
	for _, op := range operators {
		if strings.HasPrefix(s, op) {
			return op
		}
	}
	return ""
}

func scanIdent(src string, i int) int {
	for i < len(src) {
		r, size := utf8.DecodeRuneInString(src[i:])
		if !isIdentStart(r) && !isDigit(r) {
			break
		}
		i += size
	}
	return i
}

func scanString(src string, i int) (string, int, bool) {
	quote := src[i]
	var b strings.Builder
	i++
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\\' && i+1 < len(src):
			b.WriteByte(src[i+1])
			i += 2
		case c == quote:
			return b.String(), i + 1, true
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", i, false
}

func isDigit(r rune) bool { return r >= '0' && r <= '9' }

func isIdentStart(r rune) bool { return r == '_' || unicode.IsLetter(r) }
