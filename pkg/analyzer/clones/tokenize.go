package clones

import (
	"strings"
	"unicode"
)

// normLine is one whitespace-normalized, non-blank, non-comment source
// line, keeping its original 1-based line number for reporting.
type normLine struct {
	text string
	orig uint32
}

// normalizeLines prepares a file for exact-match detection: indentation
// and internal whitespace runs collapse to single spaces, and blank or
// comment-only lines drop out entirely.
func normalizeLines(content []byte) []normLine {
	raw := strings.Split(string(content), "\n")
	lines := make([]normLine, 0, len(raw))
	for i, l := range raw {
		fields := strings.Fields(l)
		if len(fields) == 0 || isCommentLine(fields[0]) {
			continue
		}
		lines = append(lines, normLine{text: strings.Join(fields, " "), orig: uint32(i + 1)})
	}
	return lines
}

func isCommentLine(first string) bool {
	return strings.HasPrefix(first, "//") ||
		strings.HasPrefix(first, "#") ||
		strings.HasPrefix(first, "/*") ||
		strings.HasPrefix(first, "*")
}

// tokenize splits source text into a flat lexical token stream:
// identifiers, numeric and string literals, and punctuation. Comments
// and whitespace are discarded.
func tokenize(content string) []string {
	var tokens []string
	runes := []rune(content)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case isSpace(r):
			i++
		case r == '#':
			i = skipLine(runes, i)
		case r == '/' && i+1 < len(runes) && runes[i+1] == '/':
			i = skipLine(runes, i)
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			i = skipBlockComment(runes, i)
		case r == '"' || r == '\'' || r == '`':
			tok, next := collectString(runes, i)
			tokens = append(tokens, tok)
			i = next
		case isDigit(r):
			tok, next := collectWhile(runes, i, isNumberRune)
			tokens = append(tokens, tok)
			i = next
		case isIdentStart(r):
			tok, next := collectWhile(runes, i, isIdentRune)
			tokens = append(tokens, tok)
			i = next
		default:
			tokens = append(tokens, string(r))
			i++
		}
	}
	return tokens
}

// normalizeTokens canonicalizes a token stream: keywords and punctuation
// survive, every other identifier becomes IDENT and every literal
// becomes LITERAL. Consistently renamed copies normalize identically.
func normalizeTokens(tokens []string) []string {
	out := make([]string, len(tokens))
	for i, tok := range tokens {
		switch {
		case keywords[tok]:
			out[i] = tok
		case isLiteralToken(tok):
			out[i] = "LITERAL"
		case isIdentToken(tok):
			out[i] = "IDENT"
		default:
			out[i] = tok
		}
	}
	return out
}

// keywords survive normalization across all supported languages so that
// control structure remains visible in the token stream.
var keywords = map[string]bool{
	"if": true, "else": true, "elif": true, "unless": true, "then": true,
	"for": true, "while": true, "until": true, "loop": true, "do": true,
	"break": true, "continue": true, "next": true, "pass": true,
	"return": true, "yield": true, "defer": true, "go": true,
	"func": true, "def": true, "fn": true, "function": true, "lambda": true,
	"class": true, "struct": true, "interface": true, "enum": true,
	"trait": true, "impl": true, "module": true, "type": true,
	"import": true, "from": true, "package": true, "use": true,
	"require": true, "include": true, "export": true,
	"var": true, "let": true, "const": true, "static": true, "mut": true,
	"new": true, "delete": true, "make": true,
	"try": true, "catch": true, "except": true, "finally": true,
	"raise": true, "throw": true, "panic": true, "rescue": true,
	"ensure": true, "begin": true, "end": true,
	"switch": true, "case": true, "match": true, "default": true,
	"in": true, "range": true, "select": true, "chan": true,
	"and": true, "or": true, "not": true, "is": true,
	"async": true, "await": true, "pub": true, "public": true,
	"private": true, "protected": true, "void": true,
}

func isLiteralToken(tok string) bool {
	if tok == "" {
		return false
	}
	switch tok {
	case "true", "false", "True", "False", "nil", "null", "None", "undefined":
		return true
	}
	r := rune(tok[0])
	return isDigit(r) || r == '"' || r == '\'' || r == '`'
}

func isIdentToken(tok string) bool {
	return tok != "" && isIdentStart(rune(tok[0]))
}

func isSpace(r rune) bool {
	return r == ' ' || r == '\t' || r == '\n' || r == '\r'
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentRune(r rune) bool {
	return isIdentStart(r) || isDigit(r)
}

// isNumberRune accepts digit continuations liberally enough to swallow
// hex, exponent, and separator forms as one token.
func isNumberRune(r rune) bool {
	return isDigit(r) || isIdentRune(r) || r == '.'
}

func skipLine(runes []rune, i int) int {
	for i < len(runes) && runes[i] != '\n' {
		i++
	}
	return i
}

func skipBlockComment(runes []rune, i int) int {
	i += 2
	for i+1 < len(runes) {
		if runes[i] == '*' && runes[i+1] == '/' {
			return i + 2
		}
		i++
	}
	return len(runes)
}

// collectString consumes a quoted literal, honoring backslash escapes.
// Single- and double-quoted strings stop at end of line; backtick
// strings may span lines.
func collectString(runes []rune, i int) (string, int) {
	quote := runes[i]
	start := i
	i++
	for i < len(runes) {
		switch {
		case runes[i] == '\\' && i+1 < len(runes):
			i += 2
		case runes[i] == quote:
			return string(runes[start : i+1]), i + 1
		case runes[i] == '\n' && quote != '`':
			return string(runes[start:i]), i
		default:
			i++
		}
	}
	return string(runes[start:]), len(runes)
}

func collectWhile(runes []rune, i int, pred func(rune) bool) (string, int) {
	start := i
	for i < len(runes) && pred(runes[i]) {
		i++
	}
	return string(runes[start:i]), i
}
