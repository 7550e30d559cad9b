package gml

// tokenKind discriminates the few token classes the reference parser needs.
type tokenKind uint8

const (
	tokIdent tokenKind = iota
	tokNumber
	tokString
	tokPunct
	tokDirective
)

type token struct {
	kind  tokenKind
	text  string
	start int
	end   int
}

// keywords are names owned by the language itself. They never surface as
// identifier occurrences; several of them drive declaration scanning.
var keywords = map[string]struct{}{
	"if": {}, "then": {}, "else": {}, "while": {}, "do": {}, "until": {},
	"repeat": {}, "for": {}, "switch": {}, "case": {}, "default": {},
	"break": {}, "continue": {}, "return": {}, "exit": {}, "with": {},
	"var": {}, "globalvar": {}, "static": {}, "function": {}, "enum": {},
	"constructor": {}, "new": {}, "delete": {}, "try": {}, "catch": {},
	"finally": {}, "throw": {}, "begin": {}, "end": {},
	"self": {}, "other": {}, "noone": {}, "all": {}, "global": {},
	"true": {}, "false": {}, "undefined": {},
	"not": {}, "and": {}, "or": {}, "xor": {}, "mod": {}, "div": {},
}

func isKeyword(name string) bool {
	_, ok := keywords[name]
	return ok
}

func isIdentStart(c byte) bool {
	return c == '_' || ('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z')
}

func isIdentChar(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool { return '0' <= c && c <= '9' }

func isHexDigit(c byte) bool {
	return isDigit(c) || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}

// isColorRun reports whether a #-prefixed run is a color literal (#RRGGBB or
// #RRGGBBAA) rather than a directive name.
func isColorRun(s string) bool {
	if len(s) != 6 && len(s) != 8 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isHexDigit(s[i]) {
			return false
		}
	}
	return true
}

// twoBytePuncts are the compound operators that must lex as one token so a
// plain = is distinguishable from == and the augmented assignments.
var twoBytePuncts = map[string]struct{}{
	"==": {}, "!=": {}, "<=": {}, ">=": {}, "&&": {}, "||": {}, "^^": {},
	"++": {}, "--": {}, "+=": {}, "-=": {}, "*=": {}, "/=": {}, "%=": {},
	"|=": {}, "&=": {}, "^=": {}, "<<": {}, ">>": {}, "??": {},
}

var threeBytePuncts = map[string]struct{}{
	"??=": {}, "<<=": {}, ">>=": {},
}

// lex tokenizes GML source. Comments and whitespace disappear; strings,
// numbers, and region labels are opaque. Template strings ($"...{x}...") are
// lexed as plain strings, interpolated expressions are not descended into.
func lex(src []byte) []token {
	var toks []token
	i := 0
	n := len(src)

	for i < n {
		c := src[i]

		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++

		case c == '/' && i+1 < n && src[i+1] == '/':
			for i < n && src[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < n && src[i+1] == '*':
			i += 2
			for i+1 < n && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			if i+1 < n {
				i += 2
			} else {
				i = n
			}

		case c == '"' || c == '\'':
			start := i
			i = lexString(src, i, c, true)
			toks = append(toks, token{tokString, string(src[start:i]), start, i})

		case c == '@' && i+1 < n && (src[i+1] == '"' || src[i+1] == '\''):
			start := i + 1
			i = lexString(src, i+1, src[i+1], false)
			toks = append(toks, token{tokString, string(src[start:i]), start, i})

		case c == '$' && i+1 < n && src[i+1] == '"':
			start := i + 1
			i = lexString(src, i+1, '"', true)
			toks = append(toks, token{tokString, string(src[start:i]), start, i})

		case c == '$' && i+1 < n && isHexDigit(src[i+1]):
			start := i
			i++
			for i < n && isHexDigit(src[i]) {
				i++
			}
			toks = append(toks, token{tokNumber, string(src[start:i]), start, i})

		case c == '#':
			start := i
			i++
			nameStart := i
			for i < n && isIdentChar(src[i]) {
				i++
			}
			name := string(src[nameStart:i])
			switch {
			case name == "macro":
				toks = append(toks, token{tokDirective, name, start, i})
			case isColorRun(name):
				toks = append(toks, token{tokNumber, string(src[start:i]), start, i})
			default:
				// Region labels and unknown directives are free text to EOL.
				for i < n && src[i] != '\n' {
					i++
				}
			}

		case isDigit(c) || (c == '.' && i+1 < n && isDigit(src[i+1])):
			start := i
			if c == '0' && i+1 < n && (src[i+1] == 'x' || src[i+1] == 'X') {
				i += 2
				for i < n && isHexDigit(src[i]) {
					i++
				}
			} else {
				for i < n && (isDigit(src[i]) || src[i] == '.') {
					i++
				}
				if i < n && (src[i] == 'e' || src[i] == 'E') {
					j := i + 1
					if j < n && (src[j] == '+' || src[j] == '-') {
						j++
					}
					if j < n && isDigit(src[j]) {
						for i = j; i < n && isDigit(src[i]); i++ {
						}
					}
				}
			}
			toks = append(toks, token{tokNumber, string(src[start:i]), start, i})

		case isIdentStart(c):
			start := i
			for i < n && isIdentChar(src[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, string(src[start:i]), start, i})

		default:
			start := i
			if i+2 < n {
				if _, ok := threeBytePuncts[string(src[i:i+3])]; ok {
					toks = append(toks, token{tokPunct, string(src[i : i+3]), start, i + 3})
					i += 3
					continue
				}
			}
			if i+1 < n {
				if _, ok := twoBytePuncts[string(src[i:i+2])]; ok {
					toks = append(toks, token{tokPunct, string(src[i : i+2]), start, i + 2})
					i += 2
					continue
				}
			}
			toks = append(toks, token{tokPunct, string(src[i : i+1]), start, i + 1})
			i++
		}
	}

	return toks
}

// lexString consumes a string literal starting at the opening quote and
// returns the index past the closing quote. Verbatim strings ignore
// backslash escapes and may span lines.
func lexString(src []byte, open int, quote byte, escapes bool) int {
	i := open + 1
	n := len(src)
	for i < n {
		c := src[i]
		if escapes && c == '\\' {
			i += 2
			continue
		}
		if c == quote {
			return i + 1
		}
		if escapes && c == '\n' {
			// Plain strings do not span lines; tolerate the unterminated
			// literal instead of swallowing the rest of the file.
			return i
		}
		i++
	}
	return n
}
