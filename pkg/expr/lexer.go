package expr

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokIdent
	tokString
	tokNumber
	tokTrue
	tokFalse
	tokAnd
	tokOr
	tokNot
	tokEq
	tokNe
	tokPipe
	tokLParen
	tokRParen
)

func (t tokenType) String() string {
	switch t {
	case tokEOF:
		return "end of input"
	case tokIdent:
		return "attribute"
	case tokString:
		return "string"
	case tokNumber:
		return "number"
	case tokTrue:
		return "true"
	case tokFalse:
		return "false"
	case tokAnd:
		return "&&"
	case tokOr:
		return "||"
	case tokNot:
		return "!"
	case tokEq:
		return "=="
	case tokNe:
		return "!="
	case tokPipe:
		return "|"
	case tokLParen:
		return "("
	case tokRParen:
		return ")"
	}
	return "unknown"
}

type token struct {
	typ    tokenType
	text   string // identifier name, unquoted string, or number text
	offset int
}

// lexer splits expression source into tokens.
type lexer struct {
	src string
	pos int
}

func (l *lexer) errorf(offset int, msg string) *SyntaxError {
	return &SyntaxError{Source: l.src, Offset: offset, Message: msg}
}

// next returns the next token.
func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && isSpace(l.src[l.pos]) {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{typ: tokEOF, offset: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]

	switch {
	case c == '"':
		return l.lexString()
	case c == '(':
		l.pos++
		return token{typ: tokLParen, offset: start}, nil
	case c == ')':
		l.pos++
		return token{typ: tokRParen, offset: start}, nil
	case c == '&':
		if l.peekByte(1) == '&' {
			l.pos += 2
			return token{typ: tokAnd, offset: start}, nil
		}
		return token{}, l.errorf(start, "unexpected '&', did you mean '&&'?")
	case c == '|':
		if l.peekByte(1) == '|' {
			l.pos += 2
			return token{typ: tokOr, offset: start}, nil
		}
		l.pos++
		return token{typ: tokPipe, offset: start}, nil
	case c == '=':
		if l.peekByte(1) == '=' {
			l.pos += 2
			return token{typ: tokEq, offset: start}, nil
		}
		return token{}, l.errorf(start, "unexpected '=', did you mean '=='?")
	case c == '!':
		if l.peekByte(1) == '=' {
			l.pos += 2
			return token{typ: tokNe, offset: start}, nil
		}
		l.pos++
		return token{typ: tokNot, offset: start}, nil
	case isDigit(c) || (c == '-' && isDigit(l.peekByte(1))):
		return l.lexNumber()
	case isIdentStart(c):
		return l.lexIdent()
	}

	r, _ := utf8.DecodeRuneInString(l.src[l.pos:])
	return token{}, l.errorf(start, "unexpected character "+quoteRune(r))
}

func (l *lexer) peekByte(ahead int) byte {
	if l.pos+ahead < len(l.src) {
		return l.src[l.pos+ahead]
	}
	return 0
}

func (l *lexer) lexString() (token, error) {
	start := l.pos
	l.pos++ // opening quote

	var sb strings.Builder
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch c {
		case '"':
			l.pos++
			return token{typ: tokString, text: sb.String(), offset: start}, nil
		case '\\':
			if l.pos+1 >= len(l.src) {
				return token{}, l.errorf(l.pos, "unterminated escape sequence")
			}
			esc := l.src[l.pos+1]
			switch esc {
			case '"', '\\':
				sb.WriteByte(esc)
			case 'n':
				sb.WriteByte('\n')
			case 't':
				sb.WriteByte('\t')
			default:
				return token{}, l.errorf(l.pos, "unknown escape sequence \\"+string(esc))
			}
			l.pos += 2
		default:
			sb.WriteByte(c)
			l.pos++
		}
	}
	return token{}, l.errorf(start, "unterminated string literal")
}

func (l *lexer) lexNumber() (token, error) {
	start := l.pos
	if l.src[l.pos] == '-' {
		l.pos++
	}
	for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
		l.pos++
	}
	if l.pos < len(l.src) && l.src[l.pos] == '.' {
		l.pos++
		if l.pos >= len(l.src) || !isDigit(l.src[l.pos]) {
			return token{}, l.errorf(l.pos, "malformed number")
		}
		for l.pos < len(l.src) && isDigit(l.src[l.pos]) {
			l.pos++
		}
	}
	if l.pos < len(l.src) && isIdentStart(l.src[l.pos]) {
		return token{}, l.errorf(l.pos, "malformed number")
	}
	return token{typ: tokNumber, text: l.src[start:l.pos], offset: start}, nil
}

func (l *lexer) lexIdent() (token, error) {
	start := l.pos
	for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
		l.pos++
	}
	text := l.src[start:l.pos]
	switch text {
	case "true":
		return token{typ: tokTrue, text: text, offset: start}, nil
	case "false":
		return token{typ: tokFalse, text: text, offset: start}, nil
	}
	return token{typ: tokIdent, text: text, offset: start}, nil
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isIdentStart(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_'
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c) || c == '.' || c == '-'
}

func quoteRune(r rune) string {
	if unicode.IsPrint(r) {
		return fmt.Sprintf("%q", r)
	}
	return fmt.Sprintf("%U", r)
}
