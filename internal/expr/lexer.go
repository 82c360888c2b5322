package expr

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokDot
	tokLBracket
	tokRBracket
	tokLParen
	tokRParen
	tokComma
	tokStar
	tokRBrace
)

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

// lexer tokenizes a single expression starting at an offset of the source.
type lexer struct {
	src string
	pos int
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || c == '-' || (c >= '0' && c <= '9')
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func (l *lexer) next() (token, error) {
	for l.pos < len(l.src) && strings.IndexByte(" \t\n\r", l.src[l.pos]) >= 0 {
		l.pos++
	}
	if l.pos >= len(l.src) {
		return token{kind: tokEOF, pos: l.pos}, nil
	}

	start := l.pos
	c := l.src[l.pos]
	single := map[byte]tokenKind{
		'.': tokDot, '[': tokLBracket, ']': tokRBracket, '(': tokLParen,
		')': tokRParen, ',': tokComma, '*': tokStar, '}': tokRBrace,
	}
	if kind, ok := single[c]; ok {
		l.pos++
		return token{kind: kind, text: string(c), pos: start}, nil
	}

	switch {
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return token{kind: tokIdent, text: l.src[start:l.pos], pos: start}, nil

	case isDigit(c) || (c == '-' && l.pos+1 < len(l.src) && isDigit(l.src[l.pos+1])):
		l.pos++
		for l.pos < len(l.src) && (isDigit(l.src[l.pos]) || l.src[l.pos] == '.') {
			// a dot followed by a non-digit ends the number (e.g. list[0].id)
			if l.src[l.pos] == '.' && (l.pos+1 >= len(l.src) || !isDigit(l.src[l.pos+1])) {
				break
			}
			l.pos++
		}
		text := l.src[start:l.pos]
		n, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return token{}, fmt.Errorf("invalid number %q at offset %d", text, start)
		}
		return token{kind: tokNumber, text: text, num: n, pos: start}, nil

	case c == '"':
		var sb strings.Builder
		l.pos++
		for l.pos < len(l.src) {
			ch := l.src[l.pos]
			switch ch {
			case '\\':
				if l.pos+1 >= len(l.src) {
					return token{}, fmt.Errorf("unterminated string at offset %d", start)
				}
				esc := l.src[l.pos+1]
				switch esc {
				case 'n':
					sb.WriteByte('\n')
				case 't':
					sb.WriteByte('\t')
				case '"', '\\':
					sb.WriteByte(esc)
				default:
					return token{}, fmt.Errorf("invalid escape \\%c at offset %d", esc, l.pos)
				}
				l.pos += 2
				continue
			case '"':
				l.pos++
				return token{kind: tokString, text: sb.String(), pos: start}, nil
			}
			sb.WriteByte(ch)
			l.pos++
		}
		return token{}, fmt.Errorf("unterminated string at offset %d", start)
	}

	return token{}, fmt.Errorf("unexpected character %q at offset %d", c, start)
}
