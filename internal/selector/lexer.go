package selector

import (
	"strings"
)

// TokenType defines the kinds of tokens produced by the lexer.
type TokenType int

const (
	TokenDot        TokenType = iota // '.'
	TokenStar                        // '*'
	TokenIdent                       // kinds, attribute names, bare values
	TokenNumber                      // 12, -1, 1.5
	TokenString                      // 'str' or "str"
	TokenSymbol                      // :sym
	TokenRegexp                      // /re/flags
	TokenLBracket                    // '['
	TokenRBracket                    // ']'
	TokenLParen                      // '('
	TokenRParen                      // ')'
	TokenComma                       // ','
	TokenOp                          // = != =~ !~ ^= $= *=
	TokenWhitespace                  // descendant combinator outside brackets
	TokenEOF
)

// Token is a single lexical token with its position in the selector.
type Token struct {
	Type     TokenType
	Value    string
	Position int
}

var operators = []string{"!=", "=~", "!~", "^=", "$=", "*=", "="}

// Lexer scans a selector string into tokens.
type Lexer struct {
	input    string
	position int
	tokens   []Token
}

// NewLexer returns a lexer over input.
func NewLexer(input string) *Lexer {
	return &Lexer{input: input}
}

// Tokenize processes the entire input. Quoted strings and regexps keep
// their delimiters out of Value; regexp flags follow a NUL byte.
func (l *Lexer) Tokenize() ([]Token, error) {
	for l.position < len(l.input) {
		start := l.position
		c := l.input[l.position]
		switch {
		case isSpace(c):
			for l.position < len(l.input) && isSpace(l.input[l.position]) {
				l.position++
			}
			l.add(TokenWhitespace, " ", start)
		case c == '.':
			l.position++
			l.add(TokenDot, ".", start)
		case c == '[':
			l.position++
			l.add(TokenLBracket, "[", start)
		case c == ']':
			l.position++
			l.add(TokenRBracket, "]", start)
		case c == '(':
			l.position++
			l.add(TokenLParen, "(", start)
		case c == ')':
			l.position++
			l.add(TokenRParen, ")", start)
		case c == ',':
			l.position++
			l.add(TokenComma, ",", start)
		case c == '\'' || c == '"':
			s, err := l.quoted(c)
			if err != nil {
				return nil, err
			}
			l.add(TokenString, s, start)
		case c == '/':
			re, err := l.regexp()
			if err != nil {
				return nil, err
			}
			l.add(TokenRegexp, re, start)
		case c == ':' && l.position+1 < len(l.input) && isIdentChar(l.input[l.position+1]):
			l.position++
			l.add(TokenSymbol, l.ident(), start)
		case c == '-' || isDigit(c):
			if c == '-' && (l.position+1 >= len(l.input) || !isDigit(l.input[l.position+1])) {
				return nil, &SyntaxError{Selector: l.input, Position: start, Msg: "expected digit after '-'"}
			}
			l.position++
			for l.position < len(l.input) && (isDigit(l.input[l.position]) || l.input[l.position] == '.' && l.position+1 < len(l.input) && isDigit(l.input[l.position+1])) {
				l.position++
			}
			l.add(TokenNumber, l.input[start:l.position], start)
		case isIdentChar(c):
			l.add(TokenIdent, l.ident(), start)
		default:
			if op := l.operator(); op != "" {
				l.add(TokenOp, op, start)
				continue
			}
			if c == '*' {
				l.position++
				l.add(TokenStar, "*", start)
				continue
			}
			return nil, &SyntaxError{Selector: l.input, Position: start, Msg: "unexpected character " + string(c)}
		}
	}
	l.add(TokenEOF, "", l.position)
	return l.tokens, nil
}

func (l *Lexer) add(typ TokenType, value string, pos int) {
	l.tokens = append(l.tokens, Token{Type: typ, Value: value, Position: pos})
}

func (l *Lexer) operator() string {
	rest := l.input[l.position:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			l.position += len(op)
			return op
		}
	}
	return ""
}

func (l *Lexer) ident() string {
	start := l.position
	for l.position < len(l.input) && isIdentChar(l.input[l.position]) {
		l.position++
		// constant paths such as ActionMailer::Base
		if strings.HasPrefix(l.input[l.position:], "::") && l.position+2 < len(l.input) && isIdentChar(l.input[l.position+2]) {
			l.position += 2
		}
	}
	if l.position < len(l.input) && (l.input[l.position] == '?' || l.input[l.position] == '!') {
		// `!=` belongs to the operator
		if !(l.input[l.position] == '!' && l.position+1 < len(l.input) && (l.input[l.position+1] == '=' || l.input[l.position+1] == '~')) {
			l.position++
		}
	}
	return l.input[start:l.position]
}

func (l *Lexer) quoted(quote byte) (string, error) {
	start := l.position
	l.position++
	var sb strings.Builder
	for l.position < len(l.input) {
		c := l.input[l.position]
		switch {
		case c == '\\' && l.position+1 < len(l.input):
			sb.WriteByte(l.input[l.position+1])
			l.position += 2
		case c == quote:
			l.position++
			return sb.String(), nil
		default:
			sb.WriteByte(c)
			l.position++
		}
	}
	return "", &SyntaxError{Selector: l.input, Position: start, Msg: "unterminated string"}
}

func (l *Lexer) regexp() (string, error) {
	start := l.position
	l.position++
	var sb strings.Builder
	for l.position < len(l.input) {
		c := l.input[l.position]
		switch {
		case c == '\\' && l.position+1 < len(l.input) && l.input[l.position+1] == '/':
			sb.WriteByte('/')
			l.position += 2
		case c == '\\' && l.position+1 < len(l.input):
			sb.WriteString(l.input[l.position : l.position+2])
			l.position += 2
		case c == '/':
			l.position++
			flags := l.position
			for l.position < len(l.input) && strings.IndexByte("imsU", l.input[l.position]) >= 0 {
				l.position++
			}
			if l.position > flags {
				return sb.String() + "\x00" + l.input[flags:l.position], nil
			}
			return sb.String(), nil
		default:
			sb.WriteByte(c)
			l.position++
		}
	}
	return "", &SyntaxError{Selector: l.input, Position: start, Msg: "unterminated regexp"}
}

func isSpace(c byte) bool     { return c == ' ' || c == '\t' || c == '\n' || c == '\r' }
func isDigit(c byte) bool     { return c >= '0' && c <= '9' }
func isIdentChar(c byte) bool { return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || isDigit(c) }
