package treetest

import (
	"fmt"
	"unicode"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokNewline
	tokIdent
	tokConst
	tokIvar
	tokInt
	tokFloat
	tokString
	tokSymbol
	tokLabel // `key:` inside hashes and argument lists
	tokPunct
)

type token struct {
	typ   tokenType
	text  string
	start int
	end   int
	// spaceBefore records whether whitespace preceded the token, which
	// decides whether `(` opens an argument list.
	spaceBefore bool
}

func (t token) is(typ tokenType, text string) bool {
	return t.typ == typ && t.text == text
}

var punctuation = []string{"=>", "<<", "::", "(", ")", "[", "]", "{", "}", ",", ".", "|", "<", "=", ";", "&"}

func lex(src string) ([]token, error) {
	var toks []token
	i := 0
	space := false
	for i < len(src) {
		c := src[i]
		switch {
		case c == '\n' || c == ';':
			toks = append(toks, token{typ: tokNewline, text: string(c), start: i, end: i + 1})
			i++
			space = true
			continue
		case c == ' ' || c == '\t' || c == '\r':
			i++
			space = true
			continue
		case c == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue
		}

		start := i
		tok := token{start: start, spaceBefore: space}
		space = false
		switch {
		case isDigit(c):
			typ := tokInt
			for i < len(src) && (isDigit(src[i]) || src[i] == '_') {
				i++
			}
			if i+1 < len(src) && src[i] == '.' && isDigit(src[i+1]) {
				typ = tokFloat
				i++
				for i < len(src) && isDigit(src[i]) {
					i++
				}
			}
			tok.typ = typ
		case c == '"' || c == '\'':
			i++
			for i < len(src) && src[i] != c {
				if src[i] == '\\' {
					i++
				}
				i++
			}
			if i >= len(src) {
				return nil, fmt.Errorf("offset %d: unterminated string", start)
			}
			i++
			tok.typ = tokString
		case c == ':' && i+1 < len(src) && isIdentStart(src[i+1]):
			i++
			for i < len(src) && isIdentChar(src[i]) {
				i++
			}
			if i < len(src) && (src[i] == '?' || src[i] == '!') {
				i++
			}
			tok.typ = tokSymbol
		case c == '@':
			i++
			for i < len(src) && isIdentChar(src[i]) {
				i++
			}
			tok.typ = tokIvar
		case isIdentStart(c):
			for i < len(src) && isIdentChar(src[i]) {
				i++
			}
			if i < len(src) && (src[i] == '?' || src[i] == '!') {
				i++
			}
			if i+1 < len(src) && src[i] == ':' && src[i+1] != ':' {
				tok.typ = tokLabel
				tok.text = src[start:i]
				tok.end = i
				i++
				toks = append(toks, tok)
				continue
			}
			if unicode.IsUpper(rune(c)) {
				tok.typ = tokConst
			} else {
				tok.typ = tokIdent
			}
		default:
			matched := false
			for _, p := range punctuation {
				if len(src)-i >= len(p) && src[i:i+len(p)] == p {
					i += len(p)
					tok.typ = tokPunct
					matched = true
					break
				}
			}
			if !matched {
				return nil, fmt.Errorf("offset %d: unexpected character %q", i, c)
			}
		}
		tok.end = i
		tok.text = src[start:i]
		toks = append(toks, tok)
	}
	toks = append(toks, token{typ: tokEOF, start: len(src), end: len(src)})
	return toks, nil
}

func isDigit(c byte) bool      { return c >= '0' && c <= '9' }
func isIdentStart(c byte) bool { return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' }
func isIdentChar(c byte) bool  { return isIdentStart(c) || isDigit(c) }
