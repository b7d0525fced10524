package asm

import (
	"strconv"
	"strings"
	"unicode"
)

// ---------------------------------------------------------------------------
// Tokens
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	TokenWord   TokenType = iota // mnemonic, directive, name, operator
	TokenInt                     // 42, -7
	TokenFloat                   // 3.5, 1e9
	TokenString                  // "hello"
	TokenFuncRef                 // @main
	TokenLabel                   // done:
)

var tokenNames = map[TokenType]string{
	TokenWord:    "WORD",
	TokenInt:     "INT",
	TokenFloat:   "FLOAT",
	TokenString:  "STRING",
	TokenFuncRef: "FUNCREF",
	TokenLabel:   "LABEL",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Token is one lexeme of a source line. Literal holds the decoded text:
// strings are unquoted, function references and labels lose their sigil.
type Token struct {
	Type    TokenType
	Literal string
}

// ---------------------------------------------------------------------------
// Lexer: splits one line into tokens
// ---------------------------------------------------------------------------

// lexLine tokenizes a line. A ';' outside a string starts a comment.
func lexLine(line string, lineNo int) ([]Token, error) {
	var tokens []Token
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == ';':
			return tokens, nil
		case c == ' ' || c == '\t' || c == '\r':
			i++
		case c == '"':
			end, err := scanString(line, i)
			if err != nil {
				return nil, errorf(lineNo, "%v", err)
			}
			s, err := strconv.Unquote(line[i:end])
			if err != nil {
				return nil, errorf(lineNo, "bad string literal %s", line[i:end])
			}
			tokens = append(tokens, Token{Type: TokenString, Literal: s})
			i = end
		default:
			end := i
			for end < len(line) && !strings.ContainsRune(" \t\r;\"", rune(line[end])) {
				end++
			}
			tokens = append(tokens, classify(line[i:end]))
			i = end
		}
	}
	return tokens, nil
}

// scanString returns the offset just past the closing quote of the string
// starting at start.
func scanString(line string, start int) (int, error) {
	for i := start + 1; i < len(line); i++ {
		switch line[i] {
		case '\\':
			i++
		case '"':
			return i + 1, nil
		}
	}
	return 0, errUnterminated
}

func classify(word string) Token {
	switch {
	case len(word) > 1 && word[0] == '@':
		return Token{Type: TokenFuncRef, Literal: word[1:]}
	case len(word) > 1 && strings.HasSuffix(word, ":") && isIdentifier(word[:len(word)-1]):
		return Token{Type: TokenLabel, Literal: word[:len(word)-1]}
	}
	if _, err := strconv.ParseInt(word, 0, 64); err == nil {
		return Token{Type: TokenInt, Literal: word}
	}
	if looksNumeric(word) {
		if _, err := strconv.ParseFloat(word, 64); err == nil {
			return Token{Type: TokenFloat, Literal: word}
		}
	}
	return Token{Type: TokenWord, Literal: word}
}

// looksNumeric keeps words like "Inf" and "NaN" out of the float literals.
func looksNumeric(word string) bool {
	w := strings.TrimLeft(word, "+-")
	return w != "" && (unicode.IsDigit(rune(w[0])) || w[0] == '.')
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) || (i > 0 && unicode.IsDigit(r)) {
			continue
		}
		return false
	}
	return true
}
