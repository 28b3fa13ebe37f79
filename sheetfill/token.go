package sheetfill

import "strings"

const (
	tokenOpen  = "{{"
	tokenClose = "}}"

	listPrefix     = "list:"
	terminatorBody = "/list"
)

// Token is one placeholder occurrence inside a cell's text.
type Token struct {
	Raw   string
	Kind  PlaceholderKind
	Field FieldKey
}

// ParseTokens extracts placeholder tokens from cell text in left-to-right
// order. Text outside {{...}} spans is ignored; an unclosed open brace pair
// is treated as literal text.
func ParseTokens(text string) []Token {
	var tokens []Token
	for {
		start := strings.Index(text, tokenOpen)
		if start < 0 {
			return tokens
		}
		rest := text[start+len(tokenOpen):]
		end := strings.Index(rest, tokenClose)
		if end < 0 {
			return tokens
		}
		body := strings.TrimSpace(rest[:end])
		raw := text[start : start+len(tokenOpen)+end+len(tokenClose)]
		tokens = append(tokens, classifyToken(raw, body))
		text = rest[end+len(tokenClose):]
	}
}

func classifyToken(raw, body string) Token {
	if body == terminatorBody {
		return Token{Raw: raw, Kind: KindListTerminator}
	}
	if field, ok := strings.CutPrefix(body, listPrefix); ok {
		return Token{Raw: raw, Kind: KindListHead, Field: FieldKey(strings.TrimSpace(field))}
	}
	return Token{Raw: raw, Kind: KindScalar, Field: FieldKey(body)}
}

// SoleToken returns the single token occupying the whole cell, if any. List
// heads and terminators are only meaningful in this position.
func SoleToken(text string) (Token, bool) {
	trimmed := strings.TrimSpace(text)
	tokens := ParseTokens(trimmed)
	if len(tokens) != 1 || tokens[0].Raw != trimmed {
		return Token{}, false
	}
	return tokens[0], true
}
