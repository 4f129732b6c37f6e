// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package ident canonicalizes work identifiers and decodes serialized
// reference lists.
package ident

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// workIDPattern matches a canonical work identifier: the work letter
// followed by digits ("W2741809807"). URLs such as
// "https://openalex.org/W2741809807" contain one.
var workIDPattern = regexp.MustCompile(`W\d+`)

// ErrMalformedList is returned when a serialized reference list cannot be decoded.
var ErrMalformedList = errors.New("malformed reference list")

// Normalize extracts the first canonical identifier from raw. It reports
// false when raw is empty or contains no identifier. Inputs that carry more
// than one identifier yield only the first.
func Normalize(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	id := workIDPattern.FindString(raw)
	return id, id != ""
}

// ParseReferences decodes a serialized list literal and normalizes every
// element. Both quoting styles are accepted:
//
//	['https://openalex.org/W1', 'https://openalex.org/W2']
//	["W1", "W2"]
//
// Elements that do not contain an identifier are dropped. A blank input is
// an empty list. Anything that is not a flat list of strings returns
// ErrMalformedList; callers decide whether that means "no references".
func ParseReferences(raw string) ([]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	elems, err := splitList(raw)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range elems {
		if id, ok := Normalize(e); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

// splitList tokenizes a bracketed list of quoted strings. Bare None, True,
// False, null and numeric elements are accepted and yield empty elements.
func splitList(s string) ([]string, error) {
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("%w: missing brackets", ErrMalformedList)
	}
	body := s[1 : len(s)-1]

	var out []string
	i := 0
	expectItem := true
	for {
		i = skipSpace(body, i)
		if i >= len(body) {
			break
		}
		c := body[i]
		switch {
		case c == ',' && !expectItem:
			expectItem = true
			i++
		case (c == '\'' || c == '"') && expectItem:
			val, next, err := readQuoted(body, i)
			if err != nil {
				return nil, err
			}
			out = append(out, val)
			i = next
			expectItem = false
		case expectItem && c != ',':
			tok, next := readBare(body, i)
			if !isScalarLiteral(tok) {
				return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrMalformedList, tok, i+1)
			}
			out = append(out, "")
			i = next
			expectItem = false
		default:
			return nil, fmt.Errorf("%w: unexpected %q at offset %d", ErrMalformedList, c, i+1)
		}
	}
	return out, nil
}

// readQuoted reads a quoted string starting at s[start] and returns its
// contents and the offset just past the closing quote.
func readQuoted(s string, start int) (string, int, error) {
	quote := s[start]
	var b strings.Builder
	for i := start + 1; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '\\' && i+1 < len(s):
			i++
			b.WriteByte(s[i])
		case c == quote:
			return b.String(), i + 1, nil
		default:
			b.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("%w: unterminated string", ErrMalformedList)
}

// readBare reads an unquoted token up to the next comma or whitespace.
func readBare(s string, start int) (string, int) {
	i := start
	for i < len(s) && s[i] != ',' && s[i] != ' ' && s[i] != '\t' && s[i] != '\n' && s[i] != '\r' {
		i++
	}
	return s[start:i], i
}

func isScalarLiteral(tok string) bool {
	switch tok {
	case "None", "True", "False", "null", "true", "false", "nan", "NaN":
		return true
	}
	_, err := strconv.ParseFloat(tok, 64)
	return err == nil
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}
