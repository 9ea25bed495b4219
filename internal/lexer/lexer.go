// Package lexer splits a trimmed shell line on unquoted "|" into pipeline
// stages and detects a trailing background "&".
package lexer

import (
	"errors"
	"strings"
)

// ErrEmptyStage is returned for a leading, trailing, or doubled unquoted
// "|" that would produce a stage with no text.
var ErrEmptyStage = errors.New("lexer: empty pipeline stage")

// Split walks line tracking '"'/'\'' quoting (escapes are not honoured at
// this layer — that is the tokenizer's job in the next stage). It first
// detects and strips a trailing unquoted "&", then splits what remains on
// unquoted "|" into pipeline stages.
func Split(line string) (stages []string, background bool, err error) {
	trimmed := strings.TrimSpace(line)
	trimmed, background = stripTrailingAmpersand(trimmed)
	trimmed = strings.TrimSpace(trimmed)

	inSingle, inDouble := false, false
	var cur strings.Builder
	var raw []string

	for _, c := range trimmed {
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
			cur.WriteRune(c)
		case c == '"' && !inSingle:
			inDouble = !inDouble
			cur.WriteRune(c)
		case c == '|' && !inSingle && !inDouble:
			raw = append(raw, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	raw = append(raw, cur.String())

	for _, s := range raw {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, false, ErrEmptyStage
		}
		stages = append(stages, s)
	}

	if len(stages) == 0 {
		return nil, false, ErrEmptyStage
	}

	return stages, background, nil
}

// stripTrailingAmpersand removes a trailing unquoted '&' from s, tracking
// quote state across the whole string so a '&' inside quotes is left alone.
func stripTrailingAmpersand(s string) (string, bool) {
	if s == "" {
		return s, false
	}
	inSingle, inDouble := false, false
	lastUnquotedAmp := -1
	runes := []rune(s)
	for i, c := range runes {
		switch {
		case c == '\'' && !inDouble:
			inSingle = !inSingle
		case c == '"' && !inSingle:
			inDouble = !inDouble
		case c == '&' && !inSingle && !inDouble:
			lastUnquotedAmp = i
		}
	}
	if lastUnquotedAmp == -1 {
		return s, false
	}
	// Only a trailing '&' counts: everything after it must be whitespace.
	rest := strings.TrimSpace(string(runes[lastUnquotedAmp+1:]))
	if rest != "" {
		return s, false
	}
	return string(runes[:lastUnquotedAmp]), true
}
