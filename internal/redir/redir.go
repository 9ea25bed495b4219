// Package redir pulls "<", ">", ">>" operands out of a word list produced
// by the tokenizer.
package redir

import "errors"

// ErrMissingOperand is returned when a redirection operator is the last
// word with no following path.
var ErrMissingOperand = errors.New("redir: operator without operand")

// Redir holds the resolved redirection targets for one pipeline stage.
type Redir struct {
	In     string // path for "<", empty if unset
	Out    string // path for ">" or ">>", empty if unset
	Append bool   // true if Out came from ">>"
}

// Parse strips redirection operators and their operands out of words,
// returning the cleaned word list and the resolved Redir. The last
// occurrence of each operator kind wins.
func Parse(words []string) ([]string, Redir, error) {
	var clean []string
	var r Redir

	for i := 0; i < len(words); i++ {
		switch words[i] {
		case "<":
			if i+1 >= len(words) {
				return nil, Redir{}, ErrMissingOperand
			}
			r.In = words[i+1]
			i++
		case ">":
			if i+1 >= len(words) {
				return nil, Redir{}, ErrMissingOperand
			}
			r.Out = words[i+1]
			r.Append = false
			i++
		case ">>":
			if i+1 >= len(words) {
				return nil, Redir{}, ErrMissingOperand
			}
			r.Out = words[i+1]
			r.Append = true
			i++
		default:
			clean = append(clean, words[i])
		}
	}

	return clean, r, nil
}
