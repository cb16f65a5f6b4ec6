package commands

import (
	"errors"
	"fmt"
	"strings"
)

var errEmptyCommand = errors.New("empty command")

// Parse reads `name key=value key="quoted value"` into a command name and its options.
// A leading slash on the name is accepted.
func Parse(line string) (string, map[string]string, error) {
	tokens, err := tokenize(line)
	if err != nil {
		return "", nil, err
	}
	if len(tokens) == 0 {
		return "", nil, errEmptyCommand
	}

	name := strings.ToLower(strings.TrimPrefix(tokens[0], "/"))
	options := make(map[string]string, len(tokens)-1)
	for _, tok := range tokens[1:] {
		key, value, ok := strings.Cut(tok, "=")
		if !ok || key == "" {
			return "", nil, fmt.Errorf("option %q must be key=value", tok)
		}
		options[strings.ToLower(key)] = value
	}
	return name, options, nil
}

func tokenize(line string) ([]string, error) {
	var (
		tokens  []string
		current strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case (r == ' ' || r == '\t') && !quoted:
			if started {
				tokens = append(tokens, current.String())
				current.Reset()
				started = false
			}
		default:
			current.WriteRune(r)
			started = true
		}
	}
	if quoted {
		return nil, errors.New("unterminated quote")
	}
	if started {
		tokens = append(tokens, current.String())
	}
	return tokens, nil
}
