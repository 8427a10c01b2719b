package nix

import (
	"fmt"
	"strings"
)

// SplitArgs splits a raw build-argument string the way a POSIX shell
// tokenizes a command line: whitespace separates arguments, single and
// double quotes group them, backslash escapes the next character outside
// single quotes.
//
// The --build-args flag is documented as "arguments passed to nix", so
// users quote values like `--arg config '{ allowUnfree = true; }'` and
// expect shell-like behavior.
func SplitArgs(raw string) ([]string, error) {
	var (
		args    []string
		current strings.Builder
		inArg   bool
		quote   rune
		escaped bool
	)

	for _, r := range raw {
		switch {
		case escaped:
			current.WriteRune(r)
			escaped = false
		case quote == '\'' && r != '\'':
			current.WriteRune(r)
		case r == '\\' && quote != '\'':
			escaped = true
			inArg = true
		case quote != 0 && r == quote:
			quote = 0
		case quote == 0 && (r == '\'' || r == '"'):
			quote = r
			inArg = true
		case quote == 0 && (r == ' ' || r == '\t' || r == '\n'):
			if inArg {
				args = append(args, current.String())
				current.Reset()
				inArg = false
			}
		default:
			current.WriteRune(r)
			inArg = true
		}
	}

	if escaped {
		return nil, fmt.Errorf("build arguments end with an unfinished escape: %q", raw)
	}
	if quote != 0 {
		return nil, fmt.Errorf("build arguments contain an unterminated %c quote: %q", quote, raw)
	}
	if inArg {
		args = append(args, current.String())
	}
	return args, nil
}
