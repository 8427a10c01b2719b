// Package cli — numbers.go parses the pull request arguments of the pr
// command. Arguments are either single numbers ("12345") or half-open
// ranges ("100-110", meaning 100 through 109). A malformed argument
// aborts the invocation before any worktree is created.
package cli

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/Mic92/nix-review/internal/model"
)

// rangeRE matches a half-open range "a-b" at the start of a token;
// trailing text after the range is ignored. numberRE matches a plain
// pull request number. Anything else is malformed.
var (
	rangeRE  = regexp.MustCompile(`^(\d+)-(\d+)`)
	numberRE = regexp.MustCompile(`^\d+$`)
)

// parsePullRequestNumbers expands the pr command's arguments into the
// flat list of pull request numbers to review, preserving argument
// order and duplicates. A range "a-b" is half-open: it expands to
// a, a+1, ..., b-1, so an empty or inverted range contributes nothing.
func parsePullRequestNumbers(args []string) ([]int, error) {
	var numbers []int
	for _, arg := range args {
		if m := rangeRE.FindStringSubmatch(arg); m != nil {
			begin, err := strconv.Atoi(m[1])
			if err != nil {
				return nil, malformedNumber(arg, err)
			}
			end, err := strconv.Atoi(m[2])
			if err != nil {
				return nil, malformedNumber(arg, err)
			}
			for n := begin; n < end; n++ {
				numbers = append(numbers, n)
			}
			continue
		}

		if !numberRE.MatchString(arg) {
			return nil, malformedNumber(arg, nil)
		}
		n, err := strconv.Atoi(arg)
		if err != nil {
			return nil, malformedNumber(arg, err)
		}
		numbers = append(numbers, n)
	}
	return numbers, nil
}

func malformedNumber(arg string, err error) error {
	message := fmt.Sprintf("invalid pull request number or range %q", arg)
	if err == nil {
		return model.NewCLIError(model.ExitGeneralError, message)
	}
	return model.WrapCLIError(model.ExitGeneralError, message, err)
}
