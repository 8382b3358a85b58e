package ui

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseSelection parses a multi-select input against a menu of n items.
// Accepted forms: "all", "0" (select nothing), and comma-separated numbers or
// ranges like "1,3-5". Returned indices are 0-based, deduplicated, ascending.
func ParseSelection(input string, n int) ([]int, error) {
	input = strings.TrimSpace(strings.ToLower(input))
	if input == "" {
		return nil, fmt.Errorf("empty selection")
	}
	if input == "all" {
		out := make([]int, n)
		for i := range out {
			out[i] = i
		}
		return out, nil
	}
	if input == "0" {
		return nil, nil
	}

	seen := make(map[int]bool)
	var out []int
	add := func(choice int) error {
		if choice < 1 || choice > n {
			return fmt.Errorf("selection %d out of range 1-%d", choice, n)
		}
		if !seen[choice] {
			seen[choice] = true
			out = append(out, choice-1)
		}
		return nil
	}

	for _, part := range strings.Split(input, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if lo, hi, ok := strings.Cut(part, "-"); ok {
			start, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil {
				return nil, fmt.Errorf("invalid range %q", part)
			}
			end, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil {
				return nil, fmt.Errorf("invalid range %q", part)
			}
			if end < start {
				return nil, fmt.Errorf("invalid range %q", part)
			}
			for choice := start; choice <= end; choice++ {
				if err := add(choice); err != nil {
					return nil, err
				}
			}
			continue
		}
		choice, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid selection %q", part)
		}
		if err := add(choice); err != nil {
			return nil, err
		}
	}

	sort.Ints(out)
	return out, nil
}
