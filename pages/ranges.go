package pages

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ParseRanges parses a page list such as "1-3,5,8-" against a document of n
// pages. Open-ended ranges run to the last page; "-4" starts at the first.
// The result is sorted and free of duplicates.
func ParseRanges(spec string, n int) ([]int, error) {
	seen := make(map[int]bool)
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, err := parseRange(part, n)
		if err != nil {
			return nil, err
		}
		for p := lo; p <= hi; p++ {
			seen[p] = true
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("page list %q selects no pages", spec)
	}
	out := make([]int, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Ints(out)
	return out, nil
}

func parseRange(part string, n int) (int, int, error) {
	from, to, isRange := strings.Cut(part, "-")
	lo, hi := 1, n
	var err error
	if from = strings.TrimSpace(from); from != "" {
		if lo, err = strconv.Atoi(from); err != nil {
			return 0, 0, fmt.Errorf("invalid page %q", from)
		}
	}
	if !isRange {
		hi = lo
	} else if to = strings.TrimSpace(to); to != "" {
		if hi, err = strconv.Atoi(to); err != nil {
			return 0, 0, fmt.Errorf("invalid page %q", to)
		}
	}
	if lo < 1 || hi > n || lo > hi {
		return 0, 0, fmt.Errorf("page range %q outside 1-%d: %w", part, n, ErrPageOutOfRange)
	}
	return lo, hi, nil
}
