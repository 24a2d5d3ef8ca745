// Package pages holds the rasterized pages of one uploaded document and the
// per-page inclusion flags that decide what gets exported.
package pages

import (
	"errors"
	"fmt"
	"sort"

	"github.com/wudi/pdfocr/ocr"
)

// ErrPageOutOfRange is returned when a page ordinal does not exist.
var ErrPageOutOfRange = errors.New("page out of range")

// Page is one rendered page image. Image holds the encoded bytes exactly as the
// rasterizer produced them and is never modified afterwards.
type Page struct {
	// Number is the 1-based ordinal of the page in the source PDF.
	Number int
	Image  []byte
	Format ocr.ImageFormat
	Width  int
	Height int
}

// Selection tracks the inclusion flag of every page, keyed by ordinal. New
// selections include every page.
type Selection struct {
	flags map[int]bool
	n     int
}

// NewSelection creates flags for pages 1..n, all included.
func NewSelection(n int) *Selection {
	if n < 0 {
		n = 0
	}
	s := &Selection{flags: make(map[int]bool, n), n: n}
	for i := 1; i <= n; i++ {
		s.flags[i] = true
	}
	return s
}

// Len reports the number of flags, which always equals the page count.
func (s *Selection) Len() int { return s.n }

// Included reports the flag for page; unknown pages are never included.
func (s *Selection) Included(page int) bool { return s.flags[page] }

// Set changes the flag for one page.
func (s *Selection) Set(page int, include bool) error {
	if page < 1 || page > s.n {
		return fmt.Errorf("set page %d of %d: %w", page, s.n, ErrPageOutOfRange)
	}
	s.flags[page] = include
	return nil
}

// Toggle flips the flag for one page and returns the new value.
func (s *Selection) Toggle(page int) (bool, error) {
	if page < 1 || page > s.n {
		return false, fmt.Errorf("toggle page %d of %d: %w", page, s.n, ErrPageOutOfRange)
	}
	s.flags[page] = !s.flags[page]
	return s.flags[page], nil
}

// SetAll sets every flag to include.
func (s *Selection) SetAll(include bool) {
	for i := 1; i <= s.n; i++ {
		s.flags[i] = include
	}
}

// Only includes exactly the given pages and excludes the rest.
func (s *Selection) Only(pages []int) error {
	for _, p := range pages {
		if p < 1 || p > s.n {
			return fmt.Errorf("select page %d of %d: %w", p, s.n, ErrPageOutOfRange)
		}
	}
	s.SetAll(false)
	for _, p := range pages {
		s.flags[p] = true
	}
	return nil
}

// Count reports how many pages are included.
func (s *Selection) Count() int {
	var c int
	for _, v := range s.flags {
		if v {
			c++
		}
	}
	return c
}

// Any reports whether at least one page is included.
func (s *Selection) Any() bool { return s.Count() > 0 }

// Numbers returns the included ordinals in ascending order.
func (s *Selection) Numbers() []int {
	out := make([]int, 0, s.n)
	for p, v := range s.flags {
		if v {
			out = append(out, p)
		}
	}
	sort.Ints(out)
	return out
}

// Snapshot copies the flags so later toggles do not affect the copy.
func (s *Selection) Snapshot() *Selection {
	c := &Selection{flags: make(map[int]bool, s.n), n: s.n}
	for k, v := range s.flags {
		c.flags[k] = v
	}
	return c
}
