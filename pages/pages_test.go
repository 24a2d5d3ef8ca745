package pages

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewSelectionIncludesEverything(t *testing.T) {
	s := NewSelection(4)
	if s.Len() != 4 || s.Count() != 4 {
		t.Fatalf("expected 4 included flags, got len=%d count=%d", s.Len(), s.Count())
	}
	if !reflect.DeepEqual(s.Numbers(), []int{1, 2, 3, 4}) {
		t.Fatalf("unexpected numbers: %v", s.Numbers())
	}
}

func TestEmptySelection(t *testing.T) {
	s := NewSelection(0)
	if s.Len() != 0 || s.Any() {
		t.Fatalf("empty selection should have no flags")
	}
	if _, err := s.Toggle(1); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
}

func TestToggleAndSet(t *testing.T) {
	s := NewSelection(3)
	v, err := s.Toggle(2)
	if err != nil || v {
		t.Fatalf("Toggle(2) = %v, %v", v, err)
	}
	if !reflect.DeepEqual(s.Numbers(), []int{1, 3}) {
		t.Fatalf("unexpected numbers: %v", s.Numbers())
	}
	if v, _ := s.Toggle(2); !v {
		t.Fatalf("second toggle should re-include page 2")
	}
	if err := s.Set(0, true); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
	if err := s.Set(4, true); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
	if s.Len() != 3 {
		t.Fatalf("flag count must track page count, got %d", s.Len())
	}
	s.SetAll(false)
	if s.Any() {
		t.Fatalf("expected nothing included")
	}
}

func TestOnly(t *testing.T) {
	s := NewSelection(5)
	if err := s.Only([]int{5, 2}); err != nil {
		t.Fatalf("Only() error = %v", err)
	}
	if !reflect.DeepEqual(s.Numbers(), []int{2, 5}) {
		t.Fatalf("unexpected numbers: %v", s.Numbers())
	}
	if err := s.Only([]int{6}); err == nil {
		t.Fatalf("expected out of range error")
	}
	if !reflect.DeepEqual(s.Numbers(), []int{2, 5}) {
		t.Fatalf("failed Only must not change flags: %v", s.Numbers())
	}
}

func TestSnapshotIsIndependent(t *testing.T) {
	s := NewSelection(2)
	snap := s.Snapshot()
	if _, err := s.Toggle(1); err != nil {
		t.Fatal(err)
	}
	if !snap.Included(1) {
		t.Fatalf("snapshot changed after toggle")
	}
}

func TestParseRanges(t *testing.T) {
	cases := []struct {
		spec string
		n    int
		want []int
	}{
		{"1-3,5", 6, []int{1, 2, 3, 5}},
		{"5, 1-2, 2", 5, []int{1, 2, 5}},
		{"4-", 6, []int{4, 5, 6}},
		{"-2", 6, []int{1, 2}},
		{"-", 3, []int{1, 2, 3}},
	}
	for _, tc := range cases {
		got, err := ParseRanges(tc.spec, tc.n)
		if err != nil {
			t.Fatalf("ParseRanges(%q) error = %v", tc.spec, err)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ParseRanges(%q) = %v, want %v", tc.spec, got, tc.want)
		}
	}
}

func TestParseRangesErrors(t *testing.T) {
	for _, spec := range []string{"", "0", "7", "3-1", "a-b", "1-x", " , "} {
		if _, err := ParseRanges(spec, 6); err == nil {
			t.Fatalf("ParseRanges(%q) expected error", spec)
		}
	}
	if _, err := ParseRanges("9", 6); !errors.Is(err, ErrPageOutOfRange) {
		t.Fatalf("expected ErrPageOutOfRange, got %v", err)
	}
}
