package scripting

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/wudi/pdfocr/pages"
)

func testPages(n int) []pages.Page {
	out := make([]pages.Page, n)
	for i := range out {
		out[i] = pages.Page{Number: i + 1, Width: 100, Height: 100 + 100*(i%2)}
	}
	return out
}

func TestSelectorApply(t *testing.T) {
	cases := map[string][]int{
		"page.number % 2 == 1":             {1, 3, 5},
		"page.index >= page.count - 2":     {4, 5},
		"page.height > page.width":         {2, 4},
		"true":                             {1, 2, 3, 4, 5},
		"[1, 4].indexOf(page.number) >= 0": {1, 4},
	}
	for expr, want := range cases {
		sel, err := Compile(expr)
		if err != nil {
			t.Fatalf("Compile(%q) error = %v", expr, err)
		}
		flags := pages.NewSelection(5)
		if err := sel.Apply(context.Background(), testPages(5), flags); err != nil {
			t.Fatalf("Apply(%q) error = %v", expr, err)
		}
		if got := flags.Numbers(); !reflect.DeepEqual(got, want) {
			t.Fatalf("%q selected %v, want %v", expr, got, want)
		}
	}
}

func TestSelectorNothingMatches(t *testing.T) {
	sel, err := Compile("page.number > 10")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	flags := pages.NewSelection(3)
	if err := sel.Apply(context.Background(), testPages(3), flags); err != nil {
		t.Fatalf("Apply() error = %v", err)
	}
	if flags.Any() {
		t.Fatalf("expected every page excluded, got %v", flags.Numbers())
	}
}

func TestCompileErrors(t *testing.T) {
	for _, expr := range []string{"", "page.number ==", "}"} {
		if _, err := Compile(expr); err == nil {
			t.Fatalf("Compile(%q) expected error", expr)
		}
	}
}

func TestRuntimeErrorKeepsSelection(t *testing.T) {
	sel, err := Compile("page.missing.field")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	flags := pages.NewSelection(2)
	_ = flags.Set(2, false)
	if err := sel.Apply(context.Background(), testPages(2), flags); err == nil {
		t.Fatalf("expected runtime error")
	}
	if !reflect.DeepEqual(flags.Numbers(), []int{1}) {
		t.Fatalf("selection changed after failure: %v", flags.Numbers())
	}
}

func TestMatchInterruptedByContext(t *testing.T) {
	sel, err := Compile("(function(){ while (true) {} })()")
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = sel.Match(ctx, PageInfo{Number: 1})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}
