// Package scripting evaluates JavaScript expressions against pages so a
// selection can be expressed as a rule ("page.number % 2 == 1") instead of a
// list.
package scripting

import (
	"context"
	"errors"
	"fmt"

	"github.com/dop251/goja"

	"github.com/wudi/pdfocr/pages"
)

// PageInfo is the object exposed to expressions as `page`.
type PageInfo struct {
	Number int `json:"number"`
	Index  int `json:"index"`
	Count  int `json:"count"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Selector is a compiled page predicate. A Selector is not safe for concurrent
// use.
type Selector struct {
	expr string
	vm   *goja.Runtime
	fn   goja.Callable
}

// Compile wraps expr into a predicate function. expr is a JavaScript
// expression over the `page` object; truthy results include the page.
func Compile(expr string) (*Selector, error) {
	if expr == "" {
		return nil, errors.New("empty selection expression")
	}
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	prog, err := goja.Compile("selection", "(function(page) { return ("+expr+"); })", true)
	if err != nil {
		return nil, fmt.Errorf("compile selection %q: %w", expr, err)
	}
	val, err := vm.RunProgram(prog)
	if err != nil {
		return nil, fmt.Errorf("load selection %q: %w", expr, err)
	}
	fn, ok := goja.AssertFunction(val)
	if !ok {
		return nil, fmt.Errorf("selection %q is not callable", expr)
	}
	return &Selector{expr: expr, vm: vm, fn: fn}, nil
}

// Match evaluates the predicate for one page. Long-running expressions are
// interrupted when ctx is done.
func (s *Selector) Match(ctx context.Context, info PageInfo) (bool, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}

	defer s.vm.ClearInterrupt()
	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			s.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()

	val, err := s.fn(goja.Undefined(), s.vm.ToValue(info))
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) {
			if cause := interrupted.Unwrap(); cause != nil {
				return false, cause
			}
			return false, context.Canceled
		}
		return false, fmt.Errorf("evaluate selection on page %d: %w", info.Number, err)
	}
	return val.ToBoolean(), nil
}

// Apply evaluates the predicate for every page and replaces the flags in sel.
// sel is left untouched when any evaluation fails.
func (s *Selector) Apply(ctx context.Context, all []pages.Page, sel *pages.Selection) error {
	var keep []int
	for i, p := range all {
		ok, err := s.Match(ctx, PageInfo{Number: p.Number, Index: i, Count: len(all), Width: p.Width, Height: p.Height})
		if err != nil {
			return err
		}
		if ok {
			keep = append(keep, p.Number)
		}
	}
	return sel.Only(keep)
}

func (s *Selector) String() string { return s.expr }
