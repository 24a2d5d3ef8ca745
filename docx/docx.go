// Package docx writes Word (.docx) documents made of plain text paragraphs
// and page breaks.
package docx

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gomutex/godocx"
	gdocx "github.com/gomutex/godocx/docx"
)

// MIMEType is the content type of a .docx package.
const MIMEType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

// Extension is the conventional file extension including the dot.
const Extension = ".docx"

type blockKind int

const (
	paragraphBlock blockKind = iota
	pageBreakBlock
)

type block struct {
	kind blockKind
	text string
}

// Document is an in-memory document body. The zero value is empty and ready
// to use. The package is only built when the document is written.
type Document struct {
	blocks []block
}

// New returns an empty document.
func New() *Document { return &Document{} }

// AddParagraph appends one paragraph. Newlines become line breaks within the
// paragraph.
func (d *Document) AddParagraph(text string) {
	d.blocks = append(d.blocks, block{kind: paragraphBlock, text: text})
}

// AddPageBreak appends a paragraph holding a single page break.
func (d *Document) AddPageBreak() {
	d.blocks = append(d.blocks, block{kind: pageBreakBlock})
}

// Bytes serializes the document.
func (d *Document) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := d.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteTo writes the .docx package to w.
func (d *Document) WriteTo(w io.Writer) (int64, error) {
	root, err := godocx.NewDocument()
	if err != nil {
		return 0, fmt.Errorf("new docx: %w", err)
	}
	for _, b := range d.blocks {
		switch b.kind {
		case pageBreakBlock:
			root.AddPageBreak()
		case paragraphBlock:
			addParagraph(root, b.text)
		}
	}
	cw := &countingWriter{w: w}
	if err := root.Write(cw); err != nil {
		return cw.n, fmt.Errorf("write docx: %w", err)
	}
	return cw.n, nil
}

func addParagraph(root *gdocx.RootDoc, text string) {
	p := root.AddEmptyParagraph()
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	if text == "" {
		return
	}
	lines := strings.Split(clean(text), "\n")
	for i, line := range lines {
		run := p.AddText(line)
		if i < len(lines)-1 {
			run.AddBreak(nil)
		}
	}
}

// clean drops runes XML 1.0 cannot carry. Tesseract emits form feeds between
// pages, and encoding/xml would turn them into U+FFFD.
func clean(s string) string {
	return strings.Map(func(r rune) rune {
		if validXMLChar(r) {
			return r
		}
		return -1
	}, s)
}

func validXMLChar(r rune) bool {
	return r == 0x09 || r == 0x0A || r == 0x0D ||
		(r >= 0x20 && r <= 0xD7FF) ||
		(r >= 0xE000 && r <= 0xFFFD) ||
		(r >= 0x10000 && r <= 0x10FFFF)
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
