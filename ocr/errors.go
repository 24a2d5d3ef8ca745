package ocr

import "fmt"

// OCRError reports a recognition failure for one page.
type OCRError struct {
	Page   int
	Engine string
	Err    error
}

func (e *OCRError) Error() string {
	if e.Engine != "" {
		return fmt.Sprintf("ocr page %d (%s): %v", e.Page, e.Engine, e.Err)
	}
	return fmt.Sprintf("ocr page %d: %v", e.Page, e.Err)
}

func (e *OCRError) Unwrap() error { return e.Err }
