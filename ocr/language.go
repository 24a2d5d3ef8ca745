package ocr

import (
	"fmt"
	"strings"
)

// Language selects the trained data used for a whole preview pass or export.
type Language string

const (
	LanguagePrimary   Language = "rus"
	LanguageSecondary Language = "eng"
	LanguageBoth      Language = "rus+eng"
)

// DefaultLanguage is the selector preselected in the UI and CLI.
const DefaultLanguage = LanguagePrimary

// Languages returns the supported selectors in display order.
func Languages() []Language {
	return []Language{LanguagePrimary, LanguageSecondary, LanguageBoth}
}

// ParseLanguage validates a selector string.
func ParseLanguage(s string) (Language, error) {
	l := Language(strings.TrimSpace(s))
	for _, known := range Languages() {
		if l == known {
			return l, nil
		}
	}
	return "", fmt.Errorf("unsupported OCR language %q", s)
}

// Codes splits the selector into the individual Tesseract language codes.
func (l Language) Codes() []string {
	if l == "" {
		return nil
	}
	return strings.Split(string(l), "+")
}

func (l Language) String() string { return string(l) }
