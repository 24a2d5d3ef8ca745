// Package ocr defines the boundary between the page pipeline and a text
// recognition engine. An Engine takes one encoded page image plus language
// hints and returns plain text; engines can be backed by native libraries,
// local binaries, or remote services without leaking their details here.
package ocr
