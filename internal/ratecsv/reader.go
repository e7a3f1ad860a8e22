package ratecsv

// reader.go reads an uploaded file in full before it is parsed.
//
// Uploads are small (the UI recommends up to 10,000 rows), so the whole body
// is buffered. Two clean-ups happen on the way in:
//
//   - a UTF-8 BOM written by spreadsheet exports is skipped
//   - invalid UTF-8 sequences are replaced with U+FFFD

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// ErrTooLarge is returned by ReadText when the input exceeds its limit.
var ErrTooLarge = errors.New("file too large")

// ErrNotCSV is returned for uploads without a .csv extension.
var ErrNotCSV = errors.New("invalid csv: file must have a .csv extension")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// NewBOMSkippingReader returns a reader that drops a leading UTF-8 BOM.
func NewBOMSkippingReader(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}
	return br
}

// ReadText reads all of r as UTF-8 text. limit <= 0 disables the size check.
func ReadText(r io.Reader, limit int64) (string, error) {
	src := r
	if limit > 0 {
		src = io.LimitReader(r, limit+1)
	}

	data, err := io.ReadAll(NewBOMSkippingReader(src))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if limit > 0 && int64(len(data)) > limit {
		return "", fmt.Errorf("%w: more than %d bytes", ErrTooLarge, limit)
	}
	return strings.ToValidUTF8(string(data), "\uFFFD"), nil
}

// HasCSVExtension reports whether name ends in .csv, ignoring case.
func HasCSVExtension(name string) bool {
	return strings.EqualFold(filepath.Ext(name), ".csv")
}
