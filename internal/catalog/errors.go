package catalog

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrNoRule is returned when no nomenclature rule shares the record's
// department and family.
var ErrNoRule = errors.New("no matching nomenclature rule")

// FormatError reports a tabular input missing required columns.
type FormatError struct {
	Source   string
	Found    []string
	Required []string
	Missing  []string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: missing required columns: %s (found: %s; required: %s)",
		e.Source,
		strings.Join(e.Missing, ", "),
		strings.Join(e.Found, ", "),
		strings.Join(e.Required, ", "))
}

// ConfigError is fatal to the operation that needed the setting.
type ConfigError struct {
	Setting string
	Reason  string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Setting, e.Reason)
}

// MissingColumns returns the required names absent from found, in required order.
func MissingColumns(found, required []string) []string {
	have := make(map[string]struct{}, len(found))
	for _, f := range found {
		have[strings.TrimSpace(f)] = struct{}{}
	}
	var missing []string
	for _, r := range required {
		if _, ok := have[r]; !ok {
			missing = append(missing, r)
		}
	}
	return missing
}

// SkipBOM drops a leading UTF-8 byte order mark, as written by spreadsheet
// exports.
func SkipBOM(r io.Reader) io.Reader {
	br := bufio.NewReader(r)
	if b, err := br.Peek(3); err == nil && bytes.Equal(b, utf8BOM) {
		_, _ = br.Discard(3)
	}
	return br
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}
