// internal/app/features/users/csvutil/errors.go
package csvutil

import "errors"

// ErrTooManyRows is returned when a CSV exceeds ParseOptions.MaxRows.
var ErrTooManyRows = errors.New("csv exceeds the maximum row count")

// RowError describes why a single CSV row was rejected. Line is the
// 1-based line number in the uploaded file; it is 0 when the error is not
// attributable to one row.
type RowError struct {
	Line   int      `json:"line"`
	Reason string   `json:"reason"`
	Raw    []string `json:"-"`
}
