package evidence

import (
	"errors"
	"fmt"
	"regexp"
)

// UnavailableError indicates an evidence source could not be read: the log
// file is missing, the metrics database is unreachable, or the upstream
// service did not respond.
type UnavailableError struct {
	// Source names the evidence source ("logs", "metrics", "upstream")
	Source string

	// Detail describes what was requested
	Detail string

	// Cause is the underlying error, if any
	Cause error
}

func (e *UnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s evidence unavailable (%s): %v", e.Source, e.Detail, e.Cause)
	}
	return fmt.Sprintf("%s evidence unavailable (%s)", e.Source, e.Detail)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// IsUnavailable reports whether err is an UnavailableError.
func IsUnavailable(err error) bool {
	var ue *UnavailableError
	return errors.As(err, &ue)
}

// ValidationError indicates a request referenced an unknown system, an
// unregistered table, or a malformed date.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// datePattern matches ISO dates (YYYY-MM-DD). Dates are embedded in file
// names and SQL parameters, so the format is enforced up front.
var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// ValidateDate checks that date is an ISO calendar date.
func ValidateDate(date string) error {
	if !datePattern.MatchString(date) {
		return &ValidationError{Field: "date", Reason: fmt.Sprintf("%q is not an ISO date (YYYY-MM-DD)", date)}
	}
	return nil
}
