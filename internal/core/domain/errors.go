package domain

import (
	"errors"
	"fmt"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported format")
	ErrExtractionFailed  = errors.New("extraction failed")
	ErrUnknownIndustry   = errors.New("unknown industry")
	ErrClassifier        = errors.New("classifier failure")
	ErrExtractorConflict = errors.New("extractor conflict")
	ErrJobNotFound       = errors.New("job not found")
	ErrBatchNotFound     = errors.New("batch not found")
	ErrInvalidInput      = errors.New("invalid input")
	ErrTemporary         = errors.New("temporary failure")
)

// Stable error kinds persisted on failed jobs and exposed over the API.
const (
	ErrorKindUnsupportedFormat = "unsupported_format"
	ErrorKindExtractionFailed  = "extraction_failed"
	ErrorKindUnknownIndustry   = "unknown_industry"
	ErrorKindClassifier        = "classifier_error"
	ErrorKindInvalidInput      = "invalid_input"
	ErrorKindInfrastructure    = "infrastructure"
	ErrorKindCanceled          = "canceled"
	ErrorKindInternal          = "internal"
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}

// KindOf maps an error chain to its stable kind string.
func KindOf(err error) string {
	switch {
	case IsKind(err, ErrUnsupportedFormat):
		return ErrorKindUnsupportedFormat
	case IsKind(err, ErrExtractionFailed):
		return ErrorKindExtractionFailed
	case IsKind(err, ErrUnknownIndustry):
		return ErrorKindUnknownIndustry
	case IsKind(err, ErrClassifier):
		return ErrorKindClassifier
	case IsKind(err, ErrInvalidInput):
		return ErrorKindInvalidInput
	case IsKind(err, ErrTemporary):
		return ErrorKindInfrastructure
	default:
		return ErrorKindInternal
	}
}

// ErrorInfoFrom snapshots an error for storage on a failed job.
func ErrorInfoFrom(err error) ErrorInfo {
	if err == nil {
		return ErrorInfo{}
	}
	return ErrorInfo{Kind: KindOf(err), Message: err.Error()}
}
