package pipeline

import "errors"

// Sentinel errors classify task failures for the error_type column and
// retry decisions.
var (
	// ErrNotFound means the photo or task row vanished mid-flight.
	ErrNotFound = errors.New("not found")
	// ErrDownloadFailed means the original could not be fetched from the
	// object store.
	ErrDownloadFailed = errors.New("download failed")
	// ErrProcessing covers decode, hashing and rendition failures.
	ErrProcessing = errors.New("processing error")
	// ErrAnalysis covers model inference and tagging failures.
	ErrAnalysis = errors.New("analysis error")
)

// errorType maps a failure to its stored classification.
func errorType(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrDownloadFailed):
		return "download_failed"
	case errors.Is(err, ErrAnalysis):
		return "analysis_error"
	default:
		return "processing_error"
	}
}
