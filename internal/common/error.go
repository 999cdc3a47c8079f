package common

import "fmt"

var (
	ErrEmptyURL                          = fmt.Errorf("url is required")
	ErrJobNotFoundError                  = fmt.Errorf("job not found")
	ErrRetentionProcessHasAlreadyStarted = fmt.Errorf("retention process has already started")
)

// DownloadError is returned when the external downloader exits non-zero or
// fails to launch. Output carries the tool's stderr verbatim.
type DownloadError struct {
	Err    error
	Output string
}

func (e *DownloadError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("download failed: %v", e.Err)
	}

	return fmt.Sprintf("download failed: %v: %s", e.Err, e.Output)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
