package ytdlp

import "errors"

// Failure classes recognised in yt-dlp's stderr.
var (
	ErrURLNotSupported  = errors.New("url not supported")
	ErrVideoUnavailable = errors.New("video unavailable")
	ErrVideoPrivate     = errors.New("video is private")
	ErrAgeRestricted    = errors.New("content is age-restricted")
	ErrNetworkError     = errors.New("network error")
	ErrYtdlpNotFound    = errors.New("yt-dlp not found in PATH")
	ErrDownloadFailed   = errors.New("download failed")

	// ErrNoOutput means yt-dlp exited cleanly but no file with the
	// requested extension was written.
	ErrNoOutput = errors.New("no output file produced")
)

// DownloadError ties a failure to the URL being fetched.
type DownloadError struct {
	URL     string
	Message string
	Err     error
}

func (e *DownloadError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}
