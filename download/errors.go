package download

import "fmt"

// FetchError reports a failed HTTP retrieval for a single URL.
type FetchError struct {
	URL        string
	StatusCode int   // zero when the failure happened before a response arrived
	Err        error // underlying transport or read error, if any
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// WriteError reports a failed write of fetched bytes to the output
// directory.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}
