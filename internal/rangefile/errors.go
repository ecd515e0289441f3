package rangefile

import (
	"fmt"
)

// NetworkError reports a transport failure while sending a range request or
// receiving its body.
type NetworkError struct {
	URL   string
	Range string
	Err   error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("range request %s bytes=%s: %v", e.URL, e.Range, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ProtocolError reports a response the origin should not have sent: an
// unexpected status, or a success without a usable Content-Range header.
// Origins without byte-range support end up here rather than being read in full.
type ProtocolError struct {
	URL        string
	Range      string
	StatusCode int
	Reason     string
}

func (e *ProtocolError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("range request %s bytes=%s: %s (status %d)", e.URL, e.Range, e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("range request %s bytes=%s: %s", e.URL, e.Range, e.Reason)
}
