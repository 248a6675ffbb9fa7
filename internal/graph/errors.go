package graph

import "fmt"

// TransportError indicates the underlying network call failed (timeout,
// DNS, connection reset). The source can be skipped and retried on the
// next scheduled run.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteAPIError indicates the remote service returned an error payload,
// typically an invalid or expired access token. Not retried automatically.
type RemoteAPIError struct {
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("remote API error: %s (type: %s, code: %d)", e.Message, e.Type, e.Code)
}

// MalformedResponseError indicates a page could not be decoded. The page
// contributes zero messages; since no continuation pointer is known,
// pagination stops there.
type MalformedResponseError struct {
	Err error
}

func (e *MalformedResponseError) Error() string {
	return fmt.Sprintf("malformed response: %v", e.Err)
}

func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}
