package api

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	// KindNetwork means no response was received.
	KindNetwork ErrorKind = iota + 1
	// KindAPI means a response arrived with an HTTP error status or an
	// envelope whose status is not "success".
	KindAPI
)

func (k ErrorKind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindAPI:
		return "api"
	default:
		return "unknown"
	}
}

var (
	ErrNetwork = errors.New("network error")
	ErrAPI     = errors.New("api error")
)

// RequestError is the single error type surfaced by Client.
type RequestError struct {
	Kind    ErrorKind
	Method  string
	URL     string
	Status  int    // HTTP status, zero for network errors
	Message string // Server message or transport description
	Err     error  // Original error, if any
}

func (e *RequestError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case KindNetwork:
		return fmt.Sprintf("network error: %s %s: %v", e.Method, e.URL, e.Err)
	default:
		return fmt.Sprintf("http error: [%d] %s %s: %s", e.Status, e.Method, e.URL, e.Message)
	}
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

func (e *RequestError) Is(target error) bool {
	switch target {
	case ErrNetwork:
		return e.Kind == KindNetwork
	case ErrAPI:
		return e.Kind == KindAPI
	}
	return false
}

func networkError(method, url string, err error) error {
	return &RequestError{
		Kind:    KindNetwork,
		Method:  method,
		URL:     url,
		Message: err.Error(),
		Err:     err,
	}
}

func apiError(method, url string, status int, message string) error {
	return &RequestError{
		Kind:    KindAPI,
		Method:  method,
		URL:     url,
		Status:  status,
		Message: message,
	}
}
