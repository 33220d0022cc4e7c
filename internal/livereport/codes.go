package livereport

import (
	"fmt"
	"net/http"
)

// Code classifies the outcome of one adapter call.
type Code int

const (
	NoError Code = iota
	ConnectionError
	Timeout
	HTTPCodeError
	WrongDataFormat
	EmptyData
	UnexpectedError
	NoResponse
)

func (c Code) String() string {
	switch c {
	case NoError:
		return "NO_ERROR"
	case ConnectionError:
		return "CONNECTION_ERROR"
	case Timeout:
		return "TIMEOUT"
	case HTTPCodeError:
		return "HTTP_CODE_ERROR"
	case WrongDataFormat:
		return "WRONG_DATA_FORMAT"
	case EmptyData:
		return "EMPTY_DATA"
	case UnexpectedError:
		return "UNEXPECTED_ERROR"
	case NoResponse:
		return "NO_RESPONSE"
	default:
		return fmt.Sprintf("CODE(%d)", int(c))
	}
}

// Response is what an adapter returns for one event.
type Response struct {
	Code Code
	// Status is the HTTP status when Code is HTTPCodeError, or the status of
	// a successful call.
	Status int
	Body   map[string]any
	Err    error
}

// OK reports whether the server acknowledged the event.
func (r Response) OK() bool { return r.Code == NoError }

// Retriable reports whether the event should stay at the head of the queue
// and be sent again.
func (r Response) Retriable() bool {
	switch r.Code {
	case ConnectionError, Timeout, NoResponse:
		return true
	case HTTPCodeError:
		return r.Status == http.StatusNotFound || r.Status == http.StatusServiceUnavailable
	}
	return false
}

func (r Response) String() string {
	s := r.Code.String()
	if r.Code == HTTPCodeError {
		s = fmt.Sprintf("%s(%d)", s, r.Status)
	}
	if r.Err != nil {
		s += ": " + r.Err.Error()
	}
	return s
}

func failure(code Code, err error) Response { return Response{Code: code, Err: err} }
