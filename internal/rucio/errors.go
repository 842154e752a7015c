package rucio

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

var (
	ErrDataIdentifierNotFound      = errors.New("data identifier not found")
	ErrDataIdentifierAlreadyExists = errors.New("data identifier already exists")
	ErrFileAlreadyExists           = errors.New("file already exists")
	ErrDuplicate                   = errors.New("duplicate")
	ErrRSENotFound                 = errors.New("rse not found")
	ErrAccessDenied                = errors.New("access denied")
	ErrCannotAuthenticate          = errors.New("cannot authenticate")
	// ErrNoHost indicates the client has no server to talk to.
	ErrNoHost = errors.New("no rucio host configured")
)

// exception classes reported by the server, mapped onto sentinels
var classErrors = map[string]error{
	"DataIdentifierNotFound":      ErrDataIdentifierNotFound,
	"DataIdentifierAlreadyExists": ErrDataIdentifierAlreadyExists,
	"FileAlreadyExists":           ErrFileAlreadyExists,
	"DuplicateContent":            ErrFileAlreadyExists,
	"Duplicate":                   ErrDuplicate,
	"RSENotFound":                 ErrRSENotFound,
	"AccessDenied":                ErrAccessDenied,
	"CannotAuthenticate":          ErrCannotAuthenticate,
}

// APIError is a non-2xx answer from the server. It unwraps to the matching
// sentinel when the exception class is known.
type APIError struct {
	Status  int
	Class   string
	Message string
}

func (e *APIError) Error() string {
	if e.Class == "" {
		return fmt.Sprintf("rucio: http %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("rucio: %s: %s", e.Class, e.Message)
}

func (e *APIError) Unwrap() error { return classErrors[e.Class] }

// decodeError reads the exception class from headers first, then the body.
func decodeError(resp *http.Response) error {
	e := &APIError{
		Status:  resp.StatusCode,
		Class:   resp.Header.Get("ExceptionClass"),
		Message: resp.Header.Get("ExceptionMessage"),
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if e.Class == "" || e.Message == "" {
		var payload struct {
			Class   string `json:"ExceptionClass"`
			Message string `json:"ExceptionMessage"`
		}
		if json.Unmarshal(body, &payload) == nil {
			if e.Class == "" {
				e.Class = payload.Class
			}
			if e.Message == "" {
				e.Message = payload.Message
			}
		}
	}
	if e.Message == "" {
		e.Message = http.StatusText(resp.StatusCode)
	}
	if e.Class == "" && resp.StatusCode == http.StatusUnauthorized {
		e.Class = "CannotAuthenticate"
	}
	return e
}
