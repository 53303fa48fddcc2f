// Package apperr defines the typed errors raised by the render pipeline.
// Each error carries the stage that failed so the HTTP layer can report it,
// and maps itself to a response status.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the category of a pipeline error.
type Kind int

const (
	KindUnknown Kind = iota
	// KindValidation marks missing or malformed request fields.
	KindValidation
	// KindFetchTimeout marks a remote fetch that ran past its deadline.
	KindFetchTimeout
	// KindFetchError marks a failed fetch or a non-2xx response.
	KindFetchError
	// KindAborted marks work cancelled by the caller.
	KindAborted
	// KindDecode marks image bytes that could not be decoded.
	KindDecode
	// KindRender marks a failure while encoding or writing the document.
	KindRender
	// KindCoordinate marks a text element with non-finite coordinates.
	// It is soft: the element is skipped and the render continues.
	KindCoordinate
	// KindUnavailable marks a collaborator that is not configured.
	KindUnavailable
	// KindInternal marks anything else.
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "ValidationError"
	case KindFetchTimeout:
		return "FetchTimeout"
	case KindFetchError:
		return "FetchError"
	case KindAborted:
		return "Aborted"
	case KindDecode:
		return "DecodeError"
	case KindRender:
		return "RenderError"
	case KindCoordinate:
		return "CoordinateError"
	case KindUnavailable:
		return "Unavailable"
	case KindInternal:
		return "InternalError"
	default:
		return "UnknownError"
	}
}

// Stage names the pipeline step an error came from.
type Stage string

const (
	StageValidate  Stage = "validate"
	StageAcquire   Stage = "acquire"
	StageOverlay   Stage = "overlay"
	StageComposite Stage = "composite"
	StageRender    Stage = "render"
	StageStore     Stage = "store"
)

// Error is a pipeline error with a Kind and the failing Stage.
type Error struct {
	Kind    Kind
	Stage   Stage
	Status  int // upstream HTTP status for KindFetchError, 0 otherwise
	Message string
	Err     error
	Details interface{}
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s", e.Stage, msg)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// HTTPStatus returns the response status for this error.
func (e *Error) HTTPStatus() int {
	switch e.Kind {
	case KindValidation:
		return http.StatusBadRequest
	case KindUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WithStage returns a copy of e tagged with stage.
func (e *Error) WithStage(stage Stage) *Error {
	cp := *e
	cp.Stage = stage
	return &cp
}

// WithDetails returns a copy of e carrying details for the response body.
func (e *Error) WithDetails(details interface{}) *Error {
	cp := *e
	cp.Details = details
	return &cp
}

func Validation(message string) *Error {
	return &Error{Kind: KindValidation, Stage: StageValidate, Message: message}
}

func FetchTimeout(url string, err error) *Error {
	return &Error{Kind: KindFetchTimeout, Message: "image fetch timed out: " + url, Err: err}
}

// FetchError reports a failed fetch. status is 0 when no response arrived.
func FetchError(status int, url string, err error) *Error {
	msg := "failed to fetch image: " + url
	if status != 0 {
		msg = fmt.Sprintf("failed to fetch image: %s: status %d", url, status)
	}
	return &Error{Kind: KindFetchError, Status: status, Message: msg, Err: err}
}

func Aborted(err error) *Error {
	return &Error{Kind: KindAborted, Message: "request aborted", Err: err}
}

func Decode(err error) *Error {
	return &Error{Kind: KindDecode, Message: "failed to decode image", Err: err}
}

func Render(err error) *Error {
	return &Error{Kind: KindRender, Stage: StageRender, Message: "failed to render document", Err: err}
}

func Coordinate(message string) *Error {
	return &Error{Kind: KindCoordinate, Stage: StageRender, Message: message}
}

func Unavailable(message string) *Error {
	return &Error{Kind: KindUnavailable, Message: message}
}

func Internal(message string, err error) *Error {
	return &Error{Kind: KindInternal, Message: message, Err: err}
}

// As extracts the *Error in err's chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// GetKind returns the Kind of the *Error in err's chain, or KindUnknown.
func GetKind(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindUnknown
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return GetKind(err) == kind
}

// StageOf tags err with stage when it is an *Error without one,
// and wraps plain errors as internal errors of that stage.
func StageOf(err error, stage Stage) error {
	if err == nil {
		return nil
	}
	if e, ok := As(err); ok {
		if e.Stage != "" {
			return e
		}
		return e.WithStage(stage)
	}
	return Internal("unexpected failure", err).WithStage(stage)
}
