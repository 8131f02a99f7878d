package soundscape

import "errors"

// ErrorKind classifies pipeline failures
type ErrorKind string

const (
	KindConfiguration   ErrorKind = "CONFIGURATION_ERROR"
	KindInputResolution ErrorKind = "INPUT_RESOLUTION_ERROR"
	KindRecordingIO     ErrorKind = "RECORDING_IO_ERROR"
	KindDataFormat      ErrorKind = "DATA_FORMAT_ERROR"
)

// Error represents soundscape pipeline errors
type Error struct {
	Kind    ErrorKind `json:"kind"`
	Path    string    `json:"path,omitempty"`
	Message string    `json:"message"`
	Cause   error     `json:"-"`
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Path != "" {
		msg = e.Path + ": " + msg
	}
	if e.Cause != nil {
		return msg + ": " + e.Cause.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new pipeline error
func NewError(kind ErrorKind, path, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Path:    path,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigurationError reports an invalid or missing configuration value
func NewConfigurationError(message string, cause error) *Error {
	return NewError(KindConfiguration, "", message, cause)
}

// NewInputResolutionError reports an input that is neither a directory nor a readable table
func NewInputResolutionError(path, message string, cause error) *Error {
	return NewError(KindInputResolution, path, message, cause)
}

// NewRecordingIOError reports an audio file that could not be loaded or decoded
func NewRecordingIOError(path, message string, cause error) *Error {
	return NewError(KindRecordingIO, path, message, cause)
}

// NewDataFormatError reports malformed recording metadata
func NewDataFormatError(path, message string, cause error) *Error {
	return NewError(KindDataFormat, path, message, cause)
}

// KindOf returns the kind of the first *Error in the chain, or "" if there is none
func KindOf(err error) ErrorKind {
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}
