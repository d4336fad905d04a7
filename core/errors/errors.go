// Package errors provides the error taxonomy shared by the merge engine and
// its collaborators.
package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for common cases
var (
	// ErrNotFound indicates a resource was not found
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput indicates invalid input or validation failure
	ErrInvalidInput = errors.New("invalid input")
	// ErrUnsupported indicates an unsupported operation or format
	ErrUnsupported = errors.New("unsupported")

	// ErrMalformedDocument indicates an annotation document lacks a required
	// section or cannot be parsed.
	ErrMalformedDocument = errors.New("malformed document")
	// ErrMissingAudioFile indicates the audio paired with a document could not
	// be resolved to a duration.
	ErrMissingAudioFile = errors.New("missing audio file")
	// ErrIDCollision indicates a duplicate identifier after renumbering.
	ErrIDCollision = errors.New("identifier collision")
	// ErrTierMismatch indicates an incoming tier has no counterpart in the
	// accumulated document.
	ErrTierMismatch = errors.New("tier mismatch")
)

// NotFoundError represents a resource not found error with context
type NotFoundError struct {
	Resource string // Type of resource (e.g., "document", "audio", "tier")
	ID       string // Identifier of the resource
	Err      error  // Underlying error, if any
}

func (e *NotFoundError) Error() string {
	if e.ID != "" {
		return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e *NotFoundError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrNotFound
}

// ValidationError represents an input validation error with context
type ValidationError struct {
	Field   string // Field name that failed validation
	Value   string // Value that failed validation (may be redacted)
	Message string // Human-readable error message
	Err     error  // Underlying error, if any
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed for %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrInvalidInput
}

// IOError represents an I/O operation error with context
type IOError struct {
	Operation string // Operation being performed (e.g., "read", "write", "open")
	Path      string // File/resource path involved
	Err       error  // Underlying error
}

func (e *IOError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("failed to %s %s: %v", e.Operation, e.Path, e.Err)
	}
	return fmt.Sprintf("failed to %s: %v", e.Operation, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// UnsupportedError represents an unsupported feature or format
type UnsupportedError struct {
	Feature string // Feature or format that is unsupported
	Reason  string // Why it's not supported
	Err     error  // Underlying error, if any
}

func (e *UnsupportedError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("unsupported %s: %s", e.Feature, e.Reason)
	}
	return fmt.Sprintf("unsupported %s", e.Feature)
}

func (e *UnsupportedError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrUnsupported
}

// MalformedDocumentError reports a document that cannot be modelled.
type MalformedDocumentError struct {
	Path    string // Document path, if known
	Section string // Offending section (e.g., "TIME_ORDER", "TIER")
	Message string // Error details
	Err     error  // Underlying error, if any
}

func (e *MalformedDocumentError) Error() string {
	where := e.Path
	if where == "" {
		where = "<input>"
	}
	if e.Section != "" {
		return fmt.Sprintf("malformed document %s: %s: %s", where, e.Section, e.Message)
	}
	return fmt.Sprintf("malformed document %s: %s", where, e.Message)
}

// Unwrap returns both the sentinel and the cause so errors.Is matches either.
func (e *MalformedDocumentError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMalformedDocument, e.Err}
	}
	return []error{ErrMalformedDocument}
}

// MissingAudioFileError reports a document whose paired audio has no duration.
type MissingAudioFileError struct {
	Document  string // Document path
	AudioPath string // Expected audio path
	Err       error  // Underlying error, if any
}

func (e *MissingAudioFileError) Error() string {
	msg := fmt.Sprintf("missing audio file %s for document %s", e.AudioPath, e.Document)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MissingAudioFileError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrMissingAudioFile, e.Err}
	}
	return []error{ErrMissingAudioFile}
}

// IDCollisionError reports an identifier that appears twice after renumbering.
type IDCollisionError struct {
	Document  string // Incoming document path
	Namespace string // "ts" or "a"
	ID        string // Duplicated identifier
}

func (e *IDCollisionError) Error() string {
	return fmt.Sprintf("identifier collision in %s namespace: %s (from %s)", e.Namespace, e.ID, e.Document)
}

func (e *IDCollisionError) Unwrap() error {
	return ErrIDCollision
}

// TierMismatchError reports an incoming tier absent from the accumulator.
type TierMismatchError struct {
	Document string // Incoming document path
	TierID   string // Tier that has no counterpart
}

func (e *TierMismatchError) Error() string {
	return fmt.Sprintf("tier %q from %s not present in merged document", e.TierID, e.Document)
}

func (e *TierMismatchError) Unwrap() error {
	return ErrTierMismatch
}

// Helper functions for creating common errors

// NewNotFound creates a NotFoundError
func NewNotFound(resource, id string) *NotFoundError {
	return &NotFoundError{
		Resource: resource,
		ID:       id,
	}
}

// NewValidation creates a ValidationError
func NewValidation(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// NewIO creates an IOError
func NewIO(operation, path string, err error) *IOError {
	return &IOError{
		Operation: operation,
		Path:      path,
		Err:       err,
	}
}

// NewUnsupported creates an UnsupportedError
func NewUnsupported(feature, reason string) *UnsupportedError {
	return &UnsupportedError{
		Feature: feature,
		Reason:  reason,
	}
}

// NewMalformed creates a MalformedDocumentError
func NewMalformed(path, section, message string) *MalformedDocumentError {
	return &MalformedDocumentError{
		Path:    path,
		Section: section,
		Message: message,
	}
}

// NewMissingAudio creates a MissingAudioFileError
func NewMissingAudio(document, audioPath string, err error) *MissingAudioFileError {
	return &MissingAudioFileError{
		Document:  document,
		AudioPath: audioPath,
		Err:       err,
	}
}

// NewIDCollision creates an IDCollisionError
func NewIDCollision(document, namespace, id string) *IDCollisionError {
	return &IDCollisionError{
		Document:  document,
		Namespace: namespace,
		ID:        id,
	}
}

// NewTierMismatch creates a TierMismatchError
func NewTierMismatch(document, tierID string) *TierMismatchError {
	return &TierMismatchError{
		Document: document,
		TierID:   tierID,
	}
}

// Wrap adds context to an error. If err is nil, returns nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf adds formatted context to an error. If err is nil, returns nil.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	message := fmt.Sprintf(format, args...)
	return fmt.Errorf("%s: %w", message, err)
}

// New wraps errors.New for convenience
func New(text string) error {
	return errors.New(text)
}

// Is wraps errors.Is for convenience
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As wraps errors.As for convenience
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
