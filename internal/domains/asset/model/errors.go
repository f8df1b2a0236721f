package model

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the stable category of a domain failure.
type ErrorKind string

const (
	KindNotFound         ErrorKind = "NOT_FOUND"
	KindAlreadyExists    ErrorKind = "ALREADY_EXISTS"
	KindConflict         ErrorKind = "CONFLICT"
	KindValidation       ErrorKind = "VALIDATION_ERROR"
	KindStoreUnavailable ErrorKind = "STORE_UNAVAILABLE"
	KindInternal         ErrorKind = "INTERNAL"
)

// Stage names the step of a request that failed.
type Stage string

const (
	StageUpload   Stage = "upload"
	StageMetadata Stage = "metadata"
	StageCheckout Stage = "checkout"
	StageDownload Stage = "download"
	StageQuery    Stage = "query"
)

// Error codes
const (
	CodeAssetNotFound     = "ASSET_NOT_FOUND"
	CodeAuthorNotFound    = "AUTHOR_NOT_FOUND"
	CodeCommitNotFound    = "COMMIT_NOT_FOUND"
	CodeFilesNotFound     = "FILES_NOT_FOUND"
	CodeArchiveNotReady   = "ARCHIVE_NOT_READY"
	CodeAssetExists       = "ASSET_ALREADY_EXISTS"
	CodeAlreadyCheckedOut = "ALREADY_CHECKED_OUT"
	CodeNotCheckedOut     = "NOT_CHECKED_OUT"
	CodeCheckedOutByOther = "CHECKED_OUT_BY_OTHER"
	CodeValidation        = "VALIDATION_ERROR"
	CodeNoFiles           = "NO_FILES"
	CodeStoreUnavailable  = "STORE_UNAVAILABLE"
	CodeInternal          = "INTERNAL_ERROR"
)

// Sentinels, one per kind. errors.Is(err, ErrConflict) matches any AssetError
// of that kind.
var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrConflict         = errors.New("conflict")
	ErrValidation       = errors.New("validation failed")
	ErrStoreUnavailable = errors.New("blob store unavailable")
	ErrInternal         = errors.New("internal error")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindAlreadyExists:
		return ErrAlreadyExists
	case KindConflict:
		return ErrConflict
	case KindValidation:
		return ErrValidation
	case KindStoreUnavailable:
		return ErrStoreUnavailable
	default:
		return ErrInternal
	}
}

// AssetError is the structured failure every asset operation returns.
type AssetError struct {
	Kind    ErrorKind // Stable category
	Code    string    // Machine-readable code (e.g. "ALREADY_CHECKED_OUT")
	Message string    // Human-readable message
	Stage   Stage     // Step that failed, empty when not staged
	Details any       // Optional payload (validation fields, partial upload map)
	Err     error     // Underlying cause
}

// Error implements error interface
func (e *AssetError) Error() string {
	prefix := fmt.Sprintf("[%s]", e.Code)
	if e.Stage != "" {
		prefix = fmt.Sprintf("[%s/%s]", e.Stage, e.Code)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s %s: %v", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s %s", prefix, e.Message)
}

// Unwrap exposes the cause
func (e *AssetError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinel
func (e *AssetError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// ============================================
// ERROR FACTORY FUNCTIONS
// ============================================

func NewAssetNotFound(name string) *AssetError {
	return &AssetError{
		Kind:    KindNotFound,
		Code:    CodeAssetNotFound,
		Message: fmt.Sprintf("Asset '%s' not found", name),
	}
}

func NewAuthorNotFound(pennKey string) *AssetError {
	return &AssetError{
		Kind:    KindNotFound,
		Code:    CodeAuthorNotFound,
		Message: fmt.Sprintf("User '%s' not found", pennKey),
	}
}

func NewCommitNotFound(id string) *AssetError {
	return &AssetError{
		Kind:    KindNotFound,
		Code:    CodeCommitNotFound,
		Message: fmt.Sprintf("Commit '%s' not found", id),
	}
}

func NewFilesNotFound(name string) *AssetError {
	return &AssetError{
		Kind:    KindNotFound,
		Code:    CodeFilesNotFound,
		Message: fmt.Sprintf("No files found for asset '%s'", name),
	}
}

func NewArchiveNotReady(name string) *AssetError {
	return &AssetError{
		Kind:    KindNotFound,
		Code:    CodeArchiveNotReady,
		Message: fmt.Sprintf("Archive for asset '%s' has not been built yet", name),
	}
}

func NewAssetAlreadyExists(name string) *AssetError {
	return &AssetError{
		Kind:    KindAlreadyExists,
		Code:    CodeAssetExists,
		Message: fmt.Sprintf("Asset '%s' already exists", name),
	}
}

// NewAlreadyCheckedOut names the current holder like the old UI expects.
func NewAlreadyCheckedOut(holder *Author) *AssetError {
	return &AssetError{
		Kind:    KindConflict,
		Code:    CodeAlreadyCheckedOut,
		Message: fmt.Sprintf("Asset is already checked out by %s", holder.DisplayName()),
		Details: map[string]string{"checkedOutBy": holder.PennKey},
	}
}

func NewNotCheckedOut(name string) *AssetError {
	return &AssetError{
		Kind:    KindConflict,
		Code:    CodeNotCheckedOut,
		Message: fmt.Sprintf("Asset '%s' is not checked out", name),
	}
}

func NewCheckedOutByOther(name, holder string) *AssetError {
	return &AssetError{
		Kind:    KindConflict,
		Code:    CodeCheckedOutByOther,
		Message: fmt.Sprintf("Asset '%s' is checked out by another user", name),
		Details: map[string]string{"checkedOutBy": holder},
	}
}

// NewValidationError wraps field errors (typically ozzo validation.Errors).
func NewValidationError(err error) *AssetError {
	return &AssetError{
		Kind:    KindValidation,
		Code:    CodeValidation,
		Message: "Invalid request",
		Details: err,
		Err:     err,
	}
}

func NewValidationMessage(message string) *AssetError {
	return &AssetError{
		Kind:    KindValidation,
		Code:    CodeValidation,
		Message: message,
	}
}

func NewNoFiles() *AssetError {
	return &AssetError{
		Kind:    KindValidation,
		Code:    CodeNoFiles,
		Message: "Request missing files",
	}
}

func NewStoreUnavailable(stage Stage, err error) *AssetError {
	return &AssetError{
		Kind:    KindStoreUnavailable,
		Code:    CodeStoreUnavailable,
		Message: "Blob store request failed",
		Stage:   stage,
		Err:     err,
	}
}

func NewInternal(stage Stage, err error) *AssetError {
	return &AssetError{
		Kind:    KindInternal,
		Code:    CodeInternal,
		Message: "Internal error",
		Stage:   stage,
		Err:     err,
	}
}

// ============================================
// HELPERS
// ============================================

// WithStage tags err with the failing stage. Non-domain errors become Internal.
func WithStage(err error, stage Stage) error {
	if err == nil {
		return nil
	}
	var ae *AssetError
	if errors.As(err, &ae) {
		if ae.Stage != "" {
			return ae
		}
		tagged := *ae
		tagged.Stage = stage
		return &tagged
	}
	return NewInternal(stage, err)
}

// KindOf returns the kind of err, Internal for foreign errors.
func KindOf(err error) ErrorKind {
	var ae *AssetError
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// ToHTTPStatus converts error to HTTP status code
func ToHTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindAlreadyExists, KindConflict:
		return http.StatusConflict
	case KindValidation:
		return http.StatusBadRequest
	case KindStoreUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// ToErrorCode converts error to API error code
func ToErrorCode(err error) string {
	var ae *AssetError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return CodeInternal
}
