package apperrors

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Error codes returned in the {"error": {"code": ...}} envelope.
const (
	CodeInvalidPath           = "INVALID_PATH"
	CodeQuotaExceeded         = "QUOTA_EXCEEDED"
	CodePermissionDenied      = "PERMISSION_DENIED"
	CodeMaxShareLinksExceeded = "MAX_SHARE_LINKS_EXCEEDED"
	CodeFileNotFound          = "FILE_NOT_FOUND"
	CodePathIsDirectory       = "PATH_IS_DIRECTORY"
	CodeNotTextFile           = "NOT_TEXT_FILE"
	CodeFileTooLarge          = "FILE_TOO_LARGE"
	CodeMissingQuery          = "MISSING_QUERY"
	CodePathNotFound          = "PATH_NOT_FOUND"
	CodeAlreadyExists         = "ALREADY_EXISTS"
	CodeNotFound              = "NOT_FOUND"
	CodeDestinationNotFound   = "DESTINATION_NOT_FOUND"
	CodeDirectoryNotFound     = "DIRECTORY_NOT_FOUND"
	CodePathIsFile            = "PATH_IS_FILE"
	CodeShareNotFound         = "SHARE_NOT_FOUND"
	CodeLinkNotFound          = "LINK_NOT_FOUND"
	CodePasswordRequired      = "PASSWORD_REQUIRED"
	CodeInvalidPassword       = "INVALID_PASSWORD"
	CodeDownloadDisabled      = "DOWNLOAD_DISABLED"
	CodeUnlimitedNotAllowed   = "UNLIMITED_NOT_ALLOWED"
	CodeValidationError       = "VALIDATION_ERROR"
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeTaskNotFound          = "TASK_NOT_FOUND"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeStorageError          = "STORAGE_ERROR"
	CodeInternal              = "INTERNAL_ERROR"
)

// Error is an application error carrying the wire code, HTTP status, and any
// extra fields that belong inside the error envelope (e.g. "permission",
// "recovery", "limit").
type Error struct {
	Code    string
	Message string
	Status  int
	Extra   map[string]any
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// New creates an Error with the given code, HTTP status, and message.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Message: message, Status: status}
}

// Newf is New with a formatted message.
func Newf(code string, status int, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Status: status}
}

// With attaches an extra envelope field and returns the error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Extra == nil {
		e.Extra = make(map[string]any)
	}
	e.Extra[key] = value
	return e
}

// As unwraps err into an *Error, or nil if it is not one.
func As(err error) *Error {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// Respond writes err as the standard error envelope. Unknown errors are
// masked as a generic 500 so backend details never reach the caller.
func Respond(c *fiber.Ctx, err error) error {
	appErr := As(err)
	if appErr == nil {
		appErr = New(CodeInternal, fiber.StatusInternalServerError, "An internal error occurred.")
	}

	body := fiber.Map{
		"code":    appErr.Code,
		"message": appErr.Message,
	}
	for k, v := range appErr.Extra {
		body[k] = v
	}

	return c.Status(appErr.Status).JSON(fiber.Map{"error": body})
}

// Convenience constructors for the common cases.

func InvalidPath(detail string) *Error {
	return New(CodeInvalidPath, fiber.StatusBadRequest, detail)
}

func FileNotFound(path string) *Error {
	return Newf(CodeFileNotFound, fiber.StatusNotFound, "File '%s' does not exist.", path).With("path", path)
}

func PathIsDirectory(path string) *Error {
	return Newf(CodePathIsDirectory, fiber.StatusBadRequest, "Path '%s' is a directory.", path)
}

func PermissionDenied(permission string) *Error {
	return New(CodePermissionDenied, fiber.StatusForbidden,
		"You do not have permission to perform this action.").With("permission", permission)
}

func QuotaExceeded(quotaBytes, usedBytes int64) *Error {
	return New(CodeQuotaExceeded, fiber.StatusInsufficientStorage,
		"Operation would exceed storage quota.").
		With("quota_bytes", quotaBytes).
		With("used_bytes", usedBytes)
}

func ShareNotFound() *Error {
	return New(CodeShareNotFound, fiber.StatusNotFound, "Share link not found or expired")
}
