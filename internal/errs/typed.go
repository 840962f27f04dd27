package errs

import (
	"errors"
	"fmt"
)

// RemoteAPIError is returned when the document API answers with a non-2xx status.
type RemoteAPIError struct {
	Status  int
	Message string
}

func (e *RemoteAPIError) Error() string {
	return fmt.Sprintf("remote api error: status=%d: %s", e.Status, e.Message)
}

// DocumentFormatError means the remote document exists but lacks the expected file.
type DocumentFormatError struct {
	File string
}

func (e *DocumentFormatError) Error() string {
	return fmt.Sprintf("file %s not found in document", e.File)
}

// BackupFormatError means a payload failed structural validation.
type BackupFormatError struct {
	Reason string
}

func (e *BackupFormatError) Error() string {
	return "invalid backup format: " + e.Reason
}

// Message returns the human-readable notification text for err.
func Message(err error) string {
	var (
		apiErr *RemoteAPIError
		docErr *DocumentFormatError
		bakErr *BackupFormatError
	)
	switch {
	case err == nil:
		return ""
	case errors.As(err, &apiErr):
		return "Remote API error: " + apiErr.Message
	case errors.As(err, &docErr):
		return docErr.Error()
	case errors.As(err, &bakErr):
		return "Backup file is invalid or corrupted."
	case errors.Is(err, ErrUnauthorized):
		return "Wrong ID or password."
	case errors.Is(err, ErrRateLimited):
		return "Too many failed attempts, try again later."
	case errors.Is(err, ErrReservedID):
		return `ID "ADMIN" is reserved.`
	case errors.Is(err, ErrAlreadyExists):
		return "This ID or email is already in use."
	case errors.Is(err, ErrDeleteSelf):
		return "You cannot delete your own account."
	case errors.Is(err, ErrDeleteAdmin):
		return "The Admin account cannot be deleted."
	case errors.Is(err, ErrInsufficientRole):
		return "You do not have permission to manage this account."
	case errors.Is(err, ErrLastManager):
		return "The last Manager account cannot be deleted."
	case errors.Is(err, ErrUserHasOrders):
		return "User has orders. Reassign them before deleting the user."
	case errors.Is(err, ErrNotAuthenticated):
		return "Login required."
	case errors.Is(err, ErrNoPendingRestore):
		return "Nothing to restore."
	case errors.Is(err, ErrNotFound):
		return "Not found."
	default:
		return err.Error()
	}
}
