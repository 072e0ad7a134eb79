package services

import (
	"errors"

	"stormcloud/apperrors"
	"stormcloud/models"
)

// Capability names as they appear on the wire and in denial responses.
const (
	CapUpload       = "can_upload"
	CapDelete       = "can_delete"
	CapMove         = "can_move"
	CapOverwrite    = "can_overwrite"
	CapCreateShares = "can_create_shares"
)

// RequireCapability checks an account's capability flag before a mutation.
// Admin actors acting on another user's storage bypass the target's flags.
func RequireCapability(account *models.Account, capability string) error {
	allowed := false
	switch capability {
	case CapUpload:
		allowed = account.CanUpload
	case CapDelete:
		allowed = account.CanDelete
	case CapMove:
		allowed = account.CanMove
	case CapOverwrite:
		allowed = account.CanOverwrite
	case CapCreateShares:
		allowed = account.CanCreateShares
	}
	if !allowed {
		return apperrors.PermissionDenied(capability)
	}
	return nil
}

func asAppError(err error) *apperrors.Error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
