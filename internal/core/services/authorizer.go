package services

import (
	"fmt"

	"github.com/JeanGrijp/niji-api/internal/core/domain"
)

// Authorize checks identity against the minimum role an operation declares.
// action names the operation in the rejection reason, e.g. "update images".
func Authorize(identity domain.Identity, required domain.Role, action string) error {
	if identity.Role.Satisfies(required) {
		return nil
	}
	reason := "user does not have the required permissions"
	if action != "" {
		reason = fmt.Sprintf("user is not authorized to %s", action)
	}
	return domain.Reject(domain.ErrForbidden, reason)
}
