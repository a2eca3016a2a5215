package services

import "strings"

// Identity is the caller as resolved by the transport layer.
type Identity struct {
	UserID string
	Admin  bool
}

// RequireUser fails unless id carries a user.
func RequireUser(id Identity) error {
	if strings.TrimSpace(id.UserID) == "" {
		return ErrNoIdentity
	}
	return nil
}

// RequireAdmin fails unless id is an authenticated admin.
func RequireAdmin(id Identity) error {
	if err := RequireUser(id); err != nil {
		return err
	}
	if !id.Admin {
		return ErrAdminOnly
	}
	return nil
}
