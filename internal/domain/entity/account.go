package entity

import "fmt"

// AccountInfo is immutable identity context for the account the archive
// is being packaged on behalf of.
type AccountInfo struct {
	emailAddress string
	userID       string
	healthCode   string
}

// NewAccountInfo constructs an AccountInfo. healthCode is optional; pass
// "" when the account has none.
func NewAccountInfo(emailAddress, userID, healthCode string) (*AccountInfo, error) {
	if emailAddress == "" {
		return nil, fmt.Errorf("emailAddress is required")
	}
	if userID == "" {
		return nil, fmt.Errorf("userId is required")
	}

	return &AccountInfo{
		emailAddress: emailAddress,
		userID:       userID,
		healthCode:   healthCode,
	}, nil
}

// EmailAddress returns the account's email address.
func (a *AccountInfo) EmailAddress() string { return a.emailAddress }

// UserID returns the account's user id.
func (a *AccountInfo) UserID() string { return a.userID }

// HealthCode returns the account's health code, or "" if it has none.
func (a *AccountInfo) HealthCode() string { return a.healthCode }
