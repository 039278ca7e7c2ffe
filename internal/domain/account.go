package domain

import "time"

// DefaultAccountID is the id of the account created on first use
const DefaultAccountID = "default"

// DefaultAccountName is the display name of the auto-created account
const DefaultAccountName = "Default"

// Account is a brokerage account. Accounts are never deleted.
type Account struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	IsDefault  bool      `json:"isDefault"`
	CreateTime time.Time `json:"createTime"`
}
