package model

import "time"

// GLAccount is one general-ledger account in an association's chart of
// accounts.
type GLAccount struct {
	ID            string `json:"id"`
	AssociationID string `json:"association_id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Category      string `json:"category"`
	Active        bool   `json:"active"`
}

// VendorPattern records which GL account an association's invoices from a
// given vendor historically landed on. Used as a classification hint.
type VendorPattern struct {
	ID            string    `json:"id"`
	AssociationID string    `json:"association_id"`
	VendorName    string    `json:"vendor_name"`
	GLAccount     string    `json:"gl_account"`
	Occurrences   int       `json:"occurrences"`
	LastSeen      time.Time `json:"last_seen"`
}

// AssociationContext is the read-only classification context for one
// association, loaded fresh per pipeline run.
type AssociationContext struct {
	GLAccounts     []GLAccount
	VendorPatterns []VendorPattern
}
