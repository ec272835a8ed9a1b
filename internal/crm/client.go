// Package crm integrates the external CRM system.
//
// The core never depends on a specific CRM's wire format: the orchestrator
// sees CRM actions only through tool descriptors built by Tools, and those
// depend on the Client interface, not on HTTPClient.
package crm

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors for CRM operations.
var (
	// ErrNotFound indicates the requested record does not exist in the CRM.
	ErrNotFound = errors.New("crm record not found")

	// ErrRejected indicates the CRM refused the write (validation, duplicate
	// policy). Distinct from transport failure: the request reached the CRM.
	ErrRejected = errors.New("crm rejected the request")
)

// Contact is a customer record as the core sees it.
type Contact struct {
	ID        string
	Name      string
	Email     string
	Phone     string
	LeadCount int
	CreatedAt time.Time
}

// Lead is a sales lead to be created in the CRM.
type Lead struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
	Email string `json:"email,omitempty"`
	Note  string `json:"note,omitempty"`
}

// Client is the CRM operations interface consumed by the tool layer.
type Client interface {
	// Contact fetches a customer record by CRM ID.
	// Returns ErrNotFound when no such record exists.
	Contact(ctx context.Context, id string) (*Contact, error)

	// CreateLead creates a sales lead and returns its external ID.
	// Returns ErrRejected (wrapped, with reason) when the CRM refuses it.
	CreateLead(ctx context.Context, lead Lead) (string, error)
}
