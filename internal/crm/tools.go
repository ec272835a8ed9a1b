package crm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"

	"github.com/arealhq/arealbot/internal/log"
	"github.com/arealhq/arealbot/internal/tool"
)

// Tool names exposed to the model.
const (
	ToolLookupCustomer = "lookup_customer"
	ToolCreateLead     = "create_lead"
)

// lookupArgs are the arguments for the lookup_customer tool.
type lookupArgs struct {
	CustomerID string `json:"customer_id" jsonschema:"CRM ID of the customer to look up"`
}

// createLeadArgs are the arguments for the create_lead tool.
type createLeadArgs struct {
	Name  string `json:"name" jsonschema:"full name of the person requesting service"`
	Phone string `json:"phone" jsonschema:"contact phone number"`
	Email string `json:"email,omitempty" jsonschema:"contact email, if provided"`
	Note  string `json:"note,omitempty" jsonschema:"short summary of what the customer asked for"`
}

// Toolset builds the CRM tool descriptors. It also carries the idempotency
// ledger for create_lead: a retried invocation with the same key returns the
// recorded summary without a second CRM write.
type Toolset struct {
	client Client
	logger log.Logger

	mu      sync.Mutex
	created map[string]string
}

// NewToolset creates a Toolset backed by the given CRM client.
func NewToolset(client Client, logger log.Logger) (*Toolset, error) {
	if client == nil {
		return nil, fmt.Errorf("crm client is required")
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Toolset{
		client:  client,
		logger:  logger,
		created: make(map[string]string),
	}, nil
}

// Descriptors returns the tool descriptors for registry construction.
func (t *Toolset) Descriptors() ([]tool.Descriptor, error) {
	lookupSchema, err := jsonschema.For[lookupArgs](nil)
	if err != nil {
		return nil, fmt.Errorf("lookup_customer schema: %w", err)
	}
	leadSchema, err := jsonschema.For[createLeadArgs](nil)
	if err != nil {
		return nil, fmt.Errorf("create_lead schema: %w", err)
	}

	return []tool.Descriptor{
		{
			Name:        ToolLookupCustomer,
			Description: "Look up an existing customer record by CRM ID. Read-only.",
			Schema:      lookupSchema,
			Mutating:    false,
			Handler:     t.lookupCustomer,
		},
		{
			Name: ToolCreateLead,
			Description: "Create a sales lead for a customer who wants a service. " +
				"Requires at least a name and a phone number.",
			Schema:   leadSchema,
			Mutating: true,
			Handler:  t.createLead,
		},
	}, nil
}

func (t *Toolset) lookupCustomer(ctx context.Context, raw json.RawMessage) (string, error) {
	var args lookupArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", &tool.Error{Kind: tool.InvalidArguments, Tool: ToolLookupCustomer, Err: err}
	}

	contact, err := t.client.Contact(ctx, args.CustomerID)
	if errors.Is(err, ErrNotFound) {
		return fmt.Sprintf("No customer with ID %s was found.", args.CustomerID), nil
	}
	if err != nil {
		return "", &tool.Error{Kind: tool.ExternalFailure, Tool: ToolLookupCustomer, Err: err}
	}

	return formatContact(contact), nil
}

func (t *Toolset) createLead(ctx context.Context, raw json.RawMessage) (string, error) {
	var args createLeadArgs
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", &tool.Error{Kind: tool.InvalidArguments, Tool: ToolCreateLead, Err: err}
	}

	key := tool.InvocationKey(ctx)
	if key != "" {
		t.mu.Lock()
		summary, done := t.created[key]
		t.mu.Unlock()
		if done {
			t.logger.Info("duplicate lead creation suppressed", "key", key)
			return summary, nil
		}
	}

	id, err := t.client.CreateLead(ctx, Lead{
		Name:  args.Name,
		Phone: args.Phone,
		Email: args.Email,
		Note:  args.Note,
	})
	if errors.Is(err, ErrRejected) {
		return "", &tool.Error{
			Kind:   tool.ExternalFailure,
			Tool:   ToolCreateLead,
			Detail: "the CRM rejected the lead",
			Err:    err,
		}
	}
	if err != nil {
		return "", &tool.Error{Kind: tool.ExternalFailure, Tool: ToolCreateLead, Err: err}
	}

	summary := fmt.Sprintf("Lead %s created for %s (%s). A manager will call back.",
		id, args.Name, args.Phone)

	if key != "" {
		t.mu.Lock()
		t.created[key] = summary
		t.mu.Unlock()
	}

	return summary, nil
}

// formatContact renders a contact as plain text for the model and end user.
func formatContact(c *Contact) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Customer %s: %s", c.ID, c.Name)
	if c.Phone != "" {
		fmt.Fprintf(&b, ", phone %s", c.Phone)
	}
	if c.Email != "" {
		fmt.Fprintf(&b, ", email %s", c.Email)
	}
	fmt.Fprintf(&b, ". Open leads: %d. Customer since %s.",
		c.LeadCount, c.CreatedAt.Format("2006-01-02"))
	return b.String()
}
