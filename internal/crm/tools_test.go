package crm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/arealhq/arealbot/internal/log"
	"github.com/arealhq/arealbot/internal/tool"
)

type mockClient struct {
	contact       *Contact
	contactErr    error
	leadID        string
	leadErr       error
	contactCalls  int
	leadCalls     int
	lastLead      Lead
	lastContactID string
}

func (m *mockClient) Contact(_ context.Context, id string) (*Contact, error) {
	m.contactCalls++
	m.lastContactID = id
	if m.contactErr != nil {
		return nil, m.contactErr
	}
	return m.contact, nil
}

func (m *mockClient) CreateLead(_ context.Context, lead Lead) (string, error) {
	m.leadCalls++
	m.lastLead = lead
	if m.leadErr != nil {
		return "", m.leadErr
	}
	return m.leadID, nil
}

func newTestToolset(t *testing.T, client Client) *Toolset {
	t.Helper()
	ts, err := NewToolset(client, log.NewNop())
	if err != nil {
		t.Fatalf("NewToolset() error = %v", err)
	}
	return ts
}

func handlerFor(t *testing.T, ts *Toolset, name string) tool.Handler {
	t.Helper()
	descs, err := ts.Descriptors()
	if err != nil {
		t.Fatalf("Descriptors() error = %v", err)
	}
	for _, d := range descs {
		if d.Name == name {
			return d.Handler
		}
	}
	t.Fatalf("descriptor %q not found", name)
	return nil
}

func TestToolsetDescriptors(t *testing.T) {
	ts := newTestToolset(t, &mockClient{})

	descs, err := ts.Descriptors()
	if err != nil {
		t.Fatalf("Descriptors() error = %v", err)
	}
	if len(descs) != 2 {
		t.Fatalf("len(descs) = %d, want 2", len(descs))
	}

	mutating := map[string]bool{}
	for _, d := range descs {
		if d.Schema == nil {
			t.Errorf("descriptor %q has nil schema", d.Name)
		}
		mutating[d.Name] = d.Mutating
	}
	if mutating[ToolLookupCustomer] {
		t.Error("lookup_customer must not be mutating")
	}
	if !mutating[ToolCreateLead] {
		t.Error("create_lead must be mutating")
	}
}

func TestLookupCustomer(t *testing.T) {
	tests := []struct {
		name       string
		client     *mockClient
		args       string
		want       string
		wantKind   tool.ErrorKind
		wantErr    bool
		wantCalls  int
	}{
		{
			name: "found",
			client: &mockClient{contact: &Contact{
				ID:        "42",
				Name:      "Anna Weber",
				Phone:     "+49 30 1234567",
				LeadCount: 2,
				CreatedAt: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
			}},
			args:      `{"customer_id":"42"}`,
			want:      "Anna Weber",
			wantCalls: 1,
		},
		{
			name:      "not found is an answer, not an error",
			client:    &mockClient{contactErr: ErrNotFound},
			args:      `{"customer_id":"99"}`,
			want:      "No customer with ID 99",
			wantCalls: 1,
		},
		{
			name:      "backend failure",
			client:    &mockClient{contactErr: errors.New("connection reset")},
			args:      `{"customer_id":"42"}`,
			wantErr:   true,
			wantKind:  tool.ExternalFailure,
			wantCalls: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestToolset(t, tt.client)
			handler := handlerFor(t, ts, ToolLookupCustomer)

			got, err := handler(context.Background(), json.RawMessage(tt.args))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				te, ok := tool.AsError(err)
				if !ok {
					t.Fatalf("error %v is not a tool error", err)
				}
				if te.Kind != tt.wantKind {
					t.Errorf("kind = %v, want %v", te.Kind, tt.wantKind)
				}
			} else {
				if err != nil {
					t.Fatalf("handler error = %v", err)
				}
				if !strings.Contains(got, tt.want) {
					t.Errorf("summary %q does not contain %q", got, tt.want)
				}
			}
			if tt.client.contactCalls != tt.wantCalls {
				t.Errorf("contact calls = %d, want %d", tt.client.contactCalls, tt.wantCalls)
			}
		})
	}
}

func TestCreateLead(t *testing.T) {
	args := json.RawMessage(`{"name":"Pavel Orlov","phone":"+7 912 000 11 22","note":"septic tank pumping"}`)

	t.Run("success", func(t *testing.T) {
		client := &mockClient{leadID: "7001"}
		ts := newTestToolset(t, client)
		handler := handlerFor(t, ts, ToolCreateLead)

		got, err := handler(context.Background(), args)
		if err != nil {
			t.Fatalf("handler error = %v", err)
		}
		if !strings.Contains(got, "7001") || !strings.Contains(got, "Pavel Orlov") {
			t.Errorf("summary %q missing lead id or name", got)
		}
		if client.lastLead.Note != "septic tank pumping" {
			t.Errorf("lead note = %q", client.lastLead.Note)
		}
	})

	t.Run("rejected by CRM", func(t *testing.T) {
		client := &mockClient{leadErr: ErrRejected}
		ts := newTestToolset(t, client)
		handler := handlerFor(t, ts, ToolCreateLead)

		_, err := handler(context.Background(), args)
		te, ok := tool.AsError(err)
		if !ok {
			t.Fatalf("error %v is not a tool error", err)
		}
		if te.Kind != tool.ExternalFailure {
			t.Errorf("kind = %v, want ExternalFailure", te.Kind)
		}
		if !errors.Is(err, ErrRejected) {
			t.Error("ErrRejected not preserved in chain")
		}
	})
}

func TestCreateLeadIdempotency(t *testing.T) {
	args := json.RawMessage(`{"name":"Pavel Orlov","phone":"+7 912 000 11 22"}`)

	t.Run("same key creates one lead", func(t *testing.T) {
		client := &mockClient{leadID: "7001"}
		ts := newTestToolset(t, client)
		handler := handlerFor(t, ts, ToolCreateLead)

		ctx := tool.WithInvocationKey(context.Background(), "thread-1:3")

		first, err := handler(ctx, args)
		if err != nil {
			t.Fatalf("first call error = %v", err)
		}
		second, err := handler(ctx, args)
		if err != nil {
			t.Fatalf("second call error = %v", err)
		}

		if client.leadCalls != 1 {
			t.Errorf("lead calls = %d, want 1", client.leadCalls)
		}
		if first != second {
			t.Errorf("retried summary %q differs from %q", second, first)
		}
	})

	t.Run("distinct keys create distinct leads", func(t *testing.T) {
		client := &mockClient{leadID: "7001"}
		ts := newTestToolset(t, client)
		handler := handlerFor(t, ts, ToolCreateLead)

		if _, err := handler(tool.WithInvocationKey(context.Background(), "thread-1:3"), args); err != nil {
			t.Fatalf("first call error = %v", err)
		}
		if _, err := handler(tool.WithInvocationKey(context.Background(), "thread-1:8"), args); err != nil {
			t.Fatalf("second call error = %v", err)
		}
		if client.leadCalls != 2 {
			t.Errorf("lead calls = %d, want 2", client.leadCalls)
		}
	})

	t.Run("failed creation is not recorded", func(t *testing.T) {
		client := &mockClient{leadErr: errors.New("timeout")}
		ts := newTestToolset(t, client)
		handler := handlerFor(t, ts, ToolCreateLead)

		ctx := tool.WithInvocationKey(context.Background(), "thread-2:1")
		if _, err := handler(ctx, args); err == nil {
			t.Fatal("expected error on first call")
		}

		client.leadErr = nil
		client.leadID = "7002"
		got, err := handler(ctx, args)
		if err != nil {
			t.Fatalf("retry error = %v", err)
		}
		if !strings.Contains(got, "7002") {
			t.Errorf("retry summary %q, want new lead id", got)
		}
		if client.leadCalls != 2 {
			t.Errorf("lead calls = %d, want 2", client.leadCalls)
		}
	})
}
