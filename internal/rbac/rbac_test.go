package rbac

import "testing"

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Role
	}{
		{"known role passes through", "employee", RoleEmployee},
		{"management passes through", "management", RoleManagement},
		{"empty degrades to public", "", RolePublic},
		{"unknown degrades to public", "superadmin", RolePublic},
		{"case-sensitive: mixed case is unknown", "Employee", RolePublic},
		{"whitespace is unknown", " employee", RolePublic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Normalize(tt.input); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestVisible(t *testing.T) {
	tests := []struct {
		name string
		role Role
		tags []string
		want bool
	}{
		{"role in tag set", RoleEmployee, []string{"employee"}, true},
		{"public tag visible to public", RolePublic, []string{"public"}, true},
		{"public tag visible to every role", RoleHR, []string{"public"}, true},
		{"role not in tag set", RolePublic, []string{"employee"}, false},
		{"hr-only hidden from employee", RoleEmployee, []string{"hr"}, false},
		{"multiple tags, one matches", RoleSales, []string{"hr", "sales"}, true},
		{"empty tag set hidden from everyone", RoleManagement, nil, false},
		{"empty tag set hidden from public", RolePublic, []string{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Visible(tt.role, tt.tags); got != tt.want {
				t.Errorf("Visible(%q, %v) = %v, want %v", tt.role, tt.tags, got, tt.want)
			}
		})
	}
}

// Unknown roles must never see more than public does, whatever the tag set.
func TestVisible_UnknownRoleMostRestrictive(t *testing.T) {
	tagSets := [][]string{
		{"employee"},
		{"hr"},
		{"management", "sales"},
		{"public"},
		nil,
	}

	for _, tags := range tagSets {
		unknown := Normalize("definitely-not-a-role")
		if got, want := Visible(unknown, tags), Visible(RolePublic, tags); got != want {
			t.Errorf("unknown role visibility for %v = %v, public = %v", tags, got, want)
		}
	}
}
