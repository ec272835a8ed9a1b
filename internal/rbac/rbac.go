// Package rbac defines caller roles and the visibility predicate applied to
// knowledge chunks before they reach the generation model.
//
// The predicate is pure: no I/O, no hidden state. The security-critical
// default is that an unknown role behaves like the least-privileged role,
// never like a privileged one.
package rbac

// Role classifies the caller of a conversation turn.
// Roles are resolved per turn by the channel adapter and are authoritative
// for that turn only; they are never cached across turns.
type Role string

// Known roles, ordered roughly by privilege.
const (
	RolePublic     Role = "public"
	RoleClient     Role = "client"
	RoleEmployee   Role = "employee"
	RoleSales      Role = "sales"
	RoleHR         Role = "hr"
	RoleManagement Role = "management"
)

// knownRoles is the closed set of roles the system recognises.
var knownRoles = map[Role]struct{}{
	RolePublic:     {},
	RoleClient:     {},
	RoleEmployee:   {},
	RoleSales:      {},
	RoleHR:         {},
	RoleManagement: {},
}

// Known reports whether r is a recognised role.
func Known(r Role) bool {
	_, ok := knownRoles[r]
	return ok
}

// Normalize maps an arbitrary role string to a recognised Role.
// Unknown or empty input degrades to RolePublic, the most restrictive role.
// This is the only place unknown roles are handled; downstream code may
// assume a normalized role.
func Normalize(s string) Role {
	r := Role(s)
	if Known(r) {
		return r
	}
	return RolePublic
}

// Visible reports whether a chunk tagged with allowedRoles may be shown to
// role. A chunk is visible when the role appears in its tag set, or when the
// chunk carries the public tag (public content is visible to everyone).
//
// An empty tag set makes the chunk invisible to every role. Ingestion must
// never produce such chunks; treating them as hidden keeps a data-integrity
// defect from becoming an information leak.
func Visible(role Role, allowedRoles []string) bool {
	for _, tag := range allowedRoles {
		if tag == string(RolePublic) {
			return true
		}
		if tag == string(role) {
			return true
		}
	}
	return false
}
