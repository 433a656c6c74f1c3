package perm

import "strings"

// Pseudo roles understood by every node.
const (
	RoleGuest = "guest" // only anonymous visitors
	RoleUsers = "users" // any signed-in user
)

// Identity is the subset of a user that access control needs.
type Identity interface {
	Roles() []string
	Groups() []string
	Authenticated() bool
}

// Access is the role/group requirement attached to a layout node.
type Access struct {
	Roles  []string `yaml:"roles,omitempty" json:"roles,omitempty"`
	Groups []string `yaml:"groups,omitempty" json:"groups,omitempty"`
}

// Open reports whether the node has no requirements.
func (a Access) Open() bool {
	return len(nonBlank(a.Roles)) == 0 && len(nonBlank(a.Groups)) == 0
}

type anonymous struct{}

func (anonymous) Roles() []string     { return nil }
func (anonymous) Groups() []string    { return nil }
func (anonymous) Authenticated() bool { return false }

// Anonymous is the identity used when nobody is signed in.
var Anonymous Identity = anonymous{}

// Allows decides visibility of a single node.
//
// Rules:
// - No roles and no groups: everyone.
// - Otherwise the identity must hold any one of the roles OR belong to any one of the groups.
// - "guest" matches anonymous visitors only; "users" matches any signed-in identity.
func Allows(a Access, id Identity) bool {
	roles := nonBlank(a.Roles)
	groups := nonBlank(a.Groups)
	if len(roles) == 0 && len(groups) == 0 {
		return true
	}
	if id == nil {
		id = Anonymous
	}

	for _, r := range roles {
		switch r {
		case RoleGuest:
			if !id.Authenticated() {
				return true
			}
			continue
		case RoleUsers:
			if id.Authenticated() {
				return true
			}
			continue
		}
		if containsFold(id.Roles(), r) {
			return true
		}
	}
	for _, g := range groups {
		if containsFold(id.Groups(), g) {
			return true
		}
	}
	return false
}

func nonBlank(xs []string) []string {
	var out []string
	for _, x := range xs {
		x = strings.ToLower(strings.TrimSpace(x))
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}

func containsFold(xs []string, want string) bool {
	for _, x := range xs {
		if strings.EqualFold(strings.TrimSpace(x), want) {
			return true
		}
	}
	return false
}
