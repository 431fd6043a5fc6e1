package auth

import "context"

// Role is the capability level of a request.
type Role int

const (
	RoleAnonymous Role = iota
	RoleUser
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleUser:
		return "user"
	case RoleAdmin:
		return "admin"
	default:
		return "anonymous"
	}
}

// Principal is the authenticated caller. Handlers only ever act on the
// Principal's own UserID unless the Role is admin.
type Principal struct {
	UserID int64
	Email  string
	Role   Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// FromContext returns the Principal stored in ctx, or an anonymous one.
func FromContext(ctx context.Context) Principal {
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p
	}
	return Principal{Role: RoleAnonymous}
}
