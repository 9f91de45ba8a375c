package credential

import "time"

// Grant is proof of a successful credential check.
//
// Grants can only be minted by Store.Authorize. The zero Grant authorizes
// nothing.
type Grant struct {
	role Role
	name string
	at   time.Time
}

// Role returns the role the grant was issued for.
func (g Grant) Role() Role { return g.role }

// Name returns the author name supplied with the check.
func (g Grant) Name() string { return g.name }

// At returns when the check succeeded.
func (g Grant) At() time.Time { return g.at }

// Valid reports whether the grant came from a successful check.
func (g Grant) Valid() bool { return g.role != "" }

// Is reports whether the grant is valid for role.
func (g Grant) Is(role Role) bool { return g.Valid() && g.role == role }
