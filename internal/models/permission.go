package models

import "time"

// Capability is a delegable per-form permission.
type Capability string

const (
	CapabilityEdit          Capability = "edit"
	CapabilityViewResponses Capability = "view_responses"
)

// Valid reports whether c is a known capability.
func (c Capability) Valid() bool {
	return c == CapabilityEdit || c == CapabilityViewResponses
}

// CapabilitySet is the set of capabilities one user holds on one form.
type CapabilitySet map[Capability]struct{}

// Has reports set membership.
func (s CapabilitySet) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// FormPermission is a capability grant: (form, user, capability).
// At most one row exists per exact tuple.
type FormPermission struct {
	ID         string     `db:"id" json:"id"`
	FormID     string     `db:"form_id" json:"form_id"`
	UserID     string     `db:"user_id" json:"user_id"`
	Capability Capability `db:"capability" json:"capability"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`

	UserEmail string `db:"user_email" json:"user_email,omitempty"`
	UserName  string `db:"user_name" json:"user_name,omitempty"`
	FormTitle string `db:"form_title" json:"form_title,omitempty"`
}
