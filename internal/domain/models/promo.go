package models

import "time"

// PromoStatus is the lifecycle state of a promo.
type PromoStatus string

const (
	PromoPending  PromoStatus = "pending"
	PromoActive   PromoStatus = "active"
	PromoArchived PromoStatus = "archived"
)

// CanTransitionTo reports whether the lifecycle allows moving from s to next.
// Only pending → active and active → archived exist; archived is terminal.
func (s PromoStatus) CanTransitionTo(next PromoStatus) bool {
	switch s {
	case PromoPending:
		return next == PromoActive
	case PromoActive:
		return next == PromoArchived
	}
	return false
}

// Valid reports whether s is one of the known statuses.
func (s PromoStatus) Valid() bool {
	switch s {
	case PromoPending, PromoActive, PromoArchived:
		return true
	}
	return false
}

// Promo represents a cohort of learners sharing a program and a site.
//
// NOTE:
//   - RoleID is the guild role (access group) bound when the promo becomes
//     active. It stays empty while the promo is pending.
//   - Identifications are stored in their own collection; they are attached
//     here when a promo is read so callers see the membership in one value.
type Promo struct {
	ID        string    `bson:"_id" json:"id"`
	Name      string    `bson:"name" json:"name"`
	NameCI    string    `bson:"name_ci" json:"-"`
	StartDate time.Time `bson:"start_date" json:"start_date"`
	EndDate   time.Time `bson:"end_date" json:"end_date"`
	ProgramID string    `bson:"program_id" json:"program_id"`
	SiteID    string    `bson:"site_id" json:"site_id"`

	Status PromoStatus `bson:"status" json:"status"`
	RoleID string      `bson:"role_id,omitempty" json:"role_id,omitempty"`

	Identifications []Identification `bson:"-" json:"identifications,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// AcceptedMemberIDs returns the members whose identification on this promo
// was accepted, in identification order.
func (p Promo) AcceptedMemberIDs() []string {
	var ids []string
	for _, ident := range p.Identifications {
		if ident.Status == IdentificationAccepted {
			ids = append(ids, ident.MemberID)
		}
	}
	return ids
}

// AllMemberIDs returns every member with an identification on this promo,
// whatever its status.
func (p Promo) AllMemberIDs() []string {
	ids := make([]string, 0, len(p.Identifications))
	for _, ident := range p.Identifications {
		ids = append(ids, ident.MemberID)
	}
	return ids
}

// PromoUpdate carries the fields to change on a promo. Nil fields are left
// as they are.
type PromoUpdate struct {
	Name      *string
	StartDate *time.Time
	EndDate   *time.Time
	Status    *PromoStatus
	RoleID    *string
	// ExpectStatus, when set, applies the update only while the stored
	// status still equals it.
	ExpectStatus *PromoStatus
}

// Empty reports whether the update changes nothing.
func (u PromoUpdate) Empty() bool {
	return u.Name == nil && u.StartDate == nil && u.EndDate == nil && u.Status == nil && u.RoleID == nil
}
