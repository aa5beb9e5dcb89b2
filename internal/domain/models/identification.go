package models

import "time"

// IdentificationStatus is the state of a membership request.
type IdentificationStatus string

const (
	IdentificationPending  IdentificationStatus = "pending"
	IdentificationAccepted IdentificationStatus = "accepted"
	IdentificationRejected IdentificationStatus = "rejected"
)

// IsTerminal reports whether no further decision can be applied.
func (s IdentificationStatus) IsTerminal() bool {
	return s == IdentificationAccepted || s == IdentificationRejected
}

// Identification is a request by a member to join a promo.
// Exactly one operator decision moves it out of pending.
type Identification struct {
	ID        string               `bson:"_id" json:"id"`
	MemberID  string               `bson:"member_id" json:"member_id"`
	PromoID   string               `bson:"promo_id" json:"promo_id"`
	Status    IdentificationStatus `bson:"status" json:"status"`
	CreatedAt time.Time            `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at" json:"updated_at"`
}
