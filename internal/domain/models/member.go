package models

import (
	"strings"
	"time"
)

// Member is a guild user known to the data store.
// ID is the platform-native user id (a Discord snowflake).
type Member struct {
	ID        string `bson:"_id" json:"id"`
	LastName  string `bson:"last_name" json:"last_name"`
	FirstName string `bson:"first_name" json:"first_name"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// DisplayName is the guild nickname used for the member: "First Last".
func (m Member) DisplayName() string {
	return DisplayName(m.FirstName, m.LastName)
}

// DisplayName joins a first and last name the way nicknames are presented.
func DisplayName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}
