package domain

import "time"

// DefaultUserID is recorded when a caller does not identify itself.
const DefaultUserID = "default_user"

// Exchange is a single answered prompt as kept in chat history.
type Exchange struct {
	UserID    string    `db:"user_id"   json:"-"`
	Prompt    string    `db:"prompt"    json:"prompt"`
	Response  string    `db:"response"  json:"response"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}
