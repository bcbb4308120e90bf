package models

import "time"

// Record subjects stored in the user data store.
const (
	SubjectPlan      = "plan"
	SubjectPortfolio = "portfolio"
	SubjectExecution = "execution"
)

// UserRecord is a generic document record for all user domain data.
// Value holds the JSON encoding of the typed model (Plan, Portfolio, Execution).
type UserRecord struct {
	UserID   string    `json:"user_id"`
	Subject  string    `json:"subject"`
	Key      string    `json:"key"`
	Value    string    `json:"value"`
	Version  int       `json:"version"`
	DateTime time.Time `json:"datetime"`
}
