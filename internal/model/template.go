package model

import "time"

// Template is a reusable message body containing zero or more #{token}
// placeholders. Rules reference templates by id; the delivery ledger stores
// rendered content, so editing or deleting a template never rewrites sent
// history.
type Template struct {
	ID        int64     `json:"id"`
	OwnerID   int64     `json:"owner_id"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	Category  string    `json:"category,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
