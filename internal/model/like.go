package model

import (
	"time"

	"github.com/google/uuid"
)

// Like is a toggleable row scoped to one target (comment or post, separate
// tables with the same shape). There is at most one row per (target, user)
// pair; repeated toggles flip Liked on the same row.
type Like struct {
	ID        int64     `json:"id"`
	TargetID  int64     `json:"target_id"`
	UserID    uuid.UUID `json:"user_id"`
	Liked     bool      `json:"liked"`
	UpdatedAt time.Time `json:"updated_at"`
}
