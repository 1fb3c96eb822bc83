package model

import "time"

// Entry is a single time-stamped record owned by a user ("times" in the
// procedure surface, "task" in older clients).
//
// Time and DayCreated are caller-supplied strings and are stored verbatim.
// DayCreated is the day the caller attributes the entry to and is unrelated
// to CreatedAt, which is assigned server-side.
//
// CategoryID is a pointer because the link is optional: nil marshals to
// JSON null and maps to a NULL column.
type Entry struct {
	ID         string    `json:"id"         db:"id"`
	Time       string    `json:"time"       db:"time"`
	WasSpecial bool      `json:"wasSpecial" db:"was_special"`
	DayCreated string    `json:"dayCreated" db:"day_created"`
	Message    string    `json:"message"    db:"message"`
	CategoryID *string   `json:"categoryId" db:"category_id"`
	UserID     string    `json:"userId"     db:"user_id"`
	CreatedAt  time.Time `json:"createdAt"  db:"created_at"`
	UpdatedAt  time.Time `json:"updatedAt"  db:"updated_at"`
}
