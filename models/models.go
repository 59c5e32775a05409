// winrahi/models/models.go
package models

import (
	"database/sql"
	"time"
)

// --- Core Data Models ---

// Item is a single lost/found report posted by a user.
type Item struct {
	ID              string    `json:"id"`
	UserID          string    `json:"user_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	Category        string    `json:"category"`
	Status          string    `json:"status"`
	Wilaya          string    `json:"wilaya"`
	Commune         string    `json:"commune"`
	DateLostFound   string    `json:"date_lost_found"`
	ContactPhone    string    `json:"contact_phone,omitempty"`
	ContactEmail    string    `json:"contact_email,omitempty"`
	ContactFacebook string    `json:"contact_facebook,omitempty"`
	ImageURL        string    `json:"image_url,omitempty"`
	ThumbnailURL    string    `json:"thumbnail_url,omitempty"`
	IsActive        bool      `json:"is_active"`
	ViewsCount      int64     `json:"views_count"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Profile is a registered user's public-facing info.
type Profile struct {
	UserID    string    `json:"user_id"`
	FullName  string    `json:"full_name"`
	Phone     string    `json:"phone,omitempty"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

// User holds account credentials. Never serialized to clients.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// ItemFilters selects a subset of the listing. Empty or "all" values
// mean "no filter" for that field.
type ItemFilters struct {
	Status   string
	Category string
	Wilaya   string
	Commune  string
	Search   string
}

// Stats are the public aggregate counters shown on the home page.
type Stats struct {
	TotalItems    int64 `json:"total_items"`
	FoundItems    int64 `json:"found_items"`
	FoundOwner    int64 `json:"found_owner"`
	TotalProfiles int64 `json:"total_profiles"`
}

// OwnerStats summarize one user's own listings for the dashboard.
type OwnerStats struct {
	Total int64 `json:"total"`
	Views int64 `json:"views"`
	Found int64 `json:"found"`
}

// --- Moderation Models ---

// Report is a complaint filed against an Item.
type Report struct {
	ID         int64          `json:"id"`
	ItemID     string         `json:"item_id"`
	ReporterID sql.NullString `json:"-"`
	Reason     string         `json:"reason"`
	Details    string         `json:"details,omitempty"`
	Status     string         `json:"status"`
	CreatedAt  time.Time      `json:"created_at"`

	// Joined for the admin review table.
	ItemTitle    string `json:"item_title,omitempty"`
	ItemStatus   string `json:"item_status,omitempty"`
	ReporterName string `json:"reporter_name,omitempty"`
}

// AdminAction is one entry in the moderation audit log.
type AdminAction struct {
	ID        int64          `json:"id"`
	Timestamp time.Time      `json:"timestamp"`
	AdminID   string         `json:"admin_id"`
	Action    string         `json:"action"`
	TargetID  sql.NullString `json:"target_id"`
	Details   sql.NullString `json:"details"`
}

// --- Enumerations ---

const (
	StatusLost       = "lost"
	StatusFound      = "found"
	StatusFoundOwner = "found_owner"

	// CategoryHuman sorts before every other category in public listings.
	CategoryHuman = "human"
)

const (
	ReportPending   = "pending"
	ReportResolved  = "resolved"
	ReportDismissed = "dismissed"
)

var Categories = []string{
	"human", "documents", "electronics", "keys", "jewelry",
	"clothing", "bags", "vehicles", "animals", "other",
}

var ReportReasons = []string{"fake", "incorrect", "inappropriate", "other"}

// ValidCategory reports whether c is a known item category.
func ValidCategory(c string) bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// ValidStatus reports whether s is a known item status.
func ValidStatus(s string) bool {
	return s == StatusLost || s == StatusFound || s == StatusFoundOwner
}

// ValidReportReason reports whether r is a known report reason.
func ValidReportReason(r string) bool {
	for _, v := range ReportReasons {
		if v == r {
			return true
		}
	}
	return false
}

// ContactChannels returns the populated contact fields of an item draft.
func (i *Item) ContactChannels() []string {
	var set []string
	if i.ContactPhone != "" {
		set = append(set, "phone")
	}
	if i.ContactEmail != "" {
		set = append(set, "email")
	}
	if i.ContactFacebook != "" {
		set = append(set, "facebook")
	}
	return set
}
