package model

import "time"

// Alert categories. Stock alerts are keyed by (book_id, category) so that at
// most one open alert per book and category exists at any time.
const (
	AlertLowStock   = "low_stock"
	AlertOutOfStock = "out_of_stock"
	AlertManual     = "manual"
)

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Alert visibilities.
const (
	VisibilityStaff  = "staff"
	VisibilityPublic = "public"
)

// Alert represents a system notice: either generated automatically by
// inventory threshold checks or posted manually by staff.
type Alert struct {
	ID               int64      `json:"id"`
	BookID           *int64     `json:"book_id,omitempty"`
	Category         string     `json:"category"`
	Subject          string     `json:"subject"`
	Message          string     `json:"message"`
	Severity         string     `json:"severity"`
	Visibility       string     `json:"visibility"`
	Resolved         bool       `json:"resolved"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	PublishAt        *time.Time `json:"publish_at,omitempty"`
	ExpireAt         *time.Time `json:"expire_at,omitempty"`
	NotificationSent bool       `json:"notification_sent"`
	CreatedAt        time.Time  `json:"created_at"`
}

// Published reports whether the alert should be visible at the given time,
// honoring the optional publish/expire window.
func (a *Alert) Published(now time.Time) bool {
	if a.PublishAt != nil && now.Before(*a.PublishAt) {
		return false
	}
	if a.ExpireAt != nil && now.After(*a.ExpireAt) {
		return false
	}
	return true
}

// ValidSeverity reports whether the given severity is known.
func ValidSeverity(s string) bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityError, SeverityCritical:
		return true
	}
	return false
}
