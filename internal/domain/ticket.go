package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets. There is no
// transition graph: any status may follow any other.
type TicketStatus string

const (
	TicketStatusPending  TicketStatus = "pending"
	TicketStatusAccepted TicketStatus = "accepted"
	TicketStatusResolved TicketStatus = "resolved"
	TicketStatusRejected TicketStatus = "rejected"
)

// AllStatuses lists every valid status in display order.
var AllStatuses = []TicketStatus{
	TicketStatusPending,
	TicketStatusAccepted,
	TicketStatusResolved,
	TicketStatusRejected,
}

// Valid reports whether s is one of the four known statuses.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketStatusPending, TicketStatusAccepted, TicketStatusResolved, TicketStatusRejected:
		return true
	}
	return false
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID           int64        `json:"id"`
	Title        string       `json:"title"`
	Description  string       `json:"description"`
	ContactEmail string       `json:"contact_email"`
	ContactPhone *string      `json:"contact_phone"`
	Status       TicketStatus `json:"status"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// TicketStats is the server-computed aggregate of ticket counts per status.
// Clients never derive it locally.
type TicketStats struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Accepted int `json:"accepted"`
	Resolved int `json:"resolved"`
	Rejected int `json:"rejected"`
}

// CreateTicketInput carries the fields a requester supplies for a new ticket.
// The server assigns id, the pending status, and both timestamps.
type CreateTicketInput struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	ContactEmail string  `json:"contact_email"`
	ContactPhone *string `json:"contact_phone,omitempty"`
}

// UpdateTicketInput is a partial patch; nil fields are left unchanged.
type UpdateTicketInput struct {
	Title        *string       `json:"title,omitempty"`
	Description  *string       `json:"description,omitempty"`
	ContactEmail *string       `json:"contact_email,omitempty"`
	ContactPhone *string       `json:"contact_phone,omitempty"`
	Status       *TicketStatus `json:"status,omitempty"`
}

const (
	minTitleLen       = 3
	minDescriptionLen = 10
)

// ValidTitle reports whether the trimmed title meets the minimum length.
func ValidTitle(title string) bool {
	return len(strings.TrimSpace(title)) >= minTitleLen
}

// ValidDescription reports whether the trimmed description meets the minimum length.
func ValidDescription(description string) bool {
	return len(strings.TrimSpace(description)) >= minDescriptionLen
}

// ValidEmail applies the loose local@domain.tld check used before submission:
// non-empty, no whitespace, at least one '@', and a '.' somewhere after it.
func ValidEmail(email string) bool {
	if email == "" || strings.ContainsAny(email, " \t\n") {
		return false
	}
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 {
		return false
	}
	dot := strings.LastIndex(email, ".")
	if dot <= at+1 || dot == len(email)-1 {
		return false
	}
	return true
}

// NormalizePhone maps an empty or blank phone to absent.
func NormalizePhone(phone *string) *string {
	if phone == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*phone)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
