package dto

import (
	"time"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title        string  `json:"title"`
	Description  string  `json:"description"`
	ContactEmail string  `json:"contact_email"`
	ContactPhone *string `json:"contact_phone"`
}

// UpdateTicketRequest is a partial patch; absent fields stay unchanged.
type UpdateTicketRequest struct {
	Title        *string              `json:"title"`
	Description  *string              `json:"description"`
	ContactEmail *string              `json:"contact_email"`
	ContactPhone *string              `json:"contact_phone"`
	Status       *domain.TicketStatus `json:"status"`
}

// TicketResponse is the serialized ticket shape.
type TicketResponse struct {
	ID           int64               `json:"id"`
	Title        string              `json:"title"`
	Description  string              `json:"description"`
	ContactEmail string              `json:"contact_email"`
	ContactPhone *string             `json:"contact_phone"`
	Status       domain.TicketStatus `json:"status"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// PaginatedTickets is the list envelope: count of all matches plus
// next/previous page links.
type PaginatedTickets struct {
	Count    int              `json:"count"`
	Next     *string          `json:"next"`
	Previous *string          `json:"previous"`
	Results  []TicketResponse `json:"results"`
}

// StatsResponse mirrors the aggregate counts.
type StatsResponse struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Accepted int `json:"accepted"`
	Resolved int `json:"resolved"`
	Rejected int `json:"rejected"`
}

// FromTicket converts the domain aggregate to its wire shape.
func FromTicket(ticket *domain.Ticket) TicketResponse {
	return TicketResponse{
		ID:           ticket.ID,
		Title:        ticket.Title,
		Description:  ticket.Description,
		ContactEmail: ticket.ContactEmail,
		ContactPhone: ticket.ContactPhone,
		Status:       ticket.Status,
		CreatedAt:    ticket.CreatedAt,
		UpdatedAt:    ticket.UpdatedAt,
	}
}

// FromStats converts the aggregate counts to their wire shape.
func FromStats(stats *domain.TicketStats) StatsResponse {
	return StatsResponse{
		Total:    stats.Total,
		Pending:  stats.Pending,
		Accepted: stats.Accepted,
		Resolved: stats.Resolved,
		Rejected: stats.Rejected,
	}
}
