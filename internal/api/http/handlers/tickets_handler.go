package handlers

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// TicketsHandler manages the ticket endpoints.
type TicketsHandler struct {
	service  *service.TicketService
	pageSize int
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService, pageSize int) *TicketsHandler {
	if pageSize <= 0 {
		pageSize = 50
	}
	return &TicketsHandler{service: ticketService, pageSize: pageSize}
}

// ListTickets GET /tickets/.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	filter, err := parseTicketFilter(c, h.pageSize)
	if err != nil {
		return err
	}

	tickets, count, err := h.service.ListTickets(c.UserContext(), filter)
	if err != nil {
		return err
	}

	results := make([]dto.TicketResponse, 0, len(tickets))
	for i := range tickets {
		results = append(results, dto.FromTicket(&tickets[i]))
	}
	return c.JSON(dto.PaginatedTickets{
		Count:    count,
		Next:     pageLink(c, filter, count, filter.Offset+filter.Limit),
		Previous: pageLink(c, filter, count, filter.Offset-filter.Limit),
		Results:  results,
	})
}

// CreateTicket POST /tickets/.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError(map[string][]string{
			"non_field_errors": {"Invalid request payload."},
		})
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), domain.CreateTicketInput{
		Title:        req.Title,
		Description:  req.Description,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromTicket(ticket))
}

// GetTicket GET /tickets/:id/.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}
	ticket, err := h.service.GetTicket(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// UpdateTicket PATCH /tickets/:id/.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	id, err := parseTicketID(c)
	if err != nil {
		return err
	}

	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError(map[string][]string{
			"non_field_errors": {"Invalid request payload."},
		})
	}

	ticket, err := h.service.UpdateTicket(c.UserContext(), id, domain.UpdateTicketInput{
		Title:        req.Title,
		Description:  req.Description,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		Status:       req.Status,
	})
	if err != nil {
		return err
	}
	return c.JSON(dto.FromTicket(ticket))
}

// Stats GET /tickets/stats/.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	stats, err := h.service.Stats(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(dto.FromStats(stats))
}

func parseTicketID(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewNotFound("ticket")
	}
	return id, nil
}

func parseTicketFilter(c *fiber.Ctx, pageSize int) (repository.TicketFilter, error) {
	filter := repository.TicketFilter{
		Ordering: c.Query("ordering"),
		Limit:    pageSize,
	}

	if raw := c.Query("status"); raw != "" {
		status := domain.TicketStatus(raw)
		if !status.Valid() {
			return filter, apperrors.NewValidationError(map[string][]string{
				"status": {fmt.Sprintf("%q is not a valid choice.", raw)},
			})
		}
		filter.Status = &status
	}
	if search := strings.TrimSpace(c.Query("search")); search != "" {
		filter.Search = &search
	}
	if raw := c.Query("limit"); raw != "" {
		if limit, err := strconv.Atoi(raw); err == nil && limit > 0 {
			filter.Limit = limit
		}
	}
	if raw := c.Query("offset"); raw != "" {
		if offset, err := strconv.Atoi(raw); err == nil && offset > 0 {
			filter.Offset = offset
		}
	}
	return filter, nil
}

// pageLink builds the next/previous URL for the pagination envelope, nil
// when the target page does not exist.
func pageLink(c *fiber.Ctx, filter repository.TicketFilter, count, offset int) *string {
	if offset < 0 && filter.Offset == 0 {
		return nil
	}
	if offset >= count {
		return nil
	}
	if offset < 0 {
		offset = 0
	}

	link := fmt.Sprintf("%s%s?limit=%d&offset=%d", c.BaseURL(), c.Path(), filter.Limit, offset)
	if filter.Status != nil {
		link += "&status=" + string(*filter.Status)
	}
	if filter.Search != nil {
		link += "&search=" + *filter.Search
	}
	if filter.Ordering != "" {
		link += "&ordering=" + filter.Ordering
	}
	return &link
}
