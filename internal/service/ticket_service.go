package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

const statsCacheKey = "helpdesk:stats"

// TicketService coordinates ticket workflows.
type TicketService struct {
	tickets    repository.TicketRepository
	cache      *redis.Client
	dispatcher events.Dispatcher
	logger     *zap.Logger
	statsTTL   time.Duration
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	TicketRepo repository.TicketRepository
	Cache      *redis.Client
	Dispatcher events.Dispatcher
	Logger     *zap.Logger
	StatsTTL   time.Duration
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	ttl := deps.StatsTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &TicketService{
		tickets:    deps.TicketRepo,
		cache:      deps.Cache,
		dispatcher: deps.Dispatcher,
		logger:     deps.Logger,
		statsTTL:   ttl,
	}
}

// CreateTicket validates and stores a new ticket. The status always starts
// as pending; timestamps come from the database.
func (s *TicketService) CreateTicket(ctx context.Context, input domain.CreateTicketInput) (*domain.Ticket, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	ticket := &domain.Ticket{
		Title:        strings.TrimSpace(input.Title),
		Description:  strings.TrimSpace(input.Description),
		ContactEmail: input.ContactEmail,
		ContactPhone: domain.NormalizePhone(input.ContactPhone),
		Status:       domain.TicketStatusPending,
	}
	if err := s.tickets.Create(ctx, ticket); err != nil {
		return nil, err
	}

	s.invalidateStats(ctx)
	s.publish(ctx, events.Event{
		ID:        uuid.NewString(),
		Type:      events.EventTicketCreated,
		TicketID:  ticket.ID,
		Timestamp: time.Now().UTC(),
		Payload: events.TicketCreatedPayload{
			Title:        ticket.Title,
			ContactEmail: ticket.ContactEmail,
			Status:       ticket.Status,
		},
	})
	return ticket, nil
}

// UpdateTicket applies a partial patch; nil fields stay unchanged.
func (s *TicketService) UpdateTicket(ctx context.Context, id int64, patch domain.UpdateTicketInput) (*domain.Ticket, error) {
	if err := validateUpdate(patch); err != nil {
		return nil, err
	}

	current, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("ticket")
		}
		return nil, err
	}

	if patch.Title != nil {
		trimmed := strings.TrimSpace(*patch.Title)
		patch.Title = &trimmed
	}
	if patch.Description != nil {
		trimmed := strings.TrimSpace(*patch.Description)
		patch.Description = &trimmed
	}

	ticket, err := s.tickets.Update(ctx, id, patch)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("ticket")
		}
		return nil, err
	}

	s.invalidateStats(ctx)
	if patch.Status != nil && *patch.Status != current.Status {
		s.publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventTicketStatusChanged,
			TicketID:  ticket.ID,
			Timestamp: time.Now().UTC(),
			Payload: events.TicketStatusChangedPayload{
				OldStatus: current.Status,
				NewStatus: ticket.Status,
			},
		})
	} else {
		s.publish(ctx, events.Event{
			ID:        uuid.NewString(),
			Type:      events.EventTicketUpdated,
			TicketID:  ticket.ID,
			Timestamp: time.Now().UTC(),
			Payload:   events.TicketUpdatedPayload{Fields: patchedFields(patch)},
		})
	}
	return ticket, nil
}

// GetTicket fetches one ticket by id.
func (s *TicketService) GetTicket(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, err := s.tickets.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("ticket")
		}
		return nil, err
	}
	return ticket, nil
}

// ListTickets returns the filtered page plus the total match count.
func (s *TicketService) ListTickets(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	tickets, err := s.tickets.List(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	count, err := s.tickets.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return tickets, count, nil
}

// Stats returns aggregate counts, served from the Redis cache when fresh.
// Cache failures degrade to the database query.
func (s *TicketService) Stats(ctx context.Context) (*domain.TicketStats, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, statsCacheKey).Result()
		if err == nil {
			var stats domain.TicketStats
			if jsonErr := json.Unmarshal([]byte(raw), &stats); jsonErr == nil {
				return &stats, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn("stats cache read failed", zap.Error(err))
		}
	}

	stats, err := s.tickets.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if encoded, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, statsCacheKey, encoded, s.statsTTL).Err(); err != nil {
				s.logger.Warn("stats cache write failed", zap.Error(err))
			}
		}
	}
	return stats, nil
}

func (s *TicketService) invalidateStats(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, statsCacheKey).Err(); err != nil {
		s.logger.Warn("stats cache invalidation failed", zap.Error(err))
	}
}

func (s *TicketService) publish(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	_ = s.dispatcher.Publish(ctx, event)
}

func validateCreate(input domain.CreateTicketInput) error {
	fields := map[string][]string{}
	if strings.TrimSpace(input.Title) == "" {
		fields["title"] = append(fields["title"], "This field is required.")
	} else if !domain.ValidTitle(input.Title) {
		fields["title"] = append(fields["title"], "Title must be at least 3 characters long.")
	}
	if strings.TrimSpace(input.Description) == "" {
		fields["description"] = append(fields["description"], "This field is required.")
	} else if !domain.ValidDescription(input.Description) {
		fields["description"] = append(fields["description"], "Description must be at least 10 characters long.")
	}
	if input.ContactEmail == "" {
		fields["contact_email"] = append(fields["contact_email"], "This field is required.")
	} else if !domain.ValidEmail(input.ContactEmail) {
		fields["contact_email"] = append(fields["contact_email"], "Enter a valid email address.")
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError(fields)
	}
	return nil
}

func validateUpdate(patch domain.UpdateTicketInput) error {
	fields := map[string][]string{}
	if patch.Title != nil && !domain.ValidTitle(*patch.Title) {
		fields["title"] = append(fields["title"], "Title must be at least 3 characters long.")
	}
	if patch.Description != nil && !domain.ValidDescription(*patch.Description) {
		fields["description"] = append(fields["description"], "Description must be at least 10 characters long.")
	}
	if patch.ContactEmail != nil && !domain.ValidEmail(*patch.ContactEmail) {
		fields["contact_email"] = append(fields["contact_email"], "Enter a valid email address.")
	}
	if patch.Status != nil && !patch.Status.Valid() {
		fields["status"] = append(fields["status"], fmt.Sprintf("%q is not a valid choice.", string(*patch.Status)))
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError(fields)
	}
	return nil
}

func patchedFields(patch domain.UpdateTicketInput) []string {
	fields := make([]string, 0, 5)
	if patch.Title != nil {
		fields = append(fields, "title")
	}
	if patch.Description != nil {
		fields = append(fields, "description")
	}
	if patch.ContactEmail != nil {
		fields = append(fields, "contact_email")
	}
	if patch.ContactPhone != nil {
		fields = append(fields, "contact_phone")
	}
	if patch.Status != nil {
		fields = append(fields, "status")
	}
	return fields
}
