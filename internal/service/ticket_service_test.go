package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/repository"
	apperrors "github.com/spec-kit/helpdesk/pkg/util"
)

// fakeTicketRepo is an in-memory stand-in for the Postgres repository.
type fakeTicketRepo struct {
	tickets            map[int64]domain.Ticket
	nextID             int64
	countByStatusCalls int
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[int64]domain.Ticket{}, nextID: 1}
}

func (f *fakeTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	ticket.ID = f.nextID
	f.nextID++
	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	f.tickets[ticket.ID] = *ticket
	return nil
}

func (f *fakeTicketRepo) Update(ctx context.Context, id int64, patch domain.UpdateTicketInput) (*domain.Ticket, error) {
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	if patch.Title != nil {
		ticket.Title = *patch.Title
	}
	if patch.Description != nil {
		ticket.Description = *patch.Description
	}
	if patch.ContactEmail != nil {
		ticket.ContactEmail = *patch.ContactEmail
	}
	if patch.ContactPhone != nil {
		ticket.ContactPhone = domain.NormalizePhone(patch.ContactPhone)
	}
	if patch.Status != nil {
		ticket.Status = *patch.Status
	}
	ticket.UpdatedAt = time.Now().UTC()
	f.tickets[id] = ticket
	return &ticket, nil
}

func (f *fakeTicketRepo) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	ticket, ok := f.tickets[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return &ticket, nil
}

func (f *fakeTicketRepo) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	out := make([]domain.Ticket, 0, len(f.tickets))
	for _, ticket := range f.tickets {
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		out = append(out, ticket)
	}
	return out, nil
}

func (f *fakeTicketRepo) Count(ctx context.Context, filter repository.TicketFilter) (int, error) {
	tickets, _ := f.List(ctx, filter)
	return len(tickets), nil
}

func (f *fakeTicketRepo) CountByStatus(ctx context.Context) (*domain.TicketStats, error) {
	f.countByStatusCalls++
	stats := &domain.TicketStats{}
	for _, ticket := range f.tickets {
		stats.Total++
		switch ticket.Status {
		case domain.TicketStatusPending:
			stats.Pending++
		case domain.TicketStatusAccepted:
			stats.Accepted++
		case domain.TicketStatusResolved:
			stats.Resolved++
		case domain.TicketStatusRejected:
			stats.Rejected++
		}
	}
	return stats, nil
}

func newTestService(repo repository.TicketRepository) (*TicketService, events.Dispatcher) {
	dispatcher := events.NewInMemoryDispatcher()
	return NewTicketService(TicketDependencies{
		TicketRepo: repo,
		Dispatcher: dispatcher,
		Logger:     zap.NewNop(),
		StatsTTL:   time.Minute,
	}), dispatcher
}

func TestCreateTicket_DefaultsAndTrim(t *testing.T) {
	repo := newFakeTicketRepo()
	svc, _ := newTestService(repo)

	phone := "  555-0100  "
	ticket, err := svc.CreateTicket(context.Background(), domain.CreateTicketInput{
		Title:        "  Help me please  ",
		Description:  "  The login page crashes  ",
		ContactEmail: "a@b.com",
		ContactPhone: &phone,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.TicketStatusPending, ticket.Status)
	assert.Equal(t, "Help me please", ticket.Title)
	assert.Equal(t, "The login page crashes", ticket.Description)
	require.NotNil(t, ticket.ContactPhone)
	assert.Equal(t, "555-0100", *ticket.ContactPhone)
	assert.False(t, ticket.CreatedAt.IsZero())
	assert.False(t, ticket.UpdatedAt.Before(ticket.CreatedAt))
}

func TestCreateTicket_ValidationMessages(t *testing.T) {
	repo := newFakeTicketRepo()
	svc, _ := newTestService(repo)

	_, err := svc.CreateTicket(context.Background(), domain.CreateTicketInput{
		Title:        "ab",
		Description:  "too short",
		ContactEmail: "not-an-email",
	})
	require.Error(t, err)

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 400, domainErr.HTTPStatus)
	assert.Equal(t, []string{"Title must be at least 3 characters long."}, domainErr.Fields["title"])
	assert.Equal(t, []string{"Description must be at least 10 characters long."}, domainErr.Fields["description"])
	assert.Equal(t, []string{"Enter a valid email address."}, domainErr.Fields["contact_email"])
}

func TestCreateTicket_RequiredFields(t *testing.T) {
	repo := newFakeTicketRepo()
	svc, _ := newTestService(repo)

	_, err := svc.CreateTicket(context.Background(), domain.CreateTicketInput{})
	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	for _, field := range []string{"title", "description", "contact_email"} {
		assert.Equal(t, []string{"This field is required."}, domainErr.Fields[field])
	}
}

func TestUpdateTicket_NotFound(t *testing.T) {
	repo := newFakeTicketRepo()
	svc, _ := newTestService(repo)

	status := domain.TicketStatusResolved
	_, err := svc.UpdateTicket(context.Background(), 42, domain.UpdateTicketInput{Status: &status})

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 404, domainErr.HTTPStatus)
}

func TestUpdateTicket_InvalidStatusChoice(t *testing.T) {
	repo := newFakeTicketRepo()
	svc, _ := newTestService(repo)

	bogus := domain.TicketStatus("escalated")
	_, err := svc.UpdateTicket(context.Background(), 1, domain.UpdateTicketInput{Status: &bogus})

	var domainErr *apperrors.DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, []string{`"escalated" is not a valid choice.`}, domainErr.Fields["status"])
}

func TestUpdateTicket_StatusChangePublishesEvent(t *testing.T) {
	repo := newFakeTicketRepo()
	svc, dispatcher := newTestService(repo)

	var received []events.Event
	dispatcher.Subscribe(events.EventTicketStatusChanged, func(ctx context.Context, event events.Event) error {
		received = append(received, event)
		return nil
	})

	ticket, err := svc.CreateTicket(context.Background(), domain.CreateTicketInput{
		Title: "Help me please", Description: "The login page crashes", ContactEmail: "a@b.com",
	})
	require.NoError(t, err)

	status := domain.TicketStatusAccepted
	_, err = svc.UpdateTicket(context.Background(), ticket.ID, domain.UpdateTicketInput{Status: &status})
	require.NoError(t, err)

	require.Len(t, received, 1)
	payload, ok := received[0].Payload.(events.TicketStatusChangedPayload)
	require.True(t, ok)
	assert.Equal(t, domain.TicketStatusPending, payload.OldStatus)
	assert.Equal(t, domain.TicketStatusAccepted, payload.NewStatus)
}

func TestStats_CacheHitSkipsRepository(t *testing.T) {
	repo := newFakeTicketRepo()
	db, mock := redismock.NewClientMock()

	cached, err := json.Marshal(domain.TicketStats{Total: 4, Pending: 1, Accepted: 1, Resolved: 1, Rejected: 1})
	require.NoError(t, err)
	mock.ExpectGet(statsCacheKey).SetVal(string(cached))

	svc := NewTicketService(TicketDependencies{
		TicketRepo: repo,
		Cache:      db,
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     zap.NewNop(),
		StatsTTL:   time.Minute,
	})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, stats.Total, stats.Pending+stats.Accepted+stats.Resolved+stats.Rejected)
	assert.Zero(t, repo.countByStatusCalls, "cache hit must not touch the database")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStats_CacheMissQueriesAndStores(t *testing.T) {
	repo := newFakeTicketRepo()
	db, mock := redismock.NewClientMock()

	empty, err := json.Marshal(&domain.TicketStats{})
	require.NoError(t, err)
	mock.ExpectGet(statsCacheKey).RedisNil()
	mock.ExpectSet(statsCacheKey, empty, time.Minute).SetVal("OK")

	svc := NewTicketService(TicketDependencies{
		TicketRepo: repo,
		Cache:      db,
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     zap.NewNop(),
		StatsTTL:   time.Minute,
	})

	_, err = svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, repo.countByStatusCalls)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestStats_CacheErrorDegradesToDatabase(t *testing.T) {
	repo := newFakeTicketRepo()
	db, mock := redismock.NewClientMock()
	mock.ExpectGet(statsCacheKey).SetErr(errors.New("redis down"))

	svc := NewTicketService(TicketDependencies{
		TicketRepo: repo,
		Cache:      db,
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     zap.NewNop(),
		StatsTTL:   time.Minute,
	})

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, stats)
	assert.Equal(t, 1, repo.countByStatusCalls)
}

func TestCreateTicket_InvalidatesStatsCache(t *testing.T) {
	repo := newFakeTicketRepo()
	db, mock := redismock.NewClientMock()
	mock.ExpectDel(statsCacheKey).SetVal(1)

	svc := NewTicketService(TicketDependencies{
		TicketRepo: repo,
		Cache:      db,
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     zap.NewNop(),
		StatsTTL:   time.Minute,
	})

	_, err := svc.CreateTicket(context.Background(), domain.CreateTicketInput{
		Title: "Help me please", Description: "The login page crashes", ContactEmail: "a@b.com",
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
