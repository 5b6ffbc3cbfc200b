package http_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/api/dto"
	httptransport "github.com/spec-kit/helpdesk/internal/api/http"
	"github.com/spec-kit/helpdesk/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk/internal/domain"
	"github.com/spec-kit/helpdesk/internal/events"
	"github.com/spec-kit/helpdesk/internal/observability"
	"github.com/spec-kit/helpdesk/internal/persistence"
	"github.com/spec-kit/helpdesk/internal/repository"
	"github.com/spec-kit/helpdesk/internal/service"
)

// memoryTicketRepo backs the handlers without Postgres.
type memoryTicketRepo struct {
	tickets []domain.Ticket
	nextID  int64
}

func newMemoryTicketRepo() *memoryTicketRepo {
	return &memoryTicketRepo{nextID: 1}
}

func (m *memoryTicketRepo) Create(ctx context.Context, ticket *domain.Ticket) error {
	ticket.ID = m.nextID
	m.nextID++
	now := time.Now().UTC()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	m.tickets = append(m.tickets, *ticket)
	return nil
}

func (m *memoryTicketRepo) Update(ctx context.Context, id int64, patch domain.UpdateTicketInput) (*domain.Ticket, error) {
	for i := range m.tickets {
		if m.tickets[i].ID != id {
			continue
		}
		if patch.Title != nil {
			m.tickets[i].Title = *patch.Title
		}
		if patch.Description != nil {
			m.tickets[i].Description = *patch.Description
		}
		if patch.ContactEmail != nil {
			m.tickets[i].ContactEmail = *patch.ContactEmail
		}
		if patch.ContactPhone != nil {
			m.tickets[i].ContactPhone = domain.NormalizePhone(patch.ContactPhone)
		}
		if patch.Status != nil {
			m.tickets[i].Status = *patch.Status
		}
		m.tickets[i].UpdatedAt = time.Now().UTC()
		ticket := m.tickets[i]
		return &ticket, nil
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryTicketRepo) GetByID(ctx context.Context, id int64) (*domain.Ticket, error) {
	for i := range m.tickets {
		if m.tickets[i].ID == id {
			ticket := m.tickets[i]
			return &ticket, nil
		}
	}
	return nil, pgx.ErrNoRows
}

func (m *memoryTicketRepo) List(ctx context.Context, filter repository.TicketFilter) ([]domain.Ticket, error) {
	out := make([]domain.Ticket, 0, len(m.tickets))
	for _, ticket := range m.tickets {
		if filter.Status != nil && ticket.Status != *filter.Status {
			continue
		}
		if filter.Search != nil && !strings.Contains(strings.ToLower(ticket.Title), strings.ToLower(*filter.Search)) {
			continue
		}
		out = append(out, ticket)
	}
	return out, nil
}

func (m *memoryTicketRepo) Count(ctx context.Context, filter repository.TicketFilter) (int, error) {
	tickets, _ := m.List(ctx, filter)
	return len(tickets), nil
}

func (m *memoryTicketRepo) CountByStatus(ctx context.Context) (*domain.TicketStats, error) {
	stats := &domain.TicketStats{}
	for _, ticket := range m.tickets {
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

func newTestApp(t *testing.T, writesEnabled bool) (*fiber.App, *memoryTicketRepo) {
	t.Helper()

	repo := newMemoryTicketRepo()
	svc := service.NewTicketService(service.TicketDependencies{
		TicketRepo: repo,
		Dispatcher: events.NewInMemoryDispatcher(),
		Logger:     zap.NewNop(),
		StatsTTL:   time.Minute,
	})

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, zap.NewNop(), observability.NewMetrics(), 0, writesEnabled)
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler("helpdesk-tracker", "test", &persistence.Postgres{}, &persistence.Redis{}),
		Tickets: handlers.NewTicketsHandler(svc, 50),
	})
	return app, repo
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, []byte) {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func seedTicket(t *testing.T, app *fiber.App, title string) dto.TicketResponse {
	t.Helper()
	resp, raw := doJSON(t, app, http.MethodPost, "/tickets/",
		`{"title":"`+title+`","description":"The login page crashes","contact_email":"a@b.com"}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var ticket dto.TicketResponse
	require.NoError(t, json.Unmarshal(raw, &ticket))
	return ticket
}

func TestCreateAndGetRoundTrip(t *testing.T) {
	app, _ := newTestApp(t, true)

	created := seedTicket(t, app, "Help me please")
	assert.Equal(t, domain.TicketStatusPending, created.Status)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.UpdatedAt.IsZero())

	resp, raw := doJSON(t, app, http.MethodGet, "/tickets/1/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var fetched dto.TicketResponse
	require.NoError(t, json.Unmarshal(raw, &fetched))
	assert.Equal(t, created.ID, fetched.ID)
	assert.Equal(t, domain.TicketStatusPending, fetched.Status)
}

func TestListEnvelope(t *testing.T) {
	app, _ := newTestApp(t, true)
	seedTicket(t, app, "First problem")
	seedTicket(t, app, "Second problem")

	resp, raw := doJSON(t, app, http.MethodGet, "/tickets/?ordering=-updated_at", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var page dto.PaginatedTickets
	require.NoError(t, json.Unmarshal(raw, &page))
	assert.Equal(t, 2, page.Count)
	assert.Len(t, page.Results, 2)
	assert.Nil(t, page.Next)
	assert.Nil(t, page.Previous)
	for _, ticket := range page.Results {
		assert.True(t, ticket.Status.Valid())
	}
}

func TestListRejectsInvalidStatusChoice(t *testing.T) {
	app, _ := newTestApp(t, true)

	resp, raw := doJSON(t, app, http.MethodGet, "/tickets/?status=escalated", "")
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var fields map[string][]string
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Contains(t, fields, "status")
}

func TestCreateValidationBodyIsFieldMap(t *testing.T) {
	app, _ := newTestApp(t, true)

	resp, raw := doJSON(t, app, http.MethodPost, "/tickets/",
		`{"title":"ab","description":"too short","contact_email":"nope"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var fields map[string][]string
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, []string{"Title must be at least 3 characters long."}, fields["title"])
	assert.Equal(t, []string{"Description must be at least 10 characters long."}, fields["description"])
	assert.Equal(t, []string{"Enter a valid email address."}, fields["contact_email"])
}

func TestPatchStatusTransition(t *testing.T) {
	app, _ := newTestApp(t, true)
	seedTicket(t, app, "Help me please")

	resp, raw := doJSON(t, app, http.MethodPatch, "/tickets/1/", `{"status":"rejected"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var ticket dto.TicketResponse
	require.NoError(t, json.Unmarshal(raw, &ticket))
	assert.Equal(t, domain.TicketStatusRejected, ticket.Status)
}

func TestPatchUnknownTicketIs404(t *testing.T) {
	app, _ := newTestApp(t, true)

	resp, _ := doJSON(t, app, http.MethodPatch, "/tickets/99/", `{"status":"resolved"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPatch, "/tickets/not-a-number/", `{"status":"resolved"}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	app, _ := newTestApp(t, true)
	seedTicket(t, app, "First problem")
	seedTicket(t, app, "Second problem")
	doJSON(t, app, http.MethodPatch, "/tickets/1/", `{"status":"resolved"}`)

	resp, raw := doJSON(t, app, http.MethodGet, "/tickets/stats/", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var stats dto.StatsResponse
	require.NoError(t, json.Unmarshal(raw, &stats))
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, stats.Total, stats.Pending+stats.Accepted+stats.Resolved+stats.Rejected)
}

func TestWriteToggleRejectsMutations(t *testing.T) {
	app, _ := newTestApp(t, false)

	resp, _ := doJSON(t, app, http.MethodPost, "/tickets/",
		`{"title":"abc","description":"long enough text","contact_email":"a@b.co"}`)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/tickets/", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode, "reads stay available")
}

func TestRequestIDHeader(t *testing.T) {
	app, _ := newTestApp(t, true)

	resp, _ := doJSON(t, app, http.MethodGet, "/health/live", "")
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
