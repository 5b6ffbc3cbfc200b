package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/config"
	"github.com/spec-kit/helpdesk/internal/domain"
)

// Gateway is the sole component performing network I/O for ticket data. It
// translates domain operations into REST calls against the tracker server.
type Gateway interface {
	List(ctx context.Context, query ListQuery) ([]domain.Ticket, error)
	Get(ctx context.Context, id int64) (*domain.Ticket, error)
	Create(ctx context.Context, input domain.CreateTicketInput) (*domain.Ticket, error)
	Update(ctx context.Context, id int64, input domain.UpdateTicketInput) (*domain.Ticket, error)
	UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus) (*domain.Ticket, error)
	Stats(ctx context.Context) (*domain.TicketStats, error)
}

type restGateway struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewGateway builds a REST gateway against the configured base URL.
func NewGateway(cfg config.ClientConfig, logger *zap.Logger) Gateway {
	return &restGateway{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		logger:     logger,
	}
}

// paginatedList is the server's list envelope.
type paginatedList struct {
	Count    int             `json:"count"`
	Next     *string         `json:"next"`
	Previous *string         `json:"previous"`
	Results  []domain.Ticket `json:"results"`
}

func (g *restGateway) List(ctx context.Context, query ListQuery) ([]domain.Ticket, error) {
	params := url.Values{}
	if query.Status != "" {
		params.Set("status", string(query.Status))
	}
	if search := strings.TrimSpace(query.Search); search != "" {
		params.Set("search", search)
	}
	params.Set("ordering", BuildOrdering(query.Sort))

	target := g.baseURL + "/tickets/?" + params.Encode()
	body, status, err := g.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Op: "list tickets", Err: err}
	}
	if status < 200 || status >= 300 {
		return nil, &FetchError{Op: "list tickets", Err: fmt.Errorf("unexpected status %d", status)}
	}
	return decodeTicketList(body), nil
}

// decodeTicketList accepts the paginated envelope or a bare array; any other
// shape yields an empty slice.
func decodeTicketList(body []byte) []domain.Ticket {
	var envelope paginatedList
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Results != nil {
		return envelope.Results
	}
	var bare []domain.Ticket
	if err := json.Unmarshal(body, &bare); err == nil && bare != nil {
		return bare
	}
	return []domain.Ticket{}
}

func (g *restGateway) Get(ctx context.Context, id int64) (*domain.Ticket, error) {
	target := fmt.Sprintf("%s/tickets/%d/", g.baseURL, id)
	body, status, err := g.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Op: "get ticket", Err: err}
	}
	if status < 200 || status >= 300 {
		return nil, &FetchError{Op: "get ticket", Err: fmt.Errorf("unexpected status %d", status)}
	}
	return decodeTicket(body, "get ticket")
}

func (g *restGateway) Create(ctx context.Context, input domain.CreateTicketInput) (*domain.Ticket, error) {
	target := g.baseURL + "/tickets/"
	body, status, err := g.do(ctx, http.MethodPost, target, input)
	if err != nil {
		return nil, &FetchError{Op: "create ticket", Err: err}
	}
	switch {
	case status >= 200 && status < 300:
		return decodeTicket(body, "create ticket")
	case status == http.StatusBadRequest:
		return nil, decodeValidationError(body)
	default:
		return nil, &FetchError{Op: "create ticket", Err: fmt.Errorf("unexpected status %d", status)}
	}
}

func (g *restGateway) Update(ctx context.Context, id int64, input domain.UpdateTicketInput) (*domain.Ticket, error) {
	target := fmt.Sprintf("%s/tickets/%d/", g.baseURL, id)
	body, status, err := g.do(ctx, http.MethodPatch, target, input)
	if err != nil {
		return nil, &FetchError{Op: "update ticket", Err: err}
	}
	switch {
	case status >= 200 && status < 300:
		return decodeTicket(body, "update ticket")
	case status == http.StatusBadRequest:
		return nil, decodeValidationError(body)
	case status == http.StatusNotFound:
		return nil, &NotFoundError{ID: id}
	default:
		return nil, &FetchError{Op: "update ticket", Err: fmt.Errorf("unexpected status %d", status)}
	}
}

// UpdateStatus is sugar over Update sending only the status field.
func (g *restGateway) UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus) (*domain.Ticket, error) {
	return g.Update(ctx, id, domain.UpdateTicketInput{Status: &status})
}

func (g *restGateway) Stats(ctx context.Context) (*domain.TicketStats, error) {
	target := g.baseURL + "/tickets/stats/"
	body, status, err := g.do(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &FetchError{Op: "fetch stats", Err: err}
	}
	if status < 200 || status >= 300 {
		return nil, &FetchError{Op: "fetch stats", Err: fmt.Errorf("unexpected status %d", status)}
	}
	var stats domain.TicketStats
	if err := json.Unmarshal(body, &stats); err != nil {
		return nil, &FetchError{Op: "fetch stats", Err: err}
	}
	return &stats, nil
}

// do performs the request and logs method, target and outcome.
func (g *restGateway) do(ctx context.Context, method, target string, payload any) ([]byte, int, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, 0, err
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return nil, 0, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		g.logger.Warn("gateway request",
			zap.String("method", method),
			zap.String("target", target),
			zap.String("outcome", err.Error()))
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}

	g.logger.Info("gateway request",
		zap.String("method", method),
		zap.String("target", target),
		zap.Int("outcome", resp.StatusCode))
	return body, resp.StatusCode, nil
}

func decodeTicket(body []byte, op string) (*domain.Ticket, error) {
	var ticket domain.Ticket
	if err := json.Unmarshal(body, &ticket); err != nil {
		return nil, &FetchError{Op: op, Err: err}
	}
	return &ticket, nil
}

// decodeValidationError keeps the server's field errors verbatim; a body
// that is not the expected map still surfaces as a ValidationError.
func decodeValidationError(body []byte) error {
	fields := map[string][]string{}
	_ = json.Unmarshal(body, &fields)
	return &ValidationError{Fields: fields}
}
