package client

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk/internal/domain"
)

const genericErrorMessage = "something went wrong, please try again"

// Store owns the authoritative client-side snapshot of tickets and stats for
// the active query. All mutations go through its operations; renderers only
// read snapshots.
//
// A stale refresh or mutation response arriving late overwrites newer state
// (last writer wins). The appliers are idempotent per-id replaces, so a late
// response can only restore an older copy of one ticket, never corrupt the
// list.
type Store struct {
	gateway Gateway
	logger  *zap.Logger

	mu        sync.Mutex
	tickets   []domain.Ticket
	stats     *domain.TicketStats
	loading   bool
	errMsg    string
	lastQuery ListQuery

	autoStop chan struct{}
}

// Snapshot is a read-only copy of the store state for rendering.
type Snapshot struct {
	Tickets []domain.Ticket
	Stats   *domain.TicketStats
	Loading bool
	Err     string
}

// NewStore constructs a store over the given gateway.
func NewStore(gateway Gateway, logger *zap.Logger) *Store {
	return &Store{gateway: gateway, logger: logger}
}

// Refresh replaces the whole ticket collection and stats for the query. The
// list and stats calls run concurrently and commit only together; on failure
// the prior data stays untouched. The loading flag is true for exactly the
// duration of the call.
func (s *Store) Refresh(ctx context.Context, query ListQuery) error {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.lastQuery = query
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	var (
		wg       sync.WaitGroup
		tickets  []domain.Ticket
		stats    *domain.TicketStats
		listErr  error
		statsErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		tickets, listErr = s.gateway.List(ctx, query)
	}()
	go func() {
		defer wg.Done()
		stats, statsErr = s.gateway.Stats(ctx)
	}()
	wg.Wait()

	if listErr != nil {
		s.setError(listErr)
		return listErr
	}
	if statsErr != nil {
		s.setError(statsErr)
		return statsErr
	}

	s.mu.Lock()
	s.tickets = tickets
	s.stats = stats
	s.mu.Unlock()
	return nil
}

// Create submits a new ticket and prepends the result without re-fetching
// the list. Stats are refreshed best-effort afterwards.
func (s *Store) Create(ctx context.Context, input domain.CreateTicketInput) (*domain.Ticket, error) {
	s.ClearError()

	ticket, err := s.gateway.Create(ctx, input)
	if err != nil {
		s.setError(err)
		return nil, err
	}

	s.mu.Lock()
	s.tickets = append([]domain.Ticket{*ticket}, s.tickets...)
	s.mu.Unlock()

	s.refreshStats(ctx)
	return ticket, nil
}

// Update patches a ticket and replaces it in place, preserving list order.
// Stats are refreshed only when the patch carried a status change.
func (s *Store) Update(ctx context.Context, id int64, input domain.UpdateTicketInput) (*domain.Ticket, error) {
	s.ClearError()

	ticket, err := s.gateway.Update(ctx, id, input)
	if err != nil {
		s.setError(err)
		return nil, err
	}

	s.replaceTicket(*ticket)
	if input.Status != nil {
		s.refreshStats(ctx)
	}
	return ticket, nil
}

// UpdateStatus transitions a ticket to the given status. Status changes
// always affect the aggregate counts, so stats are refreshed every time.
func (s *Store) UpdateStatus(ctx context.Context, id int64, status domain.TicketStatus) (*domain.Ticket, error) {
	s.ClearError()

	ticket, err := s.gateway.UpdateStatus(ctx, id, status)
	if err != nil {
		s.setError(err)
		return nil, err
	}

	s.replaceTicket(*ticket)
	s.refreshStats(ctx)
	return ticket, nil
}

// ClearError resets the error state. Pure, no I/O.
func (s *Store) ClearError() {
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()
}

// Snapshot returns a copy of the current state for rendering.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	tickets := make([]domain.Ticket, len(s.tickets))
	copy(tickets, s.tickets)

	var stats *domain.TicketStats
	if s.stats != nil {
		statsCopy := *s.stats
		stats = &statsCopy
	}
	return Snapshot{Tickets: tickets, Stats: stats, Loading: s.loading, Err: s.errMsg}
}

// StartAutoRefresh re-issues Refresh with the last-used query on a fixed
// period until StopAutoRefresh. Ticks that fire while a refresh is still
// running are dropped, not queued.
func (s *Store) StartAutoRefresh(interval time.Duration) {
	if interval <= 0 {
		return
	}
	s.mu.Lock()
	if s.autoStop != nil {
		s.mu.Unlock()
		return
	}
	stop := make(chan struct{})
	s.autoStop = stop
	s.mu.Unlock()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				select {
				case <-stop:
					return
				default:
				}
				s.mu.Lock()
				query := s.lastQuery
				s.mu.Unlock()
				if err := s.Refresh(context.Background(), query); err != nil {
					s.logger.Warn("auto refresh failed", zap.Error(err))
				}
			}
		}
	}()
}

// StopAutoRefresh stops the periodic refresh; no further ticks fire.
func (s *Store) StopAutoRefresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.autoStop != nil {
		close(s.autoStop)
		s.autoStop = nil
	}
}

// replaceTicket swaps the matching ticket in place, preserving order. An
// unknown id is a no-op.
func (s *Store) replaceTicket(ticket domain.Ticket) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.tickets {
		if s.tickets[i].ID == ticket.ID {
			s.tickets[i] = ticket
			return
		}
	}
}

// refreshStats re-fetches the aggregate counts after a mutation. Failures
// are logged only; the mutation already succeeded.
func (s *Store) refreshStats(ctx context.Context) {
	stats, err := s.gateway.Stats(ctx)
	if err != nil {
		s.logger.Warn("stats refresh failed", zap.Error(err))
		return
	}
	s.mu.Lock()
	s.stats = stats
	s.mu.Unlock()
}

func (s *Store) setError(err error) {
	message := genericErrorMessage
	if err != nil && err.Error() != "" {
		message = err.Error()
	}
	s.mu.Lock()
	s.errMsg = message
	s.mu.Unlock()
}
