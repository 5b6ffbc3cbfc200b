package client

import (
	"strings"

	"github.com/spec-kit/helpdesk/internal/domain"
)

// SortKey names a UI-level sort selection.
type SortKey string

const (
	SortUpdatedDesc SortKey = "updated_desc"
	SortUpdatedAsc  SortKey = "updated_asc"
	SortCreatedDesc SortKey = "created_desc"
	SortCreatedAsc  SortKey = "created_asc"
	SortTitleAsc    SortKey = "title_asc"
	SortTitleDesc   SortKey = "title_desc"
)

// StatusFilterAll is the sentinel that disables status filtering.
const StatusFilterAll = "all"

// ListQuery is the ephemeral filter/sort selection sent with a list call.
// A zero Status means no status filter; an empty Search is omitted from the
// outgoing request.
type ListQuery struct {
	Status domain.TicketStatus
	Search string
	Sort   SortKey
}

// BuildListQuery maps UI filter state to a query. Search text is trimmed and
// dropped entirely when blank; the all sentinel drops the status filter.
func BuildListQuery(statusFilter, searchText string, sort SortKey) ListQuery {
	query := ListQuery{Sort: sort}
	if statusFilter != "" && statusFilter != StatusFilterAll {
		query.Status = domain.TicketStatus(statusFilter)
	}
	query.Search = strings.TrimSpace(searchText)
	return query
}

// BuildOrdering maps a sort key to the server's ordering token. Unrecognized
// keys fall back to newest-updated-first.
func BuildOrdering(sort SortKey) string {
	switch sort {
	case SortUpdatedDesc:
		return "-updated_at"
	case SortUpdatedAsc:
		return "updated_at"
	case SortCreatedDesc:
		return "-created_at"
	case SortCreatedAsc:
		return "created_at"
	case SortTitleAsc:
		return "title"
	case SortTitleDesc:
		return "-title"
	default:
		return "-updated_at"
	}
}
