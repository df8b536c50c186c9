// Package audit persists the request audit trail written by the audit
// middleware and exposes it to admins.
package audit

import (
	"context"
	"time"

	"github.com/healthtrack/healthtrack/internal/platform/middleware"
	"github.com/healthtrack/healthtrack/pkg/pagination"
)

// DefaultWriteTimeout bounds a single audit insert.
const DefaultWriteTimeout = 5 * time.Second

// Entry is one stored audit row. UserID is nil for anonymous requests such
// as a failed login.
type Entry struct {
	ID        int64     `json:"id"`
	UserID    *int64    `json:"user_id"`
	Role      string    `json:"role"`
	Action    string    `json:"action"`
	Resource  string    `json:"resource"`
	TargetID  string    `json:"target_id"`
	Method    string    `json:"method"`
	Path      string    `json:"path"`
	Status    int       `json:"status"`
	RequestID string    `json:"request_id"`
	IPAddress string    `json:"ip_address"`
	CreatedAt time.Time `json:"created_at"`
}

type Store interface {
	Insert(ctx context.Context, e *Entry) error
	// List returns entries newest first plus the total row count.
	List(ctx context.Context, limit, offset int) ([]*Entry, int, error)
}

// Recorder adapts a Store to middleware.AuditRecorder. Inserts run on their
// own context so entries for failed or cancelled requests are still kept.
type Recorder struct {
	store   Store
	timeout time.Duration
}

func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store, timeout: DefaultWriteTimeout}
}

func (r *Recorder) RecordAccess(ae middleware.AuditEntry) error {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	return r.store.Insert(ctx, fromMiddleware(ae))
}

func fromMiddleware(ae middleware.AuditEntry) *Entry {
	e := &Entry{
		Role:      ae.Role,
		Action:    ae.Action,
		Resource:  ae.Resource,
		TargetID:  ae.TargetID,
		Method:    ae.Method,
		Path:      ae.Path,
		Status:    ae.Status,
		RequestID: ae.RequestID,
		IPAddress: ae.IPAddress,
		CreatedAt: ae.Timestamp,
	}
	if ae.UserID != 0 {
		id := ae.UserID
		e.UserID = &id
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	return e
}

type Service struct {
	store Store
}

func NewService(store Store) *Service {
	return &Service{store: store}
}

func (s *Service) List(ctx context.Context, p pagination.Params) (*pagination.Page[*Entry], error) {
	items, total, err := s.store.List(ctx, p.Limit(), p.Offset())
	if err != nil {
		return nil, err
	}
	return pagination.NewPage(items, total, p), nil
}
