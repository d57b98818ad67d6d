// internal/types/interfaces.go
package types

import "context"

// SessionStore owns conversation transcripts. Implementations must be safe
// for concurrent use across sessions; callers serialize turns within one
// session (the gateway's per-session lanes).
type SessionStore interface {
	ResolveOrCreate(ctx context.Context, key SessionKey) (SessionID, error)
	AppendTurn(ctx context.Context, id SessionID, turn Turn) error
	History(ctx context.Context, id SessionID) ([]Turn, error)
	SetStatus(ctx context.Context, id SessionID, status SessionStatus) error
	Get(ctx context.Context, id SessionID) (*SessionInfo, error)
	List(ctx context.Context) ([]*SessionInfo, error)
}

// CalendarStore is the storage gateway for schedule rows. Every method is a
// single transactional unit of work executed off the request path.
type CalendarStore interface {
	ListAll(ctx context.Context, user UserID) ([]Schedule, error)
	ListByDate(ctx context.Context, user UserID, date string) ([]Schedule, error)
	Create(ctx context.Context, user UserID, date, title string, timeOfDay, description *string) error
	DeleteByDate(ctx context.Context, user UserID, date string) error
	DeleteByUser(ctx context.Context, user UserID) error
	DeleteByID(ctx context.Context, id int64, user UserID) error
}

// UserLookup answers whether a user id resolved from a credential exists.
type UserLookup interface {
	UserExists(ctx context.Context, id UserID) (bool, error)
}
