// Package session stores per-user map history and dialog state.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/dgallion1/docmap/internal/outline"
)

var ErrNotFound = errors.New("not found")

// MapRecord is one published map. Records are append-only.
type MapRecord struct {
	ID        uuid.UUID      `json:"id"`
	UserID    string         `json:"user_id"`
	Title     string         `json:"title"`
	Depth     string         `json:"depth"`
	Model     string         `json:"model"`
	Nodes     []outline.Node `json:"nodes"`
	Markdown  string         `json:"markdown"`
	URL       string         `json:"url"`
	Key       string         `json:"key"`
	CreatedAt time.Time      `json:"created_at"`
}

// MapStore keeps each user's map history in insertion order.
type MapStore interface {
	Put(ctx context.Context, rec MapRecord) error
	List(ctx context.Context, userID string) ([]MapRecord, error)
	// Last returns the most recent record or ErrNotFound.
	Last(ctx context.Context, userID string) (MapRecord, error)
	Get(ctx context.Context, userID string, id uuid.UUID) (MapRecord, error)
}

// State is a user's position in the chat dialog plus the answers collected
// so far.
type State struct {
	Step string            `json:"step"`
	Data map[string]string `json:"data,omitempty"`
}

// StateStore keeps dialog state. A user without stored state gets the
// zero State.
type StateStore interface {
	GetState(ctx context.Context, userID string) (State, error)
	SetState(ctx context.Context, userID string, st State) error
	ClearState(ctx context.Context, userID string) error
}

// Store is both a MapStore and a StateStore.
type Store interface {
	MapStore
	StateStore
	Close() error
}

func copyState(st State) State {
	out := State{Step: st.Step}
	if len(st.Data) > 0 {
		out.Data = make(map[string]string, len(st.Data))
		for k, v := range st.Data {
			out.Data[k] = v
		}
	}
	return out
}
