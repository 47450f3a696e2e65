package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"hkboard/internal/models"
)

var (
	ErrUnreachable       = errors.New("backend unreachable")
	ErrNotFound          = errors.New("collection not found")
	ErrConflict          = errors.New("version conflict")
	ErrCorrupt           = errors.New("corrupt persisted data")
	ErrCapacity          = errors.New("storage capacity exceeded")
	ErrSkipped           = errors.New("backend skipped")
	ErrUnsupported       = errors.New("change not supported by backend")
	ErrRejected          = errors.New("change rejected by backend")
	ErrAllBackendsFailed = errors.New("all backends failed")
)

const (
	DEFAULT_BACKEND_TIMEOUT = 6 * time.Second
)

// CollectionStore is one persistence tier. Tiers are ranked by the coordinator; a tier only
// has to report its own failures through the sentinel errors above.
type CollectionStore interface {
	Name() string
	Read(ctx context.Context, collection models.Collection) (json.RawMessage, error)
	Write(ctx context.Context, req WriteRequest) error
	Probe(ctx context.Context) error
}

type ChangeOp string

const (
	ChangeReplace       ChangeOp = "replace"
	ChangeRoomStatus    ChangeOp = "room.status"
	ChangeRoomGuests    ChangeOp = "room.guests"
	ChangeTaskCreate    ChangeOp = "task.create"
	ChangeTaskComplete  ChangeOp = "task.complete"
	ChangeTaskReopen    ChangeOp = "task.reopen"
	ChangeMessageCreate ChangeOp = "message.create"
	ChangeMessageUpdate ChangeOp = "message.update"
	ChangeArchiveCreate ChangeOp = "archive.create"
	ChangeArchiveDelete ChangeOp = "archive.delete"
)

// Change is the entity-level form of a write. Payload is the request body the structured
// store expects for Op; Key is the room number, task id, message id or archive date.
type Change struct {
	Op      ChangeOp `json:"op"`
	Key     string   `json:"key,omitempty"`
	Payload any      `json:"payload,omitempty"`
}

// WriteRequest carries the whole updated collection for document tiers and the entity
// changes for tiers that store records. No changes means replace the collection.
type WriteRequest struct {
	Collection models.Collection
	Snapshot   json.RawMessage
	Changes    []Change
}

type OutcomeStatus string

const (
	OutcomeOK      OutcomeStatus = "ok"
	OutcomeFailed  OutcomeStatus = "failed"
	OutcomeSkipped OutcomeStatus = "skipped"
)

type Outcome struct {
	Backend    string        `json:"backend"`
	Status     OutcomeStatus `json:"status"`
	Error      string        `json:"error,omitempty"`
	DurationMs int64         `json:"durationMs"`
	At         time.Time     `json:"at"`

	err error
}

func (o Outcome) Err() error {
	return o.err
}

type WriteResult struct {
	Collection models.Collection `json:"collection"`
	OK         bool              `json:"ok"`
	Outcomes   []Outcome         `json:"outcomes"`
}

// Err is nil when at least one backend accepted the write.
func (r WriteResult) Err() error {
	if r.OK {
		return nil
	}
	errs := []error{ErrAllBackendsFailed}
	for _, outcome := range r.Outcomes {
		if outcome.err != nil {
			errs = append(errs, outcome.err)
		}
	}
	return errors.Join(errs...)
}

type ReadResult struct {
	Collection models.Collection `json:"collection"`
	Data       json.RawMessage   `json:"data"`
	Found      bool              `json:"found"`
	Source     string            `json:"source"`
}

type BackendStatus struct {
	Name       string    `json:"name"`
	Rank       int       `json:"rank"`
	Probed     bool      `json:"probed"`
	Reachable  bool      `json:"reachable"`
	ProbeError string    `json:"probeError,omitempty"`
	LastWrite  *Outcome  `json:"lastWrite,omitempty"`
	LastReadAt time.Time `json:"lastReadAt,omitzero"`
}
