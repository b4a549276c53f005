// Package deadletter records deliveries that did not complete: handlers that
// failed and tasks orphaned by a closed loop.
package deadletter

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/randalmurphal/loopbus/pkg/loopbus/value"
)

// Store persists dead-letter records.
// Implementations must be safe for concurrent use.
type Store interface {
	// Save stores a record. An empty ID is replaced by a new UUID and a zero
	// Timestamp by the current time. Returns the stored ID.
	Save(rec Record) (string, error)

	// Get retrieves one record.
	// Returns ErrNotFound if the record doesn't exist.
	Get(id string) (Record, error)

	// List returns the records for key in insertion order. An empty key
	// lists every record. Returns an empty, non-nil slice if none match.
	List(key string) ([]Record, error)

	// Delete removes a record.
	// Returns nil if the record doesn't exist.
	Delete(id string) error

	// Count returns the number of stored records.
	Count() (int, error)

	// Close releases any resources (connections, files).
	Close() error
}

// Reason classifies a dead letter.
type Reason string

// Dead-letter reasons.
const (
	ReasonHandlerFailed Reason = "handler_failed"
	ReasonOrphaned      Reason = "orphaned"
)

// Record is one delivery that did not complete.
type Record struct {
	ID        string
	Key       string
	Args      []byte // kind-tagged JSON array of the delivered arguments
	HandlerID uint64
	Loop      string
	Reason    Reason
	Error     string
	Timestamp time.Time
}

// NewRecord builds a record for a delivery of args to a handler.
func NewRecord(key string, args value.Args, handlerID uint64, loopName string, reason Reason, cause error) (Record, error) {
	data, err := encodeArgs(args)
	if err != nil {
		return Record{}, err
	}
	rec := Record{
		Key:       key,
		Args:      data,
		HandlerID: handlerID,
		Loop:      loopName,
		Reason:    reason,
	}
	if cause != nil {
		rec.Error = cause.Error()
	}
	return rec, nil
}

// DecodeArgs parses the stored arguments. Every value comes back with the
// kind it was emitted with.
func (r Record) DecodeArgs() (value.Args, error) {
	if len(r.Args) == 0 {
		return value.Args{}, nil
	}
	return decodeArgs(r.Args)
}

func (r *Record) fill() {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.Timestamp.IsZero() {
		r.Timestamp = time.Now().UTC()
	}
}

// Sentinel errors for dead-letter operations.
var (
	// ErrNotFound indicates a record doesn't exist.
	ErrNotFound = errors.New("dead letter not found")

	// ErrStoreClosed indicates the store has been closed.
	ErrStoreClosed = errors.New("dead letter store closed")
)
