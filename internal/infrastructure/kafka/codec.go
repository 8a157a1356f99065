package kafka

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/booklog-timeline/internal/projection"
	"github.com/example/booklog-timeline/internal/readmodel"
)

const (
	KindEntity = "entity"
	KindFull   = "full"

	fullKey = "full"
)

var ErrBadSignal = errors.New("malformed timeline signal")

// SignalMessage is the wire form of a projection.Signal.
type SignalMessage struct {
	ID         string               `json:"id"`
	Kind       string               `json:"kind"`
	EntityType readmodel.EntityType `json:"entity_type,omitempty"`
	EntityID   int64                `json:"entity_id,omitempty"`
	SentAt     time.Time            `json:"sent_at"`
}

// EncodeSignal returns the partition key and JSON value for sig.
func EncodeSignal(sig projection.Signal, now time.Time) (key, value []byte, err error) {
	msg := SignalMessage{ID: uuid.NewString(), SentAt: now.UTC()}
	switch s := sig.(type) {
	case projection.TargetSignal:
		msg.Kind = KindEntity
		msg.EntityType = s.Ref.Type
		msg.EntityID = s.Ref.ID
		key = []byte(s.Ref.String())
	case projection.FullSignal:
		msg.Kind = KindFull
		key = []byte(fullKey)
	default:
		return nil, nil, fmt.Errorf("%w: %T", ErrBadSignal, sig)
	}
	value, err = json.Marshal(msg)
	if err != nil {
		return nil, nil, err
	}
	return key, value, nil
}

// DecodeSignal parses a message value produced by EncodeSignal.
func DecodeSignal(value []byte) (projection.Signal, error) {
	var msg SignalMessage
	if err := json.Unmarshal(value, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadSignal, err)
	}
	switch msg.Kind {
	case KindFull:
		return projection.FullSignal{}, nil
	case KindEntity:
		if !msg.EntityType.Valid() || msg.EntityID <= 0 {
			return nil, fmt.Errorf("%w: entity %d:%d", ErrBadSignal, msg.EntityType, msg.EntityID)
		}
		return projection.TargetSignal{Ref: readmodel.EntityRef{Type: msg.EntityType, ID: msg.EntityID}}, nil
	}
	return nil, fmt.Errorf("%w: kind %q", ErrBadSignal, msg.Kind)
}
