package readmodel

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// EntityType identifies the aggregate that owns a timeline event and selects
// the cascade rule applied when it is refreshed.
type EntityType uint8

const (
	EntityAuthor EntityType = iota + 1
	EntityBook
	EntityGenre
	EntityReading
	// EntityShelf is a user's shelf entry, keyed by the user-book id.
	EntityShelf
)

// EntityTypes lists every entity type in full-rebuild order.
var EntityTypes = []EntityType{EntityAuthor, EntityGenre, EntityBook, EntityShelf, EntityReading}

func (t EntityType) String() string {
	switch t {
	case EntityAuthor:
		return "author"
	case EntityBook:
		return "book"
	case EntityGenre:
		return "genre"
	case EntityReading:
		return "reading"
	case EntityShelf:
		return "shelf"
	}
	return "EntityType(" + strconv.Itoa(int(t)) + ")"
}

// Valid reports whether t is one of the declared entity types.
func (t EntityType) Valid() bool {
	switch t {
	case EntityAuthor, EntityBook, EntityGenre, EntityReading, EntityShelf:
		return true
	}
	return false
}

// ParseEntityType converts the wire name of an entity type.
func ParseEntityType(s string) (EntityType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "author":
		return EntityAuthor, nil
	case "book":
		return EntityBook, nil
	case "genre":
		return EntityGenre, nil
	case "reading":
		return EntityReading, nil
	case "shelf":
		return EntityShelf, nil
	}
	return 0, fmt.Errorf("unknown entity type %q", s)
}

func (t EntityType) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("invalid entity type %d", t)
	}
	return []byte(t.String()), nil
}

func (t *EntityType) UnmarshalText(text []byte) error {
	parsed, err := ParseEntityType(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// EntityRef is the natural key of a timeline event.
type EntityRef struct {
	Type EntityType `json:"entity_type"`
	ID   int64      `json:"entity_id"`
}

func (r EntityRef) String() string {
	return r.Type.String() + ":" + strconv.FormatInt(r.ID, 10)
}

const (
	ActionAdded     = "added"
	ActionStarted   = "started"
	ActionFinished  = "finished"
	ActionAbandoned = "abandoned"
	ActionShelved   = "shelved"
)

// Detail is one labelled, display-ready value.
type Detail struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// ReadingData is attached to reading events for specialised rendering.
type ReadingData struct {
	BookID int64    `json:"book_id"`
	Rating *float64 `json:"rating,omitempty"`
	Status string   `json:"status"`
}

// TimelineEvent is the materialized snapshot of one entity. There is at most
// one per EntityRef.
type TimelineEvent struct {
	ID          int64        `json:"id"`
	EntityType  EntityType   `json:"entity_type"`
	EntityID    int64        `json:"entity_id"`
	Action      string       `json:"action"`
	OccurredAt  time.Time    `json:"occurred_at"`
	Title       string       `json:"title"`
	Details     []Detail     `json:"details"`
	Genres      []string     `json:"genres"`
	ReadingData *ReadingData `json:"reading_data,omitempty"`
	UserID      *int64       `json:"user_id,omitempty"`
}

func (e *TimelineEvent) Ref() EntityRef {
	return EntityRef{Type: e.EntityType, ID: e.EntityID}
}

// NewTimelineEvent is the insert payload produced by the builders.
type NewTimelineEvent struct {
	UserID      *int64
	EntityType  EntityType
	EntityID    int64
	Action      string
	OccurredAt  time.Time
	Title       string
	Details     []Detail
	Genres      []string
	ReadingData *ReadingData
}

func (e NewTimelineEvent) Ref() EntityRef {
	return EntityRef{Type: e.EntityType, ID: e.EntityID}
}

// SnapshotContent is the refreshable part of a timeline event. An empty
// Action or zero OccurredAt leaves the stored value untouched.
type SnapshotContent struct {
	Action      string
	OccurredAt  time.Time
	Title       string
	Details     []Detail
	Genres      []string
	ReadingData *ReadingData
}

// Content extracts what a refresh writes back for this event. Only readings
// carry their action and timestamp, since their status moves over time.
func (e NewTimelineEvent) Content() SnapshotContent {
	c := SnapshotContent{
		Title:       e.Title,
		Details:     e.Details,
		Genres:      e.Genres,
		ReadingData: e.ReadingData,
	}
	if e.EntityType == EntityReading {
		c.Action = e.Action
		c.OccurredAt = e.OccurredAt
	}
	return c
}

// Apply overwrites the refreshable fields of e with c.
func (e *TimelineEvent) Apply(c SnapshotContent) {
	if c.Action != "" {
		e.Action = c.Action
	}
	if !c.OccurredAt.IsZero() {
		e.OccurredAt = c.OccurredAt
	}
	e.Title = c.Title
	e.Details = nonNilDetails(c.Details)
	e.Genres = nonNilGenres(c.Genres)
	e.ReadingData = c.ReadingData
}

func nonNilDetails(d []Detail) []Detail {
	if d == nil {
		return []Detail{}
	}
	return d
}

func nonNilGenres(g []string) []string {
	if g == nil {
		return []string{}
	}
	return g
}

// Materialize turns an insert payload into a stored event with the given id.
func (e NewTimelineEvent) Materialize(id int64) *TimelineEvent {
	return &TimelineEvent{
		ID:          id,
		EntityType:  e.EntityType,
		EntityID:    e.EntityID,
		Action:      e.Action,
		OccurredAt:  e.OccurredAt,
		Title:       e.Title,
		Details:     nonNilDetails(e.Details),
		Genres:      nonNilGenres(e.Genres),
		ReadingData: e.ReadingData,
		UserID:      e.UserID,
	}
}
