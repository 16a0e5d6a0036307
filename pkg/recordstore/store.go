// Package recordstore persists schema-less JSON records grouped by entity
// type. Every backend speaks the same save/delete/list contract as the
// department spreadsheet endpoint.
package recordstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Entity types understood by the store.
const (
	EntityUsers         = "users"
	EntitySchedule      = "schedule"
	EntitySubstitutes   = "substitutes"
	EntityScores        = "scores"
	EntityDocuments     = "documents"
	EntityDemos         = "demos"
	EntityLessonPlans   = "lessonPlans"
	EntityNotifications = "notifications"
)

// Entities lists every entity type in a stable order.
var Entities = []string{
	EntityUsers,
	EntitySchedule,
	EntitySubstitutes,
	EntityScores,
	EntityDocuments,
	EntityDemos,
	EntityLessonPlans,
	EntityNotifications,
}

// Write actions.
const (
	ActionSave   = "save"
	ActionDelete = "delete"
	ActionList   = "list"
)

// ErrRecordID is returned when a record has no usable id.
var ErrRecordID = errors.New("record id is required")

// Store is the persistence contract shared by every backend.
type Store interface {
	List(ctx context.Context, entity string) ([]json.RawMessage, error)
	Save(ctx context.Context, entity string, record interface{}) error
	Delete(ctx context.Context, entity, id string) error
	Ping(ctx context.Context) error
}

// Observer receives timing for every store call.
type Observer interface {
	ObserveStoreCall(entity, action string, duration time.Duration, err error)
}

type instrumented struct {
	next     Store
	observer Observer
}

// Instrument wraps a store so each call is reported to the observer.
func Instrument(next Store, observer Observer) Store {
	if observer == nil {
		return next
	}
	return &instrumented{next: next, observer: observer}
}

func (s *instrumented) List(ctx context.Context, entity string) ([]json.RawMessage, error) {
	start := time.Now()
	out, err := s.next.List(ctx, entity)
	s.observer.ObserveStoreCall(entity, ActionList, time.Since(start), err)
	return out, err
}

func (s *instrumented) Save(ctx context.Context, entity string, record interface{}) error {
	start := time.Now()
	err := s.next.Save(ctx, entity, record)
	s.observer.ObserveStoreCall(entity, ActionSave, time.Since(start), err)
	return err
}

func (s *instrumented) Delete(ctx context.Context, entity, id string) error {
	start := time.Now()
	err := s.next.Delete(ctx, entity, id)
	s.observer.ObserveStoreCall(entity, ActionDelete, time.Since(start), err)
	return err
}

func (s *instrumented) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}

// marshalRecord encodes a record and extracts its id.
func marshalRecord(record interface{}) (json.RawMessage, string, error) {
	raw, err := json.Marshal(record)
	if err != nil {
		return nil, "", fmt.Errorf("encode record: %w", err)
	}
	id, err := RecordID(raw)
	if err != nil {
		return nil, "", err
	}
	return raw, id, nil
}

// RecordID reads the id field of an encoded record. Numeric ids written by
// spreadsheet formulas are accepted and rendered without decimals.
func RecordID(raw json.RawMessage) (string, error) {
	var head struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return "", fmt.Errorf("decode record: %w", err)
	}
	if len(head.ID) == 0 || string(head.ID) == "null" {
		return "", ErrRecordID
	}
	var id string
	if err := json.Unmarshal(head.ID, &id); err != nil {
		var n json.Number
		if err := json.Unmarshal(head.ID, &n); err != nil {
			return "", ErrRecordID
		}
		id = n.String()
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrRecordID
	}
	return id, nil
}

func validEntity(entity string) error {
	for _, e := range Entities {
		if e == entity {
			return nil
		}
	}
	return fmt.Errorf("unknown entity %q", entity)
}
