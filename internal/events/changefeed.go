package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
)

// Watched tables. These names are part of the persistence schema contract.
const (
	TableChecklistItems   = "checklist_items"
	TableChecklistResults = "checklist_results"
)

// ChangeType tags a row-level change event.
type ChangeType string

const (
	ChangeInsert ChangeType = "INSERT"
	ChangeUpdate ChangeType = "UPDATE"
	ChangeDelete ChangeType = "DELETE"
)

// ChangeEvent describes a single row change on a watched table. New holds
// the row after the change (inserts and updates), Old the row before it
// (updates and deletes).
type ChangeEvent struct {
	ID        string          `json:"id"`
	Type      ChangeType      `json:"type"`
	Table     string          `json:"table"`
	New       json.RawMessage `json:"new,omitempty"`
	Old       json.RawMessage `json:"old,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewChangeEvent builds a change event, serializing the row payloads.
// Either row may be nil depending on the change type.
func NewChangeEvent(changeType ChangeType, table string, newRow, oldRow interface{}) (ChangeEvent, error) {
	ev := ChangeEvent{
		ID:        uuid.NewString(),
		Type:      changeType,
		Table:     table,
		Timestamp: time.Now(),
	}

	if newRow != nil {
		data, err := json.Marshal(newRow)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("failed to marshal new row: %w", err)
		}
		ev.New = data
	}
	if oldRow != nil {
		data, err := json.Marshal(oldRow)
		if err != nil {
			return ChangeEvent{}, fmt.Errorf("failed to marshal old row: %w", err)
		}
		ev.Old = data
	}

	return ev, nil
}

// ChecklistType extracts the checklist_type column from the event's row
// payload, preferring the new row and falling back to the old row for
// deletes. Returns "" when neither payload carries the column.
func (ev ChangeEvent) ChecklistType() string {
	var row struct {
		ChecklistType string `json:"checklist_type"`
	}
	if ev.New != nil {
		if err := json.Unmarshal(ev.New, &row); err == nil && row.ChecklistType != "" {
			return row.ChecklistType
		}
	}
	if ev.Old != nil {
		if err := json.Unmarshal(ev.Old, &row); err == nil {
			return row.ChecklistType
		}
	}
	return ""
}

// ChangeFeed is the in-process change-subscription primitive: every
// successful repository write publishes here, and the synchronization
// coordinator consumes per-table subscriptions. Built on watermill's
// gochannel Pub/Sub so delivery is a message queue drained by a single
// consumer, not an ad-hoc callback from the writer's goroutine.
type ChangeFeed struct {
	pubsub *gochannel.GoChannel
	logger *slog.Logger
}

func NewChangeFeed(logger *slog.Logger) *ChangeFeed {
	return &ChangeFeed{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{OutputChannelBuffer: 64},
			watermill.NewSlogLogger(logger),
		),
		logger: logger,
	}
}

func changeTopic(table string) string {
	return "changes." + table
}

// Publish emits a change event on its table's topic. Publish failures are
// the writer's problem to report; the feed never retries.
func (f *ChangeFeed) Publish(ctx context.Context, ev ChangeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal change event: %w", err)
	}

	msg := message.NewMessage(ev.ID, payload)
	msg.SetContext(ctx)

	if err := f.pubsub.Publish(changeTopic(ev.Table), msg); err != nil {
		return fmt.Errorf("failed to publish change event: %w", err)
	}

	f.logger.Debug("Change event published",
		"table", ev.Table,
		"type", ev.Type,
		"event_id", ev.ID)

	return nil
}

// Subscribe returns the message stream for one table. The subscription
// lives until ctx is cancelled or the feed is closed.
func (f *ChangeFeed) Subscribe(ctx context.Context, table string) (<-chan *message.Message, error) {
	ch, err := f.pubsub.Subscribe(ctx, changeTopic(table))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s changes: %w", table, err)
	}
	return ch, nil
}

// Close tears down the underlying Pub/Sub and all subscriptions.
func (f *ChangeFeed) Close() error {
	return f.pubsub.Close()
}

// UnmarshalChange decodes a change feed message.
func UnmarshalChange(msg *message.Message) (ChangeEvent, error) {
	var ev ChangeEvent
	if err := json.Unmarshal(msg.Payload, &ev); err != nil {
		return ChangeEvent{}, fmt.Errorf("failed to unmarshal change event: %w", err)
	}
	return ev, nil
}
