package sweep

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/alfredjeanlab/pairing/internal/model"
)

// header is the first JSONL record of every archive.
type header struct {
	Version    string    `json:"version"`
	Type       string    `json:"type"`
	Timestamp  time.Time `json:"timestamp"`
	EventCount int       `json:"event_count"`
	FirstID    int64     `json:"first_id"`
	LastID     int64     `json:"last_id"`
}

// record wraps a single JSONL line with a type discriminator.
type record struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// ExportEvents writes evs as JSONL to w: a header line, then one line per
// event in the order given.
func ExportEvents(w io.Writer, evs []*model.AuditEvent, now time.Time) error {
	h := header{
		Version:    "1",
		Type:       "header",
		Timestamp:  now.UTC(),
		EventCount: len(evs),
	}
	if len(evs) > 0 {
		h.FirstID = evs[0].ID
		h.LastID = evs[len(evs)-1].ID
	}

	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(h); err != nil {
		return fmt.Errorf("encode header: %w", err)
	}
	for _, ev := range evs {
		if err := enc.Encode(record{Type: "audit_event", Data: ev}); err != nil {
			return fmt.Errorf("encode audit event %d: %w", ev.ID, err)
		}
	}
	return nil
}
