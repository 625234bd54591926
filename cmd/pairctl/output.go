package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/pairing/internal/model"
	"github.com/alfredjeanlab/pairing/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05.000Z07:00"

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// redacted returns a copy of r without its claim token.
func redacted(r *model.PairingRequest) *model.PairingRequest {
	c := *r
	c.ClaimToken = ""
	return &c
}

func printRequest(w io.Writer, r *model.PairingRequest) {
	fmt.Fprintf(w, "ID:          %s\n", r.ID)
	fmt.Fprintf(w, "Status:      %s\n", ui.RenderStatus(r.Status))
	fmt.Fprintf(w, "User:        %s\n", r.UserID)
	fmt.Fprintf(w, "Client:      %s\n", r.ClientID)
	if r.TabID != "" {
		fmt.Fprintf(w, "Tab:         %s\n", r.TabID)
	}
	if r.Scope != "" {
		fmt.Fprintf(w, "Scope:       %s\n", r.Scope)
	}
	fmt.Fprintf(w, "Created At:  %s\n", r.CreatedAt.Format(timeLayout))
	fmt.Fprintf(w, "Expires At:  %s %s\n", r.ExpiresAt.Format(timeLayout),
		ui.RenderMuted(fmt.Sprintf("(ttl %ds)", r.TTLSeconds)))
	if r.PollLeaseExpiresAt != nil {
		fmt.Fprintf(w, "Lease Until: %s\n", r.PollLeaseExpiresAt.Format(timeLayout))
	}
	if r.ClaimToken != "" {
		fmt.Fprintf(w, "Claim Token: %s\n", r.ClaimToken)
	}
	if r.PolledBy != nil {
		fmt.Fprintf(w, "Polled By:   %s\n", actorRef(r.PolledBy))
	}
	if r.ClaimedBy != nil {
		fmt.Fprintf(w, "Claimed By:  %s\n", actorRef(r.ClaimedBy))
	}
}

func actorRef(a *model.ActorRef) string {
	s := a.AgentID
	if a.ClientInstanceID != "" {
		s += "/" + a.ClientInstanceID
	}
	return s + " " + ui.RenderMuted("at "+a.At.Format(timeLayout))
}

func printEvents(w io.Writer, evs []*model.AuditEvent) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIME\tEVENT\tACTOR\tMETADATA")
	for _, ev := range evs {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n",
			ev.ID,
			ev.CreatedAt.Format(timeLayout),
			ui.RenderEvent(ev.Event),
			actor(ev.Actor),
			string(ev.Metadata),
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d events\n", len(evs))
}

func actor(a model.Actor) string {
	var parts []string
	switch a.Type {
	case model.ActorUser:
		parts = append(parts, "user:"+a.UserID)
	case model.ActorAgent:
		parts = append(parts, "agent:"+a.AgentID)
	default:
		parts = append(parts, string(a.Type))
	}
	if a.ClientInstanceID != "" {
		parts = append(parts, a.ClientInstanceID)
	}
	return strings.Join(parts, "/")
}

// printEventLine prints one event as it arrives on the bus.
func printEventLine(w io.Writer, ev *model.AuditEvent, clientID string, status model.Status) {
	fmt.Fprintf(w, "%s  %-16s %s  %s",
		ui.RenderMuted(ev.CreatedAt.Format(time.TimeOnly)),
		ui.RenderEvent(ev.Event),
		ev.RequestID,
		actor(ev.Actor),
	)
	if clientID != "" {
		fmt.Fprintf(w, "  client=%s", clientID)
	}
	if status != "" {
		fmt.Fprintf(w, "  status=%s", ui.RenderStatus(status))
	}
	fmt.Fprintln(w)
}
