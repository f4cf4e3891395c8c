package publisher

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/mcdev12/quickdraw/go/internal/duel"
	"github.com/mcdev12/quickdraw/go/internal/duel/events"
)

func TestSubjectFor(t *testing.T) {
	if got := subjectFor("duel.events", events.EventTypeRoundResolved); got != "duel.events.RoundResolved" {
		t.Fatalf("unexpected subject %q", got)
	}
}

func TestNewMsgCarriesRoundHeaders(t *testing.T) {
	at := time.Date(2026, 5, 1, 9, 0, 4, 0, time.UTC)
	env, err := events.RoundResolved(duel.Round{
		ID:         12,
		Phase:      duel.PhaseResolved,
		Resolved:   true,
		Outcome:    duel.OutcomeWin,
		ResolvedAt: at,
	})
	if err != nil {
		t.Fatalf("RoundResolved: %v", err)
	}

	msg, err := newMsg(subjectFor("duel.events", env.EventType), env)
	if err != nil {
		t.Fatalf("newMsg: %v", err)
	}

	if msg.Subject != "duel.events.RoundResolved" {
		t.Fatalf("unexpected subject %q", msg.Subject)
	}
	gotHeaders := map[string]string{
		headerEventType: msg.Header.Get(headerEventType),
		headerRoundID:   msg.Header.Get(headerRoundID),
		headerEventID:   msg.Header.Get(headerEventID),
	}
	wantHeaders := map[string]string{
		headerEventType: "RoundResolved",
		headerRoundID:   "12",
		headerEventID:   env.EventID,
	}
	if diff := cmp.Diff(wantHeaders, gotHeaders); diff != "" {
		t.Fatalf("header mismatch (-want +got):\n%s", diff)
	}

	var decoded events.Envelope
	if err := json.Unmarshal(msg.Data, &decoded); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if decoded.EventID != env.EventID || decoded.RoundID != 12 || !decoded.Timestamp.Equal(at) {
		t.Fatalf("unexpected body %+v", decoded)
	}
}
