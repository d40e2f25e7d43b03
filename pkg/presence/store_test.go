package presence

import (
	"testing"
	"time"

	"github.com/silviutimaru/mivton-presence/pkg/errors"
	"github.com/silviutimaru/mivton-presence/pkg/models"
)

func newTestStore(at time.Time) (*Store, *[]models.PresenceRecord) {
	store := New(WithClock(func() time.Time { return at }))
	var fired []models.PresenceRecord
	store.SetOnChange(func(rec models.PresenceRecord) {
		fired = append(fired, rec)
	})
	return store, &fired
}

// TestUnknownUserIsOffline verifies the lazily initialized default record
func TestUnknownUserIsOffline(t *testing.T) {
	store := New()
	rec := store.Get("ghost")

	if rec.Status != models.StatusOffline {
		t.Errorf("Expected offline, got %s", rec.Status)
	}
	if rec.Connections != 0 {
		t.Errorf("Expected 0 connections, got %d", rec.Connections)
	}
}

// TestConnectRestoresPreferredStatus verifies the 0->1 transition brings a
// user to their preferred status, defaulting to online.
func TestConnectRestoresPreferredStatus(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store, fired := newTestStore(now)

	store.OnConnectionChange("alice", 1)
	rec := store.Get("alice")
	if rec.Status != models.StatusOnline {
		t.Errorf("Expected online on first connect, got %s", rec.Status)
	}
	if len(*fired) != 1 {
		t.Fatalf("Expected 1 change event, got %d", len(*fired))
	}

	// A preference chosen while connected survives the disconnect.
	if _, err := store.SetStatus("alice", models.StatusBusy, nil); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	store.OnConnectionChange("alice", 0)
	store.OnConnectionChange("alice", 1)

	rec = store.Get("alice")
	if rec.Status != models.StatusBusy {
		t.Errorf("Expected busy restored on reconnect, got %s", rec.Status)
	}
	if rec.Preferred != models.StatusBusy {
		t.Errorf("Expected preferred busy, got %s", rec.Preferred)
	}
}

// TestDisconnectForcesOffline verifies the zero-connections invariant:
// effective status is offline exactly when no connections remain.
func TestDisconnectForcesOffline(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store, fired := newTestStore(now)

	store.OnConnectionChange("alice", 1)
	store.OnConnectionChange("alice", 2)
	*fired = nil

	// Dropping to one connection changes nothing visible.
	store.OnConnectionChange("alice", 1)
	if len(*fired) != 0 {
		t.Errorf("Expected no event while still connected, got %d", len(*fired))
	}

	store.OnConnectionChange("alice", 0)
	rec := store.Get("alice")
	if rec.Status != models.StatusOffline {
		t.Errorf("Expected offline after last disconnect, got %s", rec.Status)
	}
	if rec.LastSeenAt.IsZero() {
		t.Error("Expected last-seen stamped on disconnect")
	}
	if len(*fired) != 1 {
		t.Errorf("Expected exactly one offline event, got %d", len(*fired))
	}
}

// TestSetStatusWhileDisconnected verifies an offline user's explicit status
// choice only records the preference.
func TestSetStatusWhileDisconnected(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store, fired := newTestStore(now)

	rec, err := store.SetStatus("alice", models.StatusInvisible, nil)
	if err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if rec.Status != models.StatusOffline {
		t.Errorf("Expected effective status to stay offline, got %s", rec.Status)
	}
	if rec.Preferred != models.StatusInvisible {
		t.Errorf("Expected preference recorded, got %s", rec.Preferred)
	}
	if len(*fired) != 0 {
		t.Errorf("Expected no event for a disconnected preference change, got %d", len(*fired))
	}

	// The preference applies on the next connect.
	store.OnConnectionChange("alice", 1)
	if got := store.Get("alice").Status; got != models.StatusInvisible {
		t.Errorf("Expected invisible on connect, got %s", got)
	}
}

// TestSetStatusRejectsInvalid verifies validation of explicit changes
func TestSetStatusRejectsInvalid(t *testing.T) {
	store := New()

	if _, err := store.SetStatus("alice", models.Status("lurking"), nil); err == nil {
		t.Error("Expected error for unknown status")
	} else if appErr := errors.AsAppError(err); appErr.Code != errors.CodeInvalidStatus {
		t.Errorf("Expected INVALID_STATUS, got %s", appErr.Code)
	}

	// Offline cannot be chosen; it is derived from connections.
	if _, err := store.SetStatus("alice", models.StatusOffline, nil); err == nil {
		t.Error("Expected error for explicit offline")
	}
}

// TestSetStatusFiresOnlyOnChange verifies idempotent explicit changes
func TestSetStatusFiresOnlyOnChange(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store, fired := newTestStore(now)

	store.OnConnectionChange("alice", 1)
	*fired = nil

	if _, err := store.SetStatus("alice", models.StatusAway, nil); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if _, err := store.SetStatus("alice", models.StatusAway, nil); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if len(*fired) != 1 {
		t.Errorf("Expected one event for two identical changes, got %d", len(*fired))
	}
}

// TestSetStatusFiresOnMessageOnlyChange verifies a connected user updating
// just their activity message still reaches observers, since the message is
// part of what viewers see.
func TestSetStatusFiresOnMessageOnlyChange(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store, fired := newTestStore(now)

	store.OnConnectionChange("alice", 1)
	msg := "in a meeting"
	store.SetStatus("alice", models.StatusOnline, &msg)
	*fired = nil

	msg = "back at my desk"
	if _, err := store.SetStatus("alice", models.StatusOnline, &msg); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}
	if len(*fired) != 1 {
		t.Fatalf("Expected a change event for a message-only update, got %d", len(*fired))
	}
	if got := (*fired)[0].ActivityMessage; got != "back at my desk" {
		t.Errorf("Expected new message in event, got %q", got)
	}

	// Same status, same message: nothing new to announce.
	store.SetStatus("alice", models.StatusOnline, &msg)
	if len(*fired) != 1 {
		t.Errorf("Expected no event for an identical update, got %d", len(*fired))
	}

	// A disconnected user's message edit stays silent until reconnect.
	store.OnConnectionChange("alice", 0)
	*fired = nil
	idle := "afk"
	store.SetStatus("alice", models.StatusOnline, &idle)
	if len(*fired) != 0 {
		t.Errorf("Expected no event while disconnected, got %d", len(*fired))
	}
}

// TestActivityMessage verifies nil leaves the message alone and a pointer
// replaces it.
func TestActivityMessage(t *testing.T) {
	store, _ := newTestStore(time.Now())
	store.OnConnectionChange("alice", 1)

	msg := "in a meeting"
	store.SetStatus("alice", models.StatusBusy, &msg)
	if got := store.Get("alice").ActivityMessage; got != "in a meeting" {
		t.Errorf("Expected activity message set, got %q", got)
	}

	store.SetStatus("alice", models.StatusOnline, nil)
	if got := store.Get("alice").ActivityMessage; got != "in a meeting" {
		t.Errorf("Expected nil to leave message unchanged, got %q", got)
	}

	empty := ""
	store.SetStatus("alice", models.StatusOnline, &empty)
	if got := store.Get("alice").ActivityMessage; got != "" {
		t.Errorf("Expected empty pointer to clear message, got %q", got)
	}
}

// TestAutoAwayLifecycle verifies the mark/clear cycle and that a manual
// status chosen during auto-away wins.
func TestAutoAwayLifecycle(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store, fired := newTestStore(now)
	store.OnConnectionChange("alice", 1)
	*fired = nil

	if !store.MarkAutoAway("alice", now) {
		t.Fatal("Expected MarkAutoAway to apply to an online user")
	}
	rec := store.Get("alice")
	if rec.Status != models.StatusAway || !rec.AutoAway {
		t.Errorf("Expected auto-away state, got %+v", rec)
	}

	// Marking again is a no-op: the user is no longer online.
	if store.MarkAutoAway("alice", now) {
		t.Error("Expected MarkAutoAway to refuse a non-online user")
	}

	if !store.ClearAutoAway("alice") {
		t.Fatal("Expected ClearAutoAway to revert")
	}
	rec = store.Get("alice")
	if rec.Status != models.StatusOnline || rec.AutoAway {
		t.Errorf("Expected online restored, got %+v", rec)
	}
	if len(*fired) != 2 {
		t.Errorf("Expected away+online events, got %d", len(*fired))
	}
}

// TestClearAutoAwayRespectsManualChoice verifies that a user who explicitly
// picked a status during auto-away is not bounced back to online.
func TestClearAutoAwayRespectsManualChoice(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store, _ := newTestStore(now)
	store.OnConnectionChange("alice", 1)
	store.MarkAutoAway("alice", now)

	store.SetStatus("alice", models.StatusBusy, nil)

	if store.ClearAutoAway("alice") {
		t.Error("Expected no revert after a manual status change")
	}
	if got := store.Get("alice").Status; got != models.StatusBusy {
		t.Errorf("Expected busy preserved, got %s", got)
	}
}

// TestReconcileSelfHeals verifies drift correction in both directions
func TestReconcileSelfHeals(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store, fired := newTestStore(now)
	store.OnConnectionChange("alice", 2)
	*fired = nil

	// No drift: no error, no event.
	if err := store.Reconcile("alice", 2); err != nil {
		t.Errorf("Expected nil for matching counts, got %v", err)
	}

	// Registry says zero: force offline.
	err := store.Reconcile("alice", 0)
	if err == nil {
		t.Fatal("Expected drift error")
	}
	if appErr := errors.AsAppError(err); appErr.Code != errors.CodeInconsistentCount {
		t.Errorf("Expected INCONSISTENT_CONNECTION_COUNT, got %s", appErr.Code)
	}
	if got := store.Get("alice").Status; got != models.StatusOffline {
		t.Errorf("Expected offline after reconcile to 0, got %s", got)
	}

	// Registry says connected while store thought offline: restore.
	if err := store.Reconcile("alice", 1); err == nil {
		t.Fatal("Expected drift error")
	}
	if got := store.Get("alice").Status; got != models.StatusOnline {
		t.Errorf("Expected online after reconcile to 1, got %s", got)
	}
	if len(*fired) != 2 {
		t.Errorf("Expected 2 events from corrections, got %d", len(*fired))
	}
}

// TestGetMany verifies batch fetch with unknown users as offline
func TestGetMany(t *testing.T) {
	store, _ := newTestStore(time.Now())
	store.OnConnectionChange("alice", 1)

	records := store.GetMany([]string{"alice", "ghost", "alice"})
	if len(records) != 2 {
		t.Fatalf("Expected 2 unique records, got %d", len(records))
	}
	if records["alice"].Status != models.StatusOnline {
		t.Errorf("Expected alice online, got %s", records["alice"].Status)
	}
	if records["ghost"].Status != models.StatusOffline {
		t.Errorf("Expected ghost offline, got %s", records["ghost"].Status)
	}
}
