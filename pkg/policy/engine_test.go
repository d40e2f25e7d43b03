package policy

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/silviutimaru/mivton-presence/pkg/models"
	"github.com/silviutimaru/mivton-presence/pkg/presence"
)

// fakeSettingsRepo is an in-memory SettingsRepository with error injection
type fakeSettingsRepo struct {
	settings     map[string]*models.VisibilitySettings
	restrictions map[string]*models.ContactRestriction
	exceptions   map[string][]models.DndException
	touched      []string
	err          error
}

func newFakeSettingsRepo() *fakeSettingsRepo {
	return &fakeSettingsRepo{
		settings:     make(map[string]*models.VisibilitySettings),
		restrictions: make(map[string]*models.ContactRestriction),
		exceptions:   make(map[string][]models.DndException),
	}
}

func (f *fakeSettingsRepo) GetSettings(ctx context.Context, userID string) (*models.VisibilitySettings, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.settings[userID], nil
}

func (f *fakeSettingsRepo) SaveSettings(ctx context.Context, s *models.VisibilitySettings) error {
	f.settings[s.UserID] = s
	return nil
}

func (f *fakeSettingsRepo) GetRestriction(ctx context.Context, ownerID, contactID string) (*models.ContactRestriction, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.restrictions[ownerID+"|"+contactID], nil
}

func (f *fakeSettingsRepo) ListRestrictions(ctx context.Context, ownerID string) ([]models.ContactRestriction, error) {
	return nil, f.err
}

func (f *fakeSettingsRepo) SaveRestriction(ctx context.Context, r *models.ContactRestriction) error {
	f.restrictions[r.OwnerID+"|"+r.ContactID] = r
	return nil
}

func (f *fakeSettingsRepo) DeleteRestriction(ctx context.Context, ownerID, contactID string) error {
	delete(f.restrictions, ownerID+"|"+contactID)
	return nil
}

func (f *fakeSettingsRepo) CreateDndException(ctx context.Context, e *models.DndException) error {
	f.exceptions[e.UserID] = append(f.exceptions[e.UserID], *e)
	return nil
}

func (f *fakeSettingsRepo) ListDndExceptions(ctx context.Context, userID string) ([]models.DndException, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.exceptions[userID], nil
}

func (f *fakeSettingsRepo) DeleteDndException(ctx context.Context, userID, exceptionID string) error {
	return nil
}

func (f *fakeSettingsRepo) TouchDndException(ctx context.Context, exceptionID string, at time.Time) error {
	f.touched = append(f.touched, exceptionID)
	return nil
}

// fakeRelations is an in-memory friendship/block graph
type fakeRelations struct {
	friends map[string][]string
	blocks  map[string]bool // "blocker|blockee"
	err     error
}

func newFakeRelations() *fakeRelations {
	return &fakeRelations{friends: make(map[string][]string), blocks: make(map[string]bool)}
}

func (f *fakeRelations) befriend(a, b string) {
	f.friends[a] = append(f.friends[a], b)
	f.friends[b] = append(f.friends[b], a)
}

func (f *fakeRelations) AreFriends(ctx context.Context, a, b string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	for _, id := range f.friends[a] {
		if id == b {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeRelations) IsBlocked(ctx context.Context, blocker, blockee string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.blocks[blocker+"|"+blockee], nil
}

func (f *fakeRelations) Friends(ctx context.Context, userID string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.friends[userID], nil
}

// fakeChats answers active-session lookups
type fakeChats struct {
	sessions map[string]bool // "a|b", stored both ways
	err      error
}

func newFakeChats() *fakeChats {
	return &fakeChats{sessions: make(map[string]bool)}
}

func (f *fakeChats) open(a, b string) {
	f.sessions[a+"|"+b] = true
	f.sessions[b+"|"+a] = true
}

func (f *fakeChats) HasActiveSession(ctx context.Context, a, b string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.sessions[a+"|"+b], nil
}

type engineFixture struct {
	engine    *Engine
	store     *presence.Store
	settings  *fakeSettingsRepo
	relations *fakeRelations
	chats     *fakeChats
	failures  *int
	now       time.Time
}

func newEngineFixture(t *testing.T) *engineFixture {
	t.Helper()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	store := presence.New(presence.WithClock(func() time.Time { return now }))
	settings := newFakeSettingsRepo()
	relations := newFakeRelations()
	chats := newFakeChats()
	failures := 0

	engine := New(store, settings, relations, chats,
		WithClock(func() time.Time { return now }),
		WithFailureHook(func(error) { failures++ }))

	return &engineFixture{
		engine:    engine,
		store:     store,
		settings:  settings,
		relations: relations,
		chats:     chats,
		failures:  &failures,
		now:       now,
	}
}

func (f *engineFixture) connect(userID string) {
	f.store.OnConnectionChange(userID, 1)
}

// TestSelfViewIsUnfiltered verifies a user always sees their own presence
func TestSelfViewIsUnfiltered(t *testing.T) {
	f := newEngineFixture(t)
	f.connect("alice")
	msg := "writing tests"
	f.store.SetStatus("alice", models.StatusBusy, &msg)

	profile := f.engine.Resolve(context.Background(), "alice", "alice")
	if profile.Status != models.StatusBusy {
		t.Errorf("Expected busy, got %s", profile.Status)
	}
	if profile.ActivityMessage != "writing tests" {
		t.Errorf("Expected own activity message visible, got %q", profile.ActivityMessage)
	}
	if !profile.CanMessage || !profile.CanSeeLastSeen {
		t.Error("Expected full self access")
	}
}

// TestBlockedViewerSeesOffline verifies blocking dominates everything else
func TestBlockedViewerSeesOffline(t *testing.T) {
	f := newEngineFixture(t)
	f.connect("alice")
	f.relations.befriend("alice", "bob")
	f.relations.blocks["alice|bob"] = true
	f.settings.SaveSettings(context.Background(), &models.VisibilitySettings{
		UserID: "alice", PrivacyMode: models.PrivacyEveryone,
		OnlineVisibility: models.AudienceEveryone, LastSeenVisibility: models.AudienceEveryone,
	})

	profile := f.engine.Resolve(context.Background(), "bob", "alice")
	if profile.Status != models.StatusOffline {
		t.Errorf("Expected offline for blocked viewer, got %s", profile.Status)
	}
	if profile.CanMessage {
		t.Error("Expected blocked viewer cannot message")
	}
	if profile.LastSeenAt != nil {
		t.Error("Expected no last-seen leak to blocked viewer")
	}
}

// TestInvisiblePresentsAsOffline verifies invisible is indistinguishable
// from offline even for friends.
func TestInvisiblePresentsAsOffline(t *testing.T) {
	f := newEngineFixture(t)
	f.connect("alice")
	f.store.SetStatus("alice", models.StatusInvisible, nil)
	f.relations.befriend("alice", "bob")

	profile := f.engine.Resolve(context.Background(), "bob", "alice")
	if profile.Status != models.StatusOffline {
		t.Errorf("Expected offline, got %s", profile.Status)
	}
	if profile.LastSeenAt != nil {
		t.Error("Expected no last-seen for invisible user")
	}
}

// TestPrivacyModes covers the five baseline visibility modes
func TestPrivacyModes(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		mode    models.PrivacyMode
		viewer  string
		friend  bool
		chat    bool
		allowed models.StringList
		visible bool
	}{
		{"everyone allows stranger", models.PrivacyEveryone, "bob", false, false, nil, true},
		{"everyone allows anonymous", models.PrivacyEveryone, "", false, false, nil, true},
		{"friends allows friend", models.PrivacyFriends, "bob", true, false, nil, true},
		{"friends hides from stranger", models.PrivacyFriends, "bob", false, false, nil, false},
		{"friends hides from anonymous", models.PrivacyFriends, "", false, false, nil, false},
		{"active chats with session", models.PrivacyActiveChats, "bob", true, true, nil, true},
		{"active chats without session", models.PrivacyActiveChats, "bob", true, false, nil, false},
		{"selected allows listed", models.PrivacySelected, "bob", true, false, models.StringList{"bob"}, true},
		{"selected hides unlisted", models.PrivacySelected, "bob", true, false, models.StringList{"carol"}, false},
		{"nobody hides friend", models.PrivacyNobody, "bob", true, false, nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newEngineFixture(t)
			f.connect("alice")
			if tt.friend {
				f.relations.befriend("alice", tt.viewer)
			}
			if tt.chat {
				f.chats.open("alice", tt.viewer)
			}
			f.settings.SaveSettings(ctx, &models.VisibilitySettings{
				UserID:           "alice",
				PrivacyMode:      tt.mode,
				AllowedContacts:  tt.allowed,
				OnlineVisibility: models.AudienceEveryone,
			})

			profile := f.engine.Resolve(ctx, tt.viewer, "alice")
			gotVisible := profile.Status == models.StatusOnline
			if gotVisible != tt.visible {
				t.Errorf("Expected visible=%v, got status %s", tt.visible, profile.Status)
			}
		})
	}
}

// TestBlockUnknownUsersGate verifies the stranger gate applies before any
// permissive mode.
func TestBlockUnknownUsersGate(t *testing.T) {
	f := newEngineFixture(t)
	f.connect("alice")
	f.settings.SaveSettings(context.Background(), &models.VisibilitySettings{
		UserID:            "alice",
		PrivacyMode:       models.PrivacyEveryone,
		BlockUnknownUsers: true,
		OnlineVisibility:  models.AudienceEveryone,
	})

	profile := f.engine.Resolve(context.Background(), "stranger", "alice")
	if profile.Status != models.StatusOffline {
		t.Errorf("Expected stranger gated to offline, got %s", profile.Status)
	}
}

// TestDefaultSettingsForUnknownUser verifies the friends-only default when
// a user never wrote settings.
func TestDefaultSettingsForUnknownUser(t *testing.T) {
	f := newEngineFixture(t)
	f.connect("alice")
	f.relations.befriend("alice", "bob")

	if got := f.engine.Resolve(context.Background(), "bob", "alice").Status; got != models.StatusOnline {
		t.Errorf("Expected friend to see online under defaults, got %s", got)
	}
	if got := f.engine.Resolve(context.Background(), "stranger", "alice").Status; got != models.StatusOffline {
		t.Errorf("Expected stranger to see offline under defaults, got %s", got)
	}
}

// TestFailClosedOnCollaboratorError verifies any lookup failure degrades to
// offline and reports through the failure hook.
func TestFailClosedOnCollaboratorError(t *testing.T) {
	f := newEngineFixture(t)
	f.connect("alice")
	f.relations.befriend("alice", "bob")
	f.settings.err = errors.New("settings store down")

	profile := f.engine.Resolve(context.Background(), "bob", "alice")
	if profile.Status != models.StatusOffline {
		t.Errorf("Expected fail-closed offline, got %s", profile.Status)
	}
	if profile.CanMessage {
		t.Error("Expected fail-closed cannot-message")
	}
	if *f.failures != 1 {
		t.Errorf("Expected 1 failure report, got %d", *f.failures)
	}

	// Relation failures fail closed the same way.
	f.settings.err = nil
	f.relations.err = errors.New("graph down")
	if got := f.engine.Resolve(context.Background(), "bob", "alice").Status; got != models.StatusOffline {
		t.Errorf("Expected fail-closed offline on relation error, got %s", got)
	}
}

// TestRestrictionHidesOnline verifies a per-contact restriction narrows an
// otherwise-visible subject, keeping its own messaging permission.
func TestRestrictionHidesOnline(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	f.connect("alice")
	f.relations.befriend("alice", "bob")
	f.settings.SaveRestriction(ctx, &models.ContactRestriction{
		OwnerID: "alice", ContactID: "bob",
		CanSeeOnline: false, CanSendMessages: true,
	})

	profile := f.engine.Resolve(ctx, "bob", "alice")
	if profile.Status != models.StatusOffline {
		t.Errorf("Expected restricted viewer to see offline, got %s", profile.Status)
	}
	if !profile.CanMessage {
		t.Error("Expected restriction's messaging permission to survive")
	}

	// Other friends are unaffected.
	f.relations.befriend("alice", "carol")
	if got := f.engine.Resolve(ctx, "carol", "alice").Status; got != models.StatusOnline {
		t.Errorf("Expected unrestricted friend to see online, got %s", got)
	}
}

// TestExpiredRestrictionIgnored verifies temporary restrictions lapse
func TestExpiredRestrictionIgnored(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	f.connect("alice")
	f.relations.befriend("alice", "bob")
	past := f.now.Add(-time.Hour)
	f.settings.SaveRestriction(ctx, &models.ContactRestriction{
		OwnerID: "alice", ContactID: "bob",
		CanSeeOnline: false, ExpiresAt: &past,
	})

	if got := f.engine.Resolve(ctx, "bob", "alice").Status; got != models.StatusOnline {
		t.Errorf("Expected expired restriction ignored, got %s", got)
	}
}

// TestActivityMessageVisibility verifies activity is friend-scoped
func TestActivityMessageVisibility(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	f.connect("alice")
	msg := "reading"
	f.store.SetStatus("alice", models.StatusOnline, &msg)
	f.relations.befriend("alice", "bob")
	f.settings.SaveSettings(ctx, &models.VisibilitySettings{
		UserID:                "alice",
		PrivacyMode:           models.PrivacyEveryone,
		ShowActivityToFriends: true,
		OnlineVisibility:      models.AudienceEveryone,
	})

	if got := f.engine.Resolve(ctx, "bob", "alice").ActivityMessage; got != "reading" {
		t.Errorf("Expected friend to see activity, got %q", got)
	}
	if got := f.engine.Resolve(ctx, "stranger", "alice").ActivityMessage; got != "" {
		t.Errorf("Expected stranger to see no activity, got %q", got)
	}
}

// TestBusyBlocksMessaging verifies DND semantics without exceptions
func TestBusyBlocksMessaging(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	f.connect("alice")
	msg := "deep work"
	f.store.SetStatus("alice", models.StatusBusy, &msg)
	f.relations.befriend("alice", "bob")

	profile := f.engine.Resolve(ctx, "bob", "alice")
	if profile.Status != models.StatusBusy {
		t.Errorf("Expected busy visible, got %s", profile.Status)
	}
	if profile.CanMessage {
		t.Error("Expected busy to block messaging")
	}
	if profile.ActivityMessage != "" {
		t.Errorf("Expected busy to suppress activity, got %q", profile.ActivityMessage)
	}
}

// TestDndUrgentContactException verifies a named contact breaks through
// busy, and that the breakthrough is counted.
func TestDndUrgentContactException(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	f.connect("alice")
	f.store.SetStatus("alice", models.StatusBusy, nil)
	f.relations.befriend("alice", "bob")
	f.relations.befriend("alice", "carol")
	f.settings.CreateDndException(ctx, &models.DndException{
		ID: "exc-1", UserID: "alice",
		Kind: models.DndUrgentContact, ContactID: "bob", Active: true,
	})

	if !f.engine.Resolve(ctx, "bob", "alice").CanMessage {
		t.Error("Expected urgent contact to break through busy")
	}
	if f.engine.Resolve(ctx, "carol", "alice").CanMessage {
		t.Error("Expected unlisted friend still blocked")
	}
	if len(f.settings.touched) != 1 || f.settings.touched[0] != "exc-1" {
		t.Errorf("Expected breakthrough counted once, got %v", f.settings.touched)
	}
}

// TestDndExceptionRequiresOverrideAllowed verifies the owner's master switch
func TestDndExceptionRequiresOverrideAllowed(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	f.connect("alice")
	f.store.SetStatus("alice", models.StatusBusy, nil)
	f.relations.befriend("alice", "bob")
	settings := models.DefaultVisibilitySettings("alice")
	settings.AllowUrgentOverride = false
	f.settings.SaveSettings(ctx, settings)
	f.settings.CreateDndException(ctx, &models.DndException{
		ID: "exc-1", UserID: "alice",
		Kind: models.DndUrgentContact, ContactID: "bob", Active: true,
	})

	if f.engine.Resolve(ctx, "bob", "alice").CanMessage {
		t.Error("Expected disabled override switch to block all exceptions")
	}
}

// TestDndActiveChatException verifies the open-conversation breakthrough
func TestDndActiveChatException(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	f.connect("alice")
	f.store.SetStatus("alice", models.StatusBusy, nil)
	f.relations.befriend("alice", "bob")
	f.chats.open("alice", "bob")
	f.settings.CreateDndException(ctx, &models.DndException{
		ID: "exc-1", UserID: "alice",
		Kind: models.DndActiveChat, Active: true,
	})

	if !f.engine.Resolve(ctx, "bob", "alice").CanMessage {
		t.Error("Expected active chat partner to break through busy")
	}
}

// TestDndTimeBasedException verifies the clock-window breakthrough
func TestDndTimeBasedException(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	f.connect("alice")
	f.store.SetStatus("alice", models.StatusBusy, nil)
	f.relations.befriend("alice", "bob")
	f.settings.CreateDndException(ctx, &models.DndException{
		ID: "exc-1", UserID: "alice",
		Kind: models.DndTimeBased, Active: true,
		StartClock: "11:00", EndClock: "13:00", // fixture clock is 12:00
	})

	if !f.engine.Resolve(ctx, "bob", "alice").CanMessage {
		t.Error("Expected time window to allow messaging")
	}
}

// TestQuietHoursPresentAsBusy verifies the quiet-hours presentation and the
// per-contact override.
func TestQuietHoursPresentAsBusy(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	f.connect("alice")
	f.relations.befriend("alice", "bob")
	f.relations.befriend("alice", "carol")
	settings := models.DefaultVisibilitySettings("alice")
	settings.QuietHoursEnabled = true
	settings.QuietHoursStart = "11:00"
	settings.QuietHoursEnd = "13:00"
	f.settings.SaveSettings(ctx, settings)
	f.settings.SaveRestriction(ctx, &models.ContactRestriction{
		OwnerID: "alice", ContactID: "carol",
		CanSeeOnline: true, CanSeeActivity: true, CanSendMessages: true,
		CanSeeLastSeen: true, OverrideQuietHours: true,
	})

	bobView := f.engine.Resolve(ctx, "bob", "alice")
	if bobView.Status != models.StatusBusy || bobView.CanMessage {
		t.Errorf("Expected quiet hours to present busy/unreachable, got %+v", bobView)
	}

	carolView := f.engine.Resolve(ctx, "carol", "alice")
	if carolView.Status != models.StatusOnline || !carolView.CanMessage {
		t.Errorf("Expected quiet-hours override for carol, got %+v", carolView)
	}
}

// TestLastSeenAudience verifies last-seen exposure follows its audience
func TestLastSeenAudience(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	f.connect("alice")
	f.relations.befriend("alice", "bob")

	settings := models.DefaultVisibilitySettings("alice")
	settings.PrivacyMode = models.PrivacyEveryone
	settings.OnlineVisibility = models.AudienceEveryone
	settings.LastSeenVisibility = models.AudienceFriends
	f.settings.SaveSettings(ctx, settings)

	friendView := f.engine.Resolve(ctx, "bob", "alice")
	if !friendView.CanSeeLastSeen || friendView.LastSeenAt == nil {
		t.Error("Expected friend to see last-seen")
	}

	strangerView := f.engine.Resolve(ctx, "stranger", "alice")
	if strangerView.CanSeeLastSeen || strangerView.LastSeenAt != nil {
		t.Error("Expected stranger not to see last-seen")
	}

	settings.LastSeenVisibility = models.AudienceNobody
	f.settings.SaveSettings(ctx, settings)
	if f.engine.Resolve(ctx, "bob", "alice").CanSeeLastSeen {
		t.Error("Expected nobody audience to hide last-seen from friends too")
	}
}

// TestMatchKeyword verifies keyword breakthrough matching for the message
// delivery path.
func TestMatchKeyword(t *testing.T) {
	ctx := context.Background()
	f := newEngineFixture(t)
	f.settings.CreateDndException(ctx, &models.DndException{
		ID: "exc-1", UserID: "alice",
		Kind: models.DndKeywordOverride, Keyword: "urgent", Active: true,
	})

	if !f.engine.MatchKeyword(ctx, "alice", "This is URGENT, call me") {
		t.Error("Expected case-insensitive keyword match")
	}
	if f.engine.MatchKeyword(ctx, "alice", "just saying hi") {
		t.Error("Expected no match without the keyword")
	}
	if len(f.settings.touched) != 1 {
		t.Errorf("Expected one touch for the matched keyword, got %v", f.settings.touched)
	}
}

// TestResolveRandomizedNeverLeaks hammers Resolve with randomized settings,
// relations and restrictions and checks the guarantees that must hold for
// every combination: a blocked or nobody-mode viewer and an invisible
// subject always resolve to plain offline, and activity messages never
// reach non-friends. The seed is fixed so a failure reproduces.
func TestResolveRandomizedNeverLeaks(t *testing.T) {
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	statuses := []models.Status{
		models.StatusOnline, models.StatusAway, models.StatusBusy, models.StatusInvisible,
	}
	modes := []models.PrivacyMode{
		models.PrivacyEveryone, models.PrivacyFriends, models.PrivacyActiveChats,
		models.PrivacySelected, models.PrivacyNobody,
	}
	audiences := []models.Audience{
		models.AudienceEveryone, models.AudienceFriends, models.AudienceNobody,
	}
	coin := func() bool { return rng.Intn(2) == 0 }

	for i := 0; i < 300; i++ {
		f := newEngineFixture(t)
		f.connect("subject")

		status := statuses[rng.Intn(len(statuses))]
		msg := ""
		if coin() {
			msg = "around"
		}
		if _, err := f.store.SetStatus("subject", status, &msg); err != nil {
			t.Fatalf("trial %d: SetStatus failed: %v", i, err)
		}

		settings := models.DefaultVisibilitySettings("subject")
		settings.PrivacyMode = modes[rng.Intn(len(modes))]
		settings.OnlineVisibility = audiences[rng.Intn(len(audiences))]
		settings.LastSeenVisibility = audiences[rng.Intn(len(audiences))]
		settings.ShowActivityToFriends = coin()
		settings.BlockUnknownUsers = coin()
		settings.AllowUrgentOverride = coin()
		if coin() {
			settings.AllowedContacts = models.StringList{"viewer"}
		}
		f.settings.SaveSettings(ctx, settings)

		friends := coin()
		if friends {
			f.relations.befriend("subject", "viewer")
		}
		blocked := rng.Intn(4) == 0
		if blocked {
			f.relations.blocks["subject|viewer"] = true
		}
		if rng.Intn(3) == 0 {
			f.settings.SaveRestriction(ctx, &models.ContactRestriction{
				OwnerID: "subject", ContactID: "viewer",
				CanSeeOnline:    coin(),
				CanSeeActivity:  coin(),
				CanSendMessages: coin(),
				CanSeeLastSeen:  coin(),
			})
		}

		profile := f.engine.Resolve(ctx, "viewer", "subject")

		if blocked {
			if profile.Status != models.StatusOffline || profile.CanMessage ||
				profile.ActivityMessage != "" || profile.LastSeenAt != nil {
				t.Fatalf("trial %d: blocked viewer leaked %+v", i, profile)
			}
			continue
		}
		if status == models.StatusInvisible &&
			(profile.Status != models.StatusOffline || profile.ActivityMessage != "") {
			t.Fatalf("trial %d: invisible subject leaked %+v", i, profile)
		}
		if settings.PrivacyMode == models.PrivacyNobody && profile.Status != models.StatusOffline {
			t.Fatalf("trial %d: nobody mode leaked %+v", i, profile)
		}
		if !friends && profile.ActivityMessage != "" {
			t.Fatalf("trial %d: activity message leaked to non-friend: %+v", i, profile)
		}
	}
}
