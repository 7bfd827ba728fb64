package reconcile

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/gamestatushq/statusbot/internal/chat"
	"github.com/gamestatushq/statusbot/internal/store"
	"github.com/gamestatushq/statusbot/pkg/types"
)

// stubStore keeps monitors in a slice so tests control cycle ordering.
type stubStore struct {
	monitors []store.Monitor
	upserts  []store.Monitor
	listErr  error
}

func (s *stubStore) Upsert(ctx context.Context, m store.Monitor) error {
	s.upserts = append(s.upserts, m)
	for i, existing := range s.monitors {
		if existing.ID == m.ID && existing.OwningGroupID == m.OwningGroupID {
			s.monitors[i] = m
			return nil
		}
	}
	s.monitors = append(s.monitors, m)
	return nil
}

func (s *stubStore) Remove(ctx context.Context, id, owningGroupID string) (bool, error) {
	for i, m := range s.monitors {
		if m.ID == id && m.OwningGroupID == owningGroupID {
			s.monitors = append(s.monitors[:i], s.monitors[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *stubStore) List(ctx context.Context, owningGroupID string) ([]store.Monitor, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make([]store.Monitor, len(s.monitors))
	copy(out, s.monitors)
	return out, nil
}

func (s *stubStore) Close() error { return nil }

func (s *stubStore) find(t *testing.T, id, group string) store.Monitor {
	t.Helper()
	for _, m := range s.monitors {
		if m.ID == id && m.OwningGroupID == group {
			return m
		}
	}
	t.Fatalf("monitor %s/%s not found in store", group, id)
	return store.Monitor{}
}

// stubFetcher serves canned results per host and can fail or panic.
type stubFetcher struct {
	statuses map[string]types.ServerStatus
	failing  map[string]error
	panics   map[string]bool
	calls    int
}

func (f *stubFetcher) ServerInfo(ctx context.Context, host string, port int) (types.ServerStatus, error) {
	f.calls++
	if f.panics[host] {
		panic("fetcher exploded for " + host)
	}
	if err, ok := f.failing[host]; ok {
		return types.ServerStatus{}, err
	}
	status, ok := f.statuses[host]
	if !ok {
		return types.ServerStatus{}, fmt.Errorf("unknown host %s", host)
	}
	return status, nil
}

func (f *stubFetcher) PlayerList(ctx context.Context, host string, port int) ([]types.Player, error) {
	if err, ok := f.failing[host]; ok {
		return nil, err
	}
	return nil, nil
}

func (f *stubFetcher) Rules(ctx context.Context, host string, port int) (types.Rules, error) {
	if err, ok := f.failing[host]; ok {
		return nil, err
	}
	return nil, nil
}

// stubChat records message traffic and simulates remote deletions.
type stubChat struct {
	channels    map[string]chat.Channel
	nextID      int
	messages    map[string]string // messageID -> channelID
	creates     []string          // channel ids in create order
	edits       []string          // message ids in edit order
	editErr     error
	resolveErr  error
	createErr   error
}

func newStubChat(channelIDs ...string) *stubChat {
	c := &stubChat{
		channels: map[string]chat.Channel{},
		messages: map[string]string{},
	}
	for _, id := range channelIDs {
		c.channels[id] = chat.Channel{ID: id, Postable: true}
	}
	return c
}

func (c *stubChat) ResolveChannel(ctx context.Context, channelID string) (chat.Channel, error) {
	if c.resolveErr != nil {
		return chat.Channel{}, c.resolveErr
	}
	ch, ok := c.channels[channelID]
	if !ok {
		return chat.Channel{}, fmt.Errorf("resolve channel %s: %w", channelID, chat.ErrNotFound)
	}
	return ch, nil
}

func (c *stubChat) GetMessage(ctx context.Context, channelID, messageID string) (chat.Message, error) {
	if _, ok := c.messages[messageID]; !ok {
		return chat.Message{}, fmt.Errorf("get message %s: %w", messageID, chat.ErrNotFound)
	}
	return chat.Message{ID: messageID, ChannelID: channelID}, nil
}

func (c *stubChat) CreateMessage(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) (string, error) {
	if c.createErr != nil {
		return "", c.createErr
	}
	c.nextID++
	id := fmt.Sprintf("msg-%d", c.nextID)
	c.messages[id] = channelID
	c.creates = append(c.creates, channelID)
	return id, nil
}

func (c *stubChat) EditMessage(ctx context.Context, channelID, messageID string, embed *discordgo.MessageEmbed) error {
	if c.editErr != nil {
		return c.editErr
	}
	if _, ok := c.messages[messageID]; !ok {
		return fmt.Errorf("edit message %s: %w", messageID, chat.ErrNotFound)
	}
	c.edits = append(c.edits, messageID)
	return nil
}

func newTestLoop(s store.Store, f *stubFetcher, c *stubChat) *Loop {
	return New(Config{}, Dependencies{
		Store:   s,
		Fetcher: f,
		Chat:    c,
	}, WithNow(func() time.Time { return time.Unix(1730000000, 0).UTC() }))
}

func TestFirstCycleCreatesThenSecondEdits(t *testing.T) {
	ctx := context.Background()
	st := &stubStore{monitors: []store.Monitor{{
		ID: "m1", OwningGroupID: "g1", ChannelID: "c1",
		HostName: "play.example.com", QueryPort: 9876,
	}}}
	fetcher := &stubFetcher{statuses: map[string]types.ServerStatus{
		"play.example.com": {Name: "EU #1", Players: 3, MaxPlayers: 40},
	}}
	chatClient := newStubChat("c1")

	loop := newTestLoop(st, fetcher, chatClient)

	loop.runCycle(ctx)

	if len(chatClient.creates) != 1 || chatClient.creates[0] != "c1" {
		t.Fatalf("expected one create in c1, got %v", chatClient.creates)
	}
	stored := st.find(t, "m1", "g1")
	if stored.CurrentMessageID != "msg-1" {
		t.Fatalf("expected stored message id msg-1, got %q", stored.CurrentMessageID)
	}

	loop.runCycle(ctx)

	if len(chatClient.creates) != 1 {
		t.Fatalf("second cycle must not create again, got %v", chatClient.creates)
	}
	if len(chatClient.edits) != 1 || chatClient.edits[0] != "msg-1" {
		t.Fatalf("expected one edit of msg-1, got %v", chatClient.edits)
	}
	if st.find(t, "m1", "g1").CurrentMessageID != "msg-1" {
		t.Fatalf("stored id must be unchanged after edit")
	}
}

func TestDeletedMessageIsRecreatedNextCycle(t *testing.T) {
	ctx := context.Background()
	st := &stubStore{monitors: []store.Monitor{{
		ID: "m1", OwningGroupID: "g1", ChannelID: "c1",
		HostName: "play.example.com", QueryPort: 9876,
		CurrentMessageID: "msg-deleted",
	}}}
	fetcher := &stubFetcher{statuses: map[string]types.ServerStatus{
		"play.example.com": {Name: "EU #1"},
	}}
	chatClient := newStubChat("c1") // msg-deleted is not in the message map

	loop := newTestLoop(st, fetcher, chatClient)

	loop.runCycle(ctx)

	if len(chatClient.creates) != 0 {
		t.Fatalf("no create may happen in the cycle that detects the deletion")
	}
	stored := st.find(t, "m1", "g1")
	if stored.CurrentMessageID != "" {
		t.Fatalf("expected cleared message id, got %q", stored.CurrentMessageID)
	}
	if len(st.upserts) != 1 {
		t.Fatalf("cleared id must be persisted immediately, got %d upserts", len(st.upserts))
	}

	loop.runCycle(ctx)

	if len(chatClient.creates) != 1 {
		t.Fatalf("expected the create on the next cycle, got %v", chatClient.creates)
	}
	if st.find(t, "m1", "g1").CurrentMessageID != "msg-1" {
		t.Fatalf("expected new message id persisted")
	}
}

func TestFetchFailureSkipsWithoutMutation(t *testing.T) {
	ctx := context.Background()
	st := &stubStore{monitors: []store.Monitor{{
		ID: "m1", OwningGroupID: "g1", ChannelID: "c1",
		HostName: "down.example.com", QueryPort: 9876,
		CurrentMessageID: "msg-live",
	}}}
	fetcher := &stubFetcher{failing: map[string]error{
		"down.example.com": errors.New("i/o timeout"),
	}}
	chatClient := newStubChat("c1")
	chatClient.messages["msg-live"] = "c1"

	loop := newTestLoop(st, fetcher, chatClient)
	loop.runCycle(ctx)

	if len(st.upserts) != 0 {
		t.Fatalf("fetch failure must not mutate stored state, got %v", st.upserts)
	}
	if len(chatClient.creates) != 0 || len(chatClient.edits) != 0 {
		t.Fatalf("fetch failure must not touch messages")
	}
}

func TestUnresolvableChannelSkips(t *testing.T) {
	ctx := context.Background()
	st := &stubStore{monitors: []store.Monitor{{
		ID: "m1", OwningGroupID: "g1", ChannelID: "gone",
		HostName: "play.example.com", QueryPort: 9876,
	}}}
	fetcher := &stubFetcher{statuses: map[string]types.ServerStatus{
		"play.example.com": {Name: "EU #1"},
	}}
	chatClient := newStubChat() // no channels resolve

	loop := newTestLoop(st, fetcher, chatClient)
	loop.runCycle(ctx)

	if fetcher.calls != 0 {
		t.Fatalf("fetch must not run for an unresolvable channel")
	}
	if len(st.upserts) != 0 {
		t.Fatalf("skip must not mutate stored state")
	}
}

func TestNonPostableChannelSkips(t *testing.T) {
	ctx := context.Background()
	st := &stubStore{monitors: []store.Monitor{{
		ID: "m1", OwningGroupID: "g1", ChannelID: "voice",
		HostName: "play.example.com", QueryPort: 9876,
	}}}
	fetcher := &stubFetcher{statuses: map[string]types.ServerStatus{
		"play.example.com": {Name: "EU #1"},
	}}
	chatClient := newStubChat()
	chatClient.channels["voice"] = chat.Channel{ID: "voice", Postable: false}

	loop := newTestLoop(st, fetcher, chatClient)
	loop.runCycle(ctx)

	if fetcher.calls != 0 || len(chatClient.creates) != 0 {
		t.Fatalf("non-postable channel must be skipped")
	}
}

func TestOneMonitorFailureDoesNotAffectOthers(t *testing.T) {
	ctx := context.Background()
	st := &stubStore{monitors: []store.Monitor{
		{ID: "a", OwningGroupID: "g1", ChannelID: "c1", HostName: "down.example.com", QueryPort: 1},
		{ID: "b", OwningGroupID: "g1", ChannelID: "c2", HostName: "up.example.com", QueryPort: 2},
	}}
	fetcher := &stubFetcher{
		statuses: map[string]types.ServerStatus{"up.example.com": {Name: "OK"}},
		failing:  map[string]error{"down.example.com": errors.New("timeout")},
	}
	chatClient := newStubChat("c1", "c2")

	loop := newTestLoop(st, fetcher, chatClient)
	loop.runCycle(ctx)

	if len(chatClient.creates) != 1 || chatClient.creates[0] != "c2" {
		t.Fatalf("expected monitor b to be reconciled despite a's failure, got %v", chatClient.creates)
	}
	if st.find(t, "b", "g1").CurrentMessageID == "" {
		t.Fatalf("expected b's message id to be persisted")
	}
	if st.find(t, "a", "g1").CurrentMessageID != "" {
		t.Fatalf("a must stay untouched")
	}
}

func TestPanicInCycleDoesNotStopNextCycle(t *testing.T) {
	ctx := context.Background()
	st := &stubStore{monitors: []store.Monitor{{
		ID: "m1", OwningGroupID: "g1", ChannelID: "c1",
		HostName: "play.example.com", QueryPort: 9876,
	}}}
	fetcher := &stubFetcher{
		statuses: map[string]types.ServerStatus{"play.example.com": {Name: "EU #1"}},
		panics:   map[string]bool{"play.example.com": true},
	}
	chatClient := newStubChat("c1")

	var outcomes []error
	loop := New(Config{}, Dependencies{
		Store:   st,
		Fetcher: fetcher,
		Chat:    chatClient,
		Observe: func(_ time.Time, err error) { outcomes = append(outcomes, err) },
	})

	loop.runCycle(ctx)

	if len(outcomes) != 1 || outcomes[0] == nil {
		t.Fatalf("expected the aborted cycle to be observed as a failure, got %v", outcomes)
	}

	fetcher.panics = nil
	loop.runCycle(ctx)

	if len(chatClient.creates) != 1 {
		t.Fatalf("expected the next cycle to reconcile normally, got %v", chatClient.creates)
	}
	if len(outcomes) != 2 || outcomes[1] != nil {
		t.Fatalf("expected the second cycle to succeed, got %v", outcomes)
	}
}

func TestListFailureCountsAsCycleFailure(t *testing.T) {
	ctx := context.Background()
	st := &stubStore{listErr: errors.New("db locked")}

	var outcome error
	observed := false
	loop := New(Config{}, Dependencies{
		Store:   st,
		Fetcher: &stubFetcher{},
		Chat:    newStubChat(),
		Observe: func(_ time.Time, err error) { observed = true; outcome = err },
	})

	loop.runCycle(ctx)

	if !observed || outcome == nil {
		t.Fatalf("expected list failure to be observed, got observed=%t err=%v", observed, outcome)
	}
}

func TestRunStopsOnCancellation(t *testing.T) {
	st := &stubStore{}
	loop := New(Config{Interval: 10 * time.Millisecond}, Dependencies{
		Store:   st,
		Fetcher: &stubFetcher{},
		Chat:    newStubChat(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- loop.Run(ctx) }()

	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Run did not stop after cancellation")
	}
}

func TestRunRequiresCollaborators(t *testing.T) {
	loop := New(Config{}, Dependencies{})
	if err := loop.Run(context.Background()); err == nil {
		t.Fatalf("expected error when collaborators are missing")
	}
}
