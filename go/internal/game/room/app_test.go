package room

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/waiting/go/internal/game/config"
	"github.com/mcdev12/waiting/go/internal/game/dwell"
	"github.com/mcdev12/waiting/go/internal/game/events"
	"github.com/mcdev12/waiting/go/internal/game/memstore"
	"github.com/mcdev12/waiting/go/internal/game/scheduler"
	"github.com/mcdev12/waiting/go/internal/models"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recordingPublisher) Publish(_ context.Context, event events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *recordingPublisher) byType(eventType string) []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.Event
	for _, e := range p.events {
		if e.EventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	store *memstore.Store
	clock *clockwork.FakeClock
	sched *scheduler.Scheduler
	pub   *recordingPublisher
	dwell *dwell.App
	rooms *App
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memstore.New()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	sched := scheduler.New(clock)
	t.Cleanup(sched.Stop)
	pub := &recordingPublisher{}
	cfg := config.DefaultGame()
	return &fixture{
		store: store,
		clock: clock,
		sched: sched,
		pub:   pub,
		dwell: dwell.NewApp(store, clock, cfg, pub),
		rooms: NewApp(store, clock, sched, cfg, pub),
	}
}

func (f *fixture) seat(t *testing.T, key, name string) {
	t.Helper()
	if _, err := f.store.UpsertSeatName(context.Background(), key, name, 5); err != nil {
		t.Fatalf("UpsertSeatName: %v", err)
	}
}

func (f *fixture) report(t *testing.T, room, key string, seconds float64) {
	t.Helper()
	if err := f.dwell.ReportDwell(context.Background(), room, key, seconds); err != nil {
		t.Fatalf("ReportDwell: %v", err)
	}
}

func (f *fixture) quit(t *testing.T, room, key string) {
	t.Helper()
	if err := f.rooms.Quit(context.Background(), room, key); err != nil {
		t.Fatalf("Quit: %v", err)
	}
}

func (f *fixture) list(t *testing.T, room, viewer string) *models.RoomView {
	t.Helper()
	view, err := f.rooms.ListRoom(context.Background(), room, viewer)
	if err != nil {
		t.Fatalf("ListRoom: %v", err)
	}
	return view
}

// advance moves the clock and waits for any deferred checks it released
func (f *fixture) advance(d time.Duration) {
	f.clock.Advance(d)
	f.sched.Wait()
}

func TestListRoomEmpty(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	view := f.list(t, "nowhere", "")

	want := &models.RoomView{Players: []models.Player{}}
	if diff := cmp.Diff(want, view); diff != "" {
		t.Errorf("ListRoom mismatch (-want +got):\n%s", diff)
	}
}

func TestListRoomSingleReport(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seat(t, "aaaa1111", "alice")

	f.report(t, "lobby", "aaaa1111", 3)

	view := f.list(t, "lobby", "aaaa1111")
	want := &models.RoomView{
		Players: []models.Player{{Name: "alice", Seconds: 3, Present: true, IsSelf: true}},
	}
	if diff := cmp.Diff(want, view); diff != "" {
		t.Errorf("ListRoom mismatch (-want +got):\n%s", diff)
	}
}

func TestListRoomSynthesizesViewer(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seat(t, "aaaa1111", "alice")
	f.seat(t, "bbbb2222", "bob")

	f.report(t, "lobby", "aaaa1111", 3)

	view := f.list(t, "lobby", "bbbb2222")
	want := []models.Player{
		{Name: "alice", Seconds: 3, Present: true},
		{Name: "bob", Seconds: 0, Present: true, IsSelf: true},
	}
	if diff := cmp.Diff(want, view.Players); diff != "" {
		t.Errorf("players mismatch (-want +got):\n%s", diff)
	}
}

func TestListRoomUnknownViewerNotSynthesized(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	view := f.list(t, "lobby", "ghost000")
	if len(view.Players) != 0 {
		t.Errorf("players = %+v, want none", view.Players)
	}
}

func TestListRoomSortsBySecondsDescending(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seat(t, "aaaa1111", "alice")
	f.seat(t, "bbbb2222", "bob")

	f.report(t, "lobby", "aaaa1111", 2)
	f.report(t, "lobby", "bbbb2222", 4)

	view := f.list(t, "lobby", "aaaa1111")
	want := []models.Player{
		{Name: "bob", Seconds: 4, Present: true},
		{Name: "alice", Seconds: 2, Present: true, IsSelf: true},
	}
	if diff := cmp.Diff(want, view.Players); diff != "" {
		t.Errorf("players mismatch (-want +got):\n%s", diff)
	}
}

func TestListRoomAbsentAfterSilence(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seat(t, "aaaa1111", "alice")
	f.seat(t, "bbbb2222", "bob")

	f.report(t, "lobby", "aaaa1111", 3)
	f.report(t, "lobby", "bbbb2222", 3)
	for i := 0; i < 3; i++ {
		f.advance(3 * time.Second)
		f.report(t, "lobby", "aaaa1111", 3)
	}

	view := f.list(t, "lobby", "aaaa1111")
	want := []models.Player{
		{Name: "alice", Seconds: 12, Present: true, IsSelf: true},
		{Name: "bob", Seconds: 3, Present: false},
	}
	if diff := cmp.Diff(want, view.Players); diff != "" {
		t.Errorf("players mismatch (-want +got):\n%s", diff)
	}
}

func TestQuitMarksAbsentThenGameOver(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seat(t, "aaaa1111", "alice")

	f.report(t, "lobby", "aaaa1111", 3)
	f.advance(time.Second)
	f.quit(t, "lobby", "aaaa1111")

	view := f.list(t, "lobby", "aaaa1111")
	if view.GameOver {
		t.Fatal("GameOver = true right after quit, want false")
	}
	if len(view.Players) != 1 || view.Players[0].Present {
		t.Fatalf("players = %+v, want alice absent", view.Players)
	}

	f.advance(5 * time.Second)

	view = f.list(t, "lobby", "aaaa1111")
	if !view.GameOver {
		t.Fatal("GameOver = false after grace, want true")
	}
	if view.GameOverAt == nil || !view.GameOverAt.Equal(f.clock.Now()) {
		t.Errorf("GameOverAt = %v, want %v", view.GameOverAt, f.clock.Now())
	}

	finished := f.pub.byType(events.TypeRoomFinished)
	if len(finished) != 1 {
		t.Fatalf("RoomFinished events = %d, want 1", len(finished))
	}
	var payload events.RoomFinishedPayload
	if err := json.Unmarshal(finished[0].Payload, &payload); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	if len(payload.Standings) != 1 || payload.Standings[0].Name != "alice" {
		t.Errorf("standings = %+v, want alice", payload.Standings)
	}
}

func TestReportAfterQuitCancelsGameOver(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seat(t, "aaaa1111", "alice")

	f.report(t, "lobby", "aaaa1111", 3)
	f.advance(time.Second)
	f.quit(t, "lobby", "aaaa1111")
	f.advance(2 * time.Second)
	f.report(t, "lobby", "aaaa1111", 2)
	f.advance(3 * time.Second)

	view := f.list(t, "lobby", "aaaa1111")
	if view.GameOver {
		t.Error("GameOver = true, want false after a report inside the grace window")
	}
	if n := len(f.pub.byType(events.TypeRoomFinished)); n != 0 {
		t.Errorf("RoomFinished events = %d, want 0", n)
	}
}

func TestQuitWhileOthersPresentKeepsRoomActive(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seat(t, "aaaa1111", "alice")
	f.seat(t, "bbbb2222", "bob")

	f.report(t, "lobby", "aaaa1111", 3)
	f.report(t, "lobby", "bbbb2222", 3)
	f.quit(t, "lobby", "aaaa1111")
	f.advance(3 * time.Second)
	f.report(t, "lobby", "bbbb2222", 3)
	f.advance(2 * time.Second)

	if view := f.list(t, "lobby", "bbbb2222"); view.GameOver {
		t.Error("GameOver = true while bob is present, want false")
	}
}

func TestNewGenerationAfterGameOver(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seat(t, "aaaa1111", "alice")
	f.seat(t, "bbbb2222", "bob")

	f.report(t, "lobby", "aaaa1111", 5)
	f.report(t, "lobby", "bbbb2222", 4)
	f.quit(t, "lobby", "aaaa1111")
	f.quit(t, "lobby", "bbbb2222")
	f.advance(5 * time.Second)

	if view := f.list(t, "lobby", "bbbb2222"); !view.GameOver {
		t.Fatal("GameOver = false, want true before new generation")
	}

	f.advance(time.Minute)
	f.report(t, "lobby", "bbbb2222", 1)

	view := f.list(t, "lobby", "bbbb2222")
	want := &models.RoomView{
		Players: []models.Player{{Name: "bob", Seconds: 1, Present: true, IsSelf: true}},
	}
	if diff := cmp.Diff(want, view); diff != "" {
		t.Errorf("ListRoom mismatch (-want +got):\n%s", diff)
	}
}

func TestQuitUnknownSeatIsNoop(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	f.quit(t, "lobby", "ghost000")

	if n := f.sched.Pending(); n != 0 {
		t.Errorf("Pending() = %d, want 0", n)
	}
}

func TestQuitIsIdempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seat(t, "aaaa1111", "alice")

	f.report(t, "lobby", "aaaa1111", 3)
	f.quit(t, "lobby", "aaaa1111")
	f.quit(t, "lobby", "aaaa1111")
	f.advance(5 * time.Second)
	f.quit(t, "lobby", "aaaa1111")
	f.advance(5 * time.Second)

	if n := len(f.pub.byType(events.TypeRoomFinished)); n != 1 {
		t.Errorf("RoomFinished events = %d, want 1", n)
	}
	if view := f.list(t, "lobby", "aaaa1111"); !view.GameOver {
		t.Error("GameOver = false, want true")
	}
}

func TestCheckGameOverStoresStandingsSnapshot(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.seat(t, "aaaa1111", "alice")

	f.report(t, "lobby", "aaaa1111", 4)
	f.advance(10 * time.Second)
	if err := f.rooms.CheckGameOver(context.Background(), "lobby"); err != nil {
		t.Fatalf("CheckGameOver: %v", err)
	}

	marker, err := f.store.GetFinishedMarker(context.Background(), "lobby")
	if err != nil {
		t.Fatalf("GetFinishedMarker: %v", err)
	}
	var standings []models.Standing
	if err := json.Unmarshal(marker.Standings, &standings); err != nil {
		t.Fatalf("unmarshal standings: %v", err)
	}
	if len(standings) != 1 || standings[0].SeatKey != "aaaa1111" || standings[0].Total != 4 {
		t.Errorf("standings = %+v, want alice with 4", standings)
	}
}
