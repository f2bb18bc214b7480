package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/waiting/go/internal/game/config"
	"github.com/mcdev12/waiting/go/internal/game/dwell"
	"github.com/mcdev12/waiting/go/internal/game/events"
	"github.com/mcdev12/waiting/go/internal/game/memstore"
	"github.com/mcdev12/waiting/go/internal/game/room"
	"github.com/mcdev12/waiting/go/internal/game/scheduler"
	"github.com/mcdev12/waiting/go/internal/game/seat"
	"github.com/mcdev12/waiting/go/internal/models"
)

type testServer struct {
	mux     *http.ServeMux
	clock   *clockwork.FakeClock
	sched   *scheduler.Scheduler
	store   *memstore.Store
	watcher *RoomWatcher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	store := memstore.New()
	clock := clockwork.NewFakeClockAt(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	sched := scheduler.New(clock)
	t.Cleanup(sched.Stop)
	cfg := config.DefaultGame()
	pub := events.NewLogPublisher()

	rooms := room.NewApp(store, clock, sched, cfg, pub)
	watcher := NewRoomWatcher(rooms, clock, cfg.UpdateInterval, cfg.MaxRoomLen, DefaultWatchConfig())
	t.Cleanup(watcher.Close)
	svc := NewService(
		seat.NewApp(store, cfg),
		dwell.NewApp(store, clock, cfg, pub),
		rooms,
		cfg,
		watcher,
	)

	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)
	return &testServer{mux: mux, clock: clock, sched: sched, store: store, watcher: watcher}
}

func (s *testServer) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) newSeat(t *testing.T, name string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/newSeat", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("newSeat status = %d, body %s", rec.Code, rec.Body)
	}
	var resp seatKeyResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode newSeat: %v", err)
	}
	rec = s.do(t, http.MethodPost, "/api/name", `{"seatKey":"`+resp.SeatKey+`","name":"`+name+`"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("name status = %d, body %s", rec.Code, rec.Body)
	}
	return resp.SeatKey
}

func decodeView(t *testing.T, rec *httptest.ResponseRecorder) models.RoomView {
	t.Helper()
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
	}
	var view models.RoomView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode room: %v", err)
	}
	return view
}

func TestGameFlow(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	alice := s.newSeat(t, "alice")
	bob := s.newSeat(t, "bob")

	for _, body := range []string{
		`{"room":"lobby","seatKey":"` + alice + `","seconds":3}`,
		`{"room":"lobby","seatKey":"` + bob + `","seconds":2}`,
	} {
		if rec := s.do(t, http.MethodPost, "/api/dwell", body); rec.Code != http.StatusOK {
			t.Fatalf("dwell status = %d, body %s", rec.Code, rec.Body)
		}
	}

	view := decodeView(t, s.do(t, http.MethodGet, "/api/room?room=lobby&seatKey="+bob, ""))
	want := models.RoomView{Players: []models.Player{
		{Name: "alice", Seconds: 3, Present: true},
		{Name: "bob", Seconds: 2, Present: true, IsSelf: true},
	}}
	if diff := cmp.Diff(want, view); diff != "" {
		t.Errorf("room mismatch (-want +got):\n%s", diff)
	}

	for _, key := range []string{alice, bob} {
		if rec := s.do(t, http.MethodPost, "/api/quit", `{"room":"lobby","seatKey":"`+key+`"}`); rec.Code != http.StatusOK {
			t.Fatalf("quit status = %d, body %s", rec.Code, rec.Body)
		}
	}
	s.clock.Advance(5 * time.Second)
	s.sched.Wait()

	view = decodeView(t, s.do(t, http.MethodGet, "/api/room?room=lobby&seatKey="+bob, ""))
	if !view.GameOver || view.GameOverAt == nil {
		t.Errorf("view = %+v, want game over with timestamp", view)
	}
}

func TestRoomResponseWireFormat(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	alice := s.newSeat(t, "alice")

	rec := s.do(t, http.MethodGet, "/api/room?room=lobby&seatKey="+alice, "")
	var raw map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := raw["gameOver"]; !ok {
		t.Errorf("response %s lacks gameOver", rec.Body)
	}
	if _, ok := raw["gameOverWhen"]; ok {
		t.Errorf("response %s has gameOverWhen for an active room", rec.Body)
	}
	players, _ := raw["players"].([]any)
	if len(players) != 1 {
		t.Fatalf("players = %v, want the synthesized viewer", raw["players"])
	}
	p := players[0].(map[string]any)
	for _, field := range []string{"name", "seconds", "present", "isSelf"} {
		if _, ok := p[field]; !ok {
			t.Errorf("player %v lacks %q", p, field)
		}
	}
}

func TestRoomNameIsTruncated(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	alice := s.newSeat(t, "alice")
	long := strings.Repeat("r", 40)

	rec := s.do(t, http.MethodPost, "/api/dwell", `{"room":"`+long+`","seatKey":"`+alice+`","seconds":1}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("dwell status = %d", rec.Code)
	}

	standings, err := s.store.ListStandings(context.Background(), long[:32])
	if err != nil {
		t.Fatalf("ListStandings: %v", err)
	}
	if len(standings) != 1 {
		t.Errorf("standings in truncated room = %d, want 1", len(standings))
	}
}

func TestUnknownSeatDwellSucceeds(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/dwell", `{"room":"lobby","seatKey":"ghost000","seconds":3}`)
	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestMalformedJSON(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	for _, path := range []string{"/api/name", "/api/dwell", "/api/quit"} {
		rec := s.do(t, http.MethodPost, path, `{"seatKey":`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%s status = %d, want 400", path, rec.Code)
		}
	}
}

func TestEmptyBodyIsEmptyRequest(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	for _, path := range []string{"/api/name", "/api/dwell", "/api/quit"} {
		if rec := s.do(t, http.MethodPost, path, ""); rec.Code != http.StatusOK {
			t.Errorf("%s status = %d, want 200", path, rec.Code)
		}
	}
}

func TestNameWithEmptySeatKey(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/name", `{"name":"nobody"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	st, err := s.store.GetSeatByKey(context.Background(), "")
	if err != nil {
		t.Fatalf("GetSeatByKey: %v", err)
	}
	if st.Name != "nobody" {
		t.Errorf("Name = %q, want nobody", st.Name)
	}

	rec = s.do(t, http.MethodGet, "/api/seat", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /api/seat status = %d, want 200", rec.Code)
	}
	var got seatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SeatKey != "" || got.Name != "nobody" {
		t.Errorf("seat = %+v, want the empty-key seat", got)
	}
}

func TestDwellAcceptsFormAndStringSeconds(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		contentType string
		body        string
		want        float64
	}{
		{"json number", "application/json", `{"room":"lobby","seatKey":"%s","seconds":3}`, 3},
		{"json string", "application/json", `{"room":"lobby","seatKey":"%s","seconds":"2.5"}`, 2.5},
		{"json garbage string", "application/json", `{"room":"lobby","seatKey":"%s","seconds":"soon"}`, 0},
		{"json null", "application/json", `{"room":"lobby","seatKey":"%s","seconds":null}`, 0},
		{"form", "application/x-www-form-urlencoded", `room=lobby&seatKey=%s&seconds=4`, 4},
		{"form with charset", "application/x-www-form-urlencoded; charset=utf-8", `room=lobby&seatKey=%s&seconds=1.5`, 1.5},
		{"form missing seconds", "application/x-www-form-urlencoded", `room=lobby&seatKey=%s`, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer(t)
			alice := s.newSeat(t, "alice")

			req := httptest.NewRequest(http.MethodPost, "/api/dwell", strings.NewReader(fmt.Sprintf(tt.body, alice)))
			req.Header.Set("Content-Type", tt.contentType)
			rec := httptest.NewRecorder()
			s.mux.ServeHTTP(rec, req)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body %s", rec.Code, rec.Body)
			}

			standings, err := s.store.ListStandings(context.Background(), "lobby")
			if err != nil {
				t.Fatalf("ListStandings: %v", err)
			}
			if len(standings) != 1 || standings[0].Total != tt.want {
				t.Errorf("standings = %+v, want one row with %v seconds", standings, tt.want)
			}
		})
	}
}

func TestFormName(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/name", strings.NewReader("seatKey=form0001&name=carol"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.mux.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	st, err := s.store.GetSeatByKey(context.Background(), "form0001")
	if err != nil {
		t.Fatalf("GetSeatByKey: %v", err)
	}
	if st.Name != "carol" {
		t.Errorf("Name = %q, want carol", st.Name)
	}
}

func TestGetSeat(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)
	alice := s.newSeat(t, "alice")

	rec := s.do(t, http.MethodGet, "/api/seat?seatKey="+alice, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var got seatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.SeatKey != alice || got.Name != "alice" {
		t.Errorf("seat = %+v", got)
	}

	if rec := s.do(t, http.MethodGet, "/api/seat?seatKey=ghost000", ""); rec.Code != http.StatusNotFound {
		t.Errorf("unknown seat status = %d, want 404", rec.Code)
	}
}

func TestConfigEndpoint(t *testing.T) {
	t.Parallel()
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/config", "")
	var got configResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.GraceSec != 5 || got.UpdateSec != 3 {
		t.Errorf("config = %+v, want grace 5 update 3", got)
	}
}

type brokenApps struct{}

func (brokenApps) NewIdentity(context.Context) (string, error) {
	return "", seat.ErrIdentitySpaceExhausted
}
func (brokenApps) SetName(context.Context, string, string) (*models.Seat, error) {
	return nil, errors.New("db down")
}
func (brokenApps) GetSeat(context.Context, string) (*models.Seat, error) {
	return nil, errors.New("db down")
}
func (brokenApps) ReportDwell(context.Context, string, string, float64) error {
	return errors.New("db down")
}
func (brokenApps) Quit(context.Context, string, string) error {
	return errors.New("db down")
}
func (brokenApps) ListRoom(context.Context, string, string) (*models.RoomView, error) {
	return nil, errors.New("db down")
}

func TestFailuresAreInternalErrors(t *testing.T) {
	t.Parallel()
	svc := NewService(brokenApps{}, brokenApps{}, brokenApps{}, config.DefaultGame(), nil)
	mux := http.NewServeMux()
	svc.RegisterRoutes(mux)

	requests := []struct {
		method, path, body string
	}{
		{http.MethodPost, "/api/newSeat", ""},
		{http.MethodPost, "/api/name", `{"seatKey":"aaaa1111","name":"x"}`},
		{http.MethodPost, "/api/dwell", `{"room":"r","seatKey":"aaaa1111","seconds":1}`},
		{http.MethodPost, "/api/quit", `{"room":"r","seatKey":"aaaa1111"}`},
		{http.MethodGet, "/api/room?room=r", ""},
		{http.MethodGet, "/api/seat?seatKey=aaaa1111", ""},
	}
	for _, r := range requests {
		req := httptest.NewRequest(r.method, r.path, strings.NewReader(r.body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		if rec.Code != http.StatusInternalServerError {
			t.Errorf("%s %s status = %d, want 500", r.method, r.path, rec.Code)
			continue
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Errorf("%s %s body %q: %v", r.method, r.path, rec.Body, err)
			continue
		}
		if body["err"] != "Internal error." {
			t.Errorf("%s %s err = %q, want %q", r.method, r.path, body["err"], "Internal error.")
		}
	}
}

func TestTruncateRoom(t *testing.T) {
	t.Parallel()

	tests := []struct {
		room  string
		limit int
		want  string
	}{
		{"lobby", 32, "lobby"},
		{"abcdef", 3, "abc"},
		{"héllo wörld", 4, "héll"},
		{"日本語のルーム", 3, "日本語"},
		{"", 32, ""},
		{"anything", 0, "anything"},
	}
	for _, tt := range tests {
		if got := TruncateRoom(tt.room, tt.limit); got != tt.want {
			t.Errorf("TruncateRoom(%q, %d) = %q, want %q", tt.room, tt.limit, got, tt.want)
		}
	}
}
