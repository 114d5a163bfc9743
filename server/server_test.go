package server

import (
	"bytes"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/wfunc/pongserver/broadcast"
	"github.com/wfunc/pongserver/config"
	"github.com/wfunc/pongserver/engine"
	"github.com/wfunc/pongserver/logger"
	"github.com/wfunc/pongserver/models"
	"github.com/wfunc/pongserver/monitor"
	"github.com/wfunc/pongserver/persistence"
)

func init() {
	logger.Init()
}

// fakeDB backs the engine with in-memory rows for handler tests.
type fakeDB struct {
	nextID  uint
	parties map[uint]*models.Party
	members []*models.PartyPlayer
	history []models.MatchHistory
	blocked map[[2]string]bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		parties: make(map[uint]*models.Party),
		blocked: make(map[[2]string]bool),
	}
}

func (d *fakeDB) CreateParty(mode models.PartyMode, status models.PartyStatus) (*models.Party, error) {
	d.nextID++
	p := &models.Party{Mode: mode, Status: status}
	p.ID = d.nextID
	d.parties[p.ID] = p
	cp := *p
	return &cp, nil
}

func (d *fakeDB) GetParty(id uint) (*models.Party, error) {
	p, ok := d.parties[id]
	if !ok {
		return nil, persistence.ErrRecordNotFound
	}
	cp := *p
	return &cp, nil
}

func (d *fakeDB) UpdatePartyStatus(id uint, status models.PartyStatus) error {
	if p, ok := d.parties[id]; ok {
		p.Status = status
	}
	return nil
}

func (d *fakeDB) DeleteParty(id uint) error {
	delete(d.parties, id)
	kept := d.members[:0]
	for _, m := range d.members {
		if m.PartyID != id {
			kept = append(kept, m)
		}
	}
	d.members = kept
	return nil
}

func (d *fakeDB) FindWaitingParty(mode models.PartyMode) (*models.Party, error) {
	for _, p := range d.parties {
		if p.Mode == mode && p.Status == models.PartyWaiting {
			cp := *p
			return &cp, nil
		}
	}
	return nil, persistence.ErrRecordNotFound
}

func (d *fakeDB) PartiesByStatus(status models.PartyStatus) ([]models.Party, error) {
	return nil, nil
}

func (d *fakeDB) UpsertMember(partyID uint, identity string, team int, status models.MemberStatus) error {
	for _, m := range d.members {
		if m.PartyID == partyID && m.Identity == identity {
			m.Team = team
			m.Status = status
			return nil
		}
	}
	d.members = append(d.members, &models.PartyPlayer{
		PartyID: partyID, Identity: identity, Team: team, Status: status,
	})
	return nil
}

func (d *fakeDB) UpdateMemberStatus(partyID uint, identity string, status models.MemberStatus) error {
	for _, m := range d.members {
		if m.PartyID == partyID && m.Identity == identity {
			m.Status = status
		}
	}
	return nil
}

func (d *fakeDB) Members(partyID uint) ([]models.PartyPlayer, error) {
	var out []models.PartyPlayer
	for _, m := range d.members {
		if m.PartyID == partyID {
			out = append(out, *m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Team < out[j].Team })
	return out, nil
}

func (d *fakeDB) CurrentMembership(identity string) (*models.PartyPlayer, error) {
	for i := len(d.members) - 1; i >= 0; i-- {
		m := d.members[i]
		if m.Identity == identity && m.Status != models.MemberLeft {
			cp := *m
			return &cp, nil
		}
	}
	return nil, persistence.ErrRecordNotFound
}

func (d *fakeDB) LeftMembership(identity string) (*models.PartyPlayer, error) {
	return nil, persistence.ErrRecordNotFound
}

func (d *fakeDB) SaveMatchHistory(h *models.MatchHistory) error {
	d.history = append(d.history, *h)
	return nil
}

func (d *fakeDB) MatchStats(identity string) (models.MatchStats, error) {
	return models.MatchStats{}, nil
}

func (d *fakeDB) IsBlocked(owner, other string) (bool, error) {
	return d.blocked[[2]string{owner, other}], nil
}

func (d *fakeDB) Close() error { return nil }

// fakeConn satisfies network.Connection and records sent frames. The
// engine worker delivers concurrently with test assertions, hence the
// mutex.
type fakeConn struct {
	mu   sync.Mutex
	sent []interface{}
}

func (c *fakeConn) Send(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, v)
	return nil
}

func (c *fakeConn) sentCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func (c *fakeConn) ReadMessage() ([]byte, error) {
	return nil, errors.New("fake connection has nothing to read")
}
func (c *fakeConn) Close() error             { return nil }
func (c *fakeConn) RemoteAddr() net.Addr     { return &net.TCPAddr{} }
func (c *fakeConn) SetReadLimit(limit int64) {}

var testMonitor = monitor.NewMonitor("pongserver_test")

func newTestServer(t *testing.T) (*PongServer, *fakeDB, *broadcast.Registry) {
	t.Helper()
	db := newFakeDB()
	registry := broadcast.NewRegistry()
	bc := broadcast.NewBroadcaster(registry)

	e := engine.New(db, bc, config.GameConfig{})
	e.Start()
	t.Cleanup(e.Shutdown)

	s := NewPongServer(
		config.ServerConfig{HTTPAddress: ":0", RPCAddress: "127.0.0.1:0"},
		config.GameConfig{ChatMaxLength: 20},
		db, e, registry, testMonitor,
	)
	t.Cleanup(func() { s.rpcServer.Stop() })
	return s, db, registry
}

func postJSON(t *testing.T, handler http.HandlerFunc, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewReader(data))
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestTokenIdentity(t *testing.T) {
	id, err := TokenIdentity("alice")
	if err != nil || id != "alice" {
		t.Errorf("Expected the token verbatim, got %q, %v", id, err)
	}

	guest, err := TokenIdentity("")
	if err != nil || !strings.HasPrefix(guest, "guest-") {
		t.Errorf("Expected a guest alias, got %q, %v", guest, err)
	}
}

func TestControl_JoinAndStart(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := postJSON(t, s.handleJoin, controlRequest{Token: "alice", Mode: models.Mode1v1Online})
	if rec.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// The response keys follow the engine result structs.
	var joined map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &joined); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, ok := joined["partyId"]; !ok {
		t.Errorf("Join response missing partyId key: %s", rec.Body.String())
	}
	if _, ok := joined["rejoined"]; !ok {
		t.Errorf("Join response missing rejoined key: %s", rec.Body.String())
	}

	rec = postJSON(t, s.handleJoin, controlRequest{Token: "bob", Mode: models.Mode1v1Online})
	if rec.Code != http.StatusOK {
		t.Fatalf("join: expected 200, got %d", rec.Code)
	}

	rec = postJSON(t, s.handleStart, controlRequest{Token: "alice", Mode: models.Mode1v1Online})
	if rec.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var res struct {
		PartyID uint     `json:"partyId"`
		Team1   int      `json:"team1"`
		Team2   int      `json:"team2"`
		Players []string `json:"players"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.PartyID == 0 || res.Team1 != 1 || res.Team2 != 2 || len(res.Players) != 2 {
		t.Errorf("Unexpected start payload: %+v", res)
	}
}

func TestControl_ErrorMapping(t *testing.T) {
	s, _, _ := newTestServer(t)

	rec := postJSON(t, s.handleJoin, controlRequest{Token: "alice", Mode: "no_such_mode"})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Invalid mode: expected 400, got %d", rec.Code)
	}

	postJSON(t, s.handleJoin, controlRequest{Token: "alice", Mode: models.Mode1v1Online})
	rec = postJSON(t, s.handleStart, controlRequest{Token: "alice", Mode: models.Mode1v1Online})
	if rec.Code != http.StatusConflict {
		t.Errorf("Underfilled start: expected 409, got %d", rec.Code)
	}

	rec = postJSON(t, s.handleLeave, controlRequest{Token: "nobody"})
	if rec.Code != http.StatusNotFound {
		t.Errorf("Leave while idle: expected 404, got %d", rec.Code)
	}
}

func TestControl_RejectsGet(t *testing.T) {
	s, _, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/party/join", nil)
	rec := httptest.NewRecorder()
	s.handleJoin(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected 405, got %d", rec.Code)
	}
}

func TestPrivateChat_Delivery(t *testing.T) {
	s, _, registry := newTestServer(t)
	bobConn := &fakeConn{}
	registry.Add("bob", bobConn)

	s.handlePrivateChat("alice", models.ChatMessage{To: "bob", Message: "gg"})

	if len(bobConn.sent) != 1 {
		t.Fatalf("Expected one delivery, got %d", len(bobConn.sent))
	}
	out := bobConn.sent[0].(models.ChatMessage)
	if out.From != "alice" || out.Message != "gg" || out.Type != models.MsgTypePrivate {
		t.Errorf("Unexpected relayed message: %+v", out)
	}
	if out.SendAt.IsZero() || time.Since(out.SendAt) > time.Minute {
		t.Error("The relay should stamp a current SendAt")
	}
}

func TestPrivateChat_Validation(t *testing.T) {
	s, db, registry := newTestServer(t)
	bobConn := &fakeConn{}
	registry.Add("bob", bobConn)
	aliceConn := &fakeConn{}
	registry.Add("alice", aliceConn)

	s.handlePrivateChat("alice", models.ChatMessage{To: "bob", Message: "   "})
	s.handlePrivateChat("alice", models.ChatMessage{To: "", Message: "hi"})
	s.handlePrivateChat("alice", models.ChatMessage{To: "alice", Message: "hi"})
	s.handlePrivateChat("alice", models.ChatMessage{To: "bob", Message: strings.Repeat("x", 21)})

	db.blocked[[2]string{"bob", "alice"}] = true
	s.handlePrivateChat("alice", models.ChatMessage{To: "bob", Message: "hi"})

	if len(bobConn.sent) != 0 {
		t.Errorf("Expected every invalid message dropped, %d delivered", len(bobConn.sent))
	}
	if len(aliceConn.sent) != 0 {
		t.Error("A self-addressed message must not loop back")
	}
}

func TestDropConnection_SupersededConnectionDoesNotPause(t *testing.T) {
	s, _, registry := newTestServer(t)

	aliceConn := &fakeConn{}
	registry.Add("alice", aliceConn)
	bobOld := &fakeConn{}
	registry.Add("bob", bobOld)

	postJSON(t, s.handleJoin, controlRequest{Token: "alice", Mode: models.Mode1v1Online})
	postJSON(t, s.handleJoin, controlRequest{Token: "bob", Mode: models.Mode1v1Online})
	rec := postJSON(t, s.handleStart, controlRequest{Token: "alice", Mode: models.Mode1v1Online})
	if rec.Code != http.StatusOK {
		t.Fatalf("start: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	// Bob reconnects; the fresh connection supersedes the old one, then
	// the old read loop winds down.
	bobNew := &fakeConn{}
	registry.Add("bob", bobNew)
	s.dropConnection("bob", bobOld)

	time.Sleep(100 * time.Millisecond)
	if bobNew.sentCount() == 0 {
		t.Error("The party should keep playing on the superseding connection")
	}

	// Dropping the live connection is a real disconnect: the party pauses
	// and frames stop.
	s.dropConnection("bob", bobNew)
	time.Sleep(50 * time.Millisecond)
	before := aliceConn.sentCount()
	time.Sleep(100 * time.Millisecond)
	if after := aliceConn.sentCount(); after != before {
		t.Errorf("Expected no frames while paused, got %d more", after-before)
	}
}

func TestHandleMessage_MalformedFrameIgnored(t *testing.T) {
	s, _, _ := newTestServer(t)

	s.handleMessage("alice", []byte("not json"))
	s.handleMessage("alice", []byte(`{"type":"mystery"}`))
	// 不应崩溃,连接保持
}
