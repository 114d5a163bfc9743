// engine/session.go
package engine

import (
	"time"

	"github.com/wfunc/pongserver/logger"
	"github.com/wfunc/pongserver/models"
	"github.com/wfunc/pongserver/physics"
)

// Session is the live physics state for one party. Ephemeral: created when
// the party is armed to play, destroyed with the party, never persisted.
type Session struct {
	PartyID   uint
	State     physics.State
	Team1     int
	Team2     int
	Started   bool
	Announced bool
	StartedAt time.Time

	input1 physics.Input
	input2 physics.Input
}

func newSession(partyID uint) *Session {
	return &Session{
		PartyID: partyID,
		State:   physics.NewState(),
	}
}

// SideOf maps a team number to a playfield side (1 left, 2 right, 0 not
// contesting). In 2v2 teammates share a paddle: odd teams drive the left
// one, even teams the right.
func (s *Session) SideOf(team int, mode models.PartyMode) int {
	if mode == models.Mode2v2 {
		if team%2 == 1 {
			return 1
		}
		return 2
	}
	switch team {
	case s.Team1:
		return 1
	case s.Team2:
		return 2
	}
	return 0
}

// rearm resets the session for a fresh match between two teams. Speed
// stays zero so the next tick serves.
func (s *Session) rearm(team1, team2 int) {
	s.State = physics.NewState()
	s.Team1 = team1
	s.Team2 = team2
	s.Started = true
	s.Announced = false
	s.StartedAt = time.Now()
	s.input1 = physics.Input{}
	s.input2 = physics.Input{}
}

func (s *Session) snapshot() models.GameState {
	return models.GameState{
		Paddle1Y: s.State.Paddle1Y,
		Paddle2Y: s.State.Paddle2Y,
		BallX:    s.State.BallX,
		BallY:    s.State.BallY,
		Score1:   s.State.Score1,
		Score2:   s.State.Score2,
	}
}

// teardown drops every live trace of a party and its durable rows.
func (e *Engine) teardown(partyID uint) {
	delete(e.sessions, partyID)
	delete(e.brackets, partyID)
	delete(e.pausedAt, partyID)
	delete(e.pilots, partyID)
	if err := e.db.DeleteParty(partyID); err != nil {
		logger.Log.Errorf("Failed to delete party %d: %v", partyID, err)
	}
}
