// engine/simulate.go
package engine

import (
	"fmt"
	"time"

	"github.com/wfunc/pongserver/logger"
	"github.com/wfunc/pongserver/models"
	"github.com/wfunc/pongserver/physics"
)

const (
	announceScore   = 3
	announceElapsed = 30 * time.Second
)

// simulate advances every active party by one tick: round reset, AI,
// physics, broadcast, announcement, finish handoff, in that order.
func (e *Engine) simulate() {
	started := time.Now()

	for partyID, sess := range e.sessions {
		party, err := e.db.GetParty(partyID)
		if err != nil {
			e.teardown(partyID)
			continue
		}
		if party.Status != models.PartyActive {
			continue
		}

		members, err := e.db.Members(partyID)
		if err != nil {
			continue
		}
		present := presentOf(members)
		if len(present) == 0 {
			e.teardown(partyID)
			continue
		}

		// Zero speed marks a freshly created or reset session.
		if sess.State.Speed == 0 {
			physics.ResetRound(&sess.State)
		}

		if party.Mode == models.ModeVsAI && sess.Started {
			e.aiStep(sess)
		}

		if sess.Started {
			physics.MovePaddles(&sess.State, sess.input1, sess.input2)
			physics.MoveBall(&sess.State)
			e.broadcastState(party, sess, present)
		}

		if party.Mode.Bracket() && sess.Started && !sess.Announced {
			e.maybeAnnounce(party, sess, present)
		}

		// The started guard keeps a reset or placeholder session from
		// re-triggering completion.
		if sess.Started && physics.Winner(sess.State) != 0 {
			e.endOfGame(party, members, 0)
		}
	}

	if e.metrics != nil {
		e.metrics.ObserveTickDuration(time.Since(started))
		e.metrics.SetActiveParties(len(e.sessions))
		e.metrics.SetPausedParties(len(e.pausedAt))
	}
}

// broadcastState pushes the tick's frame to every present member. A failed
// delivery to a registered identity demotes it to disconnected and pauses
// the party; local aliases behind the host connection are skipped.
func (e *Engine) broadcastState(party *models.Party, sess *Session, present []models.PartyPlayer) {
	state := sess.snapshot()
	for _, m := range present {
		if err := e.bc.SendGameState(m.Identity, state); err != nil {
			if !party.Mode.Online() {
				continue
			}
			if e.metrics != nil {
				e.metrics.IncDeliveryFailures()
			}
			e.disconnect(m.Identity)
			return
		}
	}
}

// maybeAnnounce emits the one-shot upcoming-match notice once the current
// match is underway enough for the next pair to get ready.
func (e *Engine) maybeAnnounce(party *models.Party, sess *Session, present []models.PartyPlayer) {
	if sess.State.Score1 < announceScore && sess.State.Score2 < announceScore &&
		time.Since(sess.StartedAt) < announceElapsed {
		return
	}
	sess.Announced = true

	br, ok := e.brackets[party.ID]
	if !ok {
		return
	}
	next1, next2 := br.Upcoming()
	if next1 == 0 {
		return
	}
	e.bc.SendToParty(identitiesOf(present), "", models.StatusMessage{
		Type:    models.MsgTypeNotification,
		Party:   party.ID,
		Message: fmt.Sprintf("Up next: team %d vs team %d", next1, next2),
	})
}

// sweepPaused ages paused parties and forces a resolution at the cap:
// whoever is still disconnected is out.
func (e *Engine) sweepPaused() {
	parties, err := e.db.PartiesByStatus(models.PartyPaused)
	if err != nil {
		logger.Log.Errorf("Pause sweep query failed: %v", err)
		return
	}

	for i := range parties {
		party := &parties[i]
		members, err := e.db.Members(party.ID)
		if err != nil {
			continue
		}
		if len(presentOf(members)) == 0 {
			e.teardown(party.ID)
			continue
		}

		since, ok := e.pausedAt[party.ID]
		if !ok {
			e.pausedAt[party.ID] = time.Now()
			continue
		}
		if time.Since(since) < e.cfg.PauseTimeout {
			continue
		}
		delete(e.pausedAt, party.ID)

		// Lowest-numbered disconnected team forfeits by timeout.
		loserTeam := 0
		for _, m := range members {
			if m.Status == models.MemberDisconnected && (loserTeam == 0 || m.Team < loserTeam) {
				loserTeam = m.Team
			}
		}
		for j, m := range members {
			if m.Status == models.MemberDisconnected {
				e.db.UpdateMemberStatus(party.ID, m.Identity, models.MemberLeft)
				members[j].Status = models.MemberLeft
			}
		}
		e.db.UpdatePartyStatus(party.ID, models.PartyActive)
		party.Status = models.PartyActive

		logger.Log.Infof("Party %d paused past the cap, forcing resolution (team %d out)", party.ID, loserTeam)
		e.endOfGame(party, members, loserTeam)
	}
}

// Input records one side's movement intent for the next tick. Never
// persisted.
func (e *Engine) Input(identity string, msg models.InputMessage) {
	e.do(func() {
		sess, ok := e.sessions[msg.Game]
		if !ok {
			return
		}
		member, err := e.db.CurrentMembership(identity)
		if err != nil || member.PartyID != msg.Game {
			return
		}
		party, err := e.db.GetParty(msg.Game)
		if err != nil {
			return
		}

		in := physics.Input{Up: msg.Up, Down: msg.Down}
		switch sess.SideOf(msg.Team, party.Mode) {
		case 1:
			sess.input1 = in
		case 2:
			// The computer owns the right paddle in vs-AI parties.
			if party.Mode != models.ModeVsAI {
				sess.input2 = in
			}
		}
	})
}
