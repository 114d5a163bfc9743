// engine/lifecycle.go
package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/wfunc/pongserver/bracket"
	"github.com/wfunc/pongserver/logger"
	"github.com/wfunc/pongserver/models"
	"github.com/wfunc/pongserver/physics"
)

type JoinResult struct {
	PartyID  uint `json:"partyId"`
	Rejoined bool `json:"rejoined"`
}

type StartResult struct {
	PartyID uint     `json:"partyId"`
	Players []string `json:"players"`
	Team1   int      `json:"team1"`
	Team2   int      `json:"team2"`
}

type LeaveResult struct {
	PartyID uint `json:"partyId"`
}

type ResumeResult struct {
	PartyID uint             `json:"partyId"`
	Mode    models.PartyMode `json:"mode"`
	Team    int              `json:"team"`
}

// Join places identity into a party for the requested mode: a previous
// party it left (if unfinished with capacity), an existing waiting party,
// or a fresh one. The member gets the lowest free team number.
func (e *Engine) Join(mode models.PartyMode, identity string) (JoinResult, error) {
	var res JoinResult
	var opErr error
	err := e.do(func() {
		res, opErr = e.join(mode, identity)
	})
	if err != nil {
		return res, err
	}
	return res, opErr
}

func (e *Engine) join(mode models.PartyMode, identity string) (JoinResult, error) {
	if !mode.Valid() {
		return JoinResult{}, ErrInvalidMode
	}

	// Rejoin a party previously left, if it is still joinable.
	if left, err := e.db.LeftMembership(identity); err == nil {
		if party, err := e.db.GetParty(left.PartyID); err == nil && party.Status != models.PartyFinished {
			members, err := e.db.Members(party.ID)
			if err == nil && len(presentOf(members)) < party.Mode.Capacity() {
				return e.admit(party, members, identity, true)
			}
		}
	}

	if party, err := e.db.FindWaitingParty(mode); err == nil {
		members, err := e.db.Members(party.ID)
		if err == nil && len(presentOf(members)) < mode.Capacity() {
			return e.admit(party, members, identity, false)
		}
	}

	party, err := e.db.CreateParty(mode, models.PartyWaiting)
	if err != nil {
		return JoinResult{}, err
	}
	return e.admit(party, nil, identity, false)
}

func (e *Engine) admit(party *models.Party, members []models.PartyPlayer, identity string, rejoined bool) (JoinResult, error) {
	team := lowestFreeTeam(members)
	if err := e.db.UpsertMember(party.ID, identity, team, models.MemberLobby); err != nil {
		return JoinResult{}, err
	}

	// Full party moves on to lobby-filling.
	if len(presentOf(members))+1 >= party.Mode.Capacity() && party.Status == models.PartyWaiting {
		if err := e.db.UpdatePartyStatus(party.ID, models.PartyLobby); err != nil {
			return JoinResult{}, err
		}
	}

	e.bc.SendToParty(identitiesOf(presentOf(members)), identity,
		models.StatusMessage{Type: models.MsgTypeJoin, Party: party.ID, User: identity})

	logger.Log.Infof("Player %s joined party %d (mode %s, team %d, rejoin %v)",
		identity, party.ID, party.Mode, team, rejoined)
	return JoinResult{PartyID: party.ID, Rejoined: rejoined}, nil
}

// lowestFreeTeam returns the smallest 1-based team number not held by a
// present member.
func lowestFreeTeam(members []models.PartyPlayer) int {
	taken := make(map[int]bool)
	for _, m := range members {
		if m.Status.Present() {
			taken[m.Team] = true
		}
	}
	for team := 1; ; team++ {
		if !taken[team] {
			return team
		}
	}
}

// Start arms the party's session if enough players are present. Bracket
// modes seed the tournament and schedule its first match.
func (e *Engine) StartParty(mode models.PartyMode, identity string) (StartResult, error) {
	var res StartResult
	var opErr error
	err := e.do(func() {
		res, opErr = e.startParty(mode, identity)
	})
	if err != nil {
		return res, err
	}
	return res, opErr
}

func (e *Engine) startParty(mode models.PartyMode, identity string) (StartResult, error) {
	member, err := e.db.CurrentMembership(identity)
	if err != nil {
		return StartResult{}, ErrNotInGame
	}
	party, err := e.db.GetParty(member.PartyID)
	if err != nil {
		return StartResult{}, ErrPartyNotFound
	}
	if mode.Valid() && party.Mode != mode {
		return StartResult{}, ErrNotInGame
	}

	// The solo human drives the left paddle against the computer. Team
	// assignment happens before the minimum-player check.
	if party.Mode == models.ModeVsAI && member.Team != 1 {
		if err := e.db.UpsertMember(party.ID, identity, 1, member.Status); err != nil {
			return StartResult{}, err
		}
		member.Team = 1
	}

	members, err := e.db.Members(party.ID)
	if err != nil {
		return StartResult{}, err
	}
	present := presentOf(members)
	if len(present) < party.Mode.MinPlayers() {
		return StartResult{}, ErrNotEnoughPlayers
	}

	sess, ok := e.sessions[party.ID]
	if !ok {
		sess = newSession(party.ID)
		e.sessions[party.ID] = sess
	}

	team1, team2 := 1, 2
	if party.Mode.Bracket() {
		br, slots, err := bracket.New(len(present), !party.Mode.Online())
		if err != nil {
			return StartResult{}, err
		}
		for i := range present {
			present[i].Team = slots[i]
		}
		team1, team2, _ = br.NextMatch()
		e.brackets[party.ID] = br
	}

	for _, m := range present {
		if err := e.db.UpsertMember(party.ID, m.Identity, m.Team, models.MemberActive); err != nil {
			return StartResult{}, err
		}
	}
	if err := e.db.UpdatePartyStatus(party.ID, models.PartyActive); err != nil {
		return StartResult{}, err
	}

	sess.rearm(team1, team2)

	players := identitiesOf(present)
	for _, m := range present {
		e.sendStart(party.ID, m, team1, team2, players, false, 0)
	}

	logger.Log.Infof("Party %d started (mode %s, %d players, contesting %d vs %d)",
		party.ID, party.Mode, len(present), team1, team2)
	return StartResult{PartyID: party.ID, Players: players, Team1: team1, Team2: team2}, nil
}

func (e *Engine) sendStart(partyID uint, m models.PartyPlayer, team1, team2 int, players []string, resume bool, timer int) {
	msg := models.StartMessage{
		Type:    models.MsgTypeStart,
		Game:    partyID,
		Team:    m.Team,
		Team1:   team1,
		Team2:   team2,
		Resume:  resume,
		Players: players,
		Timer:   timer,
	}
	if err := e.bc.SendToUser(m.Identity, msg); err != nil {
		logger.Log.Debugf("No connection for %s at start", m.Identity)
	}
}

// Leave removes identity from its party. Solo parties tear down at once;
// leaving an underway multiplayer match forfeits it.
func (e *Engine) Leave(identity string) (LeaveResult, error) {
	var res LeaveResult
	var opErr error
	err := e.do(func() {
		res, opErr = e.leave(identity)
	})
	if err != nil {
		return res, err
	}
	return res, opErr
}

func (e *Engine) leave(identity string) (LeaveResult, error) {
	member, err := e.db.CurrentMembership(identity)
	if err != nil {
		return LeaveResult{}, ErrNotInGame
	}
	party, err := e.db.GetParty(member.PartyID)
	if err != nil {
		return LeaveResult{}, ErrPartyNotFound
	}

	if err := e.db.UpdateMemberStatus(party.ID, identity, models.MemberLeft); err != nil {
		return LeaveResult{}, err
	}

	members, _ := e.db.Members(party.ID)
	present := presentOf(members)

	e.bc.SendToParty(identitiesOf(present), identity,
		models.StatusMessage{Type: models.MsgTypeNotification, Party: party.ID, User: identity,
			Message: fmt.Sprintf("%s left the game", identity)})

	switch {
	case party.Mode.Solo() || len(present) == 0:
		e.teardown(party.ID)
	case party.Status == models.PartyActive || party.Status == models.PartyPaused:
		e.endOfGame(party, members, member.Team)
	case party.Status == models.PartyLobby:
		// Capacity freed up again.
		if err := e.db.UpdatePartyStatus(party.ID, models.PartyWaiting); err != nil {
			return LeaveResult{}, err
		}
	}

	logger.Log.Infof("Player %s left party %d", identity, party.ID)
	return LeaveResult{PartyID: party.ID}, nil
}

// Disconnect is the transport-level counterpart of Leave: the membership
// is parked as disconnected and the match pauses until a resume or the
// pause timeout.
func (e *Engine) Disconnect(identity string) {
	e.do(func() {
		e.disconnect(identity)
	})
}

func (e *Engine) disconnect(identity string) {
	member, err := e.db.CurrentMembership(identity)
	if err != nil {
		return
	}
	party, err := e.db.GetParty(member.PartyID)
	if err != nil {
		return
	}

	if party.Status != models.PartyActive && party.Status != models.PartyPaused {
		// Nothing underway; a lobby drop is just a leave.
		e.leave(identity)
		return
	}

	if err := e.db.UpdateMemberStatus(party.ID, identity, models.MemberDisconnected); err != nil {
		logger.Log.Errorf("Failed to mark %s disconnected: %v", identity, err)
		return
	}
	if err := e.db.UpdatePartyStatus(party.ID, models.PartyPaused); err != nil {
		logger.Log.Errorf("Failed to pause party %d: %v", party.ID, err)
		return
	}
	if sess, ok := e.sessions[party.ID]; ok {
		sess.Started = false
	}

	members, _ := e.db.Members(party.ID)
	e.bc.SendToParty(identitiesOf(presentOf(members)), identity,
		models.StatusMessage{Type: models.MsgTypePause, Party: party.ID, User: identity})

	logger.Log.Infof("Player %s disconnected, party %d paused", identity, party.ID)
}

// Resume brings a reconnected player back. Idempotent: resuming an
// already active membership repeats the acknowledgement without touching
// party or bracket state.
func (e *Engine) Resume(identity string) (ResumeResult, error) {
	var res ResumeResult
	var opErr error
	err := e.do(func() {
		res, opErr = e.resume(identity)
	})
	if err != nil {
		return res, err
	}
	return res, opErr
}

func (e *Engine) resume(identity string) (ResumeResult, error) {
	member, err := e.db.CurrentMembership(identity)
	if err != nil {
		return ResumeResult{}, ErrNotInGame
	}
	party, err := e.db.GetParty(member.PartyID)
	if err != nil {
		return ResumeResult{}, ErrPartyNotFound
	}

	if member.Status == models.MemberDisconnected {
		status := models.MemberActive
		if party.Status != models.PartyPaused {
			status = models.MemberWaiting
		}
		if err := e.db.UpdateMemberStatus(party.ID, identity, status); err != nil {
			return ResumeResult{}, err
		}
	}

	pausedFor := 0
	if since, ok := e.pausedAt[party.ID]; ok {
		pausedFor = int(time.Since(since).Seconds())
	}
	delete(e.pausedAt, party.ID)

	members, _ := e.db.Members(party.ID)
	present := presentOf(members)

	if party.Status == models.PartyPaused && !anyDisconnected(members) {
		if err := e.db.UpdatePartyStatus(party.ID, models.PartyActive); err != nil {
			return ResumeResult{}, err
		}
		if sess, ok := e.sessions[party.ID]; ok {
			sess.Started = true
		}
	}

	e.bc.SendToParty(identitiesOf(present), identity,
		models.StatusMessage{Type: models.MsgTypeReconnect, Party: party.ID, User: identity})

	if sess, ok := e.sessions[party.ID]; ok {
		players := identitiesOf(present)
		for _, m := range present {
			e.sendStart(party.ID, m, sess.Team1, sess.Team2, players, true, pausedFor)
		}
	}

	logger.Log.Infof("Player %s resumed party %d", identity, party.ID)
	return ResumeResult{PartyID: party.ID, Mode: party.Mode, Team: member.Team}, nil
}

func anyDisconnected(members []models.PartyPlayer) bool {
	for _, m := range members {
		if m.Status == models.MemberDisconnected {
			return true
		}
	}
	return false
}

// endOfGame resolves a finished (or forfeited) match. forcedLoserTeam
// names the forfeiting team; 0 means decide by score, falling back to the
// lowest-numbered disconnected team when no score verdict exists.
func (e *Engine) endOfGame(party *models.Party, members []models.PartyPlayer, forcedLoserTeam int) {
	sess := e.sessions[party.ID]

	loserSide := 0
	var score1, score2 int
	if sess != nil {
		score1, score2 = sess.State.Score1, sess.State.Score2
		switch physics.Winner(sess.State) {
		case 1:
			loserSide = 2
		case 2:
			loserSide = 1
		}
		sess.Started = false
	}

	if forcedLoserTeam == 0 && loserSide == 0 {
		// No verdict from the score: the lowest-numbered disconnected
		// team forfeits.
		for _, m := range members {
			if m.Status == models.MemberDisconnected && (forcedLoserTeam == 0 || m.Team < forcedLoserTeam) {
				forcedLoserTeam = m.Team
			}
		}
	}
	if loserSide == 0 && forcedLoserTeam != 0 && sess != nil {
		loserSide = sess.SideOf(forcedLoserTeam, party.Mode)
	}
	if loserSide == 0 && forcedLoserTeam != 0 {
		// No session at all; the forfeiting team loses by definition.
		loserSide = 1
		if forcedLoserTeam%2 == 0 {
			loserSide = 2
		}
	}
	if loserSide == 0 {
		logger.Log.Warnf("Party %d ended without a determinable loser", party.ID)
		loserSide = 2
	}

	var side1, side2, winners []string
	for _, m := range members {
		side := e.sideOfMember(sess, party.Mode, m.Team)
		switch side {
		case 1:
			side1 = append(side1, m.Identity)
		case 2:
			side2 = append(side2, m.Identity)
		default:
			// Bracket members outside the contested pair sit out until
			// their next match.
			if m.Status == models.MemberActive {
				e.db.UpdateMemberStatus(party.ID, m.Identity, models.MemberWaiting)
			}
			continue
		}

		if side == loserSide {
			// A voluntary leave already carries the stronger status.
			if m.Status != models.MemberLeft {
				e.db.UpdateMemberStatus(party.ID, m.Identity, models.MemberEliminated)
			}
		} else {
			winners = append(winners, m.Identity)
			if m.Status == models.MemberActive {
				e.db.UpdateMemberStatus(party.ID, m.Identity, models.MemberWaiting)
			}
		}
	}

	duration := 0
	round := 0
	if sess != nil {
		duration = int(time.Since(sess.StartedAt).Seconds())
	}
	br := e.brackets[party.ID]
	if br != nil {
		round = br.Round
	}

	// The durable record goes first; cleanup must never outrun it.
	e.matches.RecordMatch(&models.MatchHistory{
		PartyID:  party.ID,
		Mode:     party.Mode,
		Side1:    strings.Join(side1, ","),
		Side2:    strings.Join(side2, ","),
		Score1:   score1,
		Score2:   score2,
		Winner:   strings.Join(winners, ","),
		Duration: duration,
	})
	if e.metrics != nil {
		e.metrics.IncMatchesFinished()
	}

	present := presentOf(members)
	e.bc.SendToParty(identitiesOf(present), "", models.StopMessage{
		Type:   models.MsgTypeStop,
		Winner: strings.Join(winners, ","),
		Round:  round,
		Mode:   party.Mode,
	})

	if br == nil {
		e.teardown(party.ID)
		return
	}

	loserTeam := forcedLoserTeam
	if loserTeam == 0 && sess != nil {
		loserTeam = sess.Team1
		if loserSide == 2 {
			loserTeam = sess.Team2
		}
	}
	br.Eliminate(loserTeam)

	if br.Done() {
		e.db.UpdatePartyStatus(party.ID, models.PartyFinished)
		e.teardown(party.ID)
		return
	}

	partyID := party.ID
	e.timers.After(e.cfg.NextRoundDelay, func() {
		e.do(func() { e.startNextRound(partyID) })
	})
	logger.Log.Infof("Party %d: round %d resolved, next match in %v", party.ID, round, e.cfg.NextRoundDelay)
}

func (e *Engine) sideOfMember(sess *Session, mode models.PartyMode, team int) int {
	if sess != nil {
		return sess.SideOf(team, mode)
	}
	if mode == models.Mode2v2 {
		if team%2 == 1 {
			return 1
		}
		return 2
	}
	switch team {
	case 1:
		return 1
	case 2:
		return 2
	}
	return 0
}

// startNextRound arms the bracket's next pairing after the scheduled delay.
func (e *Engine) startNextRound(partyID uint) {
	br, ok := e.brackets[partyID]
	if !ok {
		return
	}
	party, err := e.db.GetParty(partyID)
	if err != nil {
		e.teardown(partyID)
		return
	}

	team1, team2, err := br.NextMatch()
	if err != nil {
		e.db.UpdatePartyStatus(partyID, models.PartyFinished)
		e.teardown(partyID)
		return
	}

	sess, ok := e.sessions[partyID]
	if !ok {
		sess = newSession(partyID)
		e.sessions[partyID] = sess
	}
	sess.rearm(team1, team2)

	members, err := e.db.Members(partyID)
	if err != nil {
		return
	}
	present := presentOf(members)
	players := identitiesOf(present)
	for _, m := range present {
		if m.Team == team1 || m.Team == team2 {
			e.db.UpdateMemberStatus(partyID, m.Identity, models.MemberActive)
		}
		e.sendStart(partyID, m, team1, team2, players, false, 0)
	}

	logger.Log.Infof("Party %d (%s): bracket round %d, team %d vs team %d",
		partyID, party.Mode, br.Round, team1, team2)
}
