// services/match_service.go
package services

import (
	"github.com/wfunc/pongserver/logger"
	"github.com/wfunc/pongserver/models"
	"github.com/wfunc/pongserver/persistence"
)

// MatchService owns the durable side of finished matches and the chat
// block list.
type MatchService struct {
	db persistence.Database
}

func NewMatchService(db persistence.Database) *MatchService {
	return &MatchService{db: db}
}

// RecordMatch flushes a finished match to the store of record. A store
// failure is logged and swallowed: a lost history row is preferred to a
// stuck party, so cleanup always proceeds.
func (s *MatchService) RecordMatch(h *models.MatchHistory) {
	if err := s.db.SaveMatchHistory(h); err != nil {
		logger.Log.Errorf("Failed to persist match history for party %d: %v", h.PartyID, err)
	}
}

// StatsFor 获取玩家完赛统计
func (s *MatchService) StatsFor(identity string) (models.MatchStats, error) {
	return s.db.MatchStats(identity)
}

// CanMessage reports whether from may send chat to to. Blocking either
// direction silences the pair.
func (s *MatchService) CanMessage(from, to string) (bool, error) {
	blocked, err := s.db.IsBlocked(to, from)
	if err != nil || blocked {
		return false, err
	}
	blocked, err = s.db.IsBlocked(from, to)
	return !blocked, err
}
