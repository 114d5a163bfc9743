// persistence/interface.go
package persistence

import (
	"errors"

	"github.com/wfunc/pongserver/models"
)

// Database 数据库接口, the store of record for parties and memberships.
// Live session state is never persisted; only finished matches are.
type Database interface {
	CreateParty(mode models.PartyMode, status models.PartyStatus) (*models.Party, error)
	GetParty(id uint) (*models.Party, error)
	UpdatePartyStatus(id uint, status models.PartyStatus) error
	// DeleteParty removes the party row and all its membership rows.
	DeleteParty(id uint) error
	FindWaitingParty(mode models.PartyMode) (*models.Party, error)
	PartiesByStatus(status models.PartyStatus) ([]models.Party, error)

	UpsertMember(partyID uint, identity string, team int, status models.MemberStatus) error
	UpdateMemberStatus(partyID uint, identity string, status models.MemberStatus) error
	Members(partyID uint) ([]models.PartyPlayer, error)
	// CurrentMembership returns the identity's non-left membership, if any.
	CurrentMembership(identity string) (*models.PartyPlayer, error)
	// LeftMembership returns the identity's most recent left membership in
	// a party that has not finished, for rejoin.
	LeftMembership(identity string) (*models.PartyPlayer, error)

	SaveMatchHistory(h *models.MatchHistory) error
	MatchStats(identity string) (models.MatchStats, error)
	IsBlocked(owner, other string) (bool, error)

	Close() error
}

// 错误定义
var ErrRecordNotFound = errors.New("record not found")
