// models/gorm_models.go
package models

import (
	"time"

	"gorm.io/gorm"
)

// Party 对局记录
type Party struct {
	gorm.Model
	Mode    PartyMode   `gorm:"not null;index"`
	Status  PartyStatus `gorm:"not null;index"`
	Players []PartyPlayer
}

// PartyPlayer is one identity's membership in a party. Identity is a
// registered user name, or a local alias for offline tournaments.
// At most one non-left row exists per (party, identity).
type PartyPlayer struct {
	gorm.Model
	PartyID  uint         `gorm:"index;not null"`
	Identity string       `gorm:"index;not null"`
	Team     int          `gorm:"not null"`
	Status   MemberStatus `gorm:"not null"`
}

// MatchHistory 完赛记录，只写一次
type MatchHistory struct {
	gorm.Model
	PartyID  uint      `gorm:"index;not null"`
	Mode     PartyMode `gorm:"not null"`
	Side1    string    `gorm:"not null"` // comma-joined identities
	Side2    string    `gorm:"not null"`
	Score1   int       `gorm:"not null"`
	Score2   int       `gorm:"not null"`
	Winner   string    `gorm:"not null"`
	Duration int       `gorm:"default:0"` // seconds
}

// BlockedUser 屏蔽关系（聊天校验用）
type BlockedUser struct {
	gorm.Model
	Owner   string `gorm:"index;not null"`
	Blocked string `gorm:"not null"`
}

// MatchStats 玩家对局统计
type MatchStats struct {
	TotalGames int `json:"total_games"`
	Wins       int `json:"wins"`
	Losses     int `json:"losses"`
	PlayTime   int `json:"play_time"` // 总时长(秒)
}

// PartySnapshot is the control-surface view of a party.
type PartySnapshot struct {
	PartyID   uint        `json:"partyId"`
	Mode      PartyMode   `json:"mode"`
	Status    PartyStatus `json:"status"`
	Players   []string    `json:"players"`
	CreatedAt time.Time   `json:"createdAt"`
}
