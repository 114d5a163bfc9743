// persistence/gorm_postgresql.go
package persistence

import (
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/wfunc/pongserver/models"
)

// GormPostgreSQL 使用GORM的PostgreSQL实现
type GormPostgreSQL struct {
	db *gorm.DB
}

// NewGormPostgreSQL 创建GORM PostgreSQL数据库连接
func NewGormPostgreSQL(host string, port int, user, password, dbname string) (*GormPostgreSQL, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	// 配置GORM日志
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold: time.Second,
			LogLevel:      logger.Silent,
			Colorful:      false,
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormLogger,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	// 设置连接池
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	// 自动迁移表结构
	if err := db.AutoMigrate(
		&models.Party{},
		&models.PartyPlayer{},
		&models.MatchHistory{},
		&models.BlockedUser{},
	); err != nil {
		return nil, err
	}

	return &GormPostgreSQL{db: db}, nil
}

func (p *GormPostgreSQL) CreateParty(mode models.PartyMode, status models.PartyStatus) (*models.Party, error) {
	party := &models.Party{Mode: mode, Status: status}
	if err := p.db.Create(party).Error; err != nil {
		return nil, err
	}
	return party, nil
}

func (p *GormPostgreSQL) GetParty(id uint) (*models.Party, error) {
	var party models.Party
	if err := p.db.First(&party, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &party, nil
}

func (p *GormPostgreSQL) UpdatePartyStatus(id uint, status models.PartyStatus) error {
	return p.db.Model(&models.Party{}).Where("id = ?", id).
		Update("status", status).Error
}

// DeleteParty removes the party and its memberships in one transaction.
func (p *GormPostgreSQL) DeleteParty(id uint) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("party_id = ?", id).Delete(&models.PartyPlayer{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Party{}, id).Error
	})
}

func (p *GormPostgreSQL) FindWaitingParty(mode models.PartyMode) (*models.Party, error) {
	var party models.Party
	err := p.db.Where("mode = ? AND status = ?", mode, models.PartyWaiting).
		Order("created_at").First(&party).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &party, nil
}

func (p *GormPostgreSQL) PartiesByStatus(status models.PartyStatus) ([]models.Party, error) {
	var parties []models.Party
	err := p.db.Where("status = ?", status).Find(&parties).Error
	return parties, err
}

// UpsertMember reuses an existing membership row for (party, identity) so
// that at most one non-left row exists per pair.
func (p *GormPostgreSQL) UpsertMember(partyID uint, identity string, team int, status models.MemberStatus) error {
	return p.db.Transaction(func(tx *gorm.DB) error {
		var member models.PartyPlayer
		err := tx.Where("party_id = ? AND identity = ?", partyID, identity).
			First(&member).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			member = models.PartyPlayer{
				PartyID:  partyID,
				Identity: identity,
				Team:     team,
				Status:   status,
			}
			return tx.Create(&member).Error
		} else if err != nil {
			return err
		}

		member.Team = team
		member.Status = status
		return tx.Save(&member).Error
	})
}

func (p *GormPostgreSQL) UpdateMemberStatus(partyID uint, identity string, status models.MemberStatus) error {
	return p.db.Model(&models.PartyPlayer{}).
		Where("party_id = ? AND identity = ?", partyID, identity).
		Update("status", status).Error
}

func (p *GormPostgreSQL) Members(partyID uint) ([]models.PartyPlayer, error) {
	var members []models.PartyPlayer
	err := p.db.Where("party_id = ?", partyID).Order("team").Find(&members).Error
	return members, err
}

func (p *GormPostgreSQL) CurrentMembership(identity string) (*models.PartyPlayer, error) {
	var member models.PartyPlayer
	err := p.db.Where("identity = ? AND status <> ?", identity, models.MemberLeft).
		Order("created_at DESC").First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &member, nil
}

func (p *GormPostgreSQL) LeftMembership(identity string) (*models.PartyPlayer, error) {
	var member models.PartyPlayer
	err := p.db.Joins("JOIN parties ON parties.id = party_players.party_id").
		Where("party_players.identity = ? AND party_players.status = ? AND parties.status <> ?",
			identity, models.MemberLeft, models.PartyFinished).
		Order("party_players.updated_at DESC").First(&member).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &member, nil
}

// SaveMatchHistory inserts a finished match. Write-once, never updated.
func (p *GormPostgreSQL) SaveMatchHistory(h *models.MatchHistory) error {
	return p.db.Create(h).Error
}

// MatchStats 聚合玩家完赛统计
func (p *GormPostgreSQL) MatchStats(identity string) (models.MatchStats, error) {
	var stats models.MatchStats
	err := p.db.Raw(`
        SELECT
            COUNT(*) AS total_games,
            SUM(CASE WHEN winner = ? THEN 1 ELSE 0 END) AS wins,
            SUM(CASE WHEN winner <> ? THEN 1 ELSE 0 END) AS losses,
            COALESCE(SUM(duration), 0) AS play_time
        FROM match_histories
        WHERE side1 LIKE '%' || ? || '%' OR side2 LIKE '%' || ? || '%'`,
		identity, identity, identity, identity,
	).Scan(&stats).Error
	return stats, err
}

func (p *GormPostgreSQL) IsBlocked(owner, other string) (bool, error) {
	var count int64
	err := p.db.Model(&models.BlockedUser{}).
		Where("owner = ? AND blocked = ?", owner, other).
		Count(&count).Error
	return count > 0, err
}

// Close 关闭数据库连接
func (p *GormPostgreSQL) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
