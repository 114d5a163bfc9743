// persistence/postgresql.go
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	// PostgreSQL 驱动
	_ "github.com/lib/pq"

	"github.com/wfunc/pongserver/models"
)

// PostgreSQL is the raw database/sql implementation of Database, for
// deployments that do not want the ORM in the hot path.
type PostgreSQL struct {
	db *sql.DB
}

// NewPostgreSQL 创建 PostgreSQL 数据库连接
func NewPostgreSQL(host string, port int, user, password, dbname string) (*PostgreSQL, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}

	// 测试连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, err
	}

	// 设置连接池参数
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := initTables(db); err != nil {
		return nil, err
	}

	return &PostgreSQL{db: db}, nil
}

// initTables 初始化数据库表结构
func initTables(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS parties (
            id SERIAL PRIMARY KEY,
            mode TEXT NOT NULL,
            status TEXT NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            deleted_at TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS party_players (
            id SERIAL PRIMARY KEY,
            party_id BIGINT NOT NULL,
            identity TEXT NOT NULL,
            team INT NOT NULL,
            status TEXT NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            deleted_at TIMESTAMP
        )`,
		`CREATE INDEX IF NOT EXISTS idx_party_players_party ON party_players(party_id)`,
		`CREATE INDEX IF NOT EXISTS idx_party_players_identity ON party_players(identity)`,
		`CREATE TABLE IF NOT EXISTS match_histories (
            id SERIAL PRIMARY KEY,
            party_id BIGINT NOT NULL,
            mode TEXT NOT NULL,
            side1 TEXT NOT NULL,
            side2 TEXT NOT NULL,
            score1 INT NOT NULL,
            score2 INT NOT NULL,
            winner TEXT NOT NULL,
            duration INT DEFAULT 0,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            deleted_at TIMESTAMP
        )`,
		`CREATE TABLE IF NOT EXISTS blocked_users (
            id SERIAL PRIMARY KEY,
            owner TEXT NOT NULL,
            blocked TEXT NOT NULL,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            deleted_at TIMESTAMP
        )`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (p *PostgreSQL) CreateParty(mode models.PartyMode, status models.PartyStatus) (*models.Party, error) {
	party := &models.Party{Mode: mode, Status: status}
	err := p.db.QueryRow(
		`INSERT INTO parties (mode, status) VALUES ($1, $2) RETURNING id, created_at`,
		mode, status,
	).Scan(&party.ID, &party.CreatedAt)
	if err != nil {
		return nil, err
	}
	return party, nil
}

func (p *PostgreSQL) GetParty(id uint) (*models.Party, error) {
	var party models.Party
	err := p.db.QueryRow(
		`SELECT id, mode, status, created_at FROM parties WHERE id = $1 AND deleted_at IS NULL`,
		id,
	).Scan(&party.ID, &party.Mode, &party.Status, &party.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &party, nil
}

func (p *PostgreSQL) UpdatePartyStatus(id uint, status models.PartyStatus) error {
	_, err := p.db.Exec(
		`UPDATE parties SET status = $1, updated_at = CURRENT_TIMESTAMP WHERE id = $2`,
		status, id,
	)
	return err
}

func (p *PostgreSQL) DeleteParty(id uint) error {
	tx, err := p.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM party_players WHERE party_id = $1`, id); err != nil {
		return err
	}
	if _, err := tx.Exec(`DELETE FROM parties WHERE id = $1`, id); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *PostgreSQL) FindWaitingParty(mode models.PartyMode) (*models.Party, error) {
	var party models.Party
	err := p.db.QueryRow(
		`SELECT id, mode, status, created_at FROM parties
         WHERE mode = $1 AND status = $2 AND deleted_at IS NULL
         ORDER BY created_at LIMIT 1`,
		mode, models.PartyWaiting,
	).Scan(&party.ID, &party.Mode, &party.Status, &party.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &party, nil
}

func (p *PostgreSQL) PartiesByStatus(status models.PartyStatus) ([]models.Party, error) {
	rows, err := p.db.Query(
		`SELECT id, mode, status, created_at FROM parties
         WHERE status = $1 AND deleted_at IS NULL`,
		status,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var parties []models.Party
	for rows.Next() {
		var party models.Party
		if err := rows.Scan(&party.ID, &party.Mode, &party.Status, &party.CreatedAt); err != nil {
			return nil, err
		}
		parties = append(parties, party)
	}
	return parties, rows.Err()
}

func (p *PostgreSQL) UpsertMember(partyID uint, identity string, team int, status models.MemberStatus) error {
	res, err := p.db.Exec(
		`UPDATE party_players SET team = $1, status = $2, updated_at = CURRENT_TIMESTAMP
         WHERE party_id = $3 AND identity = $4`,
		team, status, partyID, identity,
	)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n > 0 {
		return nil
	}

	_, err = p.db.Exec(
		`INSERT INTO party_players (party_id, identity, team, status) VALUES ($1, $2, $3, $4)`,
		partyID, identity, team, status,
	)
	return err
}

func (p *PostgreSQL) UpdateMemberStatus(partyID uint, identity string, status models.MemberStatus) error {
	_, err := p.db.Exec(
		`UPDATE party_players SET status = $1, updated_at = CURRENT_TIMESTAMP
         WHERE party_id = $2 AND identity = $3`,
		status, partyID, identity,
	)
	return err
}

func (p *PostgreSQL) Members(partyID uint) ([]models.PartyPlayer, error) {
	rows, err := p.db.Query(
		`SELECT id, party_id, identity, team, status FROM party_players
         WHERE party_id = $1 AND deleted_at IS NULL ORDER BY team`,
		partyID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []models.PartyPlayer
	for rows.Next() {
		var m models.PartyPlayer
		if err := rows.Scan(&m.ID, &m.PartyID, &m.Identity, &m.Team, &m.Status); err != nil {
			return nil, err
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (p *PostgreSQL) CurrentMembership(identity string) (*models.PartyPlayer, error) {
	var m models.PartyPlayer
	err := p.db.QueryRow(
		`SELECT id, party_id, identity, team, status FROM party_players
         WHERE identity = $1 AND status <> $2 AND deleted_at IS NULL
         ORDER BY created_at DESC LIMIT 1`,
		identity, models.MemberLeft,
	).Scan(&m.ID, &m.PartyID, &m.Identity, &m.Team, &m.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *PostgreSQL) LeftMembership(identity string) (*models.PartyPlayer, error) {
	var m models.PartyPlayer
	err := p.db.QueryRow(
		`SELECT pp.id, pp.party_id, pp.identity, pp.team, pp.status
         FROM party_players pp JOIN parties pa ON pa.id = pp.party_id
         WHERE pp.identity = $1 AND pp.status = $2 AND pa.status <> $3
         ORDER BY pp.updated_at DESC LIMIT 1`,
		identity, models.MemberLeft, models.PartyFinished,
	).Scan(&m.ID, &m.PartyID, &m.Identity, &m.Team, &m.Status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRecordNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *PostgreSQL) SaveMatchHistory(h *models.MatchHistory) error {
	return p.db.QueryRow(
		`INSERT INTO match_histories (party_id, mode, side1, side2, score1, score2, winner, duration)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		h.PartyID, h.Mode, h.Side1, h.Side2, h.Score1, h.Score2, h.Winner, h.Duration,
	).Scan(&h.ID)
}

func (p *PostgreSQL) MatchStats(identity string) (models.MatchStats, error) {
	var stats models.MatchStats
	err := p.db.QueryRow(
		`SELECT
            COUNT(*),
            COALESCE(SUM(CASE WHEN winner = $1 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(CASE WHEN winner <> $1 THEN 1 ELSE 0 END), 0),
            COALESCE(SUM(duration), 0)
         FROM match_histories
         WHERE side1 LIKE '%' || $1 || '%' OR side2 LIKE '%' || $1 || '%'`,
		identity,
	).Scan(&stats.TotalGames, &stats.Wins, &stats.Losses, &stats.PlayTime)
	return stats, err
}

func (p *PostgreSQL) IsBlocked(owner, other string) (bool, error) {
	var count int
	err := p.db.QueryRow(
		`SELECT COUNT(*) FROM blocked_users WHERE owner = $1 AND blocked = $2`,
		owner, other,
	).Scan(&count)
	return count > 0, err
}

// Close 关闭数据库连接
func (p *PostgreSQL) Close() error {
	return p.db.Close()
}
