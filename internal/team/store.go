// Package team はチームとメンバーシップの管理APIを提供する。
//
// チームはリーダー（team_leaderまたはadminロール）が作成・管理し、
// 複数のメンバーが所属する。リーダーは暗黙的にメンバーとして扱う。
package team

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// ErrNotFound は対象のチームが存在しないことを表す。
var ErrNotFound = errors.New("チームが見つかりません")

// Team はチームのレコード。
type Team struct {
	// ID はチームの一意識別子。
	ID string `db:"id" json:"id"`
	// Name はチーム名（一意）。
	Name string `db:"name" json:"name"`
	// Description はチームの説明。
	Description string `db:"description" json:"description"`
	// LeaderID はチームリーダーのユーザーID。
	LeaderID string `db:"leader_id" json:"leader_id"`
	// IsActive はチームの有効状態。無効なチームはメンバーに表示されない。
	IsActive bool `db:"is_active" json:"is_active"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// Member はチームメンバー一覧の1件。ユーザー情報をJOINで付加する。
type Member struct {
	// UserID はメンバーのユーザーID。
	UserID string `db:"user_id" json:"user_id"`
	// Username はメンバーのユーザー名。
	Username string `db:"username" json:"username"`
	// Email はメンバーのメールアドレス。
	Email string `db:"email" json:"email"`
	// JoinedAt は参加日時。
	JoinedAt time.Time `db:"joined_at" json:"joined_at"`
}

// Store はチームとメンバーシップのクエリ実行オブジェクト。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sqlx.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Create はチームレコードを1件挿入する。
func (s *Store) Create(ctx context.Context, t Team) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO teams (id, name, description, leader_id, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, t.Description, t.LeaderID, t.IsActive, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("チームの作成に失敗: %w", err)
	}
	return nil
}

// GetByID は指定IDのチームを返す。存在しない場合はErrNotFoundを返す。
func (s *Store) GetByID(ctx context.Context, id string) (Team, error) {
	var t Team
	err := s.db.GetContext(ctx, &t, "SELECT * FROM teams WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Team{}, ErrNotFound
	}
	if err != nil {
		return Team{}, fmt.Errorf("チームの取得に失敗: %w", err)
	}
	return t, nil
}

// GetActiveByID は指定IDの有効なチームを返す。存在しない場合はErrNotFoundを返す。
func (s *Store) GetActiveByID(ctx context.Context, id string) (Team, error) {
	var t Team
	err := s.db.GetContext(ctx, &t, "SELECT * FROM teams WHERE id = ? AND is_active = 1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return Team{}, ErrNotFound
	}
	if err != nil {
		return Team{}, fmt.Errorf("チームの取得に失敗: %w", err)
	}
	return t, nil
}

// ListVisible は指定ユーザーに表示すべきチームの一覧を返す。
// 管理者は全チーム、それ以外はリーダーを務めるか所属しているアクティブなチームのみ。
func (s *Store) ListVisible(ctx context.Context, userID string, isAdmin bool) ([]Team, error) {
	teams := []Team{}
	var err error
	if isAdmin {
		err = s.db.SelectContext(ctx, &teams,
			"SELECT * FROM teams ORDER BY created_at DESC")
	} else {
		err = s.db.SelectContext(ctx, &teams, `
			SELECT DISTINCT t.* FROM teams t
			LEFT JOIN team_memberships m ON m.team_id = t.id
			WHERE t.is_active = 1 AND (t.leader_id = ? OR m.member_id = ?)
			ORDER BY t.created_at DESC`,
			userID, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("チーム一覧の取得に失敗: %w", err)
	}
	return teams, nil
}

// Update はチームの名前・説明・有効状態を更新する。
func (s *Store) Update(ctx context.Context, id, name, description string, isActive bool) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE teams SET name = ?, description = ?, is_active = ?, updated_at = ?
		WHERE id = ?`,
		name, description, isActive, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("チームの更新に失敗: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("更新件数の取得に失敗: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// AddMember はチームにメンバーを追加する。既に所属している場合は何もしない。
func (s *Store) AddMember(ctx context.Context, membershipID, teamID, memberID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO team_memberships (id, team_id, member_id, joined_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (team_id, member_id) DO NOTHING`,
		membershipID, teamID, memberID, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("メンバーの追加に失敗: %w", err)
	}
	return nil
}

// RemoveMember はチームからメンバーを外す。
func (s *Store) RemoveMember(ctx context.Context, teamID, memberID string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM team_memberships WHERE team_id = ? AND member_id = ?", teamID, memberID)
	if err != nil {
		return fmt.Errorf("メンバーの削除に失敗: %w", err)
	}
	return nil
}

// ListMembers はチームのメンバー一覧を参加日時順に返す（リーダーは含まない）。
func (s *Store) ListMembers(ctx context.Context, teamID string) ([]Member, error) {
	members := []Member{}
	err := s.db.SelectContext(ctx, &members, `
		SELECT m.member_id AS user_id, u.username, u.email, m.joined_at
		FROM team_memberships m
		JOIN users u ON u.id = m.member_id
		WHERE m.team_id = ?
		ORDER BY m.joined_at`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("メンバー一覧の取得に失敗: %w", err)
	}
	return members, nil
}

// HasMember は指定ユーザーがチームのメンバーまたはリーダーかどうかを返す。
func (s *Store) HasMember(ctx context.Context, teamID, userID string) (bool, error) {
	var count int
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*) FROM teams t
		LEFT JOIN team_memberships m ON m.team_id = t.id AND m.member_id = ?
		WHERE t.id = ? AND (t.leader_id = ? OR m.member_id IS NOT NULL)`,
		userID, teamID, userID)
	if err != nil {
		return false, fmt.Errorf("メンバーシップの確認に失敗: %w", err)
	}
	return count > 0, nil
}
