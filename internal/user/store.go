package user

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
)

// Role はユーザーのロールを表す列挙型。
type Role string

const (
	// RoleAdmin は全機能にアクセスできる管理者。
	RoleAdmin Role = "admin"
	// RoleTeamLeader はチームの作成・メンバー管理・タスク委任ができるリーダー。
	RoleTeamLeader Role = "team_leader"
	// RoleTeamMember は自分のタスクの管理とコメントができる一般メンバー。
	RoleTeamMember Role = "team_member"
)

// Valid は定義済みのロールかどうかを返す。
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleTeamLeader, RoleTeamMember:
		return true
	}
	return false
}

// ErrNotFound は対象のユーザーが存在しないことを表す。
var ErrNotFound = errors.New("ユーザーが見つかりません")

// User はユーザーアカウントのレコード。
type User struct {
	// ID はユーザーの一意識別子。
	ID string `db:"id" json:"id"`
	// Username はログイン用ユーザー名。
	Username string `db:"username" json:"username"`
	// Email はメールアドレス。
	Email string `db:"email" json:"email"`
	// PasswordHash はbcryptハッシュ化済みパスワード。レスポンスには含めない。
	PasswordHash string `db:"password_hash" json:"-"`
	// FirstName は名。
	FirstName string `db:"first_name" json:"first_name"`
	// LastName は姓。
	LastName string `db:"last_name" json:"last_name"`
	// Role はユーザーのロール。
	Role Role `db:"role" json:"role"`
	// Bio は自己紹介。
	Bio string `db:"bio" json:"bio"`
	// Phone は電話番号。
	Phone string `db:"phone" json:"phone"`
	// IsActive はアカウントの有効状態。
	IsActive bool `db:"is_active" json:"is_active"`
	// CreatedAt は作成日時。
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	// UpdatedAt は更新日時。
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// DisplayName はユーザーの表示名を返す。氏名が未設定の場合はユーザー名を返す。
func (u User) DisplayName() string {
	if u.FirstName != "" || u.LastName != "" {
		if u.FirstName != "" && u.LastName != "" {
			return u.FirstName + " " + u.LastName
		}
		return u.FirstName + u.LastName
	}
	return u.Username
}

// Store はユーザーのクエリ実行オブジェクト。
type Store struct {
	// db はSQLiteデータベース接続。
	db *sqlx.DB
}

// NewStore は新しいStoreを生成する。
func NewStore(db *sqlx.DB) *Store {
	return &Store{db: db}
}

// Create はユーザーレコードを1件挿入する。
func (s *Store) Create(ctx context.Context, u User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username, email, password_hash, first_name, last_name,
			role, bio, phone, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Username, u.Email, u.PasswordHash, u.FirstName, u.LastName,
		u.Role, u.Bio, u.Phone, u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("ユーザーの作成に失敗: %w", err)
	}
	return nil
}

// GetByID は指定IDのユーザーを返す。存在しない場合はErrNotFoundを返す。
func (s *Store) GetByID(ctx context.Context, id string) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, "SELECT * FROM users WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return u, nil
}

// GetByUsername は指定ユーザー名のユーザーを返す。存在しない場合はErrNotFoundを返す。
func (s *Store) GetByUsername(ctx context.Context, username string) (User, error) {
	var u User
	err := s.db.GetContext(ctx, &u, "SELECT * FROM users WHERE username = ?", username)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, fmt.Errorf("ユーザーの取得に失敗: %w", err)
	}
	return u, nil
}

// List は有効なユーザーの一覧を返す。roleが空でない場合はロールで絞り込む。
func (s *Store) List(ctx context.Context, role Role) ([]User, error) {
	users := []User{}
	var err error
	if role == "" {
		err = s.db.SelectContext(ctx, &users,
			"SELECT * FROM users WHERE is_active = 1 ORDER BY username")
	} else {
		err = s.db.SelectContext(ctx, &users,
			"SELECT * FROM users WHERE is_active = 1 AND role = ? ORDER BY username", role)
	}
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗: %w", err)
	}
	return users, nil
}

// UpdateProfile は指定ユーザーのプロフィール項目を更新する。
func (s *Store) UpdateProfile(ctx context.Context, id, firstName, lastName, bio, phone string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET first_name = ?, last_name = ?, bio = ?, phone = ?, updated_at = ?
		WHERE id = ?`,
		firstName, lastName, bio, phone, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("プロフィールの更新に失敗: %w", err)
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
