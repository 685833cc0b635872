// Package storage はSQLiteデータベースへの接続とスキーマ管理を提供する。
//
// APIサーバーと期限チェックバッチは同じデータベースファイルを共有する。
// スキーマはembedされたマイグレーションファイルから適用される。
package storage

import (
	"embed"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/68Weezky/team-todo/pkg/migration"
)

//go:embed migrations/*.up.sql
var migrationsFS embed.FS

// Open は指定パスのSQLiteデータベースを開き、マイグレーションを適用する。
// WALモードと外部キー制約はDSNのPRAGMA指定で全コネクションに適用される。
func Open(dbPath string) (*sqlx.DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)",
		dbPath,
	)
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("データベース接続に失敗: %w", err)
	}

	if err := migration.Run(db.DB, migrationsFS, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("マイグレーションの適用に失敗: %w", err)
	}

	return db, nil
}

// OpenInMemory はテスト用のインメモリSQLiteデータベースを開く。
// インメモリDBはコネクションごとに独立するため、プールを1本に制限する。
func OpenInMemory() (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", "file::memory:?_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("インメモリDBの作成に失敗: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migration.Run(db.DB, migrationsFS, "migrations"); err != nil {
		db.Close()
		return nil, fmt.Errorf("マイグレーションの適用に失敗: %w", err)
	}

	return db, nil
}
