// Package deadline はタスク期限の巡回チェックを提供する。
// cmd/deadline-checkから定期実行されることを想定している。
package deadline

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"

	"github.com/68Weezky/team-todo/internal/notification"
	"github.com/68Weezky/team-todo/internal/task"
)

// approachWindow は期限接近とみなす時間幅。
const approachWindow = 24 * time.Hour

// Sweeper は期限チェックの1回分の巡回を実行する。
type Sweeper struct {
	// db はSQLiteデータベース接続。
	db *sqlx.DB
	// notifier は通知の作成・送信オブジェクト。
	notifier *notification.Notifier
	// log は巡回結果の構造化ログ出力。
	log *logrus.Logger
}

// NewSweeper は新しいSweeperを生成する。
func NewSweeper(db *sqlx.DB, notifier *notification.Notifier, log *logrus.Logger) *Sweeper {
	return &Sweeper{db: db, notifier: notifier, log: log}
}

// dueTask は巡回クエリの1行。担当者と所属チーム名をJOINで付加する。
type dueTask struct {
	ID            string    `db:"id"`
	Title         string    `db:"title"`
	TeamName      string    `db:"team_name"`
	AssigneeID    string    `db:"assignee_id"`
	AssigneeEmail string    `db:"assignee_email"`
	DueDate       time.Time `db:"due_date"`
}

// Run は期限チェックを1回実行し、作成した通知の件数を返す。
//
// nowから24時間以内に期限が来る未完了タスクの担当者へ期限接近通知を、
// 期限を過ぎた未完了タスクの担当者へ期限超過通知を作成する。
// 前回実行分の記録は持たないため、繰り返し実行すると同じタスクについて
// 重複した通知が発生する。実行間隔は呼び出し側(cron)が管理すること。
//
// 通知の作成失敗は記録して続行し、クエリの失敗のみエラーとして返す。
func (s *Sweeper) Run(ctx context.Context, now time.Time) (int, error) {
	sent := 0

	approaching, err := s.dueTasks(ctx, now, now.Add(approachWindow))
	if err != nil {
		return sent, fmt.Errorf("期限接近タスクの取得に失敗: %w", err)
	}
	for _, t := range approaching {
		message := fmt.Sprintf("Task %q in team %q is due within 24 hours.", t.Title, t.TeamName)
		if s.notify(ctx, t, notification.KindDeadlineApproaching, message) {
			sent++
		}
	}

	overdue, err := s.overdueTasks(ctx, now)
	if err != nil {
		return sent, fmt.Errorf("期限超過タスクの取得に失敗: %w", err)
	}
	for _, t := range overdue {
		message := fmt.Sprintf("Task %q in team %q is overdue.", t.Title, t.TeamName)
		if s.notify(ctx, t, notification.KindTaskOverdue, message) {
			sent++
		}
	}

	s.log.WithFields(logrus.Fields{
		"approaching": len(approaching),
		"overdue":     len(overdue),
		"notified":    sent,
	}).Info("期限チェック完了")

	return sent, nil
}

// notify は1件の対象タスクについて通知を作成する。成否を返す。
func (s *Sweeper) notify(ctx context.Context, t dueTask, kind notification.Kind, message string) bool {
	recipient := notification.Recipient{ID: t.AssigneeID, Email: t.AssigneeEmail}
	ref := &notification.TaskRef{ID: t.ID, Title: t.Title}
	if _, err := s.notifier.Notify(ctx, recipient, kind, message, ref); err != nil {
		s.log.WithFields(logrus.Fields{
			"task_id": t.ID,
			"kind":    kind,
		}).WithError(err).Error("通知の作成に失敗")
		return false
	}

	s.log.WithFields(logrus.Fields{
		"task_id":  t.ID,
		"kind":     kind,
		"due_date": t.DueDate,
	}).Info("通知を作成")
	return true
}

// dueQuery は巡回対象タスクの共通SELECT句。
// 担当者がいて未完了のタスクのみ対象とする。
const dueQuery = `
	SELECT t.id, t.title, t.due_date,
	       tm.name AS team_name,
	       u.id AS assignee_id, u.email AS assignee_email
	FROM tasks t
	JOIN teams tm ON tm.id = t.team_id
	JOIN users u ON u.id = t.assigned_to
	WHERE t.assigned_to IS NOT NULL
	  AND t.status IN (?, ?, ?)`

// dueTasks は期限が[from, to)の範囲にある対象タスクを返す。
func (s *Sweeper) dueTasks(ctx context.Context, from, to time.Time) ([]dueTask, error) {
	tasks := []dueTask{}
	err := s.db.SelectContext(ctx, &tasks,
		dueQuery+` AND t.due_date >= ? AND t.due_date < ?`,
		task.StatusNotStarted, task.StatusInProgress, task.StatusReview, from, to)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

// overdueTasks は期限がnowより前の対象タスクを返す。
func (s *Sweeper) overdueTasks(ctx context.Context, now time.Time) ([]dueTask, error) {
	tasks := []dueTask{}
	err := s.db.SelectContext(ctx, &tasks,
		dueQuery+` AND t.due_date < ?`,
		task.StatusNotStarted, task.StatusInProgress, task.StatusReview, now)
	if err != nil {
		return nil, err
	}
	return tasks, nil
}
