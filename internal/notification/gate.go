package notification

// ShouldEmail は通知設定と通知種別からメールを送るべきかどうかを判定する。
//
// 設定レコードが存在しない場合とマスタースイッチが無効な場合は常にfalse。
// 未知の種別もfalse（フェイルクローズ）。副作用のない純粋関数。
func ShouldEmail(pref *Preference, kind Kind) bool {
	if pref == nil || !pref.EmailNotifications {
		return false
	}

	switch kind {
	case KindTaskAssigned:
		return pref.TaskAssigned
	case KindStatusChanged:
		return pref.StatusChanged
	case KindCommentAdded:
		return pref.CommentAdded
	case KindDeadlineApproaching:
		return pref.DeadlineApproaching
	case KindTaskOverdue:
		return pref.TaskOverdue
	default:
		return false
	}
}
