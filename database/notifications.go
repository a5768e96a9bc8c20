package database

import (
	"context"
	"database/sql"
	"fmt"

	"almacen/apperr"
	"almacen/model"
)

const notificationColumns = `id, created_at, title, message, link, is_read, read_at`

func InsertNotification(ctx context.Context, dbtx DBTX, n *model.Notification) error {
	const q = `INSERT INTO notifications (created_at, title, message, link, is_read) VALUES (:created_at, :title, :message, :link, 0)`
	res, err := dbtx.NamedExecContext(ctx, q, n)
	if err != nil {
		return fmt.Errorf("failed to insert notification %q: %w", n.Title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get notification id: %w", err)
	}
	n.ID = id
	return nil
}

func GetNotification(ctx context.Context, dbtx DBTX, id int64) (*model.Notification, error) {
	var n model.Notification
	err := dbtx.GetContext(ctx, &n, `SELECT `+notificationColumns+` FROM notifications WHERE id = ?`, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperr.NotFound("notification", id)
		}
		return nil, fmt.Errorf("failed to get notification %d: %w", id, err)
	}
	return &n, nil
}

func ListNotifications(ctx context.Context, dbtx DBTX, unreadOnly bool) ([]model.Notification, error) {
	q := `SELECT ` + notificationColumns + ` FROM notifications`
	if unreadOnly {
		q += ` WHERE is_read = 0`
	}
	q += ` ORDER BY created_at DESC, id DESC`

	list := []model.Notification{}
	if err := dbtx.SelectContext(ctx, &list, q); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}

// MarkNotificationRead は未読の通知だけを既読にします。既読済みの場合は read_at を変更しません。
func MarkNotificationRead(ctx context.Context, dbtx DBTX, id int64, readAt string) (bool, error) {
	res, err := dbtx.ExecContext(ctx, `UPDATE notifications SET is_read = 1, read_at = ? WHERE id = ? AND is_read = 0`, readAt, id)
	if err != nil {
		return false, fmt.Errorf("failed to mark notification %d as read: %w", id, err)
	}
	return checkAffected(res)
}

func CountUnreadNotifications(ctx context.Context, dbtx DBTX) (int, error) {
	var n int
	if err := dbtx.GetContext(ctx, &n, `SELECT COUNT(*) FROM notifications WHERE is_read = 0`); err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return n, nil
}

// HasUnreadNotificationForLink は同じリンク先の未読通知があるかを返します。
func HasUnreadNotificationForLink(ctx context.Context, dbtx DBTX, link string) (bool, error) {
	var n int
	if err := dbtx.GetContext(ctx, &n, `SELECT COUNT(*) FROM notifications WHERE link = ? AND is_read = 0`, link); err != nil {
		return false, fmt.Errorf("failed to check notifications for %s: %w", link, err)
	}
	return n > 0, nil
}
