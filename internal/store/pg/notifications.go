package pg

import (
	"context"

	"fieldpulse.org/internal/notify"
	"fieldpulse.org/internal/page"
)

func (s *Notifications) Insert(ctx context.Context, n notify.Notification) error {
	_, err := s.db.ExecContext(ctx, `
		insert into notifications(id, user_id, message, entry_id, read, created_at)
		values ($1,$2,$3,nullif($4,''),$5,$6)
	`, n.ID, n.UserID, n.Message, n.EntryID, n.Read, n.CreatedAt)
	return err
}

func (s *Notifications) List(ctx context.Context, userID string, unreadOnly bool, pr page.Request) ([]notify.Notification, int, error) {
	where := `where user_id=$1`
	if unreadOnly {
		where += ` and not read`
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from notifications `+where, userID).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := s.db.QueryContext(ctx, `
		select id, user_id, message, coalesce(entry_id,''), read, created_at
		from notifications `+where+`
		order by created_at desc, id desc
		limit $2 offset $3
	`, userID, pr.Limit, pr.Offset())
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var notes []notify.Notification
	for rows.Next() {
		var n notify.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Message, &n.EntryID, &n.Read, &n.CreatedAt); err != nil {
			return nil, 0, err
		}
		notes = append(notes, n)
	}
	return notes, total, rows.Err()
}

func (s *Notifications) MarkRead(ctx context.Context, userID string, noteIDs []string) (int, error) {
	if len(noteIDs) == 0 {
		res, err := s.db.ExecContext(ctx,
			`update notifications set read=true where user_id=$1 and not read`, userID)
		if err != nil {
			return 0, err
		}
		n, err := res.RowsAffected()
		return int(n), err
	}

	args := append([]any{userID}, idArgs(noteIDs)...)
	res, err := s.db.ExecContext(ctx,
		`update notifications set read=true
		where user_id=$1 and id in (`+placeholders(2, len(noteIDs))+`)`, args...)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (s *Notifications) Clear(ctx context.Context, userID string) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`delete from notifications where user_id=$1`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
