package pg

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"fieldpulse.org/internal/directory"
	"fieldpulse.org/internal/ids"
)

func (s *Users) CreateUser(ctx context.Context, u directory.User) (directory.User, error) {
	if u.ID == "" {
		u.ID = ids.New()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Version == 0 {
		u.Version = 1
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return directory.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var exists bool
	if err := tx.QueryRowContext(ctx,
		`select exists(select 1 from users where lower(email)=lower($1))`, u.Email,
	).Scan(&exists); err != nil {
		return directory.User{}, err
	}
	if exists {
		return directory.User{}, directory.ErrEmailTaken
	}

	if _, err := tx.ExecContext(ctx, `
		insert into users(id, username, email, password_hash, role, version, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8)
	`, u.ID, u.Username, u.Email, u.PasswordHash, string(u.Role), u.Version, u.CreatedAt, u.UpdatedAt); err != nil {
		return directory.User{}, err
	}
	for _, adminID := range u.AssignedAdmins {
		if _, err := tx.ExecContext(ctx, `
			insert into user_admins(user_id, admin_id) values ($1,$2)
			on conflict do nothing
		`, u.ID, adminID); err != nil {
			return directory.User{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return directory.User{}, err
	}
	return u, nil
}

const userColumns = `id, username, email, password_hash, role, version, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (directory.User, error) {
	var u directory.User
	var role string
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &role, &u.Version, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return directory.User{}, directory.ErrNotFound
	}
	if err != nil {
		return directory.User{}, err
	}
	u.Role, err = directory.ParseRole(role)
	if err != nil {
		return directory.User{}, err
	}
	return u, nil
}

func (s *Users) loadAdmins(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select admin_id from user_admins where user_id=$1 order by admin_id`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var admins []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		admins = append(admins, id)
	}
	return admins, rows.Err()
}

func (s *Users) GetUser(ctx context.Context, id string) (directory.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where id=$1`, id))
	if err != nil {
		return directory.User{}, err
	}
	u.AssignedAdmins, err = s.loadAdmins(ctx, id)
	return u, err
}

func (s *Users) GetUserByEmail(ctx context.Context, email string) (directory.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		`select `+userColumns+` from users where lower(email)=lower($1)`, email))
	if err != nil {
		return directory.User{}, err
	}
	u.AssignedAdmins, err = s.loadAdmins(ctx, u.ID)
	return u, err
}

func (s *Users) listUsersWhere(ctx context.Context, where string, args ...any) ([]directory.User, error) {
	rows, err := s.db.QueryContext(ctx,
		`select `+userColumns+` from users `+where+` order by username, id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []directory.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range users {
		if users[i].AssignedAdmins, err = s.loadAdmins(ctx, users[i].ID); err != nil {
			return nil, err
		}
	}
	return users, nil
}

func (s *Users) ListUsers(ctx context.Context) ([]directory.User, error) {
	return s.listUsersWhere(ctx, ``)
}

func (s *Users) ListByAdmin(ctx context.Context, adminID string) ([]directory.User, error) {
	return s.listUsersWhere(ctx,
		`where id in (select user_id from user_admins where admin_id=$1)`, adminID)
}

func (s *Users) ListByIDs(ctx context.Context, userIDs []string) ([]directory.User, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	return s.listUsersWhere(ctx,
		`where id in (`+placeholders(1, len(userIDs))+`)`, idArgs(userIDs)...)
}

func (s *Users) UpdateAssignments(ctx context.Context, userID string, admins []string, expectedVersion int64) (directory.User, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return directory.User{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update users set version = version + 1, updated_at = now()
		where id=$1 and version=$2
	`, userID, expectedVersion)
	if err != nil {
		return directory.User{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return directory.User{}, err
	}
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`select exists(select 1 from users where id=$1)`, userID,
		).Scan(&exists); err != nil {
			return directory.User{}, err
		}
		if !exists {
			return directory.User{}, directory.ErrNotFound
		}
		return directory.User{}, directory.ErrVersionConflict
	}

	if _, err := tx.ExecContext(ctx, `delete from user_admins where user_id=$1`, userID); err != nil {
		return directory.User{}, err
	}
	for _, adminID := range admins {
		if _, err := tx.ExecContext(ctx, `
			insert into user_admins(user_id, admin_id) values ($1,$2)
		`, userID, adminID); err != nil {
			return directory.User{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return directory.User{}, err
	}
	return s.GetUser(ctx, userID)
}

func (s *Users) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	res, err := s.db.ExecContext(ctx, `
		update users set password_hash=$2, updated_at=now() where id=$1
	`, userID, passwordHash)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return directory.ErrNotFound
	}
	return nil
}
