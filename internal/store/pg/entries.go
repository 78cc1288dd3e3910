package pg

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldpulse.org/internal/entry"
	"fieldpulse.org/internal/geo"
	"fieldpulse.org/internal/ids"
	"fieldpulse.org/internal/page"
	"fieldpulse.org/internal/scope"
)

const entryColumns = `id, customer_name, phone, address, status, remarks, lat, lng,
	products, first_person_meet, second_person_meet, created_by, history, version, created_at, updated_at`

func (s *Entries) Create(ctx context.Context, e entry.Entry) (entry.Entry, error) {
	if e.ID == "" {
		e.ID = ids.New()
	}
	now := time.Now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	e.UpdatedAt = now
	if e.Version == 0 {
		e.Version = 1
	}

	products, err := json.Marshal(e.Products)
	if err != nil {
		return entry.Entry{}, err
	}
	history, err := json.Marshal(e.History)
	if err != nil {
		return entry.Entry{}, err
	}
	var lat, lng sql.NullFloat64
	if e.Location != nil {
		lat = sql.NullFloat64{Float64: e.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: e.Location.Lng, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return entry.Entry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into entries(id, customer_name, phone, address, status, remarks, lat, lng,
			products, first_person_meet, second_person_meet, created_by, history, version, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, e.ID, e.CustomerName, e.Phone, e.Address, string(e.Status), e.Remarks, lat, lng,
		products, e.FirstPersonMeet, e.SecondPersonMeet, e.CreatedBy, history, e.Version, e.CreatedAt, e.UpdatedAt); err != nil {
		return entry.Entry{}, err
	}
	for _, userID := range e.AssignedTo {
		if _, err := tx.ExecContext(ctx, `
			insert into entry_assignees(entry_id, user_id) values ($1,$2)
			on conflict do nothing
		`, e.ID, userID); err != nil {
			return entry.Entry{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return entry.Entry{}, err
	}
	return e, nil
}

func scanEntry(row interface{ Scan(...any) error }) (entry.Entry, error) {
	var e entry.Entry
	var status string
	var lat, lng sql.NullFloat64
	var products, history []byte
	err := row.Scan(&e.ID, &e.CustomerName, &e.Phone, &e.Address, &status, &e.Remarks, &lat, &lng,
		&products, &e.FirstPersonMeet, &e.SecondPersonMeet, &e.CreatedBy, &history, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return entry.Entry{}, entry.ErrNotFound
	}
	if err != nil {
		return entry.Entry{}, err
	}
	e.Status = entry.Status(status)
	if lat.Valid && lng.Valid {
		e.Location = &geo.Point{Lat: lat.Float64, Lng: lng.Float64}
	}
	if len(products) > 0 {
		if err := json.Unmarshal(products, &e.Products); err != nil {
			return entry.Entry{}, fmt.Errorf("decode products: %w", err)
		}
	}
	if len(history) > 0 {
		if err := json.Unmarshal(history, &e.History); err != nil {
			return entry.Entry{}, fmt.Errorf("decode history: %w", err)
		}
	}
	return e, nil
}

func (s *Entries) loadAssignees(ctx context.Context, entryID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`select user_id from entry_assignees where entry_id=$1 order by user_id`, entryID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var assigned []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		assigned = append(assigned, id)
	}
	return assigned, rows.Err()
}

func (s *Entries) Get(ctx context.Context, id string) (entry.Entry, error) {
	e, err := scanEntry(s.db.QueryRowContext(ctx,
		`select `+entryColumns+` from entries where id=$1`, id))
	if err != nil {
		return entry.Entry{}, err
	}
	e.AssignedTo, err = s.loadAssignees(ctx, id)
	return e, err
}

func (s *Entries) Update(ctx context.Context, e entry.Entry, expectedVersion int64) (entry.Entry, error) {
	products, err := json.Marshal(e.Products)
	if err != nil {
		return entry.Entry{}, err
	}
	history, err := json.Marshal(e.History)
	if err != nil {
		return entry.Entry{}, err
	}
	var lat, lng sql.NullFloat64
	if e.Location != nil {
		lat = sql.NullFloat64{Float64: e.Location.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: e.Location.Lng, Valid: true}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return entry.Entry{}, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
		update entries set customer_name=$2, phone=$3, address=$4, status=$5, remarks=$6,
			lat=$7, lng=$8, products=$9, first_person_meet=$10, second_person_meet=$11,
			history=$12, version=version+1, updated_at=now()
		where id=$1 and version=$13
	`, e.ID, e.CustomerName, e.Phone, e.Address, string(e.Status), e.Remarks,
		lat, lng, products, e.FirstPersonMeet, e.SecondPersonMeet, history, expectedVersion)
	if err != nil {
		return entry.Entry{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return entry.Entry{}, err
	}
	if n == 0 {
		var exists bool
		if err := tx.QueryRowContext(ctx,
			`select exists(select 1 from entries where id=$1)`, e.ID,
		).Scan(&exists); err != nil {
			return entry.Entry{}, err
		}
		if !exists {
			return entry.Entry{}, entry.ErrNotFound
		}
		return entry.Entry{}, entry.ErrVersionConflict
	}

	if _, err := tx.ExecContext(ctx, `delete from entry_assignees where entry_id=$1`, e.ID); err != nil {
		return entry.Entry{}, err
	}
	for _, userID := range e.AssignedTo {
		if _, err := tx.ExecContext(ctx, `
			insert into entry_assignees(entry_id, user_id) values ($1,$2)
		`, e.ID, userID); err != nil {
			return entry.Entry{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return entry.Entry{}, err
	}
	return s.Get(ctx, e.ID)
}

func (s *Entries) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `delete from entries where id=$1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return entry.ErrNotFound
	}
	return nil
}

// entryListQuery builds the scope and filter clauses shared by the count and
// page queries.
func entryListQuery(sc scope.Scope, f entry.Filter) (string, []any) {
	var clauses []string
	var args []any

	if !sc.Unrestricted() {
		visible := sc.UserIDs()
		ph := placeholders(len(args)+1, len(visible))
		args = append(args, idArgs(visible)...)
		clauses = append(clauses, fmt.Sprintf(`(e.created_by in (%s)
			or exists (select 1 from entry_assignees ea where ea.entry_id=e.id and ea.user_id in (%s)))`, ph, ph))
	}
	if f.SelectedUserID != "" {
		args = append(args, f.SelectedUserID)
		n := len(args)
		clauses = append(clauses, fmt.Sprintf(`(e.created_by=$%d
			or exists (select 1 from entry_assignees ea where ea.entry_id=e.id and ea.user_id=$%d))`, n, n))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		clauses = append(clauses, fmt.Sprintf(`e.status=$%d`, len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, f.From.UTC())
		clauses = append(clauses, fmt.Sprintf(`e.created_at >= $%d`, len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, f.To.UTC())
		clauses = append(clauses, fmt.Sprintf(`e.created_at <= $%d`, len(args)))
	}

	if len(clauses) == 0 {
		return ``, nil
	}
	return `where ` + strings.Join(clauses, " and "), args
}

func (s *Entries) List(ctx context.Context, sc scope.Scope, f entry.Filter, pr page.Request) ([]entry.Entry, int, error) {
	where, args := entryListQuery(sc, f)

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from entries e `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageArgs := append(args, pr.Limit, pr.Offset())
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`select `+entryColumns+` from entries e %s
		order by e.created_at desc, e.id
		limit $%d offset $%d`, where, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []entry.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}
	for i := range entries {
		if entries[i].AssignedTo, err = s.loadAssignees(ctx, entries[i].ID); err != nil {
			return nil, 0, err
		}
	}
	return entries, total, nil
}
