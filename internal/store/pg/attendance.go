package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"fieldpulse.org/internal/attendance"
	"fieldpulse.org/internal/geo"
	"fieldpulse.org/internal/ids"
	"fieldpulse.org/internal/page"
	"fieldpulse.org/internal/scope"
)

const attendanceColumns = `id, user_id, day, status, check_in_at, check_out_at,
	check_in_lat, check_in_lng, check_out_lat, check_out_lng, created_at, updated_at`

func scanAttendance(row interface{ Scan(...any) error }) (attendance.Record, error) {
	var r attendance.Record
	var status string
	var checkIn, checkOut sql.NullTime
	var inLat, inLng, outLat, outLng sql.NullFloat64
	err := row.Scan(&r.ID, &r.UserID, &r.Day, &status, &checkIn, &checkOut,
		&inLat, &inLng, &outLat, &outLng, &r.CreatedAt, &r.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return attendance.Record{}, attendance.ErrNotFound
	}
	if err != nil {
		return attendance.Record{}, err
	}
	r.Status = attendance.Status(status)
	r.Day = attendance.DayOf(r.Day)
	if checkIn.Valid {
		t := checkIn.Time.UTC()
		r.CheckInAt = &t
	}
	if checkOut.Valid {
		t := checkOut.Time.UTC()
		r.CheckOutAt = &t
	}
	if inLat.Valid && inLng.Valid {
		r.CheckInLocation = &geo.Point{Lat: inLat.Float64, Lng: inLng.Float64}
	}
	if outLat.Valid && outLng.Valid {
		r.CheckOutLocation = &geo.Point{Lat: outLat.Float64, Lng: outLng.Float64}
	}
	return r, nil
}

func pointColumns(p *geo.Point) (lat, lng sql.NullFloat64) {
	if p != nil {
		lat = sql.NullFloat64{Float64: p.Lat, Valid: true}
		lng = sql.NullFloat64{Float64: p.Lng, Valid: true}
	}
	return lat, lng
}

func (s *Attendance) Create(ctx context.Context, r attendance.Record) (attendance.Record, error) {
	if r.ID == "" {
		r.ID = ids.New()
	}
	inLat, inLng := pointColumns(r.CheckInLocation)
	outLat, outLng := pointColumns(r.CheckOutLocation)
	res, err := s.db.ExecContext(ctx, `
		insert into attendance(id, user_id, day, status, check_in_at, check_out_at,
			check_in_lat, check_in_lng, check_out_lat, check_out_lng, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		on conflict (user_id, day) do nothing
	`, r.ID, r.UserID, r.Day, string(r.Status), r.CheckInAt, r.CheckOutAt,
		inLat, inLng, outLat, outLng, r.CreatedAt, r.UpdatedAt)
	if err != nil {
		return attendance.Record{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return attendance.Record{}, err
	}
	if n == 0 {
		return attendance.Record{}, attendance.ErrAlreadyCheckedIn
	}
	return r, nil
}

func (s *Attendance) GetByUserDay(ctx context.Context, userID string, day time.Time) (attendance.Record, error) {
	return scanAttendance(s.db.QueryRowContext(ctx,
		`select `+attendanceColumns+` from attendance where user_id=$1 and day=$2`,
		userID, attendance.DayOf(day)))
}

func (s *Attendance) Update(ctx context.Context, r attendance.Record) (attendance.Record, error) {
	inLat, inLng := pointColumns(r.CheckInLocation)
	outLat, outLng := pointColumns(r.CheckOutLocation)
	res, err := s.db.ExecContext(ctx, `
		update attendance set status=$3, check_in_at=$4, check_out_at=$5,
			check_in_lat=$6, check_in_lng=$7, check_out_lat=$8, check_out_lng=$9, updated_at=$10
		where user_id=$1 and day=$2
	`, r.UserID, r.Day, string(r.Status), r.CheckInAt, r.CheckOutAt,
		inLat, inLng, outLat, outLng, r.UpdatedAt)
	if err != nil {
		return attendance.Record{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return attendance.Record{}, err
	}
	if n == 0 {
		return attendance.Record{}, attendance.ErrNotFound
	}
	return r, nil
}

func (s *Attendance) List(ctx context.Context, sc scope.Scope, f attendance.Filter, pr page.Request) ([]attendance.Record, int, error) {
	var clauses []string
	var args []any

	if !sc.Unrestricted() {
		visible := sc.UserIDs()
		clauses = append(clauses,
			fmt.Sprintf(`user_id in (%s)`, placeholders(len(args)+1, len(visible))))
		args = append(args, idArgs(visible)...)
	}
	if f.SelectedUserID != "" {
		args = append(args, f.SelectedUserID)
		clauses = append(clauses, fmt.Sprintf(`user_id=$%d`, len(args)))
	}
	if f.Status != "" {
		args = append(args, string(f.Status))
		clauses = append(clauses, fmt.Sprintf(`status=$%d`, len(args)))
	}
	if !f.From.IsZero() {
		args = append(args, attendance.DayOf(f.From))
		clauses = append(clauses, fmt.Sprintf(`day >= $%d`, len(args)))
	}
	if !f.To.IsZero() {
		args = append(args, attendance.DayOf(f.To))
		clauses = append(clauses, fmt.Sprintf(`day <= $%d`, len(args)))
	}
	where := ``
	if len(clauses) > 0 {
		where = `where ` + strings.Join(clauses, " and ")
	}

	var total int
	if err := s.db.QueryRowContext(ctx,
		`select count(*) from attendance `+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	pageArgs := append(args, pr.Limit, pr.Offset())
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`select `+attendanceColumns+` from attendance %s
		order by day desc, user_id
		limit $%d offset $%d`, where, len(args)+1, len(args)+2), pageArgs...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var recs []attendance.Record
	for rows.Next() {
		r, err := scanAttendance(rows)
		if err != nil {
			return nil, 0, err
		}
		recs = append(recs, r)
	}
	return recs, total, rows.Err()
}
