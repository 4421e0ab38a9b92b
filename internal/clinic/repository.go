package clinic

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDoctorNotFound indicates the requested doctor does not exist.
var ErrDoctorNotFound = errors.New("clinic: doctor not found")

// DB is the subset of pgxpool.Pool the repository needs. Satisfied by
// pgxmock in tests.
type DB interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// Repository provides read access to doctors, schedule rules, and leave periods.
type Repository struct {
	db DB
}

// NewRepository creates a repository backed by a pgx pool.
func NewRepository(pool *pgxpool.Pool) *Repository {
	if pool == nil {
		panic("clinic: pgx pool required")
	}
	return &Repository{db: pool}
}

// NewRepositoryWithDB allows injecting mocks for tests.
func NewRepositoryWithDB(db DB) *Repository {
	return &Repository{db: db}
}

// GetDoctor returns the doctor with the given id.
func (r *Repository) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var d Doctor
	err := r.db.QueryRow(ctx, `
		SELECT id, name, specialization, active, experience_years, consultation_fee_cents
		FROM doctors
		WHERE id = $1
	`, id).Scan(&d.ID, &d.Name, &d.Specialization, &d.Active, &d.ExperienceYears, &d.ConsultationFeeCents)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDoctorNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("clinic: load doctor: %w", err)
	}
	return &d, nil
}

// FindBySpecialization returns active doctors for a specialization,
// ranked by descending experience then ascending fee. The ordering is
// deterministic: id is the final tie-break.
func (r *Repository) FindBySpecialization(ctx context.Context, specialization string) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, specialization, active, experience_years, consultation_fee_cents
		FROM doctors
		WHERE active = TRUE AND LOWER(specialization) = LOWER($1)
		ORDER BY experience_years DESC, consultation_fee_cents ASC, id ASC
	`, specialization)
	if err != nil {
		return nil, fmt.Errorf("clinic: find by specialization: %w", err)
	}
	defer rows.Close()
	return scanDoctors(rows)
}

// SearchByName returns active doctors whose name matches the fragment.
func (r *Repository) SearchByName(ctx context.Context, name string) ([]Doctor, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, name, specialization, active, experience_years, consultation_fee_cents
		FROM doctors
		WHERE active = TRUE AND name ILIKE '%' || $1 || '%'
		ORDER BY experience_years DESC, consultation_fee_cents ASC, id ASC
	`, name)
	if err != nil {
		return nil, fmt.Errorf("clinic: search by name: %w", err)
	}
	defer rows.Close()
	return scanDoctors(rows)
}

// RulesForDay returns active schedule rules for a doctor on a weekday,
// ordered by start time.
func (r *Repository) RulesForDay(ctx context.Context, doctorID uuid.UUID, weekday time.Weekday) ([]ScheduleRule, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, doctor_id, weekday, start_time, end_time, slot_minutes
		FROM schedule_rules
		WHERE doctor_id = $1 AND weekday = $2
		ORDER BY start_time ASC
	`, doctorID, int(weekday))
	if err != nil {
		return nil, fmt.Errorf("clinic: load schedule rules: %w", err)
	}
	defer rows.Close()

	var rules []ScheduleRule
	for rows.Next() {
		var rule ScheduleRule
		var weekdayInt int
		if err := rows.Scan(&rule.ID, &rule.DoctorID, &weekdayInt, &rule.StartTime, &rule.EndTime, &rule.SlotMinutes); err != nil {
			return nil, fmt.Errorf("clinic: scan schedule rule: %w", err)
		}
		rule.Weekday = time.Weekday(weekdayInt)
		rules = append(rules, rule)
	}
	return rules, rows.Err()
}

// LeavesOn returns leave periods for a doctor overlapping the given date.
func (r *Repository) LeavesOn(ctx context.Context, doctorID uuid.UUID, date string) ([]LeavePeriod, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, doctor_id, start_date, end_date
		FROM leave_periods
		WHERE doctor_id = $1 AND start_date <= $2 AND end_date >= $2
		ORDER BY start_date ASC
	`, doctorID, date)
	if err != nil {
		return nil, fmt.Errorf("clinic: load leave periods: %w", err)
	}
	defer rows.Close()

	var leaves []LeavePeriod
	for rows.Next() {
		var l LeavePeriod
		if err := rows.Scan(&l.ID, &l.DoctorID, &l.StartDate, &l.EndDate); err != nil {
			return nil, fmt.Errorf("clinic: scan leave period: %w", err)
		}
		leaves = append(leaves, l)
	}
	return leaves, rows.Err()
}

func scanDoctors(rows pgx.Rows) ([]Doctor, error) {
	var doctors []Doctor
	for rows.Next() {
		var d Doctor
		if err := rows.Scan(&d.ID, &d.Name, &d.Specialization, &d.Active, &d.ExperienceYears, &d.ConsultationFeeCents); err != nil {
			return nil, fmt.Errorf("clinic: scan doctor: %w", err)
		}
		doctors = append(doctors, d)
	}
	return doctors, rows.Err()
}
