package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// TxBeginner is the subset of *pgxpool.Pool the repository uses.
type TxBeginner interface {
	querier
	Begin(ctx context.Context) (pgx.Tx, error)
}

type patientRepoPG struct {
	db TxBeginner
}

// NewPGRepo returns the PostgreSQL repository. Pass a *pgxpool.Pool.
func NewPGRepo(db TxBeginner) Repository {
	return &patientRepoPG{db: db}
}

const patientCols = `id, first_name, last_name, email, age, conditions, created_at, updated_at`

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.Conditions == nil {
		p.Conditions = []string{}
	}
	row := r.db.QueryRow(ctx, `
		INSERT INTO patients (id, first_name, last_name, email, age, conditions)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Age, p.Conditions,
	)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrConflict
		}
		return fmt.Errorf("patient create: %w", err)
	}
	return nil
}

func (r *patientRepoPG) Get(ctx context.Context, id string) (*Patient, error) {
	return getPatient(ctx, r.db, `SELECT `+patientCols+` FROM patients WHERE id = $1`, id)
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("patient count: %w", err)
	}

	query := `SELECT ` + patientCols + ` FROM patients ORDER BY created_at, id OFFSET $1`
	args := []interface{}{offset}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("patient list: %w", err)
	}
	defer rows.Close()

	patients := []*Patient{}
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("patient scan: %w", err)
		}
		patients = append(patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("patient list: %w", err)
	}
	return patients, total, nil
}

func (r *patientRepoPG) Update(ctx context.Context, id string, fn func(*Patient) error) (*Patient, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	p, err := getPatient(ctx, tx, `SELECT `+patientCols+` FROM patients WHERE id = $1 FOR UPDATE`, id)
	if err != nil {
		return nil, err
	}
	if err := fn(p); err != nil {
		return nil, err
	}
	if p.Conditions == nil {
		p.Conditions = []string{}
	}

	err = tx.QueryRow(ctx, `
		UPDATE patients SET first_name=$2, last_name=$3, email=$4, age=$5, conditions=$6, updated_at=NOW()
		WHERE id = $1
		RETURNING updated_at`,
		id, p.FirstName, p.LastName, p.Email, p.Age, p.Conditions,
	).Scan(&p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("patient update: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	p.ID = id
	return p, nil
}

func (r *patientRepoPG) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("patient delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *patientRepoPG) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&n); err != nil {
		return 0, fmt.Errorf("patient count: %w", err)
	}
	return n, nil
}

func getPatient(ctx context.Context, q querier, sql string, id string) (*Patient, error) {
	p, err := scanPatient(q.QueryRow(ctx, sql, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("patient get: %w", err)
	}
	return p, nil
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Age, &p.Conditions, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if p.Conditions == nil {
		p.Conditions = []string{}
	}
	return &p, nil
}
