// Package projects owns the project directory: canonical project codes with
// their client details, and the exact/fuzzy resolution of free-text codes
// against them.
package projects

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"invoicing_backend/platform/apperr"
)

// Candidate is a project code plus the client details hanging off it.
// Read-only from the engine's perspective; rows are managed via the admin API.
type Candidate struct {
	ID            int64  `json:"id"`
	Code          string `json:"code"`
	ClientName    string `json:"clientName"`
	ClientCompany string `json:"clientCompany"`
	ClientAddress string `json:"clientAddress"`
	ClientEmail   string `json:"clientEmail"`
	ClientPhone   string `json:"clientPhone"`
}

type PostgresRepository struct {
	pool *pgxpool.Pool
}

func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

func (r *PostgresRepository) ListCandidates(ctx context.Context) ([]Candidate, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, code, client_name, client_company, client_address, client_email, client_phone
		FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var candidates []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.ID, &c.Code, &c.ClientName, &c.ClientCompany,
			&c.ClientAddress, &c.ClientEmail, &c.ClientPhone); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, rows.Err()
}

func (r *PostgresRepository) GetByCode(ctx context.Context, code string) (Candidate, error) {
	var c Candidate
	err := r.pool.QueryRow(ctx, `
		SELECT id, code, client_name, client_company, client_address, client_email, client_phone
		FROM projects WHERE LOWER(code) = LOWER($1)`, code).
		Scan(&c.ID, &c.Code, &c.ClientName, &c.ClientCompany, &c.ClientAddress, &c.ClientEmail, &c.ClientPhone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Candidate{}, apperr.NotFound(fmt.Sprintf("project %s not found", code))
		}
		return Candidate{}, fmt.Errorf("query project: %w", err)
	}
	return c, nil
}

func (r *PostgresRepository) Create(ctx context.Context, c *Candidate) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO projects (code, client_name, client_company, client_address, client_email, client_phone)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (code) DO NOTHING
		RETURNING id`,
		c.Code, c.ClientName, c.ClientCompany, c.ClientAddress, c.ClientEmail, c.ClientPhone).Scan(&c.ID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperr.Conflict(fmt.Sprintf("project %s already exists", c.Code))
		}
		return fmt.Errorf("insert project: %w", err)
	}
	return nil
}
