package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/nrc-robotics/tournament-system/models"
)

var (
	ErrRoundNotFound       = errors.New("swiss round not found")
	ErrRoundNumberConflict = errors.New("swiss round number conflict")
)

type RoundRepository interface {
	Create(ctx context.Context, exec SQLExecutor, round *models.SwissRound) error
	ListByTournament(ctx context.Context, tournamentID int) ([]*models.SwissRound, error)
	GetByNumber(ctx context.Context, tournamentID, number int) (*models.SwissRound, error)
	Delete(ctx context.Context, exec SQLExecutor, id int) error
}

type postgresRoundRepository struct {
	db *sql.DB
}

func NewPostgresRoundRepository(db *sql.DB) RoundRepository {
	return &postgresRoundRepository{db: db}
}

func (r *postgresRoundRepository) Create(ctx context.Context, exec SQLExecutor, round *models.SwissRound) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO swiss_rounds (tournament_id, number)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query, round.TournamentID, round.Number).
		Scan(&round.ID, &round.CreatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" &&
			pqErr.Constraint == "swiss_rounds_tournament_id_number_key" {
			return ErrRoundNumberConflict
		}
		return fmt.Errorf("failed to create swiss round: %w", err)
	}
	return nil
}

func (r *postgresRoundRepository) ListByTournament(ctx context.Context, tournamentID int) ([]*models.SwissRound, error) {
	query := `
		SELECT id, tournament_id, number, created_at
		FROM swiss_rounds
		WHERE tournament_id = $1
		ORDER BY number`

	rows, err := r.db.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list swiss rounds for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	var rounds []*models.SwissRound
	for rows.Next() {
		round := &models.SwissRound{}
		if err := rows.Scan(&round.ID, &round.TournamentID, &round.Number, &round.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan swiss round row: %w", err)
		}
		rounds = append(rounds, round)
	}
	return rounds, rows.Err()
}

func (r *postgresRoundRepository) GetByNumber(ctx context.Context, tournamentID, number int) (*models.SwissRound, error) {
	query := `
		SELECT id, tournament_id, number, created_at
		FROM swiss_rounds
		WHERE tournament_id = $1 AND number = $2`

	round := &models.SwissRound{}
	err := r.db.QueryRowContext(ctx, query, tournamentID, number).
		Scan(&round.ID, &round.TournamentID, &round.Number, &round.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoundNotFound
		}
		return nil, fmt.Errorf("failed to scan swiss round %d of tournament %d: %w", number, tournamentID, err)
	}
	return round, nil
}

func (r *postgresRoundRepository) Delete(ctx context.Context, exec SQLExecutor, id int) error {
	if exec == nil {
		exec = r.db
	}
	result, err := exec.ExecContext(ctx, `DELETE FROM swiss_rounds WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete swiss round %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrRoundNotFound)
}
