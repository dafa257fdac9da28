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
	ErrMatchNotFound      = errors.New("match not found")
	ErrMatchStatusChanged = errors.New("match status changed concurrently")
	ErrMatchTeamInvalid   = errors.New("match team conflict or invalid")
)

type MatchFilter struct {
	Kind    *models.MatchKind
	Round   *int
	Bracket *models.BracketKind
	Status  *models.MatchStatus
}

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	CreateBatch(ctx context.Context, exec SQLExecutor, matches []*models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	ListByTournament(ctx context.Context, tournamentID int, filter MatchFilter) ([]*models.Match, error)
	// UpdateStatus — compare-and-swap по статусу: обновление проходит,
	// только если матч всё ещё в expected. Повторный репорт результата
	// и гонки двух судей отсекаются на уровне базы.
	UpdateStatus(ctx context.Context, exec SQLExecutor, match *models.Match, expected models.MatchStatus) error
	UpdateParticipants(ctx context.Context, exec SQLExecutor, match *models.Match) error
	DeleteByTournamentAndRound(ctx context.Context, exec SQLExecutor, tournamentID int, kind models.MatchKind, round int) (int64, error)
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

const matchColumns = `id, tournament_id, kind, bracket, round, slot, team_a_id, team_b_id,
	status, winner_id, score_a, score_b, forced_repeat, seq, started_at, completed_at,
	cancel_reason, created_at`

func scanMatch(row interface{ Scan(...interface{}) error }) (*models.Match, error) {
	m := &models.Match{}
	err := row.Scan(
		&m.ID,
		&m.TournamentID,
		&m.Kind,
		&m.Bracket,
		&m.Round,
		&m.Slot,
		&m.TeamAID,
		&m.TeamBID,
		&m.Status,
		&m.WinnerID,
		&m.ScoreA,
		&m.ScoreB,
		&m.ForcedRepeat,
		&m.Seq,
		&m.StartedAt,
		&m.CompletedAt,
		&m.CancelReason,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO matches
			(tournament_id, kind, bracket, round, slot, team_a_id, team_b_id, status,
			 winner_id, score_a, score_b, forced_repeat, seq, started_at, completed_at, cancel_reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		match.TournamentID,
		match.Kind,
		match.Bracket,
		match.Round,
		match.Slot,
		match.TeamAID,
		match.TeamBID,
		match.Status,
		match.WinnerID,
		match.ScoreA,
		match.ScoreB,
		match.ForcedRepeat,
		match.Seq,
		match.StartedAt,
		match.CompletedAt,
		match.CancelReason,
	).Scan(&match.ID, &match.CreatedAt)

	return handleMatchError(err)
}

func (r *postgresMatchRepository) CreateBatch(ctx context.Context, exec SQLExecutor, matches []*models.Match) error {
	for _, match := range matches {
		if err := r.Create(ctx, exec, match); err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	query := fmt.Sprintf(`SELECT %s FROM matches WHERE id = $1`, matchColumns)
	m, err := scanMatch(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match %d: %w", id, err)
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int, filter MatchFilter) ([]*models.Match, error) {
	query := fmt.Sprintf(`SELECT %s FROM matches WHERE tournament_id = $1`, matchColumns)
	args := []interface{}{tournamentID}

	if filter.Kind != nil {
		args = append(args, *filter.Kind)
		query += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	if filter.Round != nil {
		args = append(args, *filter.Round)
		query += fmt.Sprintf(` AND round = $%d`, len(args))
	}
	if filter.Bracket != nil {
		args = append(args, *filter.Bracket)
		query += fmt.Sprintf(` AND bracket = $%d`, len(args))
	}
	if filter.Status != nil {
		args = append(args, *filter.Status)
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	query += ` ORDER BY seq, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches for tournament %d: %w", tournamentID, err)
	}
	defer rows.Close()

	var matches []*models.Match
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan match row: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (r *postgresMatchRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, match *models.Match, expected models.MatchStatus) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		UPDATE matches
		SET status = $1, winner_id = $2, score_a = $3, score_b = $4,
		    started_at = $5, completed_at = $6, cancel_reason = $7
		WHERE id = $8 AND status = $9`

	result, err := exec.ExecContext(ctx, query,
		match.Status,
		match.WinnerID,
		match.ScoreA,
		match.ScoreB,
		match.StartedAt,
		match.CompletedAt,
		match.CancelReason,
		match.ID,
		expected,
	)
	if err != nil {
		return handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchStatusChanged)
}

// UpdateParticipants пишет стороны слота сетки, проставленные
// продвижением, вместе с его текущим статусом и исходом: слот мог
// выродиться в bye.
func (r *postgresMatchRepository) UpdateParticipants(ctx context.Context, exec SQLExecutor, match *models.Match) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		UPDATE matches
		SET team_a_id = $1, team_b_id = $2, status = $3, winner_id = $4, completed_at = $5
		WHERE id = $6`

	result, err := exec.ExecContext(ctx, query,
		match.TeamAID,
		match.TeamBID,
		match.Status,
		match.WinnerID,
		match.CompletedAt,
		match.ID,
	)
	if err != nil {
		return handleMatchError(err)
	}
	return checkAffectedRows(result, ErrMatchNotFound)
}

func (r *postgresMatchRepository) DeleteByTournamentAndRound(ctx context.Context, exec SQLExecutor, tournamentID int, kind models.MatchKind, round int) (int64, error) {
	if exec == nil {
		exec = r.db
	}
	result, err := exec.ExecContext(ctx,
		`DELETE FROM matches WHERE tournament_id = $1 AND kind = $2 AND round = $3`,
		tournamentID, kind, round)
	if err != nil {
		return 0, fmt.Errorf("failed to delete matches of round %d: %w", round, err)
	}
	return result.RowsAffected()
}

func handleMatchError(err error) error {
	if err == nil {
		return nil
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23503" {
		return ErrMatchTeamInvalid
	}
	return fmt.Errorf("match repository: %w", err)
}
