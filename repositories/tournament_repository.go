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
	ErrTournamentNotFound      = errors.New("tournament not found")
	ErrTournamentNameConflict  = errors.New("tournament name conflict")
	ErrTournamentStatusChanged = errors.New("tournament status changed concurrently")
)

type TournamentRepository interface {
	Create(ctx context.Context, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	List(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error)
	ListDueForStart(ctx context.Context) ([]*models.Tournament, error)
	Update(ctx context.Context, tournament *models.Tournament) error
	// UpdateStatus — compare-and-swap: статус меняется, только если в
	// базе всё ещё expected. Гонка двух организаторов разрешается в
	// пользу первого.
	UpdateStatus(ctx context.Context, exec SQLExecutor, id int, expected, next models.TournamentStatus) error
	UpdateLogoKey(ctx context.Context, id int, logoKey *string) error
	Delete(ctx context.Context, id int) error
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

const tournamentColumns = `id, name, format, status, swiss_rounds, organizer_id,
	location, description, start_date, end_date, created_at, updated_at, logo_key`

func scanTournament(row interface{ Scan(...interface{}) error }) (*models.Tournament, error) {
	t := &models.Tournament{}
	err := row.Scan(
		&t.ID,
		&t.Name,
		&t.Format,
		&t.Status,
		&t.SwissRounds,
		&t.OrganizerID,
		&t.Location,
		&t.Description,
		&t.StartDate,
		&t.EndDate,
		&t.CreatedAt,
		&t.UpdatedAt,
		&t.LogoKey,
	)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) Create(ctx context.Context, tournament *models.Tournament) error {
	query := `
		INSERT INTO tournaments
			(name, format, status, swiss_rounds, organizer_id, location, description, start_date, end_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		tournament.Name,
		tournament.Format,
		tournament.Status,
		tournament.SwissRounds,
		tournament.OrganizerID,
		tournament.Location,
		tournament.Description,
		tournament.StartDate,
		tournament.EndDate,
	).Scan(&tournament.ID, &tournament.CreatedAt, &tournament.UpdatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "tournaments_name_key" {
			return ErrTournamentNameConflict
		}
		return fmt.Errorf("failed to create tournament: %w", err)
	}
	return nil
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	query := fmt.Sprintf(`SELECT %s FROM tournaments WHERE id = $1`, tournamentColumns)
	t, err := scanTournament(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, fmt.Errorf("failed to scan tournament %d: %w", id, err)
	}
	return t, nil
}

func (r *postgresTournamentRepository) List(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error) {
	query := fmt.Sprintf(`SELECT %s FROM tournaments`, tournamentColumns)
	args := []interface{}{}
	if status != nil {
		query += ` WHERE status = $1`
		args = append(args, *status)
	}
	query += ` ORDER BY start_date NULLS LAST, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments: %w", err)
	}
	defer rows.Close()

	var tournaments []*models.Tournament
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		tournaments = append(tournaments, t)
	}
	return tournaments, rows.Err()
}

// ListDueForStart — турниры в registration, у которых дата старта уже
// наступила. Вход планировщика автоматического открытия.
func (r *postgresTournamentRepository) ListDueForStart(ctx context.Context) ([]*models.Tournament, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM tournaments
		WHERE status = $1 AND start_date IS NOT NULL AND start_date <= now()
		ORDER BY start_date`, tournamentColumns)

	rows, err := r.db.QueryContext(ctx, query, models.StatusRegistration)
	if err != nil {
		return nil, fmt.Errorf("failed to list tournaments due for start: %w", err)
	}
	defer rows.Close()

	var tournaments []*models.Tournament
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan tournament row: %w", err)
		}
		tournaments = append(tournaments, t)
	}
	return tournaments, rows.Err()
}

func (r *postgresTournamentRepository) Update(ctx context.Context, tournament *models.Tournament) error {
	query := `
		UPDATE tournaments
		SET name = $1, swiss_rounds = $2, location = $3, description = $4,
		    start_date = $5, end_date = $6, updated_at = now()
		WHERE id = $7`

	result, err := r.db.ExecContext(ctx, query,
		tournament.Name,
		tournament.SwissRounds,
		tournament.Location,
		tournament.Description,
		tournament.StartDate,
		tournament.EndDate,
		tournament.ID,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "tournaments_name_key" {
			return ErrTournamentNameConflict
		}
		return fmt.Errorf("failed to update tournament %d: %w", tournament.ID, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) UpdateStatus(ctx context.Context, exec SQLExecutor, id int, expected, next models.TournamentStatus) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		UPDATE tournaments
		SET status = $1, updated_at = now()
		WHERE id = $2 AND status = $3`

	result, err := exec.ExecContext(ctx, query, next, id, expected)
	if err != nil {
		return fmt.Errorf("failed to update status of tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentStatusChanged)
}

func (r *postgresTournamentRepository) UpdateLogoKey(ctx context.Context, id int, logoKey *string) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE tournaments SET logo_key = $1, updated_at = now() WHERE id = $2`, logoKey, id)
	if err != nil {
		return fmt.Errorf("failed to update logo key for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) Delete(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM tournaments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}
