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
	ErrRobotClassNotFound     = errors.New("robot class not found")
	ErrRobotClassNameConflict = errors.New("robot class name conflict")
	ErrRobotNotFound          = errors.New("robot not found")
	ErrRobotTeamInvalid       = errors.New("robot team or class invalid")
	ErrPlayerNotFound         = errors.New("player not found")
)

// RosterRepository объединяет состав команды: весовые категории,
// роботов и пилотов.
type RosterRepository interface {
	CreateRobotClass(ctx context.Context, class *models.RobotClass) error
	GetRobotClassByID(ctx context.Context, id int) (*models.RobotClass, error)
	GetRobotClassByName(ctx context.Context, name string) (*models.RobotClass, error)
	ListRobotClasses(ctx context.Context) ([]*models.RobotClass, error)

	CreateRobot(ctx context.Context, exec SQLExecutor, robot *models.Robot) error
	ListRobotsByTeam(ctx context.Context, teamID int) ([]models.Robot, error)
	UpdateRobot(ctx context.Context, robot *models.Robot) error
	DeleteRobot(ctx context.Context, id int) error

	CreatePlayer(ctx context.Context, exec SQLExecutor, player *models.Player) error
	ListPlayersByTeam(ctx context.Context, teamID int) ([]models.Player, error)
	DeletePlayer(ctx context.Context, id int) error
}

type postgresRosterRepository struct {
	db *sql.DB
}

func NewPostgresRosterRepository(db *sql.DB) RosterRepository {
	return &postgresRosterRepository{db: db}
}

func (r *postgresRosterRepository) CreateRobotClass(ctx context.Context, class *models.RobotClass) error {
	query := `
		INSERT INTO robot_classes
			(name, weight_limit_grams, match_duration_sec, pit_activation_sec,
			 button_delay_sec, button_duration_sec, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		class.Name,
		class.WeightLimitGrams,
		class.MatchDurationSec,
		class.PitActivationSec,
		class.ButtonDelaySec,
		class.ButtonDurationSec,
		class.Description,
	).Scan(&class.ID, &class.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" && pqErr.Constraint == "robot_classes_name_key" {
			return ErrRobotClassNameConflict
		}
		return fmt.Errorf("failed to create robot class: %w", err)
	}
	return nil
}

const robotClassColumns = `id, name, weight_limit_grams, match_duration_sec, pit_activation_sec,
	button_delay_sec, button_duration_sec, description, created_at`

func scanRobotClass(row interface{ Scan(...interface{}) error }) (*models.RobotClass, error) {
	class := &models.RobotClass{}
	err := row.Scan(
		&class.ID,
		&class.Name,
		&class.WeightLimitGrams,
		&class.MatchDurationSec,
		&class.PitActivationSec,
		&class.ButtonDelaySec,
		&class.ButtonDurationSec,
		&class.Description,
		&class.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return class, nil
}

func (r *postgresRosterRepository) GetRobotClassByID(ctx context.Context, id int) (*models.RobotClass, error) {
	query := fmt.Sprintf(`SELECT %s FROM robot_classes WHERE id = $1`, robotClassColumns)
	class, err := scanRobotClass(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRobotClassNotFound
		}
		return nil, fmt.Errorf("failed to scan robot class %d: %w", id, err)
	}
	return class, nil
}

func (r *postgresRosterRepository) GetRobotClassByName(ctx context.Context, name string) (*models.RobotClass, error) {
	query := fmt.Sprintf(`SELECT %s FROM robot_classes WHERE lower(name) = lower($1)`, robotClassColumns)
	class, err := scanRobotClass(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRobotClassNotFound
		}
		return nil, fmt.Errorf("failed to scan robot class %q: %w", name, err)
	}
	return class, nil
}

func (r *postgresRosterRepository) ListRobotClasses(ctx context.Context) ([]*models.RobotClass, error) {
	query := fmt.Sprintf(`SELECT %s FROM robot_classes ORDER BY weight_limit_grams`, robotClassColumns)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list robot classes: %w", err)
	}
	defer rows.Close()

	var classes []*models.RobotClass
	for rows.Next() {
		class, err := scanRobotClass(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan robot class row: %w", err)
		}
		classes = append(classes, class)
	}
	return classes, rows.Err()
}

func (r *postgresRosterRepository) CreateRobot(ctx context.Context, exec SQLExecutor, robot *models.Robot) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO robots (team_id, robot_class_id, name, waitlist, fee_paid, comments)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		robot.TeamID,
		robot.RobotClassID,
		robot.Name,
		robot.Waitlist,
		robot.FeePaid,
		robot.Comments,
	).Scan(&robot.ID, &robot.CreatedAt)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23503" {
			return ErrRobotTeamInvalid
		}
		return fmt.Errorf("failed to create robot: %w", err)
	}
	return nil
}

func (r *postgresRosterRepository) ListRobotsByTeam(ctx context.Context, teamID int) ([]models.Robot, error) {
	query := `
		SELECT id, team_id, robot_class_id, name, waitlist, fee_paid, comments, created_at
		FROM robots
		WHERE team_id = $1
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list robots for team %d: %w", teamID, err)
	}
	defer rows.Close()

	var robots []models.Robot
	for rows.Next() {
		var robot models.Robot
		err := rows.Scan(
			&robot.ID,
			&robot.TeamID,
			&robot.RobotClassID,
			&robot.Name,
			&robot.Waitlist,
			&robot.FeePaid,
			&robot.Comments,
			&robot.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan robot row: %w", err)
		}
		robots = append(robots, robot)
	}
	return robots, rows.Err()
}

func (r *postgresRosterRepository) UpdateRobot(ctx context.Context, robot *models.Robot) error {
	query := `
		UPDATE robots
		SET robot_class_id = $1, name = $2, waitlist = $3, fee_paid = $4, comments = $5
		WHERE id = $6`

	result, err := r.db.ExecContext(ctx, query,
		robot.RobotClassID,
		robot.Name,
		robot.Waitlist,
		robot.FeePaid,
		robot.Comments,
		robot.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update robot %d: %w", robot.ID, err)
	}
	return checkAffectedRows(result, ErrRobotNotFound)
}

func (r *postgresRosterRepository) DeleteRobot(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM robots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete robot %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrRobotNotFound)
}

func (r *postgresRosterRepository) CreatePlayer(ctx context.Context, exec SQLExecutor, player *models.Player) error {
	if exec == nil {
		exec = r.db
	}
	query := `
		INSERT INTO players (team_id, first_name, last_name, email)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`

	err := exec.QueryRowContext(ctx, query,
		player.TeamID,
		player.FirstName,
		player.LastName,
		player.Email,
	).Scan(&player.ID, &player.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create player: %w", err)
	}
	return nil
}

func (r *postgresRosterRepository) ListPlayersByTeam(ctx context.Context, teamID int) ([]models.Player, error) {
	query := `
		SELECT id, team_id, first_name, last_name, email, created_at
		FROM players
		WHERE team_id = $1
		ORDER BY id`

	rows, err := r.db.QueryContext(ctx, query, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list players for team %d: %w", teamID, err)
	}
	defer rows.Close()

	var players []models.Player
	for rows.Next() {
		var player models.Player
		err := rows.Scan(
			&player.ID,
			&player.TeamID,
			&player.FirstName,
			&player.LastName,
			&player.Email,
			&player.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player row: %w", err)
		}
		players = append(players, player)
	}
	return players, rows.Err()
}

func (r *postgresRosterRepository) DeletePlayer(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM players WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete player %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrPlayerNotFound)
}
