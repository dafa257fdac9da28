package services

import (
	"context"
	"database/sql"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/nrc-robotics/tournament-system/models"
	"github.com/nrc-robotics/tournament-system/repositories"
)

// Колонки реестра регистраций. Обязательны team_name, robot_name и
// robot_class, остальное опционально.
const (
	colTeamName    = "team_name"
	colTeamAddress = "team_address"
	colTeamPhone   = "team_phone"
	colTeamEmail   = "team_email"
	colRobotName   = "robot_name"
	colRobotClass  = "robot_class"
	colWaitlist    = "waitlist"
	colFeePaid     = "fee_paid"
	colComments    = "comments"
	colPlayerFirst = "player_first_name"
	colPlayerLast  = "player_last_name"
	colPlayerEmail = "player_email"
)

type RowError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ImportReport — итог загрузки реестра. Ошибочные строки не прерывают
// импорт, а попадают в отчёт.
type ImportReport struct {
	BatchID        string     `json:"batch_id"`
	RowsTotal      int        `json:"rows_total"`
	TeamsCreated   int        `json:"teams_created"`
	RobotsCreated  int        `json:"robots_created"`
	PlayersCreated int        `json:"players_created"`
	Errors         []RowError `json:"errors"`
}

type CSVImportService interface {
	// ImportRoster читает CSV-реестр регистраций: одна строка — робот
	// вместе со своей командой и, опционально, пилотом. Команды
	// дедуплицируются по имени внутри турнира.
	ImportRoster(ctx context.Context, tournamentID int, r io.Reader) (*ImportReport, error)
}

type csvImportService struct {
	db             *sql.DB
	teamRepo       repositories.TeamRepository
	rosterRepo     repositories.RosterRepository
	tournamentRepo repositories.TournamentRepository
	logger         *slog.Logger
}

func NewCSVImportService(
	db *sql.DB,
	teamRepo repositories.TeamRepository,
	rosterRepo repositories.RosterRepository,
	tournamentRepo repositories.TournamentRepository,
	logger *slog.Logger,
) CSVImportService {
	return &csvImportService{
		db:             db,
		teamRepo:       teamRepo,
		rosterRepo:     rosterRepo,
		tournamentRepo: tournamentRepo,
		logger:         logger,
	}
}

func (s *csvImportService) ImportRoster(ctx context.Context, tournamentID int, r io.Reader) (*ImportReport, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	if tournament.Status != models.StatusSetup && tournament.Status != models.StatusRegistration {
		return nil, ErrRegistrationClosed
	}

	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	// Строки с лишними/недостающими полями попадают в отчёт, а не
	// валят весь импорт.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: cannot read csv header: %v", ErrValidationFailed, err)
	}
	columns := mapHeader(header)
	for _, required := range []string{colTeamName, colRobotName, colRobotClass} {
		if _, ok := columns[required]; !ok {
			return nil, fmt.Errorf("%w: missing required column %q", ErrValidationFailed, required)
		}
	}

	report := &ImportReport{BatchID: uuid.NewString()}

	// Команды, созданные или найденные в рамках этого импорта.
	teamIDs := make(map[string]int)
	existing, err := s.teamRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	for _, t := range existing {
		teamIDs[strings.ToLower(t.Name)] = t.ID
	}

	classes, err := s.rosterRepo.ListRobotClasses(ctx)
	if err != nil {
		return nil, err
	}
	classIDs := make(map[string]int, len(classes))
	for _, c := range classes {
		classIDs[strings.ToLower(c.Name)] = c.ID
	}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			report.Errors = append(report.Errors, RowError{Line: line, Message: err.Error()})
			continue
		}
		report.RowsTotal++

		row := func(col string) string {
			idx, ok := columns[col]
			if !ok || idx >= len(record) {
				return ""
			}
			return sanitizeField(record[idx])
		}

		if err := s.importRow(ctx, tournamentID, row, teamIDs, classIDs, report); err != nil {
			report.Errors = append(report.Errors, RowError{Line: line, Message: err.Error()})
		}
	}

	s.logger.Info("roster import finished",
		slog.String("batch_id", report.BatchID),
		slog.Int("tournament_id", tournamentID),
		slog.Int("rows", report.RowsTotal),
		slog.Int("teams", report.TeamsCreated),
		slog.Int("robots", report.RobotsCreated),
		slog.Int("errors", len(report.Errors)),
	)
	return report, nil
}

// importRow проводит одну строку реестра в одной транзакции.
func (s *csvImportService) importRow(
	ctx context.Context,
	tournamentID int,
	row func(string) string,
	teamIDs map[string]int,
	classIDs map[string]int,
	report *ImportReport,
) error {
	teamName := row(colTeamName)
	if teamName == "" {
		return fmt.Errorf("team name is empty")
	}
	robotName := row(colRobotName)
	if robotName == "" {
		return fmt.Errorf("robot name is empty")
	}
	className := row(colRobotClass)
	classID, ok := classIDs[strings.ToLower(className)]
	if !ok {
		return fmt.Errorf("unknown robot class %q", className)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	teamCreated := false
	teamID, ok := teamIDs[strings.ToLower(teamName)]
	if !ok {
		team := &models.Team{
			TournamentID: tournamentID,
			Name:         teamName,
			Address:      optionalField(row(colTeamAddress)),
			Phone:        optionalField(cleanPhone(row(colTeamPhone))),
			Email:        optionalField(row(colTeamEmail)),
		}
		if err := s.teamRepo.Create(ctx, tx, team); err != nil {
			return fmt.Errorf("failed to create team %q: %w", teamName, err)
		}
		teamID = team.ID
		teamCreated = true
	}

	robot := &models.Robot{
		TeamID:       teamID,
		RobotClassID: classID,
		Name:         robotName,
		Waitlist:     parseFlag(row(colWaitlist)),
		FeePaid:      parseFlag(row(colFeePaid)),
		Comments:     optionalField(row(colComments)),
	}
	if err := s.rosterRepo.CreateRobot(ctx, tx, robot); err != nil {
		return fmt.Errorf("failed to create robot %q: %w", robotName, err)
	}

	playerCreated := false
	if first := row(colPlayerFirst); first != "" {
		player := &models.Player{
			TeamID:    teamID,
			FirstName: first,
			LastName:  row(colPlayerLast),
			Email:     optionalField(row(colPlayerEmail)),
		}
		if err := s.rosterRepo.CreatePlayer(ctx, tx, player); err != nil {
			return fmt.Errorf("failed to create player %q: %w", first, err)
		}
		playerCreated = true
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit row: %w", err)
	}

	if teamCreated {
		teamIDs[strings.ToLower(teamName)] = teamID
		report.TeamsCreated++
	}
	report.RobotsCreated++
	if playerCreated {
		report.PlayersCreated++
	}
	return nil
}

// mapHeader нормализует заголовки: регистр, пробелы, BOM.
func mapHeader(header []string) map[string]int {
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimPrefix(name, "\uFEFF")
		name = strings.ToLower(sanitizeField(name))
		name = strings.ReplaceAll(name, " ", "_")
		if name != "" {
			columns[name] = i
		}
	}
	return columns
}

const maxFieldLength = 255

// sanitizeField чистит сырое значение из таблицы регистраций:
// управляющие символы, краевые пробелы, повторные пробелы, длина.
func sanitizeField(value string) string {
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		if r < 0x20 || r == 0x7f {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	cleaned := strings.Join(strings.Fields(b.String()), " ")
	if len(cleaned) > maxFieldLength {
		cleaned = cleaned[:maxFieldLength]
	}
	return cleaned
}

// cleanPhone оставляет только цифры и ведущий плюс.
func cleanPhone(value string) string {
	var b strings.Builder
	for i, r := range value {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func parseFlag(value string) bool {
	switch strings.ToLower(value) {
	case "1", "true", "yes", "y", "x":
		return true
	}
	return false
}

func optionalField(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
