package services

import "errors"

// Общие ошибки, используемые в разных сервисах и маппинге HTTP.
var (
	// Ресурс не найден (универсальная)
	ErrNotFound = errors.New("requested resource not found")

	// Ошибки валидации и бизнес-правил
	ErrValidationFailed       = errors.New("validation failed")
	ErrPasswordTooShort       = errors.New("password is too short")
	ErrTeamNameRequired       = errors.New("team name is required")
	ErrTournamentNameRequired = errors.New("tournament name is required")
	ErrInvalidFormat          = errors.New("invalid tournament format")
	ErrInvalidDateRange       = errors.New("tournament end date must be after start date")
	ErrRegistrationClosed     = errors.New("tournament registration is not open")
	ErrRosterLocked           = errors.New("roster can no longer be modified")
	ErrNotEnoughTeams         = errors.New("not enough teams to start the phase")
	ErrSwissPhaseNotActive    = errors.New("tournament is not in the swiss phase")
	ErrElimPhaseNotActive     = errors.New("tournament is not in the elimination phase")
	ErrSwissRoundsIncomplete  = errors.New("current swiss round still has unfinished matches")
	ErrRoundHasResults        = errors.New("round has recorded results and cannot be regenerated")
	ErrBracketIncomplete      = errors.New("elimination bracket has no champion yet")
	ErrBracketAlreadyBuilt    = errors.New("elimination bracket already generated")
	ErrPhaseConflict          = errors.New("tournament phase changed concurrently")

	// Ошибки конфликтов
	ErrUserEmailConflict      = errors.New("email address is already in use")
	ErrTeamNameConflict       = errors.New("team name is already in use in this tournament")
	ErrTournamentNameConflict = errors.New("tournament name already exists")
	ErrRobotClassConflict     = errors.New("robot class name already exists")
	ErrMatchAlreadyReported   = errors.New("match result is already recorded")

	// Ошибки аутентификации и авторизации
	ErrAuthInvalidCredentials = errors.New("invalid email or password")
	ErrForbiddenOperation     = errors.New("operation not allowed for the current user")

	// Ошибки, специфичные для сущностей
	ErrUserNotFound       = errors.New("user not found")
	ErrTeamNotFound       = errors.New("team not found")
	ErrRobotNotFound      = errors.New("robot not found")
	ErrRobotClassNotFound = errors.New("robot class not found")
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrMatchNotFound      = errors.New("match not found")
	ErrRoundNotFound      = errors.New("swiss round not found")
)
