package engine

import "errors"

// Ошибки движка — локальные отказы валидации. Возвращаются вызывающему
// без повторов: повторный вызов без исправления состояния воспроизведёт
// ту же ошибку. Слой API сам мапит их в коды ответов.
var (
	ErrInsufficientTeams     = errors.New("at least 2 teams are required")
	ErrRoundAlreadyGenerated = errors.New("swiss round has already been generated")
	ErrBracketAlreadyExists  = errors.New("elimination bracket already exists")
	ErrDuplicateBracketType  = errors.New("conflicting matches occupy the same bracket position")
	ErrInvalidTransition     = errors.New("invalid match state transition")
	ErrWinnerNotParticipant  = errors.New("declared winner is not a participant of the match")
	ErrAlreadyCompleted      = errors.New("match result has already been recorded")
	ErrNegativeScore         = errors.New("scores must be non-negative")
	ErrPhaseAlreadyAdvanced  = errors.New("tournament phase has already advanced")
	ErrMatchNotInBracket     = errors.New("match does not belong to this bracket")
)
