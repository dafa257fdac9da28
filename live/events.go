package live

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType — тип события, рассылаемого в комнату турнира.
type EventType string

const (
	EventMatchStarted      EventType = "MATCH_STARTED"
	EventMatchCompleted    EventType = "MATCH_COMPLETED"
	EventMatchCancelled    EventType = "MATCH_CANCELLED"
	EventRoundGenerated    EventType = "ROUND_GENERATED"
	EventBracketUpdated    EventType = "BRACKET_UPDATED"
	EventStandingsUpdated  EventType = "STANDINGS_UPDATED"
	EventTournamentUpdated EventType = "TOURNAMENT_UPDATED"
)

// Event — конверт события: уникальный id позволяет клиентам
// дедуплицировать сообщения при переподключении.
type Event struct {
	ID      string      `json:"id"`
	Type    EventType   `json:"type"`
	RoomID  string      `json:"room_id,omitempty"`
	SentAt  time.Time   `json:"sent_at"`
	Payload interface{} `json:"payload"`
}

// NewEvent собирает конверт события для комнаты турнира.
func NewEvent(eventType EventType, tournamentID int, payload interface{}) Event {
	return Event{
		ID:      uuid.NewString(),
		Type:    eventType,
		RoomID:  RoomForTournament(tournamentID),
		SentAt:  time.Now().UTC(),
		Payload: payload,
	}
}

// RoomForTournament — имя комнаты, в которую подписываются зрители.
func RoomForTournament(tournamentID int) string {
	return fmt.Sprintf("tournament_%d", tournamentID)
}
