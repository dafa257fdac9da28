package engine

import (
	"sort"

	"github.com/nrc-robotics/tournament-system/models"
)

// ScoringTable задаёт очки за исход матча. Bye считается победой.
type ScoringTable struct {
	Win  int
	Tie  int
	Loss int
}

// DefaultScoring — стандартная таблица: победа 3, ничья 1, поражение 0.
func DefaultScoring() ScoringTable {
	return ScoringTable{Win: 3, Tie: 1, Loss: 0}
}

// StandingsOptions управляет подсчётом таблицы.
type StandingsOptions struct {
	Scoring ScoringTable
	// StrictRanks запрещает делёж мест: ранги всегда 1..N по порядку
	// сортировки. По умолчанию равные по всем тай-брейкам команды
	// делят место по схеме соревновательного ранжирования (1,2,2,4).
	StrictRanks bool
}

type teamRecord struct {
	team      *models.Team
	wins      int
	losses    int
	ties      int
	byes      int
	points    int
	tieBreak  int
	opponents []int
}

// ComputeStandings пересчитывает таблицу целиком из истории матчей.
// Алгоритм двухпроходный: сначала очки всех команд, затем тай-брейк
// Бухгольца (сумма очков сыгранных соперников). Результат детерминирован:
// никакой зависимости от порядка вставки или обхода map.
func ComputeStandings(teams []*models.Team, matches []*models.Match, opts StandingsOptions) []models.StandingEntry {
	records := make(map[int]*teamRecord, len(teams))
	ordered := make([]*teamRecord, 0, len(teams))
	for _, t := range teams {
		rec := &teamRecord{team: t}
		records[t.ID] = rec
		ordered = append(ordered, rec)
	}

	// Счёт личных встреч: h2h[[a,b]] = победы a над b.
	h2h := make(map[[2]int]int)

	// Первый проход: победы/поражения/ничьи и очки.
	for _, m := range matches {
		switch m.Status {
		case models.MatchByeCompleted:
			if m.TeamAID == nil {
				continue
			}
			if rec, ok := records[*m.TeamAID]; ok {
				rec.byes++
				rec.wins++
				rec.points += opts.Scoring.Win
			}
		case models.MatchCompleted:
			if m.TeamAID == nil || m.TeamBID == nil {
				continue
			}
			recA, okA := records[*m.TeamAID]
			recB, okB := records[*m.TeamBID]
			if !okA || !okB {
				continue
			}
			recA.opponents = append(recA.opponents, *m.TeamBID)
			recB.opponents = append(recB.opponents, *m.TeamAID)
			switch {
			case m.WinnerID == nil:
				recA.ties++
				recB.ties++
				recA.points += opts.Scoring.Tie
				recB.points += opts.Scoring.Tie
			case *m.WinnerID == *m.TeamAID:
				recA.wins++
				recB.losses++
				recA.points += opts.Scoring.Win
				recB.points += opts.Scoring.Loss
				h2h[[2]int{*m.TeamAID, *m.TeamBID}]++
			default:
				recB.wins++
				recA.losses++
				recB.points += opts.Scoring.Win
				recA.points += opts.Scoring.Loss
				h2h[[2]int{*m.TeamBID, *m.TeamAID}]++
			}
		}
	}

	// Второй проход: тай-брейк считается только после того, как очки
	// известны для всех команд.
	for _, rec := range ordered {
		for _, oppID := range rec.opponents {
			if opp, ok := records[oppID]; ok {
				rec.tieBreak += opp.points
			}
		}
	}

	sort.Slice(ordered, func(i, j int) bool {
		return standingLess(ordered[i], ordered[j], h2h)
	})

	entries := make([]models.StandingEntry, len(ordered))
	for i, rec := range ordered {
		rank := i + 1
		if !opts.StrictRanks && i > 0 && rankKeyEqual(ordered[i-1], rec, h2h) {
			rank = entries[i-1].Rank
		}
		entries[i] = models.StandingEntry{
			TeamID:        rec.team.ID,
			TeamName:      rec.team.Name,
			Rank:          rank,
			Wins:          rec.wins,
			Losses:        rec.losses,
			Ties:          rec.ties,
			Byes:          rec.byes,
			Points:        rec.points,
			TieBreak:      rec.tieBreak,
			MatchesPlayed: rec.wins + rec.losses + rec.ties,
		}
	}
	return entries
}

// standingLess упорядочивает по: очки ↓, тай-брейк ↓, личная встреча,
// посев ↑, id команды ↑ (последний — детерминированная страховка).
func standingLess(a, b *teamRecord, h2h map[[2]int]int) bool {
	if a.points != b.points {
		return a.points > b.points
	}
	if a.tieBreak != b.tieBreak {
		return a.tieBreak > b.tieBreak
	}
	if d := headToHead(a.team.ID, b.team.ID, h2h); d != 0 {
		return d > 0
	}
	if d := seedCompare(a.team.Seed, b.team.Seed); d != 0 {
		return d < 0
	}
	return a.team.ID < b.team.ID
}

// rankKeyEqual — команды делят место, только если равны по всем
// тай-брейкам: очкам, Бухгольцу, личной встрече и посеву.
func rankKeyEqual(a, b *teamRecord, h2h map[[2]int]int) bool {
	return a.points == b.points &&
		a.tieBreak == b.tieBreak &&
		headToHead(a.team.ID, b.team.ID, h2h) == 0 &&
		seedCompare(a.team.Seed, b.team.Seed) == 0
}

// headToHead возвращает >0, если a чаще побеждал b в личных встречах,
// <0 — наоборот, 0 — встреч не было или баланс равный.
func headToHead(a, b int, h2h map[[2]int]int) int {
	return h2h[[2]int{a, b}] - h2h[[2]int{b, a}]
}

// seedCompare: меньший посев сильнее; отсутствие посева — слабее любого.
func seedCompare(a, b *int) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	default:
		return *a - *b
	}
}
