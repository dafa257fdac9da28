package engine

import (
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/nrc-robotics/tournament-system/models"
)

// SwissOptions управляет генерацией тура.
type SwissOptions struct {
	Scoring ScoringTable
	// Rand задаёт порядок первого тура, когда посев не указан.
	// При nil используется порядок, в котором передан список команд.
	Rand *rand.Rand
	// Now — временная отметка создаваемых матчей.
	Now time.Time
}

// SwissPairing — результат генерации тура: сам тур и список пар, для
// которых пришлось ослабить запрет на повторные встречи.
type SwissPairing struct {
	Round         *models.SwissRound
	ForcedRepeats [][2]int
}

type swissCand struct {
	team     *models.Team
	points   int
	tieBreak int
	pos      int // позиция в текущей таблице, 0 = лидер
	band     int // индекс очковой группы, 0 = верхняя
}

type pairKey [2]int

func keyFor(a, b int) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// NextSwissRound строит тур roundNumber из состава и истории туров
// 1..roundNumber-1. Функция чистая: никакого ввода-вывода, результат
// полностью определяется аргументами.
//
// Первый тур: при наличии посева — рассечение поля пополам (1-й против
// середины списка), иначе порядок задаёт вызывающий. Последующие туры:
// очковые группы по сумме очков, внутри группы пары подбираются без
// повторов и по близости тай-брейка; нечётная группа спускает свою
// нижнюю команду в следующую (downfloat). Bye получает не более одной
// команды за тур — нижняя из ещё не получавших.
func NextSwissRound(tournamentID int, teams []*models.Team, history []*models.Match, roundNumber int, opts SwissOptions) (*SwissPairing, error) {
	if len(teams) < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientTeams, len(teams))
	}
	if roundNumber < 1 {
		return nil, fmt.Errorf("invalid round number %d", roundNumber)
	}

	played := make(map[pairKey]bool)
	hadBye := make(map[int]bool)
	seq := 0
	for _, m := range history {
		if m.Kind != models.MatchKindSwiss {
			continue
		}
		seq++
		if m.Round == roundNumber {
			return nil, fmt.Errorf("%w: round %d", ErrRoundAlreadyGenerated, roundNumber)
		}
		if m.TeamAID != nil && m.TeamBID != nil {
			played[keyFor(*m.TeamAID, *m.TeamBID)] = true
		}
		if m.IsBye() {
			hadBye[*m.TeamAID] = true
		}
	}

	var (
		pairs  [][2]*models.Team
		byeFor *models.Team
		forced [][2]int
	)
	if roundNumber == 1 {
		pairs, byeFor = firstRoundPairs(teams, opts.Rand)
	} else {
		var err error
		pairs, byeFor, forced, err = standingsPairs(teams, history, hadBye, played, opts.Scoring)
		if err != nil {
			return nil, err
		}
	}

	now := opts.Now
	round := &models.SwissRound{
		TournamentID: tournamentID,
		Number:       roundNumber,
		CreatedAt:    now,
	}
	forcedSet := make(map[pairKey]bool, len(forced))
	for _, f := range forced {
		forcedSet[keyFor(f[0], f[1])] = true
	}
	for slot, p := range pairs {
		a, b := p[0].ID, p[1].ID
		round.Matches = append(round.Matches, &models.Match{
			TournamentID: tournamentID,
			Kind:         models.MatchKindSwiss,
			Round:        roundNumber,
			Slot:         slot,
			TeamAID:      &a,
			TeamBID:      &b,
			Status:       models.MatchScheduled,
			ForcedRepeat: forcedSet[keyFor(a, b)],
			Seq:          seq + slot,
			CreatedAt:    now,
		})
	}
	if byeFor != nil {
		bye := NewByeMatch(tournamentID, models.MatchKindSwiss, nil, roundNumber, len(pairs), byeFor.ID, seq+len(pairs), now)
		round.Matches = append(round.Matches, bye)
	}

	return &SwissPairing{Round: round, ForcedRepeats: forced}, nil
}

// firstRoundPairs рассекает посеянное поле пополам: ранг 1 играет с
// серединой списка, как принято в швейцарской системе. Без посева
// порядок перемешивает rng (или оставляется как передан).
func firstRoundPairs(teams []*models.Team, rng *rand.Rand) ([][2]*models.Team, *models.Team) {
	order := make([]*models.Team, len(teams))
	copy(order, teams)

	if anySeeded(teams) {
		sort.SliceStable(order, func(i, j int) bool {
			if d := seedCompare(order[i].Seed, order[j].Seed); d != 0 {
				return d < 0
			}
			return order[i].ID < order[j].ID
		})
	} else if rng != nil {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}

	var bye *models.Team
	if len(order)%2 == 1 {
		// В первом туре пропуск достаётся нижней строке посева.
		bye = order[len(order)-1]
		order = order[:len(order)-1]
	}

	half := len(order) / 2
	pairs := make([][2]*models.Team, 0, half)
	for i := 0; i < half; i++ {
		pairs = append(pairs, [2]*models.Team{order[i], order[i+half]})
	}
	return pairs, bye
}

func anySeeded(teams []*models.Team) bool {
	for _, t := range teams {
		if t.Seed != nil {
			return true
		}
	}
	return false
}

// standingsPairs строит пары туров N+1 по очковым группам текущей
// таблицы. Bye выбирается до группировки и исключается из пула.
func standingsPairs(teams []*models.Team, history []*models.Match, hadBye map[int]bool, played map[pairKey]bool, scoring ScoringTable) ([][2]*models.Team, *models.Team, [][2]int, error) {
	standings := ComputeStandings(teams, history, StandingsOptions{Scoring: scoring})

	byID := make(map[int]*models.Team, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
	}

	cands := make([]*swissCand, 0, len(standings))
	band, lastPoints := -1, 0
	for pos, entry := range standings {
		if band < 0 || entry.Points != lastPoints {
			band++
			lastPoints = entry.Points
		}
		cands = append(cands, &swissCand{
			team:     byID[entry.TeamID],
			points:   entry.Points,
			tieBreak: entry.TieBreak,
			pos:      pos,
			band:     band,
		})
	}

	var bye *models.Team
	if len(cands)%2 == 1 {
		idx := byeIndex(cands, hadBye)
		bye = cands[idx].team
		cands = append(cands[:idx:idx], cands[idx+1:]...)
	}

	pairs, forced := pairBands(cands, played)
	teamPairs := make([][2]*models.Team, len(pairs))
	for i, p := range pairs {
		teamPairs[i] = [2]*models.Team{p[0].team, p[1].team}
	}
	return teamPairs, bye, forced, nil
}

// byeIndex выбирает получателя bye: нижняя команда таблицы, ещё не
// имевшая пропуска; если пропуск был у всех — просто нижняя.
func byeIndex(cands []*swissCand, hadBye map[int]bool) int {
	for i := len(cands) - 1; i >= 0; i-- {
		if !hadBye[cands[i].team.ID] {
			return i
		}
	}
	return len(cands) - 1
}

// pairBands обходит очковые группы сверху вниз. Нечётная группа
// спускает в следующую одну команду: предпочтительно нижнюю по рангу,
// но если её спуск не оставляет группе бесповторного разбиения —
// ближайшую выше, которая оставляет. Чётная группа без бесповторного
// разбиения спускает две нижние, для которых разбиение остатка
// существует: повтор форсируется только когда спускать уже некуда.
func pairBands(cands []*swissCand, played map[pairKey]bool) ([][2]*swissCand, [][2]int) {
	maxBand := -1
	for _, c := range cands {
		if c.band > maxBand {
			maxBand = c.band
		}
	}

	var (
		pairs  [][2]*swissCand
		forced [][2]int
		carry  []*swissCand
	)
	for b := 0; b <= maxBand; b++ {
		group := carry
		carry = nil
		for _, c := range cands {
			if c.band == b {
				group = append(group, c)
			}
		}
		if len(group) == 0 {
			continue
		}

		if b < maxBand {
			if len(group)%2 == 1 {
				down := len(group) - 1
				for i := len(group) - 1; i >= 0; i-- {
					if _, ok := searchPairs(without(group, i), played, 0); ok {
						down = i
						break
					}
				}
				carry = append(carry, group[down])
				group = without(group, down)
			} else if _, ok := searchPairs(group, played, 0); !ok {
			floatPair:
				for i := len(group) - 1; i >= 1; i-- {
					for j := i - 1; j >= 0; j-- {
						rest := without(without(group, i), j)
						if _, ok := searchPairs(rest, played, 0); ok {
							carry = append(carry, group[j], group[i])
							group = rest
							break floatPair
						}
					}
				}
			}
		}

		groupPairs, groupForced := pairWithMinimalRepeats(group, played)
		pairs = append(pairs, groupPairs...)
		forced = append(forced, groupForced...)
	}
	// Общее число команд чётно, поэтому после нижней группы переноса
	// не остаётся.
	return pairs, forced
}

func without(group []*swissCand, i int) []*swissCand {
	rest := make([]*swissCand, 0, len(group)-1)
	rest = append(rest, group[:i]...)
	rest = append(rest, group[i+1:]...)
	return rest
}

// pairWithMinimalRepeats ослабляет запрет на повторы для минимально
// необходимое число пар: бюджет повторов растёт с нуля, пока разбиение
// не найдено.
func pairWithMinimalRepeats(group []*swissCand, played map[pairKey]bool) ([][2]*swissCand, [][2]int) {
	for budget := 0; budget <= len(group)/2; budget++ {
		if pairs, ok := searchPairs(group, played, budget); ok {
			var forced [][2]int
			for _, p := range pairs {
				if played[keyFor(p[0].team.ID, p[1].team.ID)] {
					forced = append(forced, [2]int{p[0].team.ID, p[1].team.ID})
				}
			}
			return pairs, forced
		}
	}
	return nil, nil // недостижимо: при budget == len/2 любое разбиение допустимо
}

// searchPairs — поиск с возвратом: первой паруется верхняя команда
// группы, партнёры перебираются по близости тай-брейка (повторные
// встречи — в последнюю очередь и только в рамках бюджета).
func searchPairs(group []*swissCand, played map[pairKey]bool, repeatBudget int) ([][2]*swissCand, bool) {
	if len(group) == 0 {
		return nil, true
	}
	first := group[0]
	rest := group[1:]

	partners := make([]int, len(rest))
	for i := range partners {
		partners[i] = i
	}
	sort.SliceStable(partners, func(x, y int) bool {
		px, py := rest[partners[x]], rest[partners[y]]
		rx := played[keyFor(first.team.ID, px.team.ID)]
		ry := played[keyFor(first.team.ID, py.team.ID)]
		if rx != ry {
			return !rx
		}
		dx := absInt(first.tieBreak - px.tieBreak)
		dy := absInt(first.tieBreak - py.tieBreak)
		if dx != dy {
			return dx < dy
		}
		return px.pos < py.pos
	})

	for _, pi := range partners {
		partner := rest[pi]
		repeat := played[keyFor(first.team.ID, partner.team.ID)]
		if repeat && repeatBudget == 0 {
			continue
		}
		budget := repeatBudget
		if repeat {
			budget--
		}
		remaining := without(rest, pi)
		if sub, ok := searchPairs(remaining, played, budget); ok {
			return append([][2]*swissCand{{first, partner}}, sub...), true
		}
	}
	return nil, false
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
