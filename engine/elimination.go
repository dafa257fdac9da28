package engine

import (
	"fmt"
	"math/bits"
	"time"

	"github.com/nrc-robotics/tournament-system/models"
)

// Elimination — арена матчей олимпийской сетки, адресуемых парой
// (раунд, слот). Связи «родитель → ребёнок» не хранятся: подводящие
// матчи вычисляются из топологии, что делает снапшот состояния
// тривиальным (см. LoadElimination).
//
// При double elimination проигравший верхней сетки опускается в нижнюю
// по стандартному отображению раунда поражения; финал нижней сетки и
// финал верхней встречаются в гранд-финале с условным вторым матчем
// (bracket reset), если первый выигрывает финалист нижней сетки.
type Elimination struct {
	TournamentID int
	Double       bool

	// Winners[r][s] — матч слота s раунда r+1 верхней сетки.
	Winners [][]*models.Match
	// Losers[l][s] — нижняя сетка; nil-слот означает, что матч выродился
	// (оба подводящих оказались bye) и был удалён из арены.
	Losers [][]*models.Match
	// GrandFinal[0] — первый гранд-финал, GrandFinal[1] — матч
	// переигровки, создаваемый только при необходимости.
	GrandFinal []*models.Match

	seq int
}

// BuildElimination строит сетку из упорядоченного посева (лучший —
// первым). Поле дополняется bye до ближайшей степени двойки; bye
// достаются верхним строкам посева, так что сильнейшие проходят первый
// раунд автоматически. Рассадка стандартная: посев 1 против последнего
// слота, посев 2 против предпоследнего, рекурсивно — верхние посевы не
// встречаются раньше финала.
func BuildElimination(tournamentID int, seeds []*models.Team, double bool, now time.Time) (*Elimination, error) {
	n := len(seeds)
	if n < 2 {
		return nil, fmt.Errorf("%w: got %d", ErrInsufficientTeams, n)
	}

	numRounds := bits.Len(uint(n - 1)) // ceil(log2 n)
	padded := 1 << numRounds

	e := &Elimination{TournamentID: tournamentID, Double: double}
	wk := models.BracketWinners

	// Раунд 1 по рассадке посева.
	matchups := arrangeSeeds(numRounds)
	firstRound := make([]*models.Match, 0, padded/2)
	for slot, mu := range matchups {
		teamA := seedAt(seeds, mu[0])
		teamB := seedAt(seeds, mu[1])
		if teamA == nil {
			teamA, teamB = teamB, teamA
		}
		var m *models.Match
		if teamB == nil {
			m = NewByeMatch(tournamentID, models.MatchKindElimination, &wk, 1, slot, teamA.ID, e.seq, now)
		} else {
			a, b := teamA.ID, teamB.ID
			m = &models.Match{
				TournamentID: tournamentID,
				Kind:         models.MatchKindElimination,
				Bracket:      &wk,
				Round:        1,
				Slot:         slot,
				TeamAID:      &a,
				TeamBID:      &b,
				Status:       models.MatchScheduled,
				Seq:          e.seq,
				CreatedAt:    now,
			}
		}
		e.seq++
		firstRound = append(firstRound, m)
	}
	e.Winners = append(e.Winners, firstRound)

	// Последующие раунды — pending-слоты без участников.
	for r := 2; r <= numRounds; r++ {
		size := padded >> uint(r)
		e.Winners = append(e.Winners, e.makePendingRound(models.BracketWinners, r, size, now))
	}

	if double {
		for l := 1; l <= loserRoundCount(numRounds); l++ {
			size := loserRoundSize(padded, l)
			e.Losers = append(e.Losers, e.makePendingRound(models.BracketLosers, l, size, now))
		}
		e.GrandFinal = []*models.Match{e.makePending(models.BracketGrandFinal, 1, 0, now)}
	}

	// Продвигаем bye первого раунда; в нижней сетке это может выродить
	// часть слотов (оба подводящих — bye).
	for _, m := range firstRound {
		if m.Status == models.MatchByeCompleted {
			if _, err := e.Advance(m, now); err != nil {
				return nil, err
			}
		}
	}

	return e, nil
}

// LoadElimination восстанавливает арену из сохранённых матчей. Слоты,
// отсутствующие среди матчей, считаются выродившимися.
func LoadElimination(tournamentID int, double bool, matches []*models.Match) (*Elimination, error) {
	numRounds := 0
	for _, m := range matches {
		if m.Kind == models.MatchKindElimination && m.Bracket != nil && *m.Bracket == models.BracketWinners && m.Round > numRounds {
			numRounds = m.Round
		}
	}
	if numRounds == 0 {
		return nil, fmt.Errorf("no winners bracket matches for tournament %d", tournamentID)
	}
	padded := 1 << numRounds

	e := &Elimination{TournamentID: tournamentID, Double: double}
	for r := 1; r <= numRounds; r++ {
		e.Winners = append(e.Winners, make([]*models.Match, padded>>uint(r)))
	}
	if double {
		for l := 1; l <= loserRoundCount(numRounds); l++ {
			e.Losers = append(e.Losers, make([]*models.Match, loserRoundSize(padded, l)))
		}
		e.GrandFinal = make([]*models.Match, 0, 2)
	}

	for _, m := range matches {
		if m.Kind != models.MatchKindElimination || m.Bracket == nil {
			continue
		}
		if m.Seq >= e.seq {
			e.seq = m.Seq + 1
		}
		switch *m.Bracket {
		case models.BracketWinners:
			if e.Winners[m.Round-1][m.Slot] != nil {
				return nil, fmt.Errorf("%w: winners round %d slot %d", ErrDuplicateBracketType, m.Round, m.Slot)
			}
			e.Winners[m.Round-1][m.Slot] = m
		case models.BracketLosers:
			if e.Losers[m.Round-1][m.Slot] != nil {
				return nil, fmt.Errorf("%w: losers round %d slot %d", ErrDuplicateBracketType, m.Round, m.Slot)
			}
			e.Losers[m.Round-1][m.Slot] = m
		case models.BracketGrandFinal:
			if len(e.GrandFinal) == 2 {
				return nil, fmt.Errorf("%w: grand final", ErrDuplicateBracketType)
			}
			e.GrandFinal = append(e.GrandFinal, m)
		}
	}
	// Гранд-финалы в порядке раундов.
	if len(e.GrandFinal) == 2 && e.GrandFinal[0].Round > e.GrandFinal[1].Round {
		e.GrandFinal[0], e.GrandFinal[1] = e.GrandFinal[1], e.GrandFinal[0]
	}
	return e, nil
}

// AllMatches возвращает живые матчи арены в порядке создания сетки.
func (e *Elimination) AllMatches() []*models.Match {
	var out []*models.Match
	for _, round := range e.Winners {
		for _, m := range round {
			if m != nil {
				out = append(out, m)
			}
		}
	}
	for _, round := range e.Losers {
		for _, m := range round {
			if m != nil {
				out = append(out, m)
			}
		}
	}
	out = append(out, e.GrandFinal...)
	return out
}

// Champion возвращает id победителя турнира, когда сетка доиграна.
func (e *Elimination) Champion() *int {
	if !e.Double {
		final := e.Winners[len(e.Winners)-1][0]
		if final != nil && final.Status.Terminal() && final.WinnerID != nil {
			return final.WinnerID
		}
		return nil
	}
	if len(e.GrandFinal) == 2 {
		if gf2 := e.GrandFinal[1]; gf2.Status == models.MatchCompleted {
			return gf2.WinnerID
		}
		return nil
	}
	if len(e.GrandFinal) == 1 {
		gf1 := e.GrandFinal[0]
		if gf1.Status == models.MatchCompleted && gf1.WinnerID != nil &&
			gf1.TeamAID != nil && *gf1.WinnerID == *gf1.TeamAID {
			// Победил финалист верхней сетки — переигровка не нужна.
			return gf1.WinnerID
		}
	}
	return nil
}

// Advance продвигает сетку после терминального матча m: победитель
// пишется в слот следующего раунда (slot/2), проигравший — в нижнюю
// сетку. Возвращает все изменённые или созданные матчи; слот
// переводится из pending в scheduled, когда завершены оба подводящих.
func (e *Elimination) Advance(m *models.Match, now time.Time) ([]*models.Match, error) {
	if m.Kind != models.MatchKindElimination || m.Bracket == nil {
		return nil, fmt.Errorf("%w: match %d", ErrMatchNotInBracket, m.ID)
	}
	if !m.Status.Terminal() {
		return nil, fmt.Errorf("%w: match %d is %q", ErrInvalidTransition, m.ID, m.Status)
	}

	var changed []*models.Match
	seen := make(map[*models.Match]bool)
	record := func(ms ...*models.Match) {
		for _, mm := range ms {
			if mm != nil && !seen[mm] {
				seen[mm] = true
				changed = append(changed, mm)
			}
		}
	}

	switch *m.Bracket {
	case models.BracketGrandFinal:
		if m.Round == 1 && m.Status == models.MatchCompleted &&
			m.WinnerID != nil && m.TeamBID != nil && *m.WinnerID == *m.TeamBID {
			// Финалист нижней сетки выиграл первый гранд-финал: у обоих
			// теперь по одному поражению, назначается переигровка.
			if len(e.GrandFinal) == 1 {
				reset := e.makeGrandFinalReset(m, now)
				e.GrandFinal = append(e.GrandFinal, reset)
				record(reset)
			}
		}
	case models.BracketWinners:
		tgt := e.winnerTarget(m.Round, m.Slot)
		if tgt != nil {
			record(e.evaluate(tgt, now)...)
		}
		if e.Double {
			if lt := e.loserTarget(m.Round, m.Slot); lt != nil {
				record(e.evaluate(lt, now)...)
			}
		}
	case models.BracketLosers:
		tgt := e.loserAdvanceTarget(m.Round, m.Slot)
		if tgt != nil {
			record(e.evaluate(tgt, now)...)
		}
	}
	return changed, nil
}

// slotRef адресует сторону слота арены.
type slotRef struct {
	bracket models.BracketKind
	round   int // 1-based
	slot    int
}

func (e *Elimination) winnerTarget(round, slot int) *slotRef {
	if round < len(e.Winners) {
		return &slotRef{models.BracketWinners, round + 1, slot / 2}
	}
	if e.Double {
		return &slotRef{models.BracketGrandFinal, 1, 0}
	}
	return nil // финал одинарной сетки: чемпион определён
}

// loserTarget — куда падает проигравший верхней сетки. Раунд 1
// спаривает проигравших попарно; раунд r ≥ 2 попадает в мажорный раунд
// 2(r−1), через раунд с зеркалированием слотов против быстрых реваншей.
func (e *Elimination) loserTarget(round, slot int) *slotRef {
	if len(e.Losers) == 0 {
		// Две команды: проигравший финала верхней сетки идёт сразу
		// в гранд-финал.
		return &slotRef{models.BracketGrandFinal, 1, 0}
	}
	if round == 1 {
		return &slotRef{models.BracketLosers, 1, slot / 2}
	}
	l := 2 * (round - 1)
	size := len(e.Losers[l-1])
	s := slot
	if round%2 == 0 {
		s = size - 1 - slot
	}
	return &slotRef{models.BracketLosers, l, s}
}

// loserAdvanceTarget — продвижение внутри нижней сетки: минорный раунд
// отдаёт победителя в мажорный того же слота, мажорный — в следующий
// минорный (slot/2), последний мажорный — в гранд-финал.
func (e *Elimination) loserAdvanceTarget(round, slot int) *slotRef {
	if round == len(e.Losers) {
		return &slotRef{models.BracketGrandFinal, 1, 0}
	}
	if round%2 == 1 {
		return &slotRef{models.BracketLosers, round + 1, slot}
	}
	return &slotRef{models.BracketLosers, round + 1, slot / 2}
}

// feeders возвращает подводящие стороны слота: (источник, берём ли
// проигравшего). Отсутствующий источник кодируется nil slotRef.
func (e *Elimination) feeders(ref slotRef) [2]struct {
	src   *slotRef
	loser bool
} {
	var f [2]struct {
		src   *slotRef
		loser bool
	}
	switch ref.bracket {
	case models.BracketWinners:
		f[0].src = &slotRef{models.BracketWinners, ref.round - 1, ref.slot * 2}
		f[1].src = &slotRef{models.BracketWinners, ref.round - 1, ref.slot*2 + 1}
	case models.BracketLosers:
		switch {
		case ref.round == 1:
			f[0] = feederSide(&slotRef{models.BracketWinners, 1, ref.slot * 2}, true)
			f[1] = feederSide(&slotRef{models.BracketWinners, 1, ref.slot*2 + 1}, true)
		case ref.round%2 == 0: // мажорный: сверху падает проигравший
			wr := ref.round/2 + 1
			ws := ref.slot
			if wr%2 == 0 {
				ws = len(e.Losers[ref.round-1]) - 1 - ref.slot
			}
			f[0] = feederSide(&slotRef{models.BracketWinners, wr, ws}, true)
			f[1] = feederSide(&slotRef{models.BracketLosers, ref.round - 1, ref.slot}, false)
		default: // минорный ≥ 3: пары победителей мажорного
			f[0] = feederSide(&slotRef{models.BracketLosers, ref.round - 1, ref.slot * 2}, false)
			f[1] = feederSide(&slotRef{models.BracketLosers, ref.round - 1, ref.slot*2 + 1}, false)
		}
	case models.BracketGrandFinal:
		f[0] = feederSide(&slotRef{models.BracketWinners, len(e.Winners), 0}, false)
		if len(e.Losers) > 0 {
			f[1] = feederSide(&slotRef{models.BracketLosers, len(e.Losers), 0}, false)
		} else {
			f[1] = feederSide(&slotRef{models.BracketWinners, len(e.Winners), 0}, true)
		}
	}
	return f
}

func feederSide(src *slotRef, loser bool) struct {
	src   *slotRef
	loser bool
} {
	return struct {
		src   *slotRef
		loser bool
	}{src, loser}
}

// resolveFeeder: (команда, известен ли исход). Выродившийся источник
// разрешается в «никого»; отменённый матч блокирует слот до
// административного вмешательства.
func (e *Elimination) resolveFeeder(src *slotRef, loser bool) (*int, bool) {
	m := e.at(*src)
	if m == nil {
		return nil, true
	}
	switch m.Status {
	case models.MatchCompleted:
		if loser {
			if m.WinnerID == nil {
				return nil, false
			}
			return m.Opponent(*m.WinnerID), true
		}
		return m.WinnerID, true
	case models.MatchByeCompleted:
		if loser {
			return nil, true // у bye нет проигравшего
		}
		return m.WinnerID, true
	default:
		return nil, false
	}
}

// evaluate пересчитывает слот по состоянию подводящих матчей и
// возвращает изменённые матчи (включая каскад от возникших bye).
func (e *Elimination) evaluate(ref *slotRef, now time.Time) []*models.Match {
	m := e.at(*ref)
	if m == nil || m.Status != models.MatchPending {
		return nil
	}

	fs := e.feeders(*ref)
	teamA, okA := e.resolveFeeder(fs[0].src, fs[0].loser)
	teamB, okB := e.resolveFeeder(fs[1].src, fs[1].loser)

	var changed []*models.Match
	// Известные стороны проставляются сразу, не дожидаясь второй.
	if okA && teamA != nil && m.TeamAID == nil {
		m.TeamAID = teamA
		changed = append(changed, m)
	}
	if okB && teamB != nil && m.TeamBID == nil {
		m.TeamBID = teamB
		changed = append(changed, m)
	}
	if !okA || !okB {
		return changed
	}

	switch {
	case teamA != nil && teamB != nil:
		if err := PromoteMatch(m); err == nil {
			changed = append(changed, m)
		}
	case teamA == nil && teamB == nil:
		// Оба подводящих — bye: слот вырождается и удаляется из арены.
		e.remove(*ref)
		for _, next := range e.targetsOf(*ref) {
			changed = append(changed, e.evaluate(next, now)...)
		}
	default:
		winner := teamA
		if winner == nil {
			winner = teamB
		}
		m.TeamAID = winner
		m.TeamBID = nil
		m.WinnerID = winner
		m.Status = models.MatchByeCompleted
		m.CompletedAt = &now
		changed = append(changed, m)
		if cascade, err := e.Advance(m, now); err == nil {
			changed = append(changed, cascade...)
		}
	}
	return dedupeMatches(changed)
}

func (e *Elimination) targetsOf(ref slotRef) []*slotRef {
	var out []*slotRef
	switch ref.bracket {
	case models.BracketWinners:
		if t := e.winnerTarget(ref.round, ref.slot); t != nil {
			out = append(out, t)
		}
		if e.Double {
			if t := e.loserTarget(ref.round, ref.slot); t != nil {
				out = append(out, t)
			}
		}
	case models.BracketLosers:
		if t := e.loserAdvanceTarget(ref.round, ref.slot); t != nil {
			out = append(out, t)
		}
	}
	return out
}

func (e *Elimination) at(ref slotRef) *models.Match {
	switch ref.bracket {
	case models.BracketWinners:
		if ref.round >= 1 && ref.round <= len(e.Winners) && ref.slot < len(e.Winners[ref.round-1]) {
			return e.Winners[ref.round-1][ref.slot]
		}
	case models.BracketLosers:
		if ref.round >= 1 && ref.round <= len(e.Losers) && ref.slot < len(e.Losers[ref.round-1]) {
			return e.Losers[ref.round-1][ref.slot]
		}
	case models.BracketGrandFinal:
		if ref.round >= 1 && ref.round <= len(e.GrandFinal) {
			return e.GrandFinal[ref.round-1]
		}
	}
	return nil
}

func (e *Elimination) remove(ref slotRef) {
	switch ref.bracket {
	case models.BracketWinners:
		e.Winners[ref.round-1][ref.slot] = nil
	case models.BracketLosers:
		e.Losers[ref.round-1][ref.slot] = nil
	}
}

func (e *Elimination) makePendingRound(kind models.BracketKind, round, size int, now time.Time) []*models.Match {
	out := make([]*models.Match, size)
	for s := 0; s < size; s++ {
		out[s] = e.makePending(kind, round, s, now)
	}
	return out
}

func (e *Elimination) makePending(kind models.BracketKind, round, slot int, now time.Time) *models.Match {
	m := &models.Match{
		TournamentID: e.TournamentID,
		Kind:         models.MatchKindElimination,
		Bracket:      &kind,
		Round:        round,
		Slot:         slot,
		Status:       models.MatchPending,
		Seq:          e.seq,
		CreatedAt:    now,
	}
	e.seq++
	return m
}

// makeGrandFinalReset создаёт второй гранд-финал с теми же участниками;
// он сразу scheduled — оба известны.
func (e *Elimination) makeGrandFinalReset(gf1 *models.Match, now time.Time) *models.Match {
	gk := models.BracketGrandFinal
	m := &models.Match{
		TournamentID: e.TournamentID,
		Kind:         models.MatchKindElimination,
		Bracket:      &gk,
		Round:        2,
		Slot:         0,
		TeamAID:      gf1.TeamAID,
		TeamBID:      gf1.TeamBID,
		Status:       models.MatchScheduled,
		Seq:          e.seq,
		CreatedAt:    now,
	}
	e.seq++
	return m
}

func dedupeMatches(in []*models.Match) []*models.Match {
	seen := make(map[*models.Match]bool, len(in))
	out := in[:0]
	for _, m := range in {
		if !seen[m] {
			seen[m] = true
			out = append(out, m)
		}
	}
	return out
}

// arrangeSeeds раскладывает индексы посева по матчам первого раунда
// так, что первые два посева могут встретиться только в финале, первые
// четыре — не раньше полуфинала, и так далее: сетка раскрывается от
// финала вниз, пара посева s — это (s, total−1−s).
func arrangeSeeds(numRounds int) [][2]int {
	matchups := [][2]int{{0, 1}}
	total := 2
	for i := 1; i < numRounds; i++ {
		next := make([][2]int, 0, total)
		total *= 2
		for _, parent := range matchups {
			next = append(next,
				[2]int{parent[0], total - 1 - parent[0]},
				[2]int{parent[1], total - 1 - parent[1]},
			)
		}
		matchups = next
	}
	return matchups
}

func seedAt(seeds []*models.Team, idx int) *models.Team {
	if idx < len(seeds) {
		return seeds[idx]
	}
	return nil
}

func loserRoundCount(numWinnerRounds int) int {
	if numWinnerRounds < 2 {
		return 0
	}
	return 2 * (numWinnerRounds - 1)
}

func loserRoundSize(padded, l int) int {
	return padded >> uint((l+1)/2+1)
}
