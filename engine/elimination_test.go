package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nrc-robotics/tournament-system/models"
)

// play завершает матч победой команды winnerID и продвигает сетку.
// Счёт ориентируется по стороне победителя: больший результат обязан
// быть у объявленного победителя.
func play(t *testing.T, e *Elimination, m *models.Match, winnerID int) {
	t.Helper()
	now := time.Now()
	require.NoError(t, StartMatch(m, now))
	scoreA, scoreB := 3, 0
	if m.TeamBID != nil && *m.TeamBID == winnerID {
		scoreA, scoreB = 0, 3
	}
	require.NoError(t, CompleteMatch(m, winnerID, scoreA, scoreB, now))
	_, err := e.Advance(m, now)
	require.NoError(t, err)
}

func TestBuildSingleEliminationEight(t *testing.T) {
	e, err := BuildElimination(10, seededTeams(8), false, time.Now())
	require.NoError(t, err)

	// Три раунда, семь матчей, нижней сетки нет.
	require.Len(t, e.Winners, 3)
	assert.Len(t, e.Winners[0], 4)
	assert.Len(t, e.Winners[1], 2)
	assert.Len(t, e.Winners[2], 1)
	assert.Len(t, e.AllMatches(), 7)
	assert.Empty(t, e.Losers)
	assert.Empty(t, e.GrandFinal)

	// Стандартная рассадка: 1 не встречает 2 раньше финала, 1 и 4 — в
	// одной половине, 2 и 3 — в другой.
	pairAt := func(r, s int) pairKey {
		m := e.Winners[r][s]
		return keyFor(*m.TeamAID, *m.TeamBID)
	}
	assert.Equal(t, keyFor(1, 8), pairAt(0, 0))
	assert.Equal(t, keyFor(4, 5), pairAt(0, 1))
	assert.Equal(t, keyFor(2, 7), pairAt(0, 2))
	assert.Equal(t, keyFor(3, 6), pairAt(0, 3))

	for _, m := range e.Winners[1] {
		assert.Equal(t, models.MatchPending, m.Status)
	}
	assert.Nil(t, e.Champion())
}

func TestSingleEliminationAdvancement(t *testing.T) {
	e, err := BuildElimination(10, seededTeams(8), false, time.Now())
	require.NoError(t, err)

	// Победитель первого слота встаёт стороной A полуфинала, слот
	// остаётся pending до завершения второго подводящего.
	play(t, e, e.Winners[0][0], 1)
	semi := e.Winners[1][0]
	require.NotNil(t, semi.TeamAID)
	assert.Equal(t, 1, *semi.TeamAID)
	assert.Equal(t, models.MatchPending, semi.Status)

	play(t, e, e.Winners[0][1], 4)
	assert.Equal(t, models.MatchScheduled, semi.Status)
	assert.Equal(t, 4, *semi.TeamBID)

	play(t, e, e.Winners[0][2], 2)
	play(t, e, e.Winners[0][3], 3)
	play(t, e, e.Winners[1][0], 1)
	play(t, e, e.Winners[1][1], 2)

	final := e.Winners[2][0]
	require.Equal(t, models.MatchScheduled, final.Status)
	assert.Equal(t, keyFor(1, 2), keyFor(*final.TeamAID, *final.TeamBID))
	assert.Nil(t, e.Champion())

	play(t, e, final, 2)
	require.NotNil(t, e.Champion())
	assert.Equal(t, 2, *e.Champion())
}

func TestBuildEliminationPadsWithByes(t *testing.T) {
	// 5 команд дополняются до 8: три bye верхним строкам посева.
	e, err := BuildElimination(10, seededTeams(5), false, time.Now())
	require.NoError(t, err)

	require.Len(t, e.Winners, 3)
	assert.Len(t, e.AllMatches(), 7)

	byes := 0
	for _, m := range e.Winners[0] {
		if m.IsBye() {
			byes++
		}
	}
	assert.Equal(t, 3, byes)

	// Bye продвинуты сразу: полуфинал посевов 2 и 3 уже scheduled,
	// полуфинал посева 1 ждёт победителя единственного реального матча.
	semiTop, semiBottom := e.Winners[1][0], e.Winners[1][1]
	assert.Equal(t, models.MatchPending, semiTop.Status)
	require.NotNil(t, semiTop.TeamAID)
	assert.Equal(t, 1, *semiTop.TeamAID)

	require.Equal(t, models.MatchScheduled, semiBottom.Status)
	assert.Equal(t, keyFor(2, 3), keyFor(*semiBottom.TeamAID, *semiBottom.TeamBID))

	real := e.Winners[0][1]
	assert.Equal(t, models.MatchScheduled, real.Status)
	assert.Equal(t, keyFor(4, 5), keyFor(*real.TeamAID, *real.TeamBID))
}

func TestBuildEliminationErrors(t *testing.T) {
	_, err := BuildElimination(10, seededTeams(1), false, time.Now())
	assert.ErrorIs(t, err, ErrInsufficientTeams)
}

func TestDoubleEliminationFour(t *testing.T) {
	e, err := BuildElimination(10, seededTeams(4), true, time.Now())
	require.NoError(t, err)

	require.Len(t, e.Winners, 2)
	require.Len(t, e.Losers, 2)
	assert.Len(t, e.Losers[0], 1)
	assert.Len(t, e.Losers[1], 1)
	require.Len(t, e.GrandFinal, 1)

	// Верхняя сетка.
	play(t, e, e.Winners[0][0], 1) // 4 падает вниз
	play(t, e, e.Winners[0][1], 2) // 3 падает вниз

	lb1 := e.Losers[0][0]
	require.Equal(t, models.MatchScheduled, lb1.Status)
	assert.Equal(t, keyFor(3, 4), keyFor(*lb1.TeamAID, *lb1.TeamBID))

	play(t, e, e.Winners[1][0], 1) // 2 падает в финал нижней сетки
	play(t, e, lb1, 3)

	lbFinal := e.Losers[1][0]
	require.Equal(t, models.MatchScheduled, lbFinal.Status)
	assert.Equal(t, keyFor(2, 3), keyFor(*lbFinal.TeamAID, *lbFinal.TeamBID))
	play(t, e, lbFinal, 3)

	// Гранд-финал: сторона A — чемпион верхней сетки.
	gf := e.GrandFinal[0]
	require.Equal(t, models.MatchScheduled, gf.Status)
	assert.Equal(t, 1, *gf.TeamAID)
	assert.Equal(t, 3, *gf.TeamBID)
	assert.Nil(t, e.Champion())
}

func TestGrandFinalBracketReset(t *testing.T) {
	e, err := BuildElimination(10, seededTeams(4), true, time.Now())
	require.NoError(t, err)

	play(t, e, e.Winners[0][0], 1)
	play(t, e, e.Winners[0][1], 2)
	play(t, e, e.Winners[1][0], 1)
	play(t, e, e.Losers[0][0], 3)
	play(t, e, e.Losers[1][0], 2)

	// Финалист нижней сетки выигрывает первый гранд-финал: у обоих по
	// одному поражению, назначается переигровка.
	play(t, e, e.GrandFinal[0], 2)
	require.Len(t, e.GrandFinal, 2)
	assert.Nil(t, e.Champion())

	reset := e.GrandFinal[1]
	assert.Equal(t, models.MatchScheduled, reset.Status)
	assert.Equal(t, keyFor(1, 2), keyFor(*reset.TeamAID, *reset.TeamBID))

	play(t, e, reset, 2)
	require.NotNil(t, e.Champion())
	assert.Equal(t, 2, *e.Champion())
}

func TestGrandFinalWithoutReset(t *testing.T) {
	e, err := BuildElimination(10, seededTeams(4), true, time.Now())
	require.NoError(t, err)

	play(t, e, e.Winners[0][0], 1)
	play(t, e, e.Winners[0][1], 2)
	play(t, e, e.Winners[1][0], 1)
	play(t, e, e.Losers[0][0], 3)
	play(t, e, e.Losers[1][0], 2)

	// Чемпион верхней сетки выигрывает сразу: переигровки нет.
	play(t, e, e.GrandFinal[0], 1)
	require.Len(t, e.GrandFinal, 1)
	require.NotNil(t, e.Champion())
	assert.Equal(t, 1, *e.Champion())
}

func TestDoubleEliminationVoidSlots(t *testing.T) {
	// 5 команд при double elimination: три bye первого раунда рождают
	// bye и в нижней сетке, часть слотов вырождается совсем.
	e, err := BuildElimination(10, seededTeams(5), true, time.Now())
	require.NoError(t, err)

	// Слот нижней сетки от пары bye-матчей (посевы 2 и 3) вырожден:
	// обоих подводящих проигравших не существует.
	assert.Nil(t, e.Losers[0][1])

	// Слот от пары bye (посев 1) и реального матча 4–5 ждёт
	// проигравшего, сторона A уже известна быть не может.
	lb := e.Losers[0][0]
	require.NotNil(t, lb)
	assert.Equal(t, models.MatchPending, lb.Status)

	play(t, e, e.Winners[0][1], 4) // 5 падает вниз

	// Единственный проигравший нижней половины продвигается по сетке
	// bye-матчами, живые матчи арены не дублируются.
	for _, m := range e.AllMatches() {
		require.NotNil(t, m)
	}
}

func TestLoadEliminationRoundTrip(t *testing.T) {
	now := time.Now()
	e, err := BuildElimination(10, seededTeams(8), false, now)
	require.NoError(t, err)

	play(t, e, e.Winners[0][0], 1)
	play(t, e, e.Winners[0][1], 4)

	// Репозиторий отдаёт матчи в произвольном порядке; арена обязана
	// восстановиться в то же состояние.
	matches := e.AllMatches()
	for i, j := 0, len(matches)-1; i < j; i, j = i+1, j-1 {
		matches[i], matches[j] = matches[j], matches[i]
	}
	restored, err := LoadElimination(10, false, matches)
	require.NoError(t, err)

	require.Len(t, restored.Winners, 3)
	semi := restored.Winners[1][0]
	require.NotNil(t, semi.TeamAID)
	require.NotNil(t, semi.TeamBID)
	assert.Equal(t, keyFor(1, 4), keyFor(*semi.TeamAID, *semi.TeamBID))
	assert.Equal(t, models.MatchScheduled, semi.Status)

	// Продвижение продолжается на восстановленной арене.
	play(t, restored, semi, 1)
	require.NotNil(t, restored.Winners[2][0].TeamAID)
	assert.Equal(t, 1, *restored.Winners[2][0].TeamAID)
}

func TestLoadEliminationRejectsOverlappingMatches(t *testing.T) {
	now := time.Now()
	e, err := BuildElimination(10, seededTeams(4), false, now)
	require.NoError(t, err)

	// Два матча на один слот верхней сетки: снапшот противоречив,
	// восстанавливать из него нечего.
	matches := e.AllMatches()
	dup := *e.Winners[0][0]
	matches = append(matches, &dup)

	_, err = LoadElimination(10, false, matches)
	assert.ErrorIs(t, err, ErrDuplicateBracketType)
}

func TestLoadEliminationRejectsExtraGrandFinal(t *testing.T) {
	now := time.Now()
	e, err := BuildElimination(10, seededTeams(4), true, now)
	require.NoError(t, err)

	// Гранд-финалов не бывает больше двух (основной и bracket reset).
	matches := e.AllMatches()
	first := *e.GrandFinal[0]
	second := first
	matches = append(matches, &first, &second)

	_, err = LoadElimination(10, true, matches)
	assert.ErrorIs(t, err, ErrDuplicateBracketType)
}

func TestAdvanceRejectsNonTerminal(t *testing.T) {
	e, err := BuildElimination(10, seededTeams(4), false, time.Now())
	require.NoError(t, err)

	_, err = e.Advance(e.Winners[0][0], time.Now())
	assert.ErrorIs(t, err, ErrInvalidTransition)

	swiss := scheduledMatch(1, 2)
	_, err = e.Advance(swiss, time.Now())
	assert.ErrorIs(t, err, ErrMatchNotInBracket)
}
