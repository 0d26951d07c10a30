package simulation

import (
	"math/rand"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func fixedEngine(now time.Time, seed int64) *Engine {
	return NewWithClock(func() time.Time { return now }, rand.New(rand.NewSource(seed)))
}

func TestCurrentStatus_DayClamp(t *testing.T) {
	now := time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC)
	e := fixedEngine(now, 1)

	cases := []struct {
		age  time.Duration
		want int
	}{
		{0, 0},
		{23 * time.Hour, 0},
		{25 * time.Hour, 1},
		{3 * 24 * time.Hour, 3},
		{10 * 24 * time.Hour, 10},
		{25 * 24 * time.Hour, 10},
		{-5 * time.Hour, 0},
	}
	for _, tc := range cases {
		st := e.CurrentStatus(now.Add(-tc.age), "Recife")
		require.Equal(t, tc.want, st.Day, "age %s", tc.age)
	}
}

func TestCurrentStatus_DeliveredAtDayTen(t *testing.T) {
	now := time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC)
	e := fixedEngine(now, 1)

	st := e.CurrentStatus(now.Add(-10*24*time.Hour), "São Paulo")
	require.Equal(t, 10, st.Day)
	require.Equal(t, "Entregue", st.Status)
	require.Equal(t, "Objeto entregue ao destinatário", st.Description)
}

func TestCurrentStatus_CityInDescriptions(t *testing.T) {
	now := time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC)
	e := fixedEngine(now, 1)

	st := e.CurrentStatus(now.Add(-4*24*time.Hour), "Recife")
	require.Equal(t, "Objeto em trânsito para Recife", st.Description)

	st = e.CurrentStatus(now.Add(-5*24*time.Hour), "Recife")
	require.Equal(t, "Objeto chegou em Recife", st.Description)

	// Пустой город подменяется на "destino".
	st = e.CurrentStatus(now.Add(-5*24*time.Hour), "")
	require.Equal(t, "Objeto chegou em destino", st.Description)
}

func TestCurrentStatus_ZeroCreatedAtDegrades(t *testing.T) {
	now := time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC)
	e := fixedEngine(now, 1)

	st := e.CurrentStatus(time.Time{}, "Recife")
	require.Equal(t, 0, st.Day)
	require.Equal(t, "Despachado", st.Status)
	require.Equal(t, now, st.Timestamp)
}

func TestTimestamp_NeverInFuture(t *testing.T) {
	now := time.Date(2024, 5, 20, 7, 30, 0, 0, time.UTC)
	for seed := int64(0); seed < 20; seed++ {
		e := fixedEngine(now, seed)
		for day := 0; day <= 10; day++ {
			for _, age := range []time.Duration{0, 12 * time.Hour, 5 * 24 * time.Hour, 40 * 24 * time.Hour} {
				ts := e.Timestamp(now.Add(-age), day)
				require.False(t, ts.After(now), "seed %d day %d age %s: %s after now", seed, day, age, ts)
			}
		}
	}
}

func TestTimestamp_DayZeroIsCreationInstant(t *testing.T) {
	now := time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC)
	e := fixedEngine(now, 1)

	createdAt := now.Add(-3 * 24 * time.Hour).Add(42 * time.Minute)
	require.Equal(t, createdAt, e.Timestamp(createdAt, 0))
}

func TestTimestamp_FutureCreatedAtFallsBackToNow(t *testing.T) {
	now := time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC)
	e := fixedEngine(now, 1)

	require.Equal(t, now, e.Timestamp(now.Add(time.Hour), 0))
	require.Equal(t, now, e.Timestamp(time.Time{}, 3))
}

func TestTimestamp_PastDayBusinessHours(t *testing.T) {
	now := time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC)
	createdAt := now.Add(-8 * 24 * time.Hour)

	for seed := int64(0); seed < 30; seed++ {
		e := fixedEngine(now, seed)
		ts := e.Timestamp(createdAt, 2)
		require.Equal(t, createdAt.Add(2*24*time.Hour).Truncate(24*time.Hour), ts.Truncate(24*time.Hour))
		require.GreaterOrEqual(t, ts.Hour(), 6)
		require.LessOrEqual(t, ts.Hour(), 20)
	}
}

func TestHistory_NewestFirst(t *testing.T) {
	now := time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC)
	e := fixedEngine(now, 1)

	createdAt := now.Add(-4 * 24 * time.Hour)
	h := e.History(createdAt, "Recife")
	require.Len(t, h, 5)
	for i, st := range h {
		require.Equal(t, 4-i, st.Day)
		require.False(t, st.Timestamp.After(now))
	}
	require.Equal(t, "Pacote em trânsito", h[0].Status)
	require.Equal(t, "Despachado", h[4].Status)
}

func TestHistory_DeliveredHasElevenEntries(t *testing.T) {
	now := time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC)
	e := fixedEngine(now, 1)

	h := e.History(now.Add(-30*24*time.Hour), "Recife")
	require.Len(t, h, 11)
	require.Equal(t, 10, h[0].Day)
	require.Equal(t, "Entregue", h[0].Status)
}

func TestGenerateCode_Format(t *testing.T) {
	e := fixedEngine(time.Now(), 7)
	re := regexp.MustCompile(`^BR\d{9}[A-Z]{2}$`)
	for i := 0; i < 100; i++ {
		require.Regexp(t, re, e.GenerateCode())
	}
}

func TestExpired(t *testing.T) {
	now := time.Date(2024, 5, 20, 15, 0, 0, 0, time.UTC)
	e := fixedEngine(now, 1)

	// Вручён и старше окна — истёк.
	require.True(t, e.Expired(now.Add(-41*24*time.Hour), "Recife", RetentionWindow))
	// Вручён, но моложе окна — живёт.
	require.False(t, e.Expired(now.Add(-15*24*time.Hour), "Recife", RetentionWindow))
	// Не вручён — живёт при любом возрасте.
	require.False(t, e.Expired(now.Add(-5*24*time.Hour), "Recife", RetentionWindow))
	// Непарсимая дата — консервативно живёт.
	require.False(t, e.Expired(time.Time{}, "Recife", RetentionWindow))
}
