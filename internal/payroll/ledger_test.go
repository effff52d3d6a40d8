package payroll

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shiftwage/internal/model"
)

func shift(employee string, start time.Time, hours float64) model.Shift {
	end := start.Add(time.Duration(hours * float64(time.Hour)))
	return model.Shift{Employee: employee, Start: start, End: end, Duration: end.Sub(start)}
}

var monday = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

func TestHours(t *testing.T) {
	assert.Equal(t, 8.0, Hours(monday, monday.Add(8*time.Hour)))
	assert.Equal(t, 1.5, Hours(monday, monday.Add(90*time.Minute)))
	// Sub-second remainders are dropped.
	assert.Equal(t, 1.0, Hours(monday, monday.Add(time.Hour+500*time.Millisecond)))
	assert.Equal(t, -2.0, Hours(monday, monday.Add(-2*time.Hour)))
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{126, "126.0"},
		{47.25, "47.25"},
		{0, "0.0"},
		{23.625, "23.625"},
		{-15.75, "-15.75"},
		{math.Inf(1), "+Inf"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmount(tt.in))
	}
}

func TestLedgerMergesSameEmployee(t *testing.T) {
	l := NewLedger(DefaultHourlyRate)

	assert.Equal(t, 15.75, l.Add(shift("Bob", monday, 1)))
	assert.Equal(t, 31.5, l.Add(shift("Bob", monday.Add(24*time.Hour), 2)))

	total, ok := l.Total("Bob")
	require.True(t, ok)
	assert.Equal(t, 47.25, total)
	assert.Equal(t, 1, l.Len())

	entries := l.Entries(OrderTitle)
	require.Len(t, entries, 1)
	assert.Equal(t, model.Entry{Employee: "Bob", Total: 47.25, Hours: 3, Shifts: 2}, entries[0])

	_, ok = l.Total("Alice")
	assert.False(t, ok)
}

func TestLedgerTotalIndependentOfOrder(t *testing.T) {
	shifts := []model.Shift{
		shift("Ann", monday, 3.5),
		shift("Ben", monday, 2),
		shift("Ann", monday, 1.25),
		shift("Ann", monday, 7),
		shift("Ben", monday, 0.5),
	}

	forward := NewLedger(12.4)
	for _, s := range shifts {
		forward.Add(s)
	}
	backward := NewLedger(12.4)
	for i := len(shifts) - 1; i >= 0; i-- {
		backward.Add(shifts[i])
	}

	for _, name := range []string{"Ann", "Ben"} {
		f, _ := forward.Total(name)
		b, _ := backward.Total(name)
		assert.InDelta(t, f, b, 1e-9, name)
	}
	ann, _ := forward.Total("Ann")
	assert.InDelta(t, 12.4*11.75, ann, 1e-9)
}

func TestLedgerEntriesOrder(t *testing.T) {
	l := NewLedger(10)
	for _, name := range []string{"Carol", "alice", "Bob", "Carol"} {
		l.Add(shift(name, monday, 1))
	}

	names := func(entries []model.Entry) []string {
		out := make([]string, 0, len(entries))
		for _, e := range entries {
			out = append(out, e.Employee)
		}
		return out
	}

	assert.Equal(t, []string{"Bob", "Carol", "alice"}, names(l.Entries(OrderTitle)))
	assert.Equal(t, []string{"Carol", "alice", "Bob"}, names(l.Entries(OrderFirstSeen)))
}

func TestParseOrder(t *testing.T) {
	o, err := ParseOrder("")
	require.NoError(t, err)
	assert.Equal(t, OrderTitle, o)

	o, err = ParseOrder("First_Seen")
	require.NoError(t, err)
	assert.Equal(t, OrderFirstSeen, o)

	_, err = ParseOrder("random")
	require.Error(t, err)
}
