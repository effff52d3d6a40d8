package payroll

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"shiftwage/internal/model"
)

// DefaultHourlyRate is the wage per hour used when none is configured.
const DefaultHourlyRate = 15.75

// Order selects how ledger entries are listed.
type Order string

const (
	// OrderTitle sorts entries by employee name, byte-wise.
	OrderTitle Order = "title"
	// OrderFirstSeen lists entries in the order each employee first appeared.
	OrderFirstSeen Order = "first_seen"
)

// ParseOrder maps a config value to an Order. Empty means OrderTitle.
func ParseOrder(s string) (Order, error) {
	switch Order(strings.ToLower(strings.TrimSpace(s))) {
	case "", OrderTitle:
		return OrderTitle, nil
	case OrderFirstSeen:
		return OrderFirstSeen, nil
	default:
		return "", fmt.Errorf("payroll: unknown order %q (want %q or %q)", s, OrderTitle, OrderFirstSeen)
	}
}

// Hours returns the elapsed hours between start and end, measured in whole
// epoch seconds. Both values are absolute instants, so the result does not
// depend on the process time zone.
func Hours(start, end time.Time) float64 {
	return float64(end.Unix()-start.Unix()) / 3600
}

// FormatAmount renders a total as the shortest decimal that round-trips,
// keeping a trailing ".0" on whole numbers (126 -> "126.0").
func FormatAmount(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return s
	}
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// Ledger accumulates wages per employee. For every employee the total
// equals the sum of rate*Hours over that employee's shifts.
type Ledger struct {
	rate    float64
	entries map[string]*model.Entry
	seen    []string
}

func NewLedger(rate float64) *Ledger {
	return &Ledger{
		rate:    rate,
		entries: make(map[string]*model.Entry),
	}
}

// Add credits one shift to its employee and returns the wage it earned.
func (l *Ledger) Add(s model.Shift) float64 {
	hours := Hours(s.Start, s.End)
	wage := l.rate * hours

	e, ok := l.entries[s.Employee]
	if !ok {
		e = &model.Entry{Employee: s.Employee}
		l.entries[s.Employee] = e
		l.seen = append(l.seen, s.Employee)
	}
	e.Total += wage
	e.Hours += hours
	e.Shifts++

	return wage
}

// Total returns the accumulated wage for employee.
func (l *Ledger) Total(employee string) (float64, bool) {
	e, ok := l.entries[employee]
	if !ok {
		return 0, false
	}
	return e.Total, true
}

func (l *Ledger) Len() int {
	return len(l.entries)
}

// Entries returns a snapshot of all entries in the requested order.
func (l *Ledger) Entries(order Order) []model.Entry {
	names := make([]string, len(l.seen))
	copy(names, l.seen)
	if order != OrderFirstSeen {
		sort.Strings(names)
	}

	out := make([]model.Entry, 0, len(names))
	for _, n := range names {
		out = append(out, *l.entries[n])
	}
	return out
}
