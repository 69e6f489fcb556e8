// Package quota tracks daily API spend against a hard cap.
//
// Rollover is anchored to a fixed reference timezone, not the host clock's
// zone, so a long-running process resets its spend at the provider's local
// midnight regardless of where it runs.
package quota

import (
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	"vidsite/storage"
)

// DefaultDailyCap is the provider's default daily unit budget.
const DefaultDailyCap = 10000

// DefaultTimezone anchors daily rollover.
const DefaultTimezone = "America/Los_Angeles"

// MethodForced books the shortfall added by ForceExhausted, keeping the
// total == sum(perMethod) invariant intact.
const MethodForced = "forced_exhaustion"

// costs maps call types to their provider-defined unit cost.
var costs = map[string]int{
	"search.list":   100,
	"videos.list":   1,
	"channels.list": 1,
}

// Cost returns the unit cost of a call type. Unknown call types cost zero.
func Cost(method string) int {
	return costs[method]
}

// State is the persisted daily ledger document.
type State struct {
	DateKey         string         `json:"date_key"` // YYYY-MM-DD in the reference timezone
	TotalUnitsSpent int            `json:"units"`
	PerMethodSpent  map[string]int `json:"per_method"`
}

// Ledger tracks spend for the current reference-timezone day and persists it
// after every mutation. Persistence is fail-soft: a write failure is logged
// and the in-memory state stays authoritative for the rest of the run.
type Ledger struct {
	mu    sync.Mutex
	path  string
	cap   int
	loc   *time.Location
	log   *slog.Logger
	now   func() time.Time
	state State
}

// Open loads (or initializes) the ledger at path. cap <= 0 selects
// DefaultDailyCap; an empty timezone selects DefaultTimezone.
func Open(path string, cap int, timezone string, logger *slog.Logger) (*Ledger, error) {
	if cap <= 0 {
		cap = DefaultDailyCap
	}
	if timezone == "" {
		timezone = DefaultTimezone
	}
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}

	l := &Ledger{
		path: path,
		cap:  cap,
		loc:  loc,
		log:  logger,
		now:  time.Now,
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if jsonErr := json.Unmarshal(data, &l.state); jsonErr != nil {
			// A mangled ledger is not worth failing the run over; start the
			// day fresh and overwrite it on the next charge.
			logger.Warn("quota ledger unreadable, starting fresh", "path", path, "error", jsonErr)
			l.state = State{}
		}
	case errors.Is(err, os.ErrNotExist):
		// First run.
	default:
		return nil, &storage.StoreError{Op: "read", Doc: "quota", Err: err}
	}

	if l.state.PerMethodSpent == nil {
		l.state.PerMethodSpent = map[string]int{}
	}
	l.rollover()
	return l, nil
}

// Charge books cost(method) * mult units and returns the units charged.
// The rollover check runs first, so the first charge after the reference
// day advances resets spend to zero before applying itself.
func (l *Ledger) Charge(method string, mult int) int {
	if mult < 1 {
		mult = 1
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()

	units := Cost(method) * mult
	l.state.TotalUnitsSpent += units
	l.state.PerMethodSpent[method] += units
	l.persist()
	return units
}

// Remaining returns the unspent budget for the current reference day.
func (l *Ledger) Remaining() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()

	if r := l.cap - l.state.TotalUnitsSpent; r > 0 {
		return r
	}
	return 0
}

// ForceExhausted pins spend to the cap for the rest of the reference day.
// Called when the fetch client sees a rate-limit error, so scheduling
// decisions short-circuit instead of issuing calls that would also fail.
func (l *Ledger) ForceExhausted() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()

	if l.state.TotalUnitsSpent >= l.cap {
		return
	}
	shortfall := l.cap - l.state.TotalUnitsSpent
	l.state.TotalUnitsSpent = l.cap
	l.state.PerMethodSpent[MethodForced] += shortfall
	l.log.Warn("quota forced exhausted for the rest of the day", "date", l.state.DateKey)
	l.persist()
}

// State returns a copy of the current ledger state.
func (l *Ledger) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rollover()

	perMethod := make(map[string]int, len(l.state.PerMethodSpent))
	for k, v := range l.state.PerMethodSpent {
		perMethod[k] = v
	}
	return State{
		DateKey:         l.state.DateKey,
		TotalUnitsSpent: l.state.TotalUnitsSpent,
		PerMethodSpent:  perMethod,
	}
}

// Cap returns the daily budget.
func (l *Ledger) Cap() int { return l.cap }

// rollover resets spend when the reference-timezone date has advanced past
// the stored day key. Callers must hold l.mu.
func (l *Ledger) rollover() {
	today := l.now().In(l.loc).Format("2006-01-02")
	// YYYY-MM-DD compares lexicographically; reset only when the day advances.
	if l.state.DateKey >= today {
		return
	}
	if l.state.DateKey != "" {
		l.log.Info("quota day rolled over", "from", l.state.DateKey, "to", today)
	}
	l.state.DateKey = today
	l.state.TotalUnitsSpent = 0
	l.state.PerMethodSpent = map[string]int{}
	l.persist()
}

// persist writes the ledger fail-soft. Callers must hold l.mu.
func (l *Ledger) persist() {
	writer, err := storage.NewAtomicWriter(l.path)
	if err != nil {
		l.log.Warn("quota ledger write failed", "path", l.path, "error", err)
		return
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(l.state); err != nil {
		writer.Abort()
		l.log.Warn("quota ledger write failed", "path", l.path, "error", err)
		return
	}
	if err := writer.Commit(); err != nil {
		l.log.Warn("quota ledger write failed", "path", l.path, "error", err)
	}
}
