// Package query owns "what page of what filtered, sorted, scoped data is
// visible". The Coordinator is the single writer of that state and the sole
// trigger of backend fetches.
package query

import (
	"context"
	"errors"
	"sync"
	"time"

	"metagrid/internal/entity"
	"metagrid/internal/schema"
)

// Phase is the coordinator's explicit fetch state.
type Phase string

const (
	// PhaseIdle: last fetch committed, nothing in flight.
	PhaseIdle Phase = "idle"
	// PhaseResolving: scope incomplete, fetches suppressed.
	PhaseResolving Phase = "resolving"
	PhaseFetching  Phase = "fetching"
	// PhaseError: last fetch failed; previous records remain visible.
	PhaseError Phase = "error"
)

const defaultDebounce = 600 * time.Millisecond

// Config seeds a coordinator. Zero values fall back to defaults; a
// negative Debounce applies search text synchronously (used by tests).
type Config struct {
	Scope    Scope
	PageSize PageSize
	Debounce time.Duration
	OnChange func()
}

type Coordinator struct {
	schema   *schema.Schema
	backend  Backend
	debounce time.Duration
	onChange func()

	mu              sync.Mutex
	state           State
	debouncedSearch string
	timer           *time.Timer

	phase      Phase
	records    []entity.Record
	totalItems int
	totalPages int
	lastErr    error

	// lastFetched is the fingerprint of the last query actually issued.
	// Fetches are gated on inequality with it; Refresh bypasses the gate.
	lastFetched string
	seq         uint64
	cancel      context.CancelFunc
}

func NewCoordinator(sch *schema.Schema, backend Backend, cfg Config) *Coordinator {
	ps := cfg.PageSize
	if !ps.Valid() {
		ps = DefaultPageSize
	}
	deb := cfg.Debounce
	if deb == 0 {
		deb = defaultDebounce
	}
	c := &Coordinator{
		schema:   sch,
		backend:  backend,
		debounce: deb,
		onChange: cfg.OnChange,
		state: State{
			Page:     1,
			PageSize: ps,
			Scope:    cfg.Scope,
		},
		phase: PhaseIdle,
	}
	return c
}

// Start issues the initial fetch (or parks in Resolving when the scope is
// not yet usable).
func (c *Coordinator) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evaluateLocked(false)
}

// SetSearch records raw keystrokes. Only the debounced value participates
// in query building, so typing never triggers fetches directly.
func (c *Coordinator) SetSearch(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Search = text

	if c.debounce < 0 {
		c.debouncedSearch = text
		c.evaluateLocked(false)
		return
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	c.timer = time.AfterFunc(c.debounce, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.state.Search != text {
			return // superseded by later keystrokes
		}
		c.debouncedSearch = text
		c.evaluateLocked(false)
	})
}

// SetFilters replaces the structured filter map. A change (by serialized
// value, not reference) resets the page to 1 before the next fetch.
func (c *Coordinator) SetFilters(filters map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := copyFilters(filters)
	if fingerprintOf(next) != fingerprintOf(c.state.Filters) {
		c.state.Page = 1
	}
	c.state.Filters = next
	c.evaluateLocked(false)
}

// SetSort replaces the multi-column sort. Like filters, a real change
// resets the page to 1.
func (c *Coordinator) SetSort(sort []SortKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	next := append([]SortKey(nil), sort...)
	if fingerprintOf(next) != fingerprintOf(c.state.Sort) {
		c.state.Page = 1
	}
	c.state.Sort = next
	c.evaluateLocked(false)
}

// SetPage moves pagination only; filters and sort stay untouched.
func (c *Coordinator) SetPage(page int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if page < 1 {
		page = 1
	}
	c.state.Page = page
	c.evaluateLocked(false)
}

func (c *Coordinator) SetPageSize(ps PageSize) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !ps.Valid() {
		return
	}
	c.state.PageSize = ps
	c.evaluateLocked(false)
}

// SetScope installs a new tenant/assignment scope. When the scope becomes
// resolvable the pending query goes out immediately.
func (c *Coordinator) SetScope(s Scope) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Scope = s
	c.evaluateLocked(false)
}

// Refresh forces a cold re-read of the current effective query, bypassing
// both the equality gate and any backend result cache. The user intent is
// an unconditional refresh.
func (c *Coordinator) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evaluateLocked(true)
}

// Stop cancels any in-flight fetch and pending debounce timer.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.timer != nil {
		c.timer.Stop()
	}
	if c.cancel != nil {
		c.cancel()
	}
}

// evaluateLocked is the single transition function: it resolves the scope,
// fingerprints the effective query, and issues a fetch iff the fingerprint
// differs from the last one fetched (or force is set).
func (c *Coordinator) evaluateLocked(force bool) {
	if !c.state.Scope.Resolved(c.schema) {
		c.phase = PhaseResolving
		c.notify()
		return
	}

	fp := c.fingerprintLocked()
	if !force && fp == c.lastFetched {
		if c.phase == PhaseResolving {
			c.phase = PhaseIdle
		}
		return
	}

	c.lastFetched = fp
	c.seq++
	seq := c.seq

	if c.cancel != nil {
		c.cancel() // supersede the in-flight fetch
	}
	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel

	c.phase = PhaseFetching
	params := c.buildParamsLocked(force)
	c.notify()

	go c.fetch(ctx, seq, params)
}

func (c *Coordinator) fetch(ctx context.Context, seq uint64, params ListParams) {
	res, err := c.backend.FetchList(ctx, c.schema.ID, params)

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		return // a newer fetch owns the state now
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		// Stale-but-available: the last good list stays on screen.
		c.phase = PhaseError
		c.lastErr = &FetchError{Err: err}
		c.notify()
		return
	}
	c.records = res.Records
	c.totalItems = res.TotalItems
	c.totalPages = res.TotalPages
	c.phase = PhaseIdle
	c.lastErr = nil
	c.notify()
}

type effectiveQuery struct {
	Search   string         `json:"search"`
	Filters  map[string]any `json:"filters"`
	Sort     []SortKey      `json:"sort"`
	Scope    Scope          `json:"scope"`
	Page     int            `json:"page"`
	PageSize PageSize       `json:"pageSize"`
}

func (c *Coordinator) fingerprintLocked() string {
	return fingerprintOf(effectiveQuery{
		Search:   c.debouncedSearch,
		Filters:  c.state.Filters,
		Sort:     c.state.Sort,
		Scope:    c.state.Scope,
		Page:     c.state.Page,
		PageSize: c.state.PageSize,
	})
}

func (c *Coordinator) buildParamsLocked(force bool) ListParams {
	p := ListParams{
		Search:      c.debouncedSearch,
		Filters:     copyFilters(c.state.Filters),
		Sort:        append([]SortKey(nil), c.state.Sort...),
		Page:        c.state.Page,
		PageSize:    c.state.PageSize,
		BypassCache: force,
	}
	sc := c.state.Scope
	if c.schema.CompanyBased() && !sc.AllCompanies {
		p.CompanyIDs = append([]string(nil), sc.CompanyIDs...)
	}
	if sc.AssignmentActive {
		switch sc.view() {
		case ViewInitiatedBy:
			p.CreatedByIDs = []string{sc.AssignmentUserID}
		default:
			p.AssignedToIDs = []string{sc.AssignmentUserID}
		}
	}
	return p
}

func (c *Coordinator) notify() {
	if c.onChange != nil {
		go c.onChange()
	}
}

// Phase returns the coordinator's current fetch state.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// State returns a copy of the facet state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	st := c.state
	st.Filters = copyFilters(c.state.Filters)
	st.Sort = append([]SortKey(nil), c.state.Sort...)
	return st
}

// Records returns the last committed (possibly stale after an error)
// record list. Callers must not mutate it.
func (c *Coordinator) Records() []entity.Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.records
}

// Totals returns the backend-reported pagination metadata.
func (c *Coordinator) Totals() (totalItems, totalPages int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.totalItems, c.totalPages
}

// LastError returns the retryable error from the last failed fetch, or nil.
func (c *Coordinator) LastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Schema returns the immutable schema this coordinator serves.
func (c *Coordinator) Schema() *schema.Schema {
	return c.schema
}

// FetchCounts exposes the assignment counters for the scope toggle UI.
func (c *Coordinator) FetchCounts(ctx context.Context) (*Counts, error) {
	c.mu.Lock()
	userID := c.state.Scope.AssignmentUserID
	companies := append([]string(nil), c.state.Scope.CompanyIDs...)
	c.mu.Unlock()
	return c.backend.FetchCounts(ctx, c.schema.ID, userID, companies)
}

func copyFilters(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
