package query

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"metagrid/internal/entity"
	"metagrid/internal/schema"
)

type fakeBackend struct {
	mu         sync.Mutex
	calls      []ListParams
	fail       bool
	records    []entity.Record
	total      int
	updates    []map[string]any
	deleted    []string
	failDelete map[string]bool
}

func (f *fakeBackend) FetchList(ctx context.Context, schemaID string, p ListParams) (*ListResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, p)
	if f.fail {
		return nil, errors.New("backend down")
	}
	return &ListResult{Records: f.records, TotalItems: f.total, TotalPages: 1}, nil
}

func (f *fakeBackend) FetchCounts(ctx context.Context, schemaID, userID string, companyIDs []string) (*Counts, error) {
	return &Counts{AssignedToCount: 2, InitiatedByCount: 5}, nil
}

func (f *fakeBackend) Create(ctx context.Context, schemaID string, values map[string]any) (entity.Record, error) {
	if f.fail {
		return nil, errors.New("backend down")
	}
	return entity.Record(values), nil
}

func (f *fakeBackend) Update(ctx context.Context, schemaID, id string, values map[string]any) (entity.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return nil, errors.New("backend down")
	}
	f.updates = append(f.updates, values)
	return entity.Record{"id": id}, nil
}

func (f *fakeBackend) Delete(ctx context.Context, schemaID, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete[id] {
		return errors.New("constraint violation")
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeBackend) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeBackend) lastCall(t *testing.T) ListParams {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		t.Fatal("no fetches issued")
	}
	return f.calls[len(f.calls)-1]
}

func testSchema() *schema.Schema {
	return &schema.Schema{
		ID:           "tasks",
		SingularName: "Task",
		Fields: []schema.Field{
			{ID: "f1", Name: "title", Label: "Title", Role: schema.RoleTitle, Component: schema.ComponentText},
			{ID: "f2", Name: "status", Label: "Status", Role: schema.RoleStatus, Component: schema.ComponentSelect},
		},
	}
}

func waitPhase(t *testing.T, c *Coordinator, want Phase) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.Phase() == want {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for phase %s, stuck at %s", want, c.Phase())
}

// waitCalls waits for the backend to have seen n fetches and the
// coordinator to settle.
func waitCalls(t *testing.T, c *Coordinator, f *fakeBackend, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if f.callCount() >= n && c.Phase() == PhaseIdle {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d calls, have %d (phase %s)", n, f.callCount(), c.Phase())
}

func newTestCoordinator(f *fakeBackend, scope Scope) *Coordinator {
	return NewCoordinator(testSchema(), f, Config{Scope: scope, Debounce: -1})
}

func TestCoordinator_RedundantSettersIssueNoFetch(t *testing.T) {
	f := &fakeBackend{}
	c := NewCoordinator(testSchema(), f, Config{Debounce: -1, Scope: Scope{AllCompanies: true}})
	c.Start()
	defer c.Stop()
	waitCalls(t, c, f, 1)

	// Re-applying the current state must not hit the backend again.
	c.SetSearch("")
	c.SetPage(1)
	c.SetFilters(nil)
	c.SetSort(nil)
	c.SetScope(Scope{AllCompanies: true})
	time.Sleep(20 * time.Millisecond)
	if n := f.callCount(); n != 1 {
		t.Fatalf("expected 1 fetch, got %d", n)
	}

	// A real change fetches exactly once more.
	c.SetPage(2)
	waitCalls(t, c, f, 2)
	if got := f.lastCall(t).Page; got != 2 {
		t.Fatalf("expected page=2 on the wire, got %d", got)
	}
}

func TestCoordinator_FilterChangeResetsPage(t *testing.T) {
	f := &fakeBackend{}
	c := newTestCoordinator(f, Scope{AllCompanies: true})
	c.Start()
	defer c.Stop()
	waitCalls(t, c, f, 1)

	c.SetPage(3)
	waitCalls(t, c, f, 2)

	c.SetFilters(map[string]any{"status": "open"})
	waitCalls(t, c, f, 3)
	if got := c.State().Page; got != 1 {
		t.Fatalf("filter change must reset page to 1, got %d", got)
	}
	last := f.lastCall(t)
	if last.Page != 1 || last.Filters["status"] != "open" {
		t.Fatalf("unexpected wire params %+v", last)
	}

	// Re-applying an identical filter map keeps the page.
	c.SetPage(2)
	waitCalls(t, c, f, 4)
	c.SetFilters(map[string]any{"status": "open"})
	time.Sleep(20 * time.Millisecond)
	if got := c.State().Page; got != 2 {
		t.Fatalf("identical filters must not reset page, got %d", got)
	}
}

func TestCoordinator_SortChangeResetsPage(t *testing.T) {
	f := &fakeBackend{}
	c := newTestCoordinator(f, Scope{AllCompanies: true})
	c.Start()
	defer c.Stop()
	waitCalls(t, c, f, 1)

	c.SetPage(4)
	waitCalls(t, c, f, 2)
	c.SetSort([]SortKey{{Column: "title", Ascending: true}})
	waitCalls(t, c, f, 3)
	if got := c.State().Page; got != 1 {
		t.Fatalf("sort change must reset page to 1, got %d", got)
	}
}

func TestCoordinator_PageChangeKeepsFilters(t *testing.T) {
	f := &fakeBackend{}
	c := newTestCoordinator(f, Scope{AllCompanies: true})
	c.Start()
	defer c.Stop()
	waitCalls(t, c, f, 1)

	c.SetFilters(map[string]any{"status": "open"})
	waitCalls(t, c, f, 2)
	c.SetPage(5)
	waitCalls(t, c, f, 3)

	last := f.lastCall(t)
	if last.Page != 5 || last.Filters["status"] != "open" {
		t.Fatalf("page move must keep filters, got %+v", last)
	}
}

func TestCoordinator_UnresolvedScopeSuppressesFetch(t *testing.T) {
	f := &fakeBackend{}
	// Company-based schema, no company selection yet.
	c := newTestCoordinator(f, Scope{})
	c.Start()
	defer c.Stop()

	waitPhase(t, c, PhaseResolving)
	time.Sleep(20 * time.Millisecond)
	if n := f.callCount(); n != 0 {
		t.Fatalf("expected no fetch while scope unresolved, got %d", n)
	}

	// Setter churn while unresolved still fetches nothing.
	c.SetPage(2)
	c.SetSearch("abc")
	time.Sleep(20 * time.Millisecond)
	if n := f.callCount(); n != 0 {
		t.Fatalf("expected no fetch after setters, got %d", n)
	}

	// Resolving the scope releases the pending query.
	c.SetScope(Scope{CompanyIDs: []string{"c1"}})
	waitCalls(t, c, f, 1)
	last := f.lastCall(t)
	if len(last.CompanyIDs) != 1 || last.CompanyIDs[0] != "c1" {
		t.Fatalf("expected companyIds [c1], got %+v", last.CompanyIDs)
	}
	if last.Search != "abc" || last.Page != 2 {
		t.Fatalf("pending facets lost: %+v", last)
	}
}

func TestCoordinator_AssignmentScopeWithoutUserSuppressesFetch(t *testing.T) {
	f := &fakeBackend{}
	c := newTestCoordinator(f, Scope{AllCompanies: true, AssignmentActive: true})
	c.Start()
	defer c.Stop()
	waitPhase(t, c, PhaseResolving)
	if n := f.callCount(); n != 0 {
		t.Fatalf("expected no fetch without assignment user, got %d", n)
	}
}

func TestCoordinator_AssignmentViewSelectsIDList(t *testing.T) {
	f := &fakeBackend{}
	c := newTestCoordinator(f, Scope{
		AllCompanies:     true,
		AssignmentActive: true,
		AssignmentUserID: "u1",
	})
	c.Start()
	defer c.Stop()
	waitCalls(t, c, f, 1)

	last := f.lastCall(t)
	if len(last.AssignedToIDs) != 1 || last.AssignedToIDs[0] != "u1" {
		t.Fatalf("default view should filter assignedTo, got %+v", last)
	}
	if len(last.CreatedByIDs) != 0 {
		t.Fatalf("createdBy must be empty in assignedTo view, got %+v", last.CreatedByIDs)
	}

	c.SetScope(Scope{
		AllCompanies:     true,
		AssignmentActive: true,
		AssignmentUserID: "u1",
		AssignmentView:   ViewInitiatedBy,
	})
	waitCalls(t, c, f, 2)
	last = f.lastCall(t)
	if len(last.CreatedByIDs) != 1 || last.CreatedByIDs[0] != "u1" {
		t.Fatalf("initiatedBy view should filter createdBy, got %+v", last)
	}
	if len(last.AssignedToIDs) != 0 {
		t.Fatalf("assignedTo must be empty in initiatedBy view, got %+v", last.AssignedToIDs)
	}
}

func TestCoordinator_AllCompaniesOmitsCompanyIDs(t *testing.T) {
	f := &fakeBackend{}
	c := newTestCoordinator(f, Scope{AllCompanies: true, CompanyIDs: []string{"c1", "c2"}})
	c.Start()
	defer c.Stop()
	waitCalls(t, c, f, 1)
	if got := f.lastCall(t).CompanyIDs; len(got) != 0 {
		t.Fatalf("all-companies scope must not restrict companies, got %+v", got)
	}
}

func TestCoordinator_RefreshBypassesGateAndCache(t *testing.T) {
	f := &fakeBackend{}
	c := newTestCoordinator(f, Scope{AllCompanies: true})
	c.Start()
	defer c.Stop()
	waitCalls(t, c, f, 1)
	if f.lastCall(t).BypassCache {
		t.Fatal("regular fetch must not bypass cache")
	}

	c.Refresh()
	waitCalls(t, c, f, 2)
	if !f.lastCall(t).BypassCache {
		t.Fatal("refresh must bypass the backend cache")
	}
}

func TestCoordinator_FetchErrorKeepsLastGoodRecords(t *testing.T) {
	f := &fakeBackend{records: []entity.Record{{"id": "r1"}}, total: 1}
	c := newTestCoordinator(f, Scope{AllCompanies: true})
	c.Start()
	defer c.Stop()
	waitCalls(t, c, f, 1)
	if len(c.Records()) != 1 {
		t.Fatalf("expected 1 record after initial fetch, got %d", len(c.Records()))
	}

	f.mu.Lock()
	f.fail = true
	f.mu.Unlock()

	c.Refresh()
	waitPhase(t, c, PhaseError)

	if len(c.Records()) != 1 {
		t.Fatal("failed fetch must not clear the last good records")
	}
	err := c.LastError()
	if err == nil {
		t.Fatal("expected a retryable error")
	}
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected *FetchError, got %T", err)
	}

	// A successful retry clears the error.
	f.mu.Lock()
	f.fail = false
	f.mu.Unlock()
	c.Refresh()
	waitPhase(t, c, PhaseIdle)
	if c.LastError() != nil {
		t.Fatalf("expected error cleared after retry, got %v", c.LastError())
	}
}

func TestCoordinator_SearchDebounceCoalescesKeystrokes(t *testing.T) {
	f := &fakeBackend{}
	c := NewCoordinator(testSchema(), f, Config{
		Scope:    Scope{AllCompanies: true},
		Debounce: 30 * time.Millisecond,
	})
	c.Start()
	defer c.Stop()
	waitCalls(t, c, f, 1)

	c.SetSearch("i")
	c.SetSearch("in")
	c.SetSearch("inv")
	time.Sleep(10 * time.Millisecond)
	if n := f.callCount(); n != 1 {
		t.Fatalf("typing must not fetch before the quiet period, got %d calls", n)
	}

	waitCalls(t, c, f, 2)
	last := f.lastCall(t)
	if last.Search != "inv" {
		t.Fatalf("expected only the final text fetched, got %q", last.Search)
	}
	if n := f.callCount(); n != 2 {
		t.Fatalf("expected exactly one debounced fetch, got %d total", n)
	}
}

// gatedBackend hands each FetchList a reply channel so the test controls
// when (and in what order) responses arrive.
type gatedBackend struct {
	fakeBackend
	fetches chan chan *ListResult
}

func newGatedBackend() *gatedBackend {
	return &gatedBackend{fetches: make(chan chan *ListResult, 4)}
}

func (g *gatedBackend) FetchList(ctx context.Context, schemaID string, p ListParams) (*ListResult, error) {
	reply := make(chan *ListResult)
	g.fetches <- reply
	return <-reply, nil
}

func (g *gatedBackend) awaitFetch(t *testing.T) chan<- *ListResult {
	t.Helper()
	select {
	case reply := <-g.fetches:
		return reply
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a fetch to start")
		return nil
	}
}

func TestCoordinator_StaleResponseNeverCommits(t *testing.T) {
	g := newGatedBackend()
	c := NewCoordinator(testSchema(), g, Config{Debounce: -1, Scope: Scope{AllCompanies: true}})
	c.Start()
	defer c.Stop()

	// First fetch (page 1) is in flight and blocked.
	stale := g.awaitFetch(t)

	// A page move supersedes it; answer the new fetch first.
	c.SetPage(2)
	fresh := g.awaitFetch(t)
	fresh <- &ListResult{Records: []entity.Record{{"id": "fresh"}}, TotalItems: 1, TotalPages: 1}
	waitPhase(t, c, PhaseIdle)

	// The superseded fetch answers late with different data.
	stale <- &ListResult{Records: []entity.Record{{"id": "stale"}}, TotalItems: 99, TotalPages: 9}
	time.Sleep(20 * time.Millisecond)

	recs := c.Records()
	if len(recs) != 1 || recs[0].ID() != "fresh" {
		t.Fatalf("stale response overwrote state: %+v", recs)
	}
	if items, pages := c.Totals(); items != 1 || pages != 1 {
		t.Fatalf("stale totals committed: %d items, %d pages", items, pages)
	}
	if got := c.Phase(); got != PhaseIdle {
		t.Fatalf("expected idle after stale discard, got %s", got)
	}
}

func TestCoordinator_InvalidPageSizeIgnored(t *testing.T) {
	f := &fakeBackend{}
	c := newTestCoordinator(f, Scope{AllCompanies: true})
	c.Start()
	defer c.Stop()
	waitCalls(t, c, f, 1)

	c.SetPageSize(PageSize(7))
	time.Sleep(20 * time.Millisecond)
	if got := c.State().PageSize; got != DefaultPageSize {
		t.Fatalf("invalid page size must be ignored, got %d", got)
	}

	c.SetPageSize(PageSizeAll)
	waitCalls(t, c, f, 2)
	if got := f.lastCall(t).PageSize; !got.All() {
		t.Fatalf("expected unpaginated fetch, got %d", got)
	}
}

func TestCoordinator_FetchCounts(t *testing.T) {
	f := &fakeBackend{}
	c := newTestCoordinator(f, Scope{AllCompanies: true, AssignmentActive: true, AssignmentUserID: "u1"})
	c.Start()
	defer c.Stop()

	counts, err := c.FetchCounts(context.Background())
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.AssignedToCount != 2 || counts.InitiatedByCount != 5 {
		t.Fatalf("unexpected counts %+v", counts)
	}
}

func TestPageSize_ValidSet(t *testing.T) {
	for _, ps := range []PageSize{10, 25, 50, 100, 500, PageSizeAll} {
		if !ps.Valid() {
			t.Fatalf("expected %d valid", ps)
		}
	}
	for _, ps := range []PageSize{0, 1, 7, 1000} {
		if ps.Valid() {
			t.Fatalf("expected %d invalid", ps)
		}
	}
}

func TestPageSize_JSONRoundTrip(t *testing.T) {
	if got := PageSizeAll.QueryValue(); got != "all" {
		t.Fatalf("expected \"all\", got %q", got)
	}
	if got := PageSize(50).QueryValue(); got != "50" {
		t.Fatalf("expected \"50\", got %q", got)
	}

	var ps PageSize
	if err := ps.UnmarshalJSON([]byte(`"all"`)); err != nil || !ps.All() {
		t.Fatalf("expected all, got %d (%v)", ps, err)
	}
	if err := ps.UnmarshalJSON([]byte(`25`)); err != nil || ps != 25 {
		t.Fatalf("expected 25, got %d (%v)", ps, err)
	}
	if err := ps.UnmarshalJSON([]byte(`"bogus"`)); err == nil {
		t.Fatal("expected error for bogus page size")
	}

	b, err := PageSizeAll.MarshalJSON()
	if err != nil || string(b) != `"all"` {
		t.Fatalf("expected \"all\", got %s (%v)", b, err)
	}
}

func TestScope_Resolved(t *testing.T) {
	companyBased := testSchema()
	global := testSchema()
	global.IsNotCompanyBased = true

	if (Scope{}).Resolved(companyBased) {
		t.Fatal("empty scope on a company schema must be unresolved")
	}
	if !(Scope{}).Resolved(global) {
		t.Fatal("non-company schema needs no company selection")
	}
	if !(Scope{AllCompanies: true}).Resolved(companyBased) {
		t.Fatal("all-companies sentinel resolves the scope")
	}
	if !(Scope{CompanyIDs: []string{"c1"}}).Resolved(companyBased) {
		t.Fatal("explicit selection resolves the scope")
	}
	if (Scope{AllCompanies: true, AssignmentActive: true}).Resolved(companyBased) {
		t.Fatal("assignment scope without user must be unresolved")
	}
}

func TestFingerprint_MapOrderIndependent(t *testing.T) {
	a := fingerprintOf(map[string]any{"x": 1, "y": 2, "z": 3})
	b := fingerprintOf(map[string]any{"z": 3, "y": 2, "x": 1})
	if a != b {
		t.Fatalf("fingerprints differ for equal maps:\n%s\n%s", a, b)
	}
	c := fingerprintOf(map[string]any{"x": 1, "y": 2, "z": 4})
	if a == c {
		t.Fatal("fingerprints must differ for different values")
	}
	if !strings.Contains(a, `"x"`) {
		t.Fatalf("fingerprint should serialize keys, got %s", a)
	}
}
