package reconcile

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type source struct {
	Name  string
	Price string
}

type record struct {
	Name  string
	Price int
}

// testAdapter parses Price as an integer; an unparsable price fails normalization.
type testAdapter struct{}

func (testAdapter) Name() string { return "test" }

func (testAdapter) Normalize(s source) (record, error) {
	p, err := strconv.Atoi(s.Price)
	if err != nil {
		return record{}, fmt.Errorf("bad price %q", s.Price)
	}
	return record{Name: s.Name, Price: p}, nil
}

func (testAdapter) Key(r record) string { return r.Name }

func (testAdapter) Compare(existing, incoming record) []string {
	if existing.Price != incoming.Price {
		return []string{fmt.Sprintf("price: stored=%d incoming=%d", existing.Price, incoming.Price)}
	}
	return nil
}

// memTarget is an in-memory Target with failure injection.
type memTarget struct {
	name      string
	items     []Item[record]
	nextID    int
	failOn    map[string]error
	prepErr   error
	prepOpts  []ReconcileOptions
	listErr   error
	commitErr error

	listCalls, writes, commits int
}

func newMemTarget(name string) *memTarget {
	return &memTarget{name: name, failOn: map[string]error{}}
}

func (m *memTarget) Name() string { return m.name }

func (m *memTarget) Prepare(ctx context.Context, opts ReconcileOptions) error {
	m.prepOpts = append(m.prepOpts, opts)
	return m.prepErr
}

func (m *memTarget) Commit(ctx context.Context) error {
	m.commits++
	return m.commitErr
}

func (m *memTarget) List(ctx context.Context) ([]Item[record], error) {
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]Item[record], len(m.items))
	copy(out, m.items)
	return out, nil
}

func (m *memTarget) Create(ctx context.Context, r record) (string, error) {
	m.writes++
	if err := m.failOn[r.Name]; err != nil {
		return "", err
	}
	m.nextID++
	id := strconv.Itoa(m.nextID)
	m.items = append(m.items, Item[record]{ID: id, Value: r})
	return id, nil
}

func (m *memTarget) Update(ctx context.Context, id string, r record) error {
	m.writes++
	if err := m.failOn[r.Name]; err != nil {
		return err
	}
	for i := range m.items {
		if m.items[i].ID == id {
			m.items[i].Value = r
			return nil
		}
	}
	return errors.New("no such id " + id)
}

func (m *memTarget) Delete(ctx context.Context, id string) error {
	m.writes++
	for i := range m.items {
		if m.items[i].ID == id {
			m.items = append(m.items[:i], m.items[i+1:]...)
			return nil
		}
	}
	return errors.New("no such id " + id)
}

func testSpec() *Spec[source, record] {
	return &Spec[source, record]{Adapter: testAdapter{}}
}

func counts(r *Report) [5]int {
	return [5]int{r.Created, r.Updated, r.Unchanged, r.Deleted, r.Errors}
}

func TestReconcile_ExampleScenario(t *testing.T) {
	ctx := context.Background()
	target := newMemTarget("db")

	report, err := Reconcile(ctx, testSpec(), []source{{"A", "100"}, {"B", "100"}}, target, ReconcileOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, [5]int{2, 0, 0, 0, 0}, counts(report))

	report, err = Reconcile(ctx, testSpec(), []source{{"A", "150"}, {"B", "100"}}, target, ReconcileOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, [5]int{0, 1, 1, 0, 0}, counts(report))
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, Outcome{Name: "A", Action: ActionUpdate, ID: "1", Mismatch: []string{"price: stored=100 incoming=150"}}, report.Outcomes[0])
	assert.Equal(t, ActionUnchanged, report.Outcomes[1].Action)
}

func TestReconcile_Idempotent(t *testing.T) {
	ctx := context.Background()
	target := newMemTarget("db")
	sources := []source{{"A", "1"}, {"B", "2"}, {"C", "3"}}

	_, err := Reconcile(ctx, testSpec(), sources, target, ReconcileOptions{}, nil)
	require.NoError(t, err)
	writes := target.writes

	report, err := Reconcile(ctx, testSpec(), sources, target, ReconcileOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, [5]int{0, 0, 3, 0, 0}, counts(report))
	assert.Equal(t, writes, target.writes, "second run must not write")
}

func TestReconcile_ForceUpdate(t *testing.T) {
	ctx := context.Background()
	target := newMemTarget("db")
	sources := []source{{"A", "1"}}

	_, err := Reconcile(ctx, testSpec(), sources, target, ReconcileOptions{}, nil)
	require.NoError(t, err)

	report, err := Reconcile(ctx, testSpec(), sources, target, ReconcileOptions{ForceUpdate: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, [5]int{0, 1, 0, 0, 0}, counts(report))
	assert.Equal(t, []string{"forced"}, report.Outcomes[0].Mismatch)
}

func TestReconcile_PartialFailureIsolation(t *testing.T) {
	target := newMemTarget("db")
	target.failOn["C"] = errors.New("duplicate name")

	sources := []source{{"A", "1"}, {"B", "2"}, {"C", "3"}, {"D", "4"}}
	report, err := Reconcile(context.Background(), testSpec(), sources, target, ReconcileOptions{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, report.Created)
	assert.Equal(t, 1, report.Errors)
	assert.Equal(t, Outcome{Name: "C", Action: ActionError, Error: "duplicate name"}, report.Outcomes[2])
	assert.Equal(t, ActionCreate, report.Outcomes[3].Action)
	assert.Len(t, target.items, 3)
}

func TestReconcile_PrepareFailureShortCircuits(t *testing.T) {
	target := newMemTarget("remote")
	target.prepErr = errors.New("login rejected: 401")

	report, err := Reconcile(context.Background(), testSpec(), []source{{"A", "1"}, {"B", "2"}}, target, ReconcileOptions{}, nil)

	var terr *TargetError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "prepare", terr.Stage)
	assert.Equal(t, [5]int{0, 0, 0, 0, 2}, counts(report))
	assert.Equal(t, "A", report.Outcomes[0].Name)
	assert.Zero(t, target.listCalls)
	assert.Zero(t, target.writes)
	assert.Zero(t, target.commits)
}

func TestBuildPlan_PassesOptionsToPrepare(t *testing.T) {
	target := newMemTarget("db")
	opts := ReconcileOptions{DryRun: true, PruneMissing: true}

	BuildPlan(context.Background(), testSpec(), []source{{"A", "1"}}, target, opts)

	require.Len(t, target.prepOpts, 1)
	assert.Equal(t, opts, target.prepOpts[0])
	assert.Zero(t, target.writes)
}

func TestReconcile_ListFailure(t *testing.T) {
	target := newMemTarget("db")
	target.listErr = errors.New("connection refused")

	report, err := Reconcile(context.Background(), testSpec(), []source{{"A", "1"}}, target, ReconcileOptions{}, nil)
	assert.ErrorIs(t, err, target.listErr)
	assert.Equal(t, 1, report.Errors)
	assert.Zero(t, target.writes)
}

func TestReconcile_NormalizeFailure(t *testing.T) {
	target := newMemTarget("db")
	target.items = []Item[record]{{ID: "9", Value: record{Name: "Old", Price: 1}}}

	sources := []source{{"A", "1"}, {"B", "abc"}, {"", "5"}}
	report, err := Reconcile(context.Background(), testSpec(), sources, target, ReconcileOptions{PruneMissing: true}, nil)
	require.NoError(t, err)

	assert.Equal(t, [5]int{1, 0, 0, 0, 2}, counts(report))
	assert.True(t, report.PruneSkipped)
	assert.Equal(t, "source[1]", report.Outcomes[1].Name)
	assert.Equal(t, ErrEmptyKey.Error(), report.Outcomes[2].Error)
	assert.Len(t, target.items, 2, "prune must be skipped")
}

func TestReconcile_Prune(t *testing.T) {
	target := newMemTarget("db")
	target.items = []Item[record]{
		{ID: "1", Value: record{Name: "Keep", Price: 1}},
		{ID: "2", Value: record{Name: "Gone", Price: 1}},
	}

	report, err := Reconcile(context.Background(), testSpec(), []source{{"Keep", "1"}}, target, ReconcileOptions{}, nil)
	require.NoError(t, err)
	assert.Zero(t, report.Deleted, "prune is opt-in")

	report, err = Reconcile(context.Background(), testSpec(), []source{{"Keep", "1"}}, target, ReconcileOptions{PruneMissing: true}, nil)
	require.NoError(t, err)
	assert.Equal(t, [5]int{0, 0, 1, 1, 0}, counts(report))
	assert.Equal(t, Outcome{Name: "Gone", Action: ActionDelete, ID: "2"}, report.Outcomes[1])
	assert.Len(t, target.items, 1)
}

func TestReconcile_DryRun(t *testing.T) {
	target := newMemTarget("db")
	target.items = []Item[record]{{ID: "1", Value: record{Name: "A", Price: 1}}}

	report, err := Reconcile(context.Background(), testSpec(), []source{{"A", "2"}, {"B", "1"}}, target, ReconcileOptions{DryRun: true}, nil)
	require.NoError(t, err)
	assert.True(t, report.DryRun)
	assert.Equal(t, [5]int{1, 1, 0, 0, 0}, counts(report))
	assert.Zero(t, target.writes)
	assert.Zero(t, target.commits)
}

func TestReconcile_DuplicateSources(t *testing.T) {
	target := newMemTarget("db")

	report, err := Reconcile(context.Background(), testSpec(), []source{{"A", "1"}, {"A", "2"}, {"A", "2"}}, target, ReconcileOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, [5]int{1, 1, 1, 0, 0}, counts(report))
	require.Len(t, target.items, 1)
	assert.Equal(t, 2, target.items[0].Value.Price)
	assert.Equal(t, "1", report.Outcomes[1].ID)
}

func TestReconcile_Commit(t *testing.T) {
	target := newMemTarget("snapshot")

	_, err := Reconcile(context.Background(), testSpec(), []source{{"A", "1"}}, target, ReconcileOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, target.commits)

	target.commitErr = errors.New("disk full")
	report, err := Reconcile(context.Background(), testSpec(), []source{{"A", "1"}}, target, ReconcileOptions{}, nil)
	var terr *TargetError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "commit", terr.Stage)
	assert.Equal(t, 1, report.Unchanged)
}

func TestReconcile_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	target := newMemTarget("db")
	report, err := Reconcile(ctx, testSpec(), []source{{"A", "1"}, {"B", "1"}}, target, ReconcileOptions{}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Errors)
	assert.Zero(t, target.writes)
}

func TestMatchByName(t *testing.T) {
	index := BuildIndex([]Item[record]{
		{ID: "1", Value: record{Name: "Ensaio"}},
		{ID: "2", Value: record{Name: "Ensaio"}},
	}, testAdapter{}.Key)

	item, ok := MatchByName(index, "Ensaio")
	assert.True(t, ok)
	assert.Equal(t, "1", item.ID, "first listed record wins")

	_, ok = MatchByName(index, "ensaio")
	assert.False(t, ok)
	_, ok = MatchByName(index, "Ensaio ")
	assert.False(t, ok)
	assert.Len(t, index, 1)
}

func TestBuildPlan_Summary(t *testing.T) {
	target := newMemTarget("db")
	target.items = []Item[record]{{ID: "1", Value: record{Name: "A", Price: 1}}}

	plan := BuildPlan(context.Background(), testSpec(), []source{{"A", "1"}, {"B", "1"}, {"C", "x"}}, target, ReconcileOptions{})
	assert.Equal(t, PlanSummary{Create: 1, Unchanged: 1, Errors: 1}, plan.Summary)
	assert.Nil(t, plan.Fatal)
	assert.Zero(t, target.writes)
}
