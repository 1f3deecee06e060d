package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sort"
	"testing"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// -- Mock Repository --

type mockTreatmentRepo struct {
	items   map[string]*Treatment
	failOn  string
	upserts int
}

func newMockTreatmentRepo() *mockTreatmentRepo {
	return &mockTreatmentRepo{items: make(map[string]*Treatment)}
}

func (m *mockTreatmentRepo) List(_ context.Context) ([]*Treatment, error) {
	out := []*Treatment{}
	for _, t := range m.items {
		cp := *t
		cp.Slots = append([]string{}, t.Slots...)
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockTreatmentRepo) ListNames(ctx context.Context) ([]TreatmentName, error) {
	all, _ := m.List(ctx)
	names := make([]TreatmentName, 0, len(all))
	for _, t := range all {
		names = append(names, TreatmentName{ID: t.ID, Name: t.Name})
	}
	return names, nil
}

func (m *mockTreatmentRepo) Upsert(_ context.Context, t *Treatment) error {
	if t.Name == m.failOn {
		return errors.New("write failed")
	}
	m.upserts++
	if existing, ok := m.items[t.Name]; ok {
		existing.Slots = t.Slots
		existing.Price = t.Price
		t.ID = existing.ID
		return nil
	}
	t.ID = uuid.New()
	cp := *t
	m.items[t.Name] = &cp
	return nil
}

// fakeTx snapshots the repository and restores it when fn fails.
type fakeTx struct {
	repo *mockTreatmentRepo
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	snapshot := make(map[string]*Treatment, len(f.repo.items))
	for k, v := range f.repo.items {
		cp := *v
		snapshot[k] = &cp
	}
	if err := fn(ctx); err != nil {
		f.repo.items = snapshot
		return err
	}
	return nil
}

func newTestService() (*Service, *mockTreatmentRepo) {
	repo := newMockTreatmentRepo()
	return NewService(repo, &fakeTx{repo: repo}), repo
}

func TestService_Import(t *testing.T) {
	svc, repo := newTestService()
	ctx := context.Background()

	n, err := svc.Import(ctx, []Treatment{
		{Name: "Cleaning", Slots: []string{"9am", "10am"}, Price: 75},
		{Name: "Whitening", Slots: []string{"1pm"}, Price: 150},
	})
	if err != nil || n != 2 {
		t.Fatalf("Import() = %d, %v", n, err)
	}

	// Re-import replaces slots of an existing treatment by name.
	if _, err := svc.Import(ctx, []Treatment{{Name: "Cleaning", Slots: []string{"11am"}, Price: 80}}); err != nil {
		t.Fatal(err)
	}
	if got := repo.items["Cleaning"]; len(got.Slots) != 1 || got.Price != 80 {
		t.Errorf("expected Cleaning to be replaced, got %+v", got)
	}
	if len(repo.items) != 2 {
		t.Errorf("expected 2 treatments, got %d", len(repo.items))
	}
}

func TestService_Import_RollsBackOnFailure(t *testing.T) {
	svc, repo := newTestService()
	repo.failOn = "Broken"

	_, err := svc.Import(context.Background(), []Treatment{
		{Name: "Cleaning", Slots: []string{"9am"}},
		{Name: "Broken", Slots: []string{"9am"}},
	})
	if err == nil {
		t.Fatal("expected import error")
	}
	if len(repo.items) != 0 {
		t.Errorf("expected rollback, found %d treatments", len(repo.items))
	}
}

func TestService_Import_ValidatesFirst(t *testing.T) {
	svc, repo := newTestService()
	if _, err := svc.Import(context.Background(), nil); err == nil {
		t.Fatal("expected validation error")
	}
	if repo.upserts != 0 {
		t.Error("no writes expected for invalid input")
	}
}

func TestHandler_ListTreatmentNames(t *testing.T) {
	svc, _ := newTestService()
	_, _ = svc.Import(context.Background(), []Treatment{
		{Name: "Whitening", Slots: []string{"1pm"}},
		{Name: "Cleaning", Slots: []string{"9am"}},
	})

	e := echo.New()
	NewHandler(svc).RegisterRoutes(e.Group(""))

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/treatment", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var raw []map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if len(raw) != 2 || raw[0]["name"] != "Cleaning" {
		t.Errorf("unexpected body: %v", raw)
	}
	if _, ok := raw[0]["slots"]; ok {
		t.Error("name projection must not include slots")
	}
}
