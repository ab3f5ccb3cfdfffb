package services

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/yungbote/lasttime-backend/internal/data/db"
	"github.com/yungbote/lasttime-backend/internal/data/repos"
	"github.com/yungbote/lasttime-backend/internal/data/repos/testutil"
	types "github.com/yungbote/lasttime-backend/internal/domain"
	"github.com/yungbote/lasttime-backend/internal/platform/apierr"
	"github.com/yungbote/lasttime-backend/internal/platform/dbctx"
)

type trackerFixture struct {
	store      *db.Service
	categories CategoryService
	activities ActivityService
}

func newTrackerFixture(t *testing.T) trackerFixture {
	t.Helper()
	store := testutil.Service(t)
	log := testutil.Logger(t)
	categoryRepo := repos.NewCategoryRepo(store.DB(), log)
	activityRepo := repos.NewActivityRecordRepo(store.DB(), log)
	return trackerFixture{
		store:      store,
		categories: NewCategoryService(store, log, categoryRepo, activityRepo),
		activities: NewActivityService(store, log, categoryRepo, activityRepo),
	}
}

func assertStatus(t *testing.T, err error, status int) {
	t.Helper()
	if !apierr.IsStatus(err, status) {
		t.Fatalf("expected status %d, got %v", status, err)
	}
}

func TestLastTimeScenario(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	fitness, err := f.categories.Create(ctx, "user-a", "Fitness")
	if err != nil {
		t.Fatalf("create category: %v", err)
	}
	if fitness.Name != "fitness" {
		t.Fatalf("category name not normalized: %q", fitness.Name)
	}

	first := time.Date(2024, 5, 1, 7, 30, 0, 0, time.UTC)
	later := first.Add(72 * time.Hour)
	if _, err := f.activities.Upsert(ctx, "user-a", UpsertActivityInput{Activity: "Run", LastDate: first, CategoryID: &fitness.ID}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if _, err := f.activities.Upsert(ctx, "user-a", UpsertActivityInput{Activity: "run", LastDate: later, CategoryID: &fitness.ID}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := f.activities.Get(ctx, "user-a", "RUN")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.LastDate.Equal(later) {
		t.Fatalf("last_date = %v, want %v", got.LastDate, later)
	}
	if got.CategoryID == nil || *got.CategoryID != fitness.ID {
		t.Fatalf("category_id = %v, want %d", got.CategoryID, fitness.ID)
	}

	if err := f.categories.Delete(ctx, "user-a", fitness.ID); err != nil {
		t.Fatalf("delete category: %v", err)
	}
	got, err = f.activities.Get(ctx, "user-a", "run")
	if err != nil {
		t.Fatalf("get after delete: %v", err)
	}
	if got.CategoryID != nil || got.Category != nil {
		t.Fatalf("category reference should be null, got %+v", got)
	}
}

func TestCategoryCreateConflict(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()

	if _, err := f.categories.Create(ctx, "user-a", "chores"); err != nil {
		t.Fatalf("create: %v", err)
	}
	_, err := f.categories.Create(ctx, "user-a", " CHORES ")
	assertStatus(t, err, http.StatusBadRequest)
	if ae := apierr.From(err); ae.Code != "category_exists" {
		t.Fatalf("code = %q", ae.Code)
	}

	_, err = f.categories.Create(ctx, "user-a", "   ")
	assertStatus(t, err, http.StatusBadRequest)
}

func TestCrossUserIsolation(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	cat, err := f.categories.Create(ctx, "user-a", "fitness")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.activities.Upsert(ctx, "user-a", UpsertActivityInput{Activity: "run", LastDate: now}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	list, err := f.categories.List(ctx, "user-b")
	if err != nil || len(list) != 0 {
		t.Fatalf("user-b sees categories: %+v err=%v", list, err)
	}
	recs, err := f.activities.List(ctx, "user-b", ListActivityInput{Limit: DefaultActivityLimit})
	if err != nil || len(recs) != 0 {
		t.Fatalf("user-b sees records: %+v err=%v", recs, err)
	}

	_, err = f.activities.Get(ctx, "user-b", "run")
	assertStatus(t, err, http.StatusNotFound)
	assertStatus(t, f.activities.Delete(ctx, "user-b", "run"), http.StatusNotFound)
	assertStatus(t, f.categories.Delete(ctx, "user-b", cat.ID), http.StatusNotFound)

	_, err = f.activities.Upsert(ctx, "user-b", UpsertActivityInput{Activity: "run", LastDate: now, CategoryID: &cat.ID})
	assertStatus(t, err, http.StatusNotFound)

	if _, err := f.activities.Get(ctx, "user-a", "run"); err != nil {
		t.Fatalf("owner lost access: %v", err)
	}
}

func TestCategoryDeleteDetachesAllRecords(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	now := time.Now().UTC()

	home, err := f.categories.Create(ctx, "user-a", "home")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	labels := []string{"dishes", "laundry", "vacuum", "water plants"}
	for i, label := range labels {
		if _, err := f.activities.Upsert(ctx, "user-a", UpsertActivityInput{
			Activity:   label,
			LastDate:   now.Add(-time.Duration(i) * time.Hour),
			CategoryID: &home.ID,
		}); err != nil {
			t.Fatalf("upsert %s: %v", label, err)
		}
	}

	if err := f.categories.Delete(ctx, "user-a", home.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	recs, err := f.activities.List(ctx, "user-a", ListActivityInput{Limit: DefaultActivityLimit})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(recs) != len(labels) {
		t.Fatalf("records must survive category delete: got %d", len(recs))
	}
	for _, r := range recs {
		if r.CategoryID != nil {
			t.Fatalf("record %q still references category %d", r.Activity, *r.CategoryID)
		}
	}
	cats, _ := f.categories.List(ctx, "user-a")
	if len(cats) != 0 {
		t.Fatalf("category row still present: %+v", cats)
	}
	assertStatus(t, f.categories.Delete(ctx, "user-a", home.ID), http.StatusNotFound)
}

type failingDeleteRepo struct {
	repos.CategoryRepo
}

func (r failingDeleteRepo) DeleteByID(dbc dbctx.Context, userID string, id uint) (int64, error) {
	return 0, errors.New("disk full")
}

func TestCategoryDeleteRollsBackOnFailure(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	log := testutil.Logger(t)

	home, err := f.categories.Create(ctx, "user-a", "home")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.activities.Upsert(ctx, "user-a", UpsertActivityInput{Activity: "dishes", LastDate: time.Now().UTC(), CategoryID: &home.ID}); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	activityRepo := repos.NewActivityRecordRepo(f.store.DB(), log)
	broken := NewCategoryService(f.store, log, failingDeleteRepo{repos.NewCategoryRepo(f.store.DB(), log)}, activityRepo)
	if err := broken.Delete(ctx, "user-a", home.ID); err == nil {
		t.Fatal("expected delete failure")
	}

	rec, err := f.activities.Get(ctx, "user-a", "dishes")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.CategoryID == nil || *rec.CategoryID != home.ID {
		t.Fatalf("nullify must roll back with the failed delete, got %v", rec.CategoryID)
	}
	cats, _ := f.categories.List(ctx, "user-a")
	if len(cats) != 1 {
		t.Fatalf("category should still exist, got %d", len(cats))
	}
}

func TestActivityListOrderingAndValidation(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	base := time.Date(2023, 12, 1, 0, 0, 0, 0, time.UTC)

	// inserted out of order on purpose
	offsets := map[string]int{"a": 3, "b": 10, "c": 1, "d": 7}
	for label, h := range offsets {
		if _, err := f.activities.Upsert(ctx, "user-a", UpsertActivityInput{Activity: label, LastDate: base.Add(time.Duration(h) * time.Hour)}); err != nil {
			t.Fatalf("upsert %s: %v", label, err)
		}
	}

	recs, err := f.activities.List(ctx, "user-a", ListActivityInput{Limit: DefaultActivityLimit})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	for i := 1; i < len(recs); i++ {
		if recs[i-1].LastDate.Before(recs[i].LastDate) {
			t.Fatalf("list not ordered by last_date desc at %d: %v before %v", i, recs[i-1].LastDate, recs[i].LastDate)
		}
	}
	if recs[0].Activity != "b" {
		t.Fatalf("most recent first, got %q", recs[0].Activity)
	}

	_, err = f.activities.List(ctx, "user-a", ListActivityInput{Skip: -1, Limit: 10})
	assertStatus(t, err, http.StatusBadRequest)
	_, err = f.activities.List(ctx, "user-a", ListActivityInput{Limit: 0})
	assertStatus(t, err, http.StatusBadRequest)

	_, err = f.activities.Upsert(ctx, "user-a", UpsertActivityInput{Activity: "", LastDate: base})
	assertStatus(t, err, http.StatusBadRequest)
	_, err = f.activities.Upsert(ctx, "user-a", UpsertActivityInput{Activity: "x"})
	assertStatus(t, err, http.StatusBadRequest)
}

func TestActivityUpsertStoresUTC(t *testing.T) {
	f := newTrackerFixture(t)
	ctx := context.Background()
	loc := time.FixedZone("UTC+5", 5*3600)
	local := time.Date(2024, 2, 2, 10, 0, 0, 0, loc)

	rec, err := f.activities.Upsert(ctx, "user-a", UpsertActivityInput{Activity: "yoga", LastDate: local})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if !rec.LastDate.Equal(local) {
		t.Fatalf("instant changed: %v vs %v", rec.LastDate, local)
	}
	var rows []types.ActivityRecord
	f.store.DB().Find(&rows)
	if len(rows) != 1 {
		t.Fatalf("rows = %d", len(rows))
	}
}
