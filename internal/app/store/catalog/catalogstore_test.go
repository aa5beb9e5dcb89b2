package catalogstore_test

import (
	"errors"
	"testing"

	catalogstore "github.com/dalemusser/promohub/internal/app/store/catalog"
	"github.com/dalemusser/promohub/internal/app/system/indexes"
	"github.com/dalemusser/promohub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func TestStore_ListActivePrograms(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := catalogstore.New(db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	for _, name := range []string{"TSSR", "CDA", "DWWM"} {
		if _, err := store.CreateProgram(ctx, name); err != nil {
			t.Fatalf("CreateProgram(%s) failed: %v", name, err)
		}
	}
	all, _ := store.ListActivePrograms(ctx)
	if err := store.SetProgramActive(ctx, all[0].ID, false); err != nil {
		t.Fatalf("SetProgramActive failed: %v", err)
	}

	got, err := store.ListActivePrograms(ctx)
	if err != nil {
		t.Fatalf("ListActivePrograms failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 active programs, got %d", len(got))
	}
	if got[0].Name != "DWWM" || got[1].Name != "TSSR" {
		t.Errorf("unexpected order: %s, %s", got[0].Name, got[1].Name)
	}
}

func TestStore_Sites(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db, zap.NewNop()); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	store := catalogstore.New(db)

	site, err := store.CreateSite(ctx, "Paris")
	if err != nil {
		t.Fatalf("CreateSite failed: %v", err)
	}
	if _, err := store.CreateSite(ctx, "PARIS"); !errors.Is(err, catalogstore.ErrDuplicateSite) {
		t.Errorf("expected ErrDuplicateSite, got %v", err)
	}

	got, err := store.GetSite(ctx, site.ID)
	if err != nil || got.Name != "Paris" || !got.Active {
		t.Errorf("GetSite: %+v, %v", got, err)
	}

	if err := store.SetSiteActive(ctx, "missing", false); err != mongo.ErrNoDocuments {
		t.Errorf("expected mongo.ErrNoDocuments, got %v", err)
	}
}
