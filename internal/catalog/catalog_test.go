package catalog_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tinywii/internal/catalog"
)

func openStore(t *testing.T) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(filepath.Join(t.TempDir(), "data", "catalog.db"))
	if err != nil {
		t.Fatalf("catalog.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestUpsertAndGet(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	rec := catalog.Record{
		Dir:       "/mnt/wbfs/Galaxy [RMGE01]",
		GameID:    "RMGE01",
		Title:     "Super Mario Galaxy",
		Console:   "Wii",
		Format:    "wbfs",
		SizeBytes: 4096,
		Parts:     2,
	}
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := store.Get(ctx, rec.Dir)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Title != rec.Title || got.Parts != 2 || got.SizeBytes != 4096 || got.ScannedAt.IsZero() {
		t.Fatalf("unexpected record %+v", got)
	}
	if got.Verified() {
		t.Fatal("fresh record should not be verified")
	}

	if _, err := store.Get(ctx, "/missing"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChecksumSurvivesRescanUnlessSizeChanges(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	rec := catalog.Record{Dir: "/mnt/games/Melee [GALE01]", GameID: "GALE01", Title: "Melee", Console: "GameCube", SizeBytes: 100}
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	if err := store.RecordChecksum(ctx, rec.Dir, "deadbeef", "0123456789abcdef"); err != nil {
		t.Fatalf("RecordChecksum: %v", err)
	}

	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, _ := store.Get(ctx, rec.Dir)
	if !got.Verified() || got.CRC32 != "deadbeef" || got.VerifiedAt.IsZero() {
		t.Fatalf("checksum should survive same-size rescan: %+v", got)
	}

	rec.SizeBytes = 200
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, _ = store.Get(ctx, rec.Dir)
	if got.Verified() {
		t.Fatalf("checksum should reset after size change: %+v", got)
	}

	if err := store.RecordChecksum(ctx, "/missing", "a", "b"); !errors.Is(err, catalog.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAndPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for _, rec := range []catalog.Record{
		{Dir: "/mnt/a/wbfs/Zelda [RZDE01]", GameID: "RZDE01", Title: "zelda", Console: "Wii"},
		{Dir: "/mnt/a/wbfs/Galaxy [RMGE01]", GameID: "RMGE01", Title: "Galaxy", Console: "Wii"},
		{Dir: "/mnt/a/games/Melee [GALE01]", GameID: "GALE01", Title: "melee", Console: "GameCube"},
		{Dir: "/mnt/b/wbfs/Kart [RMCE01]", GameID: "RMCE01", Title: "Kart", Console: "Wii"},
		{Dir: "/mnt/ab/wbfs/Party [RMAE01]", GameID: "RMAE01", Title: "Party", Console: "Wii"},
	} {
		if err := store.Upsert(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}
	list, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 5 || list[0].Title != "Galaxy" || list[4].Title != "zelda" {
		t.Fatalf("unexpected ordering %+v", list)
	}

	roots := []string{"/mnt/a/wbfs", "/mnt/a/games"}
	removed, err := store.Prune(ctx, roots, []string{"/mnt/a/wbfs/Galaxy [RMGE01]"})
	if err != nil {
		t.Fatal(err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 pruned, got %d", removed)
	}
	list, _ = store.List(ctx)
	var dirs []string
	for _, rec := range list {
		dirs = append(dirs, rec.Dir)
	}
	want := []string{"/mnt/a/wbfs/Galaxy [RMGE01]", "/mnt/b/wbfs/Kart [RMCE01]", "/mnt/ab/wbfs/Party [RMAE01]"}
	if len(dirs) != len(want) || dirs[0] != want[0] || dirs[1] != want[1] || dirs[2] != want[2] {
		t.Fatalf("records on other drives must survive, have %v", dirs)
	}
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.db")
	store, err := catalog.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Upsert(context.Background(), catalog.Record{Dir: "/a", GameID: "RMGE01", Title: "Galaxy", Console: "Wii"}); err != nil {
		t.Fatal(err)
	}
	store.Close()

	reopened, err := catalog.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	if _, err := reopened.Get(context.Background(), "/a"); err != nil {
		t.Fatalf("expected record after reopen: %v", err)
	}
}
