package jobs_test

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tinywii/internal/budget"
	"tinywii/internal/catalog"
	"tinywii/internal/config"
	"tinywii/internal/jobs"
	"tinywii/internal/logging"
	"tinywii/internal/ops"
	"tinywii/internal/pipeline"
	"tinywii/internal/redump"
	"tinywii/internal/services"
	"tinywii/internal/testsupport"
	"tinywii/internal/transfer"
)

func newScheduler(t *testing.T) *pipeline.Scheduler {
	t.Helper()
	s, err := pipeline.New(budget.Budget{Preloader: 1, Processor: 2})
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	if err := s.Start(ctx); err != nil {
		cancel()
		t.Fatal(err)
	}
	t.Cleanup(func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		_ = s.Shutdown(shutdownCtx)
		cancel()
	})
	return s
}

func drain(t *testing.T, s *pipeline.Scheduler) []pipeline.Completion {
	t.Helper()
	var got []pipeline.Completion
	deadline := time.After(10 * time.Second)
	for {
		got = append(got, s.Poll()...)
		if s.Idle() {
			return append(got, s.Poll()...)
		}
		select {
		case <-deadline:
			t.Fatalf("timed out draining scheduler, have %d completions", len(got))
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func openCatalog(t *testing.T, path string) *catalog.Store {
	t.Helper()
	store, err := catalog.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestScanChainsLoadAndChecksum(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.MakeGameDir(t, cfg.Paths.MountPoint, "RMGE01", "Super Mario Galaxy", 4096)
	testsupport.MakeGameDir(t, cfg.Paths.MountPoint, "GALE01", "Melee", 2048)
	store := openCatalog(t, cfg.Catalog.Path)

	s := newScheduler(t)
	j := jobs.New(cfg, store, logging.NewNop())
	scan := s.SubmitJob(j.Scan(jobs.ScanOptions{Checksum: true}))

	completions := drain(t, s)
	if len(completions) != 5 {
		t.Fatalf("expected 1 scan + 2 loads + 2 checksums, got %d", len(completions))
	}
	var report jobs.Report
	var requestID string
	for _, c := range completions {
		if !c.OK() {
			t.Fatalf("%s failed: %v", c.Label, c.Err)
		}
		report.Add(c)
		if c.Handle == scan {
			started := c.Value.(jobs.ScanStarted)
			requestID = started.RequestID
			if len(started.Games) != 2 || len(c.Spawned) != 2 {
				t.Fatalf("unexpected scan result %+v spawned=%v", started, c.Spawned)
			}
		}
	}
	for _, c := range completions {
		if c.RequestID != requestID {
			t.Fatalf("chained job %s lost request id", c.Label)
		}
	}
	if report.Scans != 1 || report.Loaded != 2 || report.Verified != 2 || report.Err() != nil {
		t.Fatalf("unexpected report %+v", report)
	}

	records, err := store.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 catalog records, got %+v", records)
	}
	for _, rec := range records {
		if !rec.Verified() || rec.Format != "iso" {
			t.Fatalf("expected verified iso record, got %+v", rec)
		}
	}
}

func TestScanAppliesTitlesAndPrunes(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.MakeGameDir(t, cfg.Paths.MountPoint, "RMGE01", "galaxy", 1024)
	if err := writeString(filepath.Join(cfg.Paths.MountPoint, "titles.txt"), "RMGE01 = Super Mario Galaxy\n"); err != nil {
		t.Fatal(err)
	}
	store := openCatalog(t, cfg.Catalog.Path)
	gone := filepath.Join(cfg.Paths.MountPoint, "wbfs", "Gone [RXXE01]")
	if err := store.Upsert(context.Background(), catalog.Record{Dir: gone, GameID: "RXXE01", Title: "Gone", Console: "Wii"}); err != nil {
		t.Fatal(err)
	}

	s := newScheduler(t)
	j := jobs.New(cfg, store, logging.NewNop())
	s.SubmitJob(j.Scan(jobs.ScanOptions{Prune: true}))
	for _, c := range drain(t, s) {
		if !c.OK() {
			t.Fatalf("%s failed: %v", c.Label, c.Err)
		}
		switch v := c.Value.(type) {
		case jobs.ScanStarted:
			if v.Pruned != 1 {
				t.Fatalf("expected one pruned record, got %d", v.Pruned)
			}
		case jobs.GameLoaded:
			if v.Game.Title != "Super Mario Galaxy" || v.Header.ID != "RMGE01" {
				t.Fatalf("unexpected load %+v", v)
			}
		}
	}
}

func TestPruneLeavesOtherDrivesAlone(t *testing.T) {
	cfgA := testsupport.NewConfig(t)
	testsupport.MakeGameDir(t, cfgA.Paths.MountPoint, "GALE01", "Melee", 1024)
	cfgB := testsupport.NewConfig(t)
	cfgB.Catalog.Path = cfgA.Catalog.Path
	testsupport.MakeGameDir(t, cfgB.Paths.MountPoint, "RMGE01", "Galaxy", 1024)
	store := openCatalog(t, cfgA.Catalog.Path)

	s := newScheduler(t)
	for _, cfg := range []*config.Config{cfgA, cfgB} {
		s.SubmitJob(jobs.New(cfg, store, logging.NewNop()).Scan(jobs.ScanOptions{Prune: true}))
		for _, c := range drain(t, s) {
			if !c.OK() {
				t.Fatalf("%s failed: %v", c.Label, c.Err)
			}
			if v, ok := c.Value.(jobs.ScanStarted); ok && v.Pruned != 0 {
				t.Fatalf("scan of %s pruned %d records", v.Mount, v.Pruned)
			}
		}
	}

	records, err := store.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 2 {
		t.Fatalf("expected both drives in the catalog, got %+v", records)
	}
}

func TestLoadGameFailureIsReported(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutCatalog())
	_, path := testsupport.MakeGameDir(t, cfg.Paths.MountPoint, "RMGE01", "Galaxy", 1024)
	if err := writeString(path, "not a disc image, just text padding to exceed the header size......................."); err != nil {
		t.Fatal(err)
	}

	s := newScheduler(t)
	j := jobs.New(cfg, nil, logging.NewNop())
	s.SubmitJob(j.Scan(jobs.ScanOptions{Checksum: true}))

	var report jobs.Report
	completions := drain(t, s)
	for _, c := range completions {
		report.Add(c)
	}
	if len(completions) != 2 || report.Failed != 1 {
		t.Fatalf("expected scan + failed load, got %d completions, report %+v", len(completions), report)
	}
	if !errors.Is(report.Err(), services.ErrFormat) || len(report.Errors()) != 1 {
		t.Fatalf("expected a combined format error, got %v", report.Err())
	}
}

func TestTransferRunnerInstallsThroughQueue(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithSplitSize(1024))
	src := filepath.Join(testsupport.BaseDir(cfg), "incoming", "galaxy.iso")
	testsupport.WriteDisc(t, src, testsupport.ContainerISO, "RMGE01", "Galaxy", 3000)

	s := newScheduler(t)
	j := jobs.New(cfg, nil, logging.NewNop())
	q := transfer.NewQueue(s, j, logging.NewNop())
	q.Push(transfer.Entry{Kind: transfer.KindInstall, Source: src})
	q.Push(transfer.Entry{Kind: transfer.Kind("bogus"), Source: src})

	var results []pipeline.Completion
	deadline := time.After(10 * time.Second)
	for len(results) < 2 {
		for _, c := range s.Poll() {
			if _, ok := q.Resolve(c); ok {
				results = append(results, c)
			}
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for transfers, have %d", len(results))
		case <-time.After(5 * time.Millisecond):
		}
	}
	if !results[0].OK() {
		t.Fatalf("install failed: %v", results[0].Err)
	}
	installed := results[0].Value.(transfer.Result).Value.(ops.InstallResult)
	if len(installed.Files) != 3 {
		t.Fatalf("expected 3 parts, got %v", installed.Files)
	}
	if !errors.Is(results[1].Err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error for unknown kind, got %v", results[1].Err)
	}
}

func TestReportCountsCancelledSeparately(t *testing.T) {
	var r jobs.Report
	r.Add(pipeline.Completion{Label: "a", Err: services.Wrap(services.ErrCancelled, "x", "y", "", nil)})
	r.Add(pipeline.Completion{Label: "b", Err: context.Canceled})
	r.Add(pipeline.Completion{Label: "c", Value: 42})
	if r.Cancelled != 2 || r.Failed != 0 || r.Other != 1 || r.Err() != nil {
		t.Fatalf("unexpected report %+v", r)
	}
}

func fileCRC(t *testing.T, path string) (uint32, int64) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return crc32.ChecksumIEEE(data), int64(len(data))
}

func writeRedumpDAT(t *testing.T, dir, name string, games map[string][2]int64) {
	t.Helper()
	var b strings.Builder
	b.WriteString("<?xml version=\"1.0\"?>\n<datafile>\n")
	for title, rom := range games {
		fmt.Fprintf(&b, "\t<game name=%q><rom name=%q size=\"%d\" crc=\"%08x\"/></game>\n", title, title+".iso", rom[1], uint32(rom[0]))
	}
	b.WriteString("</datafile>\n")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := writeString(filepath.Join(dir, name), b.String()); err != nil {
		t.Fatal(err)
	}
}

func TestChecksumComparesWithRedump(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutCatalog())
	galaxyDir, galaxyISO := testsupport.MakeGameDir(t, cfg.Paths.MountPoint, "RMGE01", "Super Mario Galaxy", 4096)
	meleeDir, meleeISO := testsupport.MakeGameDir(t, cfg.Paths.MountPoint, "GALE01", "Melee", 2048)
	galaxyCRC, galaxySize := fileCRC(t, galaxyISO)
	meleeCRC, meleeSize := fileCRC(t, meleeISO)

	writeRedumpDAT(t, cfg.Paths.DataDir, "redump-wii.dat", map[string][2]int64{
		"Super Mario Galaxy (USA)": {int64(galaxyCRC), galaxySize},
	})
	// Melee is listed with a different dump, so its checksum must not match.
	writeRedumpDAT(t, cfg.Paths.MountPoint, "redump-gc.dat", map[string][2]int64{
		"Super Smash Bros. Melee (USA)": {int64(meleeCRC ^ 0xffff), meleeSize},
	})

	s := newScheduler(t)
	j := jobs.New(cfg, nil, logging.NewNop())
	s.SubmitJob(j.Scan(jobs.ScanOptions{Checksum: true}))

	var report jobs.Report
	results := map[string]redump.Result{}
	for _, c := range drain(t, s) {
		if !c.OK() {
			t.Fatalf("%s failed: %v", c.Label, c.Err)
		}
		report.Add(c)
		if v, ok := c.Value.(jobs.Verified); ok {
			results[v.Game.Dir] = v.Redump
		}
	}
	if got := results[galaxyDir]; got.Status != redump.StatusMatch || got.Entry.Game != "Super Mario Galaxy (USA)" {
		t.Fatalf("galaxy: expected match, got %+v", got)
	}
	if got := results[meleeDir]; got.Status != redump.StatusMismatch {
		t.Fatalf("melee: expected mismatch, got %+v", got)
	}
	if report.Passed != 1 || report.Mismatched != 1 {
		t.Fatalf("unexpected report %+v", report)
	}
	if want := "2 verified, 0 transfers, 0 failed, 0 cancelled (redump: 1 passed, 1 mismatched)"; !strings.Contains(report.String(), want) {
		t.Fatalf("report %q missing %q", report.String(), want)
	}
}

func TestChecksumTransferReportsRedumpStatus(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithoutCatalog())
	isoDir, iso := testsupport.MakeGameDir(t, cfg.Paths.MountPoint, "RMGE01", "Super Mario Galaxy", 4096)
	crc, size := fileCRC(t, iso)
	wbfsDir := filepath.Join(cfg.Paths.MountPoint, "wbfs", "Wii Sports [RSPE01]")
	testsupport.WriteDisc(t, filepath.Join(wbfsDir, "RSPE01.wbfs"), testsupport.ContainerWBFS, "RSPE01", "Wii Sports", 4096)
	wbfsCRC, wbfsSize := fileCRC(t, filepath.Join(wbfsDir, "RSPE01.wbfs"))
	writeRedumpDAT(t, cfg.Paths.DataDir, "redump-wii.dat", map[string][2]int64{
		"Super Mario Galaxy (USA)": {int64(crc), size},
		"Wii Sports (USA)":         {int64(wbfsCRC), wbfsSize},
	})

	j := jobs.New(cfg, nil, logging.NewNop())
	value, err := j.Run(context.Background(), transfer.Entry{Kind: transfer.KindChecksum, Source: isoDir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	v := value.(jobs.Verified)
	if v.Redump.Status != redump.StatusMatch || v.Game.ID != "RMGE01" || v.Digest.CRC32 != crc {
		t.Fatalf("unexpected iso result %+v", v)
	}

	// WBFS hashes the container, not the disc, so it is never compared.
	value, err = j.Run(context.Background(), transfer.Entry{Kind: transfer.KindChecksum, Source: wbfsDir})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if v := value.(jobs.Verified); v.Redump.Status != redump.StatusUnknown {
		t.Fatalf("expected unknown for wbfs, got %+v", v.Redump)
	}
}

func TestReportCountsRedumpFromTransfers(t *testing.T) {
	var r jobs.Report
	r.Add(pipeline.Completion{Value: transfer.Result{Value: jobs.Verified{Redump: redump.Result{Status: redump.StatusMismatch}}}})
	r.Add(pipeline.Completion{Value: jobs.Verified{}})
	if r.Transfers != 1 || r.Verified != 1 || r.Mismatched != 1 || r.Passed != 0 {
		t.Fatalf("unexpected report %+v", r)
	}
	if strings.Contains((&jobs.Report{}).String(), "redump") {
		t.Fatal("empty report should not mention redump")
	}
}
