package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"tinywii/internal/catalog"
	"tinywii/internal/config"
	"tinywii/internal/library"
	"tinywii/internal/testsupport"
)

type cliTestEnv struct {
	cfg        *config.Config
	configPath string
	baseDir    string
}

func setupCLITestEnv(t *testing.T) *cliTestEnv {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithThreads(1, 2))
	base := testsupport.BaseDir(cfg)
	t.Setenv("HOME", filepath.Join(base, "home"))
	t.Setenv("TINYWII_MOUNT_POINT", "")

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return &cliTestEnv{cfg: cfg, configPath: configPath, baseDir: base}
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
mount_point = %q
archive_dir = %q
log_dir = %q
data_dir = %q

[pipeline]
preloader_threads = %d
processor_threads = %d
fallback_poll_ms = 20

[catalog]
enabled = %t
path = %q

[watch]
enabled = false

[update]
enabled = false

[logging]
level = "error"
`,
		cfg.Paths.MountPoint,
		cfg.Paths.ArchiveDir,
		cfg.Paths.LogDir,
		cfg.Paths.DataDir,
		cfg.Pipeline.PreloaderThreads,
		cfg.Pipeline.ProcessorThreads,
		cfg.Catalog.Enabled,
		cfg.Catalog.Path,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.Paths.MountPoint)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting")
	}
}

func TestBudgetHonoursConfig(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"budget"}, env.configPath)
	if err != nil {
		t.Fatalf("budget: %v", err)
	}
	requireContains(t, out, "Preloaders:   1")
	requireContains(t, out, "Processors:   2")
	requireContains(t, out, "Overridden:   yes")
}

func TestScanAndList(t *testing.T) {
	env := setupCLITestEnv(t)
	mount := env.cfg.Paths.MountPoint
	testsupport.MakeGameDir(t, mount, "RMGE01", "Super Mario Galaxy", 4096)
	testsupport.MakeGameDir(t, mount, "GALE01", "Melee", 2048)

	out, _, err := runCLI(t, []string{"scan", "--checksum"}, env.configPath)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	requireContains(t, out, "2 games, 0 apps")
	requireContains(t, out, "2 loaded, 2 verified")

	out, _, err = runCLI(t, []string{"list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var listings []gameListing
	if err := json.Unmarshal([]byte(out), &listings); err != nil {
		t.Fatalf("decode list output: %v\n%s", err, out)
	}
	if len(listings) != 2 || listings[0].ID != "GALE01" || listings[1].ID != "RMGE01" {
		t.Fatalf("unexpected listings %+v", listings)
	}
	for _, l := range listings {
		if l.CRC32 == "" || l.Format != "iso" {
			t.Fatalf("expected cached checksum and format for %+v", l)
		}
	}

	out, _, err = runCLI(t, []string{"list", "--filter", "galaxy"}, env.configPath)
	if err != nil {
		t.Fatalf("list filter: %v", err)
	}
	requireContains(t, out, "RMGE01")
	if strings.Contains(out, "GALE01") {
		t.Fatalf("filter should exclude Melee:\n%s", out)
	}
}

func TestInfoReadsGameDirectory(t *testing.T) {
	env := setupCLITestEnv(t)
	dir, _ := testsupport.MakeGameDir(t, env.cfg.Paths.MountPoint, "SOUE01", "Skyward Sword", 4096)

	out, _, err := runCLI(t, []string{"info", "--json", dir}, env.configPath)
	if err != nil {
		t.Fatalf("info: %v", err)
	}
	var info discInfo
	if err := json.Unmarshal([]byte(out), &info); err != nil {
		t.Fatalf("decode info: %v", err)
	}
	if info.ID != "SOUE01" || info.Title != "Skyward Sword" || info.Console != "Wii" || info.Region != "USA" {
		t.Fatalf("unexpected info %+v", info)
	}
}

func TestInstallChecksumAndArchive(t *testing.T) {
	env := setupCLITestEnv(t)
	src := filepath.Join(t.TempDir(), "sports.iso")
	testsupport.WriteDisc(t, src, testsupport.ContainerISO, "RSPE01", "Wii Sports", 8192)

	out, stderr, err := runCLI(t, []string{"install", src}, env.configPath)
	if err != nil {
		t.Fatalf("install: %v (%s)", err, stderr)
	}
	requireContains(t, out, "Installed Wii Sports [RSPE01]")
	installed := filepath.Join(env.cfg.Paths.MountPoint, library.WBFSDir, "Wii Sports [RSPE01]", "RSPE01.iso")
	if _, err := os.Stat(installed); err != nil {
		t.Fatalf("expected installed image: %v", err)
	}

	if _, _, err := runCLI(t, []string{"install", src}, env.configPath); err == nil {
		t.Fatal("second install should fail")
	}

	if _, _, err := runCLI(t, []string{"scan"}, env.configPath); err != nil {
		t.Fatalf("scan: %v", err)
	}
	out, _, err = runCLI(t, []string{"checksum", "RSPE01"}, env.configPath)
	if err != nil {
		t.Fatalf("checksum: %v", err)
	}
	requireContains(t, out, "Wii Sports [RSPE01]")

	store, err := catalog.Open(env.cfg.Catalog.Path)
	if err != nil {
		t.Fatal(err)
	}
	rec, err := store.Get(t.Context(), filepath.Dir(installed))
	store.Close()
	if err != nil {
		t.Fatalf("catalog get: %v", err)
	}
	if !rec.Verified() {
		t.Fatalf("expected checksum recorded, got %+v", rec)
	}

	dest := t.TempDir()
	out, _, err = runCLI(t, []string{"archive", "--dest", dest, "sports"}, env.configPath)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	requireContains(t, out, "Archived Wii Sports [RSPE01]")
	if _, err := os.Stat(filepath.Join(dest, "Wii Sports [RSPE01].iso")); err != nil {
		t.Fatalf("expected archive file: %v", err)
	}
}

func TestChecksumAllComparesWithRedump(t *testing.T) {
	env := setupCLITestEnv(t)
	_, galaxy := testsupport.MakeGameDir(t, env.cfg.Paths.MountPoint, "RMGE01", "Super Mario Galaxy", 4096)
	testsupport.MakeGameDir(t, env.cfg.Paths.MountPoint, "GALE01", "Melee", 2048)
	data, err := os.ReadFile(galaxy)
	if err != nil {
		t.Fatal(err)
	}
	dat := fmt.Sprintf(`<datafile><game name="Super Mario Galaxy (USA)"><rom name="smg.iso" size="%d" crc="%08x"/></game></datafile>`,
		len(data), crc32.ChecksumIEEE(data))
	if err := os.MkdirAll(env.cfg.Paths.DataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(env.cfg.Paths.DataDir, "redump-wii.dat"), []byte(dat), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"checksum", "--all"}, env.configPath)
	if err != nil {
		t.Fatalf("checksum --all: %v", err)
	}
	requireContains(t, out, "Super Mario Galaxy (USA)")
	requireContains(t, out, "mismatch")
}

func TestAppsInstallAndList(t *testing.T) {
	env := setupCLITestEnv(t)
	src := filepath.Join(t.TempDir(), "homebrew")
	testsupport.WriteFile(t, filepath.Join(src, "boot.dol"), 512)
	meta := `<?xml version="1.0" encoding="UTF-8"?>
<app version="1">
  <name>Homebrew Browser</name>
  <coder>teknecal</coder>
  <version>0.3.9</version>
</app>`
	if err := os.WriteFile(filepath.Join(src, "meta.xml"), []byte(meta), 0o644); err != nil {
		t.Fatal(err)
	}

	out, _, err := runCLI(t, []string{"apps", "install", src}, env.configPath)
	if err != nil {
		t.Fatalf("apps install: %v", err)
	}
	requireContains(t, out, "Installed app homebrew")

	out, _, err = runCLI(t, []string{"apps"}, env.configPath)
	if err != nil {
		t.Fatalf("apps: %v", err)
	}
	requireContains(t, out, "Homebrew Browser")
	requireContains(t, out, "0.3.9")

	if _, _, err := runCLI(t, []string{"apps", "install", t.TempDir()}, env.configPath); err == nil {
		t.Fatal("expected a directory without boot.dol to be rejected")
	}
}

func TestDriveReportsChecks(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"drive"}, env.configPath)
	if err != nil {
		t.Fatalf("drive: %v\n%s", err, out)
	}
	requireContains(t, out, "Drive")
	requireContains(t, out, "ok")
	requireContains(t, out, "Capacity:")
}

func TestDriveCleanRemovesLeftovers(t *testing.T) {
	env := setupCLITestEnv(t)
	partial := filepath.Join(env.cfg.Paths.MountPoint, library.AppsDir, ".browser.partial")
	if err := os.MkdirAll(partial, 0o755); err != nil {
		t.Fatal(err)
	}
	old := time.Now().Add(-2 * time.Hour)
	if err := os.Chtimes(partial, old, old); err != nil {
		t.Fatal(err)
	}
	out, _, err := runCLI(t, []string{"drive", "clean"}, env.configPath)
	if err != nil {
		t.Fatalf("drive clean: %v", err)
	}
	requireContains(t, out, "1 leftover removed")
	if _, err := os.Stat(partial); !os.IsNotExist(err) {
		t.Fatal("partial app copy should be removed")
	}
}

func TestLogsShowsTail(t *testing.T) {
	env := setupCLITestEnv(t)
	path := filepath.Join(env.cfg.Paths.LogDir, "tinywii.log")
	if err := os.MkdirAll(env.cfg.Paths.LogDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("first\nsecond\nthird\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	out, _, err := runCLI(t, []string{"logs", "-n", "2"}, env.configPath)
	if err != nil {
		t.Fatalf("logs: %v", err)
	}
	if out != "second\nthird\n" {
		t.Fatalf("unexpected logs output %q", out)
	}
}

func TestMissingMountPoint(t *testing.T) {
	env := setupCLITestEnv(t)
	cfg := *env.cfg
	cfg.Paths.MountPoint = ""
	path := filepath.Join(env.baseDir, "nomount.toml")
	writeTestConfig(t, path, &cfg)

	_, _, err := runCLI(t, []string{"scan"}, path)
	if err == nil || !strings.Contains(err.Error(), "mount_point is not set") {
		t.Fatalf("expected missing mount error, got %v", err)
	}

	out, _, err := runCLI(t, []string{"--mount", env.cfg.Paths.MountPoint, "scan"}, path)
	if err != nil {
		t.Fatalf("scan with --mount: %v", err)
	}
	requireContains(t, out, "0 games")
}

func TestResolveGame(t *testing.T) {
	games := []library.Game{
		{Title: "Mario Kart Wii", ID: "RMCE01", Dir: "/mnt/wbfs/Mario Kart Wii [RMCE01]"},
		{Title: "Mario Party 8", ID: "RMAE01", Dir: "/mnt/wbfs/Mario Party 8 [RMAE01]"},
	}
	if g, err := resolveGame(games, "RMAE01"); err != nil || g.Title != "Mario Party 8" {
		t.Fatalf("by id: %+v %v", g, err)
	}
	if g, err := resolveGame(games, "kart"); err != nil || g.ID != "RMCE01" {
		t.Fatalf("by query: %+v %v", g, err)
	}
	if _, err := resolveGame(games, "mario"); err == nil {
		t.Fatal("expected ambiguous query to fail")
	}
	if _, err := resolveGame(games, "zelda"); err == nil {
		t.Fatal("expected unmatched query to fail")
	}
}
