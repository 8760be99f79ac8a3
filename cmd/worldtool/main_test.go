package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

const keepPack = "../../content/keep.yaml"

func TestCheckKeepPack(t *testing.T) {
	var out bytes.Buffer
	if n := checkPack(&out, keepPack, "../../scripts"); n != 0 {
		t.Fatalf("%d problems:\n%s", n, out.String())
	}
	if !strings.Contains(out.String(), "gatekeeper.yg compiles, used by guard") {
		t.Errorf("check output:\n%s", out.String())
	}
}

func TestCheckMissingScript(t *testing.T) {
	var out bytes.Buffer
	if n := checkPack(&out, keepPack, t.TempDir()); n != 1 {
		t.Errorf("problems = %d, want 1:\n%s", n, out.String())
	}
}

func TestBuildExportImport(t *testing.T) {
	dir := t.TempDir()
	bolt := filepath.Join(dir, "world.bolt")
	backups := filepath.Join(dir, "backups")
	var out, errOut bytes.Buffer

	steps := [][]string{
		{"-pack", keepPack, "-bolt", bolt, "-build"},
		{"-bolt", bolt, "-export", "-out", backups, "-world", "The Keep"},
		{"-list", "-out", backups},
	}
	for _, args := range steps {
		if code := run(args, &out, &errOut); code != 0 {
			t.Fatalf("run %v = %d: %s", args, code, errOut.String())
		}
	}
	if !strings.Contains(out.String(), ".snap.zst") || !strings.Contains(out.String(), "The Keep") {
		t.Fatalf("list output:\n%s", out.String())
	}

	matches, _ := filepath.Glob(filepath.Join(backups, "*.snap.zst"))
	if len(matches) != 1 {
		t.Fatalf("archives = %v", matches)
	}
	out.Reset()
	restored := filepath.Join(dir, "restored.bolt")
	if code := run([]string{"-archive", matches[0], "-bolt", restored, "-import", "-rooms"}, &out, &errOut); code != 0 {
		t.Fatalf("import = %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "(locked)") {
		t.Errorf("rooms listing lacks the cellar door:\n%s", out.String())
	}

	out.Reset()
	if code := run([]string{"-bolt", restored}, &out, &errOut); code != 0 {
		t.Fatalf("reading imported bolt = %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), "room       6") {
		t.Errorf("summary:\n%s", out.String())
	}
}

func TestRunUsage(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(nil, &out, &errOut); code != 2 {
		t.Errorf("no source = %d", code)
	}
	if code := run([]string{"-pack", keepPack, "-entity", "nobody"}, &out, &errOut); code != 1 {
		t.Errorf("missing entity = %d", code)
	}
}
