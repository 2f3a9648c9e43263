package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"auralense/contrast"
)

const testPage = `<!DOCTYPE html><html><head><style>
.muted { color: #aaa }
.banner { background: #767676; color: #808080; font-size: 24px }
</style></head><body>
<p class="muted">quiet words</p>
<h2 class="banner">Banner</h2>
<p>plain</p>
</body></html>`

func writePage(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "page.html")
	if err := os.WriteFile(path, []byte(testPage), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestScanJSON(t *testing.T) {
	out, _, err := run(t, "scan", "--json", writePage(t))
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	var issues []contrast.Issue
	if err := json.Unmarshal([]byte(out), &issues); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(issues) != 2 {
		t.Fatalf("expected 2 issues, got %+v", issues)
	}
	if issues[0].Text != "quiet words" || issues[0].LargeText {
		t.Fatalf("unexpected first issue %+v", issues[0])
	}
	if issues[1].Text != "Banner" || !issues[1].LargeText {
		t.Fatalf("unexpected second issue %+v", issues[1])
	}
}

func TestScanTableAndFail(t *testing.T) {
	out, _, err := run(t, "scan", "--fail", writePage(t))
	if !errors.Is(err, errIssuesFound) {
		t.Fatalf("expected errIssuesFound, got %v", err)
	}
	if !strings.Contains(out, "HANDLE") || !strings.Contains(out, "2 issues") {
		t.Fatalf("unexpected table:\n%s", out)
	}
}

func TestFixWritesOutput(t *testing.T) {
	src := writePage(t)
	dst := filepath.Join(t.TempDir(), "fixed.html")
	_, errOut, err := run(t, "fix", "-o", dst, src)
	if err != nil {
		t.Fatalf("fix: %v", err)
	}
	if !strings.Contains(errOut, "fixed 2 of 2 issues") {
		t.Fatalf("unexpected summary %q", errOut)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	html := string(data)
	if strings.Contains(html, contrast.HandleAttr) {
		t.Fatalf("handles left in output:\n%s", html)
	}
	if strings.Count(html, "!important") < 2 {
		t.Fatalf("expected important overrides:\n%s", html)
	}

	// the repaired page scans clean
	out, _, err := run(t, "scan", "--fail", dst)
	if err != nil {
		t.Fatalf("rescan: %v\n%s", err, out)
	}
}

func TestStylesCommand(t *testing.T) {
	out, _, err := run(t, "styles", writePage(t), "h2")
	if err != nil {
		t.Fatalf("styles: %v", err)
	}
	for _, want := range []string{"node=h2", "color=rgb(128, 128, 128)", "background=rgb(118, 118, 118)", "size=24px", "weight=700", "needs=3.0"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestLiveNeedsURL(t *testing.T) {
	if _, _, err := run(t, "scan", "--live", writePage(t)); err == nil {
		t.Fatal("expected error for --live with a file")
	}
}
