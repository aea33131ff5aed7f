package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matzehuels/pinaccess/pkg/db"
	"github.com/matzehuels/pinaccess/pkg/db/dbtest"
	"github.com/matzehuels/pinaccess/pkg/geom"
	pkgio "github.com/matzehuels/pinaccess/pkg/io"
	"github.com/matzehuels/pinaccess/pkg/observability"
)

// captureStdout redirects user-facing output for the rest of the test.
func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	old := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = old })
	return &buf
}

// execute runs the root command with args and a silent logger.
func execute(t *testing.T, args ...string) error {
	t.Helper()
	root := New(io.Discard, LogInfo).RootCommand()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.ExecuteContext(context.Background())
}

// writeDesign stores two abutting inverters, one isolated inverter and a
// block terminal as a design file.
func writeDesign(t *testing.T) string {
	t.Helper()
	b := dbtest.New(geom.R(0, 0, 4000, 3000))
	u1 := b.Inst("u1", 0, 0, 0, geom.R0)
	u2 := b.Inst("u2", 0, 400, 0, geom.R0)
	b.Inst("u3", 0, 2000, 0, geom.R0)
	b.Net("n1", db.TermRef{Inst: u1, Term: 1}, db.TermRef{Inst: u2, Term: 0})
	b.D.IOTerms = []db.IOTerm{{
		Name: "in",
		Net:  db.NoNet,
		Pins: []db.Pin{{Shapes: []db.Shape{{Layer: dbtest.M1, Rect: geom.R(3000, 265, 3400, 335)}}}},
	}}
	d := b.Build()

	path := filepath.Join(t.TempDir(), "design.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := pkgio.WriteDesign(d, f); err != nil {
		t.Fatal(err)
	}
	return path
}

func readAssignments(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read assignments: %v", err)
	}
	var out []map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("decode assignments: %v", err)
	}
	return out
}

func TestRootCommand(t *testing.T) {
	root := New(io.Discard, LogInfo).RootCommand()

	want := map[string]bool{"run": false, "classes": false, "eco": false, "cache": false, "completion": false}
	for _, cmd := range root.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestRunCommand(t *testing.T) {
	design := writeDesign(t)
	dir := t.TempDir()
	outPath := filepath.Join(dir, "assign.json")
	exportPath := filepath.Join(dir, "batches.jsonl")
	out := captureStdout(t)

	err := execute(t, "run", "--design", design, "--no-cache", "-j", "2", "-o", outPath, "--export", exportPath)
	if err != nil {
		t.Fatalf("run error: %v", err)
	}

	got := readAssignments(t, outPath)
	seen := map[string]bool{}
	for _, a := range got {
		if name, ok := a["inst"].(string); ok {
			seen[name] = true
		}
		if name, ok := a["io"].(string); ok {
			seen[name] = true
		}
	}
	for _, name := range []string{"u1", "u2", "u3", "in"} {
		if !seen[name] {
			t.Errorf("no assignment for %s", name)
		}
	}

	lines, err := os.ReadFile(exportPath)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if n := bytes.Count(lines, []byte("\n")); n == 0 {
		t.Error("no batches exported")
	}
	if !strings.Contains(out.String(), "Pin access") {
		t.Errorf("summary missing from output %q", out.String())
	}
}

func TestRunCommandErrors(t *testing.T) {
	design := writeDesign(t)
	badConfig := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(badConfig, []byte("threads = 0\nunknown = 1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	captureStdout(t)

	tests := []struct {
		name string
		args []string
	}{
		{"missing design flag", []string{"run"}},
		{"missing design file", []string{"run", "--design", filepath.Join(t.TempDir(), "nope.json"), "--no-cache"}},
		{"bad config", []string{"run", "--design", design, "--config", badConfig, "--no-cache"}},
		{"unexpected argument", []string{"run", "extra", "--design", design}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := execute(t, tt.args...); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestClassesCommand(t *testing.T) {
	design := writeDesign(t)
	out := captureStdout(t)

	if err := execute(t, "classes", "--design", design, "--no-cache", "--patterns"); err != nil {
		t.Fatalf("classes error: %v", err)
	}
	for _, want := range []string{"MASTER", "INV", "u1"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("classes output missing %q:\n%s", want, out.String())
		}
	}
}

func TestECOCommand(t *testing.T) {
	design := writeDesign(t)
	dir := t.TempDir()
	moves := filepath.Join(dir, "moves.json")
	if err := os.WriteFile(moves, []byte(`[{"inst": "u3", "origin": {"X": 800, "Y": 0}, "orient": "N"}]`), 0o644); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "assign.json")
	out := captureStdout(t)

	if err := execute(t, "eco", "--design", design, "--moves", moves, "--no-cache", "-o", outPath); err != nil {
		t.Fatalf("eco error: %v", err)
	}
	if !strings.Contains(out.String(), "Incremental update") {
		t.Errorf("report missing from output %q", out.String())
	}
	if len(readAssignments(t, outPath)) == 0 {
		t.Error("no assignments written")
	}

	bad := filepath.Join(dir, "bad.json")
	_ = os.WriteFile(bad, []byte(`[{"inst": "u9"}]`), 0o644)
	if err := execute(t, "eco", "--design", design, "--moves", bad, "--no-cache"); err == nil {
		t.Error("eco with unknown instance should fail")
	}
}

func TestMetricsRouter(t *testing.T) {
	srv := httptest.NewServer(newMetricsRouter())
	defer srv.Close()

	tests := []struct {
		path   string
		status int
		body   string
	}{
		{"/healthz", http.StatusOK, "ok"},
		{"/metrics", http.StatusOK, "go_goroutines"},
		{"/nope", http.StatusNotFound, ""},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := http.Get(srv.URL + tt.path)
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			if resp.StatusCode != tt.status {
				t.Errorf("GET %s status = %d, want %d", tt.path, resp.StatusCode, tt.status)
			}
			if !strings.Contains(string(body), tt.body) {
				t.Errorf("GET %s body missing %q", tt.path, tt.body)
			}
		})
	}
}

func TestStartMetrics(t *testing.T) {
	m, err := startMetrics("127.0.0.1:0", New(io.Discard, LogInfo).Logger)
	if err != nil {
		t.Fatalf("startMetrics() error: %v", err)
	}
	if _, ok := observability.Access().(*observability.PrometheusHooks); !ok {
		t.Errorf("access hooks = %T, want *PrometheusHooks", observability.Access())
	}

	resp, err := http.Get("http://" + m.addr + "/healthz")
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	m.shutdown()
	if _, ok := observability.Access().(observability.NoopAccessHooks); !ok {
		t.Errorf("access hooks after shutdown = %T, want NoopAccessHooks", observability.Access())
	}
}
