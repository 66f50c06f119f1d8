package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pario-ai/headroom/pkg/advisor"
	"github.com/pario-ai/headroom/pkg/config"
)

func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	for _, env := range []string{config.EnvConfig, config.EnvPlan, config.EnvLogDirs, config.EnvStateFile, config.EnvDaemonFile, config.EnvHistoryDB, config.EnvLogLevel} {
		t.Setenv(env, "")
	}
	return home
}

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestShouldExploreAfterUpdate(t *testing.T) {
	isolate(t)

	if _, err := run(t, "", "update", "96", "10"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "", "should-explore")
	if strings.TrimSpace(out) != "no" {
		t.Errorf("expected no, got %q", out)
	}
	var ee *exitError
	if !errors.As(err, &ee) || ee.code != 2 {
		t.Errorf("expected exit code 2, got %v", err)
	}
}

func TestShouldExploreNoData(t *testing.T) {
	isolate(t)

	out, err := run(t, "", "should-explore")
	if err != nil {
		t.Fatalf("expected exit 0, got %v", err)
	}
	if strings.TrimSpace(out) != "yes" {
		t.Errorf("expected yes, got %q", out)
	}
}

func TestStatusJSON(t *testing.T) {
	home := isolate(t)
	state := filepath.Join(home, "custom", "usage.json")

	if _, err := run(t, `{"five_hour": {"utilization": 60}, "seven_day": {"utilization": 20}}`, "--state-file", state, "update-json", "-"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "", "--state-file", state, "status", "--json")
	if err != nil {
		t.Fatal(err)
	}

	var snap struct {
		Tier       string `json:"tier"`
		Provenance string `json:"provenance"`
	}
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("status --json: %v\n%s", err, out)
	}
	if snap.Tier != "moderate" || snap.Provenance != "pushed-json" {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestSetPlanRejectsUnknown(t *testing.T) {
	isolate(t)

	_, err := run(t, "", "set-plan", "enterprise")
	if !errors.Is(err, advisor.ErrUnknownPlan) {
		t.Errorf("expected ErrUnknownPlan, got %v", err)
	}

	out, err := run(t, "", "set-plan", "pro")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "Plan set to: pro") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestUpdateRejectsBadInput(t *testing.T) {
	isolate(t)

	if _, err := run(t, "", "update", "abc", "10"); err == nil {
		t.Error("expected error for non-numeric percentage")
	}
	if _, err := run(t, "", "update", "50", "101"); err == nil {
		t.Error("expected error for percentage over 100")
	}
	if _, err := run(t, "", "update", "50", "10", "tomorrow"); err == nil {
		t.Error("expected error for bad reset time")
	}
}

func TestResetThenStatus(t *testing.T) {
	isolate(t)

	if _, err := run(t, "", "update", "80", "80"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "", "reset"); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, "", "status")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No usage data available") {
		t.Errorf("expected no-data status, got:\n%s", out)
	}
}

func TestRawAlias(t *testing.T) {
	isolate(t)

	out, err := run(t, "", "raw")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, `"no_data": true`) {
		t.Errorf("expected no_data in raw output:\n%s", out)
	}
}

func TestMetricsCommand(t *testing.T) {
	home := isolate(t)
	path := filepath.Join(home, "headroom.prom")

	if _, err := run(t, "", "update", "40", "10"); err != nil {
		t.Fatal(err)
	}
	if _, err := run(t, "", "metrics", path); err != nil {
		t.Fatal(err)
	}
}
