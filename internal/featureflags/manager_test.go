package featureflags

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0")

	if !m.Enabled("a", 1) || !m.Enabled("c", 1) || !m.Enabled("e", 1) {
		t.Fatal("expected enabled boolean values to evaluate true")
	}
	if m.Enabled("b", 1) || m.Enabled("d", 1) || m.Enabled("f", 1) {
		t.Fatal("expected disabled boolean values to evaluate false")
	}
	if m.Enabled("missing", 1) {
		t.Fatal("unknown flags must be disabled")
	}
}

func TestEnabled_PercentageValues(t *testing.T) {
	m := NewManager("always=100%,never=0%,canary=25%,junk=abc%")

	if !m.Enabled("always", 1) {
		t.Fatal("100% rollout should always be enabled")
	}
	if m.Enabled("never", 1) || m.Enabled("junk", 1) {
		t.Fatal("0% and malformed rollouts should be disabled")
	}

	first := m.Enabled("canary", 42)
	for i := 0; i < 5; i++ {
		if got := m.Enabled("canary", 42); got != first {
			t.Fatal("rollout evaluation must be deterministic per user")
		}
	}

	if m.Enabled("canary", 0) {
		t.Fatal("percentage rollout requires non-zero userID")
	}
}

func TestDefaults(t *testing.T) {
	m := NewManager("")
	if !m.Enabled(TaskNotifications, 7) || !m.Enabled(CatalogCache, 0) {
		t.Fatal("built-in flags should default to on")
	}

	m = NewManager("TASK_NOTIFICATIONS = off")
	if m.Enabled(TaskNotifications, 7) {
		t.Fatal("explicit config should override the default")
	}
	if !m.Enabled(CatalogCache, 7) {
		t.Fatal("unrelated defaults should survive overrides")
	}
}

func TestParseAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=on, y = 20% ,z=off ")

	raw := m.Raw()
	want := map[string]string{"x": "on", "y": "20%", "z": "off"}
	for k, v := range Defaults {
		want[k] = v
	}
	if diff := cmp.Diff(want, raw); diff != "" {
		t.Fatalf("raw flags mismatch (-want +got):\n%s", diff)
	}

	snap := m.Snapshot(123)
	if len(snap) != len(raw) {
		t.Fatalf("expected snapshot size %d, got %d", len(raw), len(snap))
	}
	if !snap["x"] || snap["z"] {
		t.Fatalf("unexpected snapshot: %#v", snap)
	}
}

func TestNilManager(t *testing.T) {
	var m *Manager
	if m.Enabled(TaskNotifications, 1) {
		t.Fatal("nil manager must report disabled")
	}
}
