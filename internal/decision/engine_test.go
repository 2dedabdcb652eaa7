package decision

import (
	"testing"
	"time"
)

func TestDecideLatestRefreshWithPreference(t *testing.T) {
	now := time.Now()
	d := Decide(Input{
		CurrentTag:          "latest",
		LatestAutoUpdatable: "latest",
		LatestOverall:       "latest",
		CurrentDate:         now.Add(-time.Hour),
		LatestDate:          now,
		HaveDates:           true,
		LatestPreference:    true,
	})
	if d.Kind != Restart {
		t.Errorf("Kind = %v, want Restart", d.Kind)
	}
}

func TestDecideLatestNoFreshPush(t *testing.T) {
	now := time.Now()
	d := Decide(Input{
		CurrentTag:          "latest",
		LatestAutoUpdatable: "latest",
		LatestOverall:       "latest",
		CurrentDate:         now,
		LatestDate:          now,
		HaveDates:           true,
		LatestPreference:    true,
	})
	if d.Kind != NoAction {
		t.Errorf("Kind = %v, want NoAction", d.Kind)
	}
}

func TestDecideLatestPreferenceDisabled(t *testing.T) {
	now := time.Now()
	d := Decide(Input{
		CurrentTag:          "latest",
		LatestAutoUpdatable: "latest",
		LatestOverall:       "latest",
		CurrentDate:         now.Add(-time.Hour),
		LatestDate:          now,
		HaveDates:           true,
		LatestPreference:    false,
	})
	if d.Kind != NoAction {
		t.Errorf("Kind = %v, want NoAction", d.Kind)
	}
}

func TestDecideUpdateTo(t *testing.T) {
	d := Decide(Input{
		CurrentTag:          "1.2.0",
		LatestAutoUpdatable: "1.3.0",
		LatestOverall:       "2.0.0",
	})
	if d.Kind != UpdateTo || d.Target != "1.3.0" {
		t.Errorf("got %+v, want UpdateTo(1.3.0)", d)
	}
}

func TestDecideNotifyOnly(t *testing.T) {
	d := Decide(Input{
		CurrentTag:          "1.2.0",
		LatestAutoUpdatable: "",
		LatestOverall:       "2.0.0",
	})
	if d.Kind != NotifyOnly {
		t.Errorf("got %+v, want NotifyOnly", d)
	}
}

func TestDecideNoAction(t *testing.T) {
	d := Decide(Input{
		CurrentTag:          "1.2.0",
		LatestAutoUpdatable: "1.2.0",
		LatestOverall:       "1.2.0",
	})
	if d.Kind != NoAction {
		t.Errorf("got %+v, want NoAction", d)
	}
}

// Invariants from spec §8.
func TestDecideInvariantUpdateToNeverEqualsCurrentOrLatest(t *testing.T) {
	d := Decide(Input{CurrentTag: "1.0.0", LatestAutoUpdatable: "1.1.0", LatestOverall: "1.1.0"})
	if d.Kind == UpdateTo && (d.Target == "1.0.0" || d.Target == "latest") {
		t.Errorf("UpdateTo target violates invariant: %+v", d)
	}
}

func TestDecideInvariantRestartRequiresLatestCurrentAndPreference(t *testing.T) {
	now := time.Now()
	d := Decide(Input{
		CurrentTag: "1.0.0", LatestAutoUpdatable: "1.0.0", LatestOverall: "1.0.0",
		HaveDates: true, CurrentDate: now, LatestDate: now.Add(time.Hour), LatestPreference: true,
	})
	if d.Kind == Restart {
		t.Errorf("Restart should require CurrentTag == latest, got %+v", d)
	}
}
