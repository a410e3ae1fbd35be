package presence

import (
	"testing"
	"time"
)

var start = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)

func TestTracker_FirstProbeAlerts(t *testing.T) {
	// Device absent for more than a day at startup: the first
	// successful probe alerts immediately.
	tr := NewTracker(15*time.Minute, PolicyReachable, start, "glad")

	obs := tr.Observe("glad", true, start)
	if !obs.Alert {
		t.Error("first reachable probe should alert")
	}
	if !obs.Arrived {
		t.Error("first reachable probe should be an arrival")
	}
	if obs.Since <= 24*time.Hour {
		t.Errorf("Since = %v, want more than a day", obs.Since)
	}
}

func TestTracker_LongCooldownStillAlertsFirst(t *testing.T) {
	tr := NewTracker(72*time.Hour, PolicyReachable, start, "glad")
	if !tr.Observe("glad", true, start).Alert {
		t.Error("sentinel must be older than the cooldown")
	}
}

func TestTracker_ContinuousPresenceAlertsOnce(t *testing.T) {
	for _, policy := range []Policy{PolicyReachable, PolicyAlert} {
		t.Run(string(policy), func(t *testing.T) {
			cooldown := 15 * time.Minute
			tr := NewTracker(cooldown, policy, start, "jason")

			alerts := 0
			// Present at every 10s poll for slightly less than one cooldown.
			for now := start; now.Sub(start) < cooldown; now = now.Add(10 * time.Second) {
				if tr.Observe("jason", true, now).Alert {
					alerts++
				}
			}
			if alerts != 1 {
				t.Errorf("alerts = %d, want exactly 1 within one cooldown window", alerts)
			}
		})
	}
}

func TestTracker_ReachablePolicyNoRealertWhilePresent(t *testing.T) {
	cooldown := 15 * time.Minute
	tr := NewTracker(cooldown, PolicyReachable, start, "jason")

	t1 := start
	t2 := t1.Add(cooldown + time.Minute)

	alertsAt := map[time.Time]bool{}
	for now := t1; !now.After(t2); now = now.Add(10 * time.Second) {
		if tr.Observe("jason", true, now).Alert {
			alertsAt[now] = true
		}
	}

	if !alertsAt[t1] {
		t.Error("expected alert at T1")
	}
	if alertsAt[t2] {
		t.Error("unexpected alert at T2")
	}
	if len(alertsAt) != 1 {
		t.Errorf("alerts = %d, want 1", len(alertsAt))
	}
}

func TestTracker_AlertPolicyRealertsAfterCooldown(t *testing.T) {
	cooldown := time.Minute
	tr := NewTracker(cooldown, PolicyAlert, start, "dash")

	alerts := 0
	for now := start; now.Sub(start) <= 3*time.Minute; now = now.Add(10 * time.Second) {
		if tr.Observe("dash", true, now).Alert {
			alerts++
		}
	}
	// Alerts at 0s, 70s, 140s: each after more than a minute since the last.
	if alerts != 3 {
		t.Errorf("alerts = %d, want 3", alerts)
	}
}

func TestTracker_RearmsAfterAbsence(t *testing.T) {
	cooldown := 15 * time.Minute
	tr := NewTracker(cooldown, PolicyReachable, start, "jason")

	if !tr.Observe("jason", true, start).Alert {
		t.Fatal("expected initial alert")
	}

	// Short absence does not re-arm.
	tr.Observe("jason", false, start.Add(5*time.Minute))
	if tr.Observe("jason", true, start.Add(6*time.Minute)).Alert {
		t.Error("return within cooldown should not alert")
	}

	// Absence longer than the cooldown does.
	back := start.Add(6*time.Minute + cooldown + time.Second)
	obs := tr.Observe("jason", true, back)
	if !obs.Alert {
		t.Error("return after cooldown should alert")
	}
}

func TestTracker_Departure(t *testing.T) {
	cooldown := time.Minute
	tr := NewTracker(cooldown, PolicyReachable, start, "jason")

	tr.Observe("jason", true, start)

	if obs := tr.Observe("jason", false, start.Add(30*time.Second)); obs.Departed {
		t.Error("should not depart within cooldown")
	}
	if obs := tr.Observe("jason", false, start.Add(2*time.Minute)); !obs.Departed {
		t.Error("should depart after cooldown")
	}
	if obs := tr.Observe("jason", false, start.Add(3*time.Minute)); obs.Departed {
		t.Error("departure should be reported once")
	}

	obs := tr.Observe("jason", true, start.Add(4*time.Minute))
	if !obs.Arrived {
		t.Error("reachable after departure should be an arrival")
	}
}

func TestTracker_AbsentNeverAlerts(t *testing.T) {
	tr := NewTracker(time.Minute, PolicyReachable, start, "jason")
	obs := tr.Observe("jason", false, start)
	if obs.Alert || obs.Arrived || obs.Departed {
		t.Errorf("absent probe on unseen device = %+v, want no flags", obs)
	}
}

func TestTracker_Snapshot(t *testing.T) {
	tr := NewTracker(time.Minute, PolicyReachable, start, "a", "b")
	tr.Observe("b", true, start)

	snap := tr.Snapshot()
	if len(snap) != 2 || snap[0].Name != "a" || snap[1].Name != "b" {
		t.Fatalf("Snapshot() = %+v", snap)
	}
	if snap[0].Home || !snap[0].LastReachable.IsZero() {
		t.Errorf("a = %+v, want away and never seen", snap[0])
	}
	if !snap[1].Home || snap[1].Alerts != 1 || !snap[1].LastAlert.Equal(start) {
		t.Errorf("b = %+v, want home with one alert", snap[1])
	}
}

func TestParsePolicy(t *testing.T) {
	tests := []struct {
		in      string
		want    Policy
		wantErr bool
	}{
		{"", PolicyReachable, false},
		{"reachable", PolicyReachable, false},
		{"alert", PolicyAlert, false},
		{"always", "", true},
	}
	for _, tt := range tests {
		got, err := ParsePolicy(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePolicy(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParsePolicy(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
