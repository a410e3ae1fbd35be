package presence

import (
	"fmt"
	"sync"
	"time"
)

// Policy controls when a device's last-seen timestamp moves forward.
type Policy string

const (
	// PolicyReachable updates last-seen on every reachable probe, so a
	// device that stays on the network never re-alerts.
	PolicyReachable Policy = "reachable"
	// PolicyAlert updates last-seen only when an alert fires, so a device
	// that stays on the network re-alerts once per cooldown.
	PolicyAlert Policy = "alert"
)

// ParsePolicy converts a config value to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(s) {
	case PolicyReachable, PolicyAlert:
		return Policy(s), nil
	case "":
		return PolicyReachable, nil
	}
	return "", fmt.Errorf("unknown last-seen policy %q", s)
}

// Observation is the outcome of feeding one probe result to the tracker.
type Observation struct {
	Device   string
	Present  bool
	Alert    bool          // cooldown elapsed since last-seen; signal the arrival
	Arrived  bool          // first reachable probe after being away
	Departed bool          // unreachable for longer than the cooldown
	Since    time.Duration // time between the previous last-seen and this probe
}

// Status is a point-in-time view of one device for reporting.
type Status struct {
	Name          string    `json:"name"`
	Home          bool      `json:"home"`
	LastReachable time.Time `json:"last_reachable,omitzero"`
	LastAlert     time.Time `json:"last_alert,omitzero"`
	Alerts        int       `json:"alerts"`
}

type deviceState struct {
	lastSeen      time.Time // debounce reference, moves per Policy
	lastReachable time.Time // last successful probe, zero if never
	lastAlert     time.Time
	alerts        int
	home          bool
}

// Tracker keeps per-device last-seen timestamps and decides when a
// detection is a new arrival worth alerting on. The watcher loop is the
// only writer; the mutex exists for concurrent Snapshot readers.
type Tracker struct {
	mu       sync.Mutex
	cooldown time.Duration
	policy   Policy
	sentinel time.Time
	devices  map[string]*deviceState
	order    []string
}

// NewTracker creates a tracker. Every device starts with a last-seen
// sentinel far enough in the past that its first successful probe alerts.
func NewTracker(cooldown time.Duration, policy Policy, start time.Time, names ...string) *Tracker {
	t := &Tracker{
		cooldown: cooldown,
		policy:   policy,
		sentinel: start.Add(-(cooldown + 24*time.Hour)),
		devices:  make(map[string]*deviceState),
	}
	for _, name := range names {
		t.device(name)
	}
	return t
}

// Cooldown returns the configured cooldown window.
func (t *Tracker) Cooldown() time.Duration {
	return t.cooldown
}

func (t *Tracker) device(name string) *deviceState {
	st, ok := t.devices[name]
	if !ok {
		st = &deviceState{lastSeen: t.sentinel}
		t.devices[name] = st
		t.order = append(t.order, name)
	}
	return st
}

// Observe records a probe result taken at now.
func (t *Tracker) Observe(name string, present bool, now time.Time) Observation {
	t.mu.Lock()
	defer t.mu.Unlock()

	st := t.device(name)
	obs := Observation{
		Device:  name,
		Present: present,
		Since:   now.Sub(st.lastSeen),
	}

	if !present {
		if st.home && now.Sub(st.lastReachable) > t.cooldown {
			st.home = false
			obs.Departed = true
		}
		return obs
	}

	obs.Alert = obs.Since > t.cooldown
	obs.Arrived = !st.home
	st.home = true
	st.lastReachable = now

	if t.policy != PolicyAlert || obs.Alert {
		st.lastSeen = now
	}
	if obs.Alert {
		st.alerts++
		st.lastAlert = now
	}
	return obs
}

// Snapshot returns the status of every device in registration order.
func (t *Tracker) Snapshot() []Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Status, 0, len(t.order))
	for _, name := range t.order {
		st := t.devices[name]
		out = append(out, Status{
			Name:          name,
			Home:          st.home,
			LastReachable: st.lastReachable,
			LastAlert:     st.lastAlert,
			Alerts:        st.alerts,
		})
	}
	return out
}
