package models

// BootState is a step in the load-and-handoff flow. States only move forward;
// any state before HandoffInvoked can move to Aborted instead.
type BootState int

const (
	Start BootState = iota
	BufferAcquired
	HeaderLocated
	Validated
	SegmentsMaterialized
	SnapshotsCollected
	HandoffInvoked
	Aborted
)

var stateNames = [...]string{
	"start",
	"buffer-acquired",
	"header-located",
	"validated",
	"segments-materialized",
	"snapshots-collected",
	"handoff-invoked",
	"aborted",
}

func (s BootState) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "invalid"
	}
	return stateNames[s]
}

func (s BootState) Terminal() bool {
	return s == HandoffInvoked || s == Aborted
}

// Next reports whether moving from s to n is a legal transition.
func (s BootState) Next(n BootState) bool {
	if s.Terminal() {
		return false
	}
	if n == Aborted {
		return true
	}
	return n == s+1
}
