package domain

// Status is the batch lifecycle state
type Status string

// Batch states
const (
	StatusQueued    Status = "queued"
	StatusParsing   Status = "parsing"
	StatusImporting Status = "importing"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no transition leaves s
func (s Status) Terminal() bool { return s == StatusCompleted || s == StatusFailed }

// Valid reports whether s is a known state
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusParsing, StatusImporting, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// predecessors lists, per target state, the states allowed to move into it
var predecessors = map[Status][]Status{
	StatusParsing:   {StatusQueued},
	StatusImporting: {StatusQueued, StatusParsing},
	StatusCompleted: {StatusImporting},
	StatusFailed:    {StatusQueued, StatusParsing, StatusImporting},
}

// AllowedFrom returns the states that may transition into to
func AllowedFrom(to Status) []Status {
	return append([]Status(nil), predecessors[to]...)
}

// CanTransition reports whether from -> to is a legal move
func CanTransition(from, to Status) bool {
	for _, p := range predecessors[to] {
		if p == from {
			return true
		}
	}
	return false
}
