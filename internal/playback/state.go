package playback

// State is the playback state of a session.
type State int

const (
	Idle State = iota
	Playing
	Paused
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Document is the text being read and how to label it.
type Document struct {
	Text  string
	Title string
	// Kind is the source type shown to the user, e.g. "PDF" or "URL".
	Kind string
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	State        State
	Title        string
	Kind         string
	Position     float64 // seconds
	Duration     float64 // seconds
	Speed        float64
	Progress     int // 0-100
	Generation   uint64
	Regenerating bool
	Loaded       bool
	AudioID      string
	Err          string
}

func progress(position, duration float64) int {
	if duration <= 0 {
		return 0
	}
	p := int(position/duration*100 + 0.5)
	return min(max(p, 0), 100)
}
