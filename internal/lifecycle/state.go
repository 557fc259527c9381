package lifecycle

// Status drives what the client offers the user.
type Status string

const (
	Stopped  Status = "STOPPED"
	Starting Status = "STARTING"
	Running  Status = "RUNNING"
	Error    Status = "ERROR"
)

// State is one client's view of its stream session. It is only changed
// through Apply.
type State struct {
	Status            Status
	StreamGroupID     string
	ApplicationID     string
	PendingSessionARN string
	LastSessionARN    string
	Regions           []string
	InputEnabled      bool
	IsStarting        bool

	SessionARN string
	Region     string
	LastError  string
}

// ActiveRegion is the first selected region, or "".
func (s State) ActiveRegion() string {
	if len(s.Regions) == 0 {
		return ""
	}
	return s.Regions[0]
}

func (s State) clone() State {
	if s.Regions != nil {
		s.Regions = append([]string(nil), s.Regions...)
	}
	return s
}

type EventKind int

const (
	CreateRequested EventKind = iota
	ReconnectRequested
	SessionCreated
	Activated
	Reconnected
	Failed
	Closed
	RegionsSelected
	PendingARNSet
)

var eventNames = map[EventKind]string{
	CreateRequested:    "create_requested",
	ReconnectRequested: "reconnect_requested",
	SessionCreated:     "session_created",
	Activated:          "activated",
	Reconnected:        "reconnected",
	Failed:             "failed",
	Closed:             "closed",
	RegionsSelected:    "regions_selected",
	PendingARNSet:      "pending_arn_set",
}

func (k EventKind) String() string {
	if s, ok := eventNames[k]; ok {
		return s
	}
	return "unknown"
}

// Event is an input to Apply. Only the fields its Kind uses are read.
type Event struct {
	Kind          EventKind
	ApplicationID string
	StreamGroupID string
	Regions       []string
	ARN           string
	Region        string
	Err           error
}

// Apply returns the state after ev. It never mutates s.
func Apply(ev Event, s State) State {
	next := s.clone()

	switch ev.Kind {
	case CreateRequested:
		next.Status = Starting
		next.IsStarting = true
		next.InputEnabled = false
		next.ApplicationID = ev.ApplicationID
		next.StreamGroupID = ev.StreamGroupID
		if len(ev.Regions) > 0 {
			next.Regions = DedupeRegions(ev.Regions)
		}
		next.SessionARN = ""
		next.Region = ""
		next.LastError = ""

	case ReconnectRequested:
		next.Status = Starting
		next.IsStarting = true
		next.InputEnabled = false
		next.PendingSessionARN = ev.ARN
		next.SessionARN = ev.ARN
		next.Region = ""
		next.LastError = ""

	case SessionCreated:
		next.SessionARN = ev.ARN
		next.Region = ev.Region

	case Activated:
		next.Status = Running
		next.IsStarting = false
		next.InputEnabled = true
		next.SessionARN = ev.ARN
		next.LastSessionARN = ev.ARN
		if ev.Region != "" {
			next.Region = ev.Region
		}

	case Reconnected:
		next.Status = Running
		next.IsStarting = false
		next.InputEnabled = true
		next.SessionARN = ev.ARN
		if ev.Region != "" {
			next.Region = ev.Region
		}

	case Failed:
		next.Status = Error
		next.IsStarting = false
		next.InputEnabled = false
		if ev.Err != nil {
			next.LastError = ev.Err.Error()
		}

	case Closed:
		next.Status = Stopped
		next.IsStarting = false
		next.InputEnabled = false
		next.SessionARN = ""
		next.Region = ""

	case RegionsSelected:
		next.Regions = DedupeRegions(ev.Regions)

	case PendingARNSet:
		next.PendingSessionARN = ev.ARN
	}

	return next
}

// DedupeRegions keeps the first occurrence of each non-empty region code.
func DedupeRegions(regions []string) []string {
	seen := make(map[string]bool, len(regions))
	out := make([]string, 0, len(regions))
	for _, r := range regions {
		if r == "" || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}
