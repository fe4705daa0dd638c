package migrate

// EventKind tells an observer which step of a group run it is looking at.
type EventKind int

const (
	EventGroupStarted EventKind = iota
	EventRecordStarted
	EventRecordDone
	EventGroupDone
)

func (k EventKind) String() string {
	switch k {
	case EventGroupStarted:
		return "group-started"
	case EventRecordStarted:
		return "record-started"
	case EventRecordDone:
		return "record-done"
	case EventGroupDone:
		return "group-done"
	default:
		return "unknown"
	}
}

// Event is emitted synchronously from the run loop. Observers must not
// block for long; the next record waits for them.
type Event struct {
	Kind  EventKind
	RunID string
	Group GroupRef

	// set on EventGroupStarted
	Records []ClassifiedRecord

	// set on record events
	Index   int
	Total   int
	Record  ClassifiedRecord
	Outcome Outcome
	Receipt Receipt
	Err     error

	// set on EventGroupDone
	Report *Report
}

type Observer interface {
	Observe(Event)
}

type ObserverFunc func(Event)

func (f ObserverFunc) Observe(e Event) { f(e) }

// Observers fans one event out to several observers in order.
type Observers []Observer

func (os Observers) Observe(e Event) {
	for _, o := range os {
		if o != nil {
			o.Observe(e)
		}
	}
}
