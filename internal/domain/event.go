package domain

// EventKind discriminates the variants of a stream Event.
type EventKind int

const (
	EventPartial EventKind = iota
	EventComplete
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventPartial:
		return "partial"
	case EventComplete:
		return "complete"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one element of a status or answer stream.
// A stream carries zero or more EventPartial values followed by exactly one
// EventComplete or EventError, unless it was cancelled.
type Event struct {
	Kind EventKind
	Text string
	Err  error
}

func Partial(text string) Event  { return Event{Kind: EventPartial, Text: text} }
func Complete(text string) Event { return Event{Kind: EventComplete, Text: text} }
func Failure(err error) Event    { return Event{Kind: EventError, Err: err} }

// Terminal reports whether e ends a stream.
func (e Event) Terminal() bool { return e.Kind != EventPartial }
