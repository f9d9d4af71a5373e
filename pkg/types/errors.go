package types

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindNoMemory      ErrKind = iota // resource exhaustion; surfaced, never retried internally
	ErrKindOutOfRange                   // offset/length outside the object or arena
	ErrKindAlreadyExists                // double insert into a page table slot (a defect)
	ErrKindNotFound                     // required page missing; a normal, recoverable miss
	ErrKindBadState                     // valid operation, wrong object state
	ErrKindInvalidArgs                  // misaligned offset/size, nil object
	ErrKindUnavailable                  // pin count saturated
)

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error // optional underlying cause
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error with the same Kind, so sentinel comparison via
// errors.Is works for wrapped and annotated instances alike.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind
}

// Sentinels returned by pmm and vmo operations.
var (
	// ErrNoMemory indicates the free pool could not satisfy the request.
	ErrNoMemory = &Error{Kind: ErrKindNoMemory, Msg: "no memory"}
	// ErrOutOfRange indicates an offset or length outside the valid range.
	ErrOutOfRange = &Error{Kind: ErrKindOutOfRange, Msg: "out of range"}
	// ErrAlreadyExists indicates a page table slot was already occupied.
	ErrAlreadyExists = &Error{Kind: ErrKindAlreadyExists, Msg: "already exists"}
	// ErrNotFound indicates a required page is not resident.
	ErrNotFound = &Error{Kind: ErrKindNotFound, Msg: "not found"}
	// ErrBadState indicates the operation conflicts with current state,
	// e.g. decommitting a pinned range.
	ErrBadState = &Error{Kind: ErrKindBadState, Msg: "bad state"}
	// ErrInvalidArgs indicates misaligned or otherwise malformed arguments.
	ErrInvalidArgs = &Error{Kind: ErrKindInvalidArgs, Msg: "invalid args"}
	// ErrUnavailable indicates a per-page pin count hit its cap.
	ErrUnavailable = &Error{Kind: ErrKindUnavailable, Msg: "unavailable"}
)
