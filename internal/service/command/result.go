package command

import "errors"

// Outcome tags how a command ended.
type Outcome int

const (
	// OutcomeOK means the transaction committed.
	OutcomeOK Outcome = iota
	// OutcomeRejected means the command refused the request for a business
	// reason. Nothing was written.
	OutcomeRejected
	// OutcomeFailed means the store failed and the transaction rolled back.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result is the uniform outcome of every command. Data holds the
// command-specific payload for OK results. Reason is a human-readable
// message for rejections and failures; Err carries the sentinel (for
// rejections) or the underlying cause (for failures). Counters are zero
// unless the outcome is OK.
type Result struct {
	Outcome  Outcome `json:"-"`
	Data     any     `json:"data,omitempty"`
	Inserted int     `json:"inserted"`
	Updated  int     `json:"updated"`
	Deleted  int     `json:"deleted"`
	Reason   string  `json:"message,omitempty"`
	Err      error   `json:"-"`
}

// OK builds a committed result.
func OK(data any, inserted, updated, deleted int) Result {
	return Result{Outcome: OutcomeOK, Data: data, Inserted: inserted, Updated: updated, Deleted: deleted}
}

// Rejected builds a business rejection. kind is one of ErrInvalid,
// ErrNotFound or ErrExists.
func Rejected(kind error, reason string) Result {
	return Result{Outcome: OutcomeRejected, Reason: reason, Err: kind}
}

// Failed builds an infrastructure failure.
func Failed(cause error) Result {
	r := Result{Outcome: OutcomeFailed, Err: cause}
	if cause != nil {
		r.Reason = cause.Error()
	}
	return r
}

// Success returns true if the command committed.
func (r Result) Success() bool { return r.Outcome == OutcomeOK }

// Is reports whether the result carries target, so callers can write
// res.Is(command.ErrNotFound).
func (r Result) Is(target error) bool { return errors.Is(r.Err, target) }
