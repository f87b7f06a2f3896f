package salary

import (
	"github.com/iov-one/weave/errors"
)

var (
	// ErrNotDue is returned when committing a scheduled salary update
	// before its waiting period has passed.
	ErrNotDue = errors.Register(150, "not yet due")

	// ErrNoOp is returned when a requested change would not change any
	// state, for example scheduling an update to the current rate.
	ErrNoOp = errors.Register(151, "nothing to do")
)
