package ir

import (
	"errors"
	"fmt"

	"github.com/containerd/errdefs"
)

// ErrConsistency marks a module that violates a structural precondition,
// typically a reference to a definition that is not in the module.
var ErrConsistency = errors.New("module consistency fault")

// ConsistencyFault reports a violated precondition. It is fatal for the
// compilation unit and is never retried.
//
// A fault matches both ErrConsistency and errdefs.ErrFailedPrecondition.
type ConsistencyFault struct {
	Def    string
	Detail string
}

func (f *ConsistencyFault) Error() string {
	if f.Def == "" {
		return fmt.Sprintf("%s: %s", ErrConsistency, f.Detail)
	}
	return fmt.Sprintf("%s: %s: %s", ErrConsistency, f.Def, f.Detail)
}

func (f *ConsistencyFault) Unwrap() []error {
	return []error{ErrConsistency, errdefs.ErrFailedPrecondition}
}

// Faultf builds a ConsistencyFault for the named definition.
func Faultf(def string, format string, args ...interface{}) *ConsistencyFault {
	return &ConsistencyFault{Def: def, Detail: fmt.Sprintf(format, args...)}
}

// IsConsistencyFault reports whether err is, or wraps, a consistency fault.
func IsConsistencyFault(err error) bool {
	return errors.Is(err, ErrConsistency)
}
