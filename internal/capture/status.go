package capture

import "fmt"

type AttachStatus string

const (
	StatusAttached        AttachStatus = "attached"
	StatusAlreadyAttached AttachStatus = "already-attached"
	StatusAttaching       AttachStatus = "attaching"
	StatusNotTarget       AttachStatus = "not-target"
	StatusFailed          AttachStatus = "failed"
	StatusSuperseded      AttachStatus = "superseded"
)

// AttachResult is the outcome of one attach attempt. Err is set only for
// StatusFailed.
type AttachResult struct {
	TabID  string
	Status AttachStatus
	Err    error
}

// String renders the result as the status line shown to the user.
func (r AttachResult) String() string {
	switch r.Status {
	case StatusAttached:
		return fmt.Sprintf("Debugger attached to tab %s.", r.TabID)
	case StatusAlreadyAttached:
		return fmt.Sprintf("Debugger already attached to tab %s.", r.TabID)
	case StatusAttaching:
		return fmt.Sprintf("Debugger attach already in progress for tab %s.", r.TabID)
	case StatusNotTarget:
		return fmt.Sprintf("Tab %s is not on the target site; debugger not attached.", r.TabID)
	case StatusSuperseded:
		return fmt.Sprintf("Debugger check for tab %s was superseded by navigation.", r.TabID)
	case StatusFailed:
		if r.Err != nil {
			return fmt.Sprintf("Error during debugger check for tab %s: %v", r.TabID, r.Err)
		}
		return fmt.Sprintf("Error during debugger check for tab %s.", r.TabID)
	default:
		return fmt.Sprintf("Debugger check for tab %s: %s", r.TabID, r.Status)
	}
}
