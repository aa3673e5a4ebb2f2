package snapshot

import "fmt"

// LoadError reports that the root lifecycle model could not be fetched.
type LoadError struct {
	ModelID string
	Version string
	Err     error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load lifecycle model %s (version %q): %v", e.ModelID, e.Version, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// InvariantError reports a structural violation in the assembled snapshot:
// an exchange or link that needs a record the export does not contain, or
// an exchange amount that is not a finite number.
type InvariantError struct {
	ProcessUUID string
	FlowUUID    string
	Reason      string
}

func (e *InvariantError) Error() string {
	switch {
	case e.ProcessUUID != "" && e.FlowUUID != "":
		return fmt.Sprintf("%s (process %s, flow %s)", e.Reason, e.ProcessUUID, e.FlowUUID)
	case e.ProcessUUID != "":
		return fmt.Sprintf("%s (process %s)", e.Reason, e.ProcessUUID)
	case e.FlowUUID != "":
		return fmt.Sprintf("%s (flow %s)", e.Reason, e.FlowUUID)
	default:
		return e.Reason
	}
}
