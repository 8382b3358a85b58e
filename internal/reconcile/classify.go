package reconcile

import "strings"

// Markers are the fault-message substrings that identify a creation fault as
// a benign "resource already exists" collision. GitLab does not return a
// structured code for these cases, so detection is textual; the defaults
// match the live API wording, and config may override them if that wording
// drifts.
type Markers struct {
	BranchExists    []string
	BranchProtected []string
	RuleTaken       []string
}

func DefaultMarkers() Markers {
	return Markers{
		BranchExists:    []string{"already exists"},
		BranchProtected: []string{"already been protected"},
		RuleTaken:       []string{"has already been taken"},
	}
}

// FaultClass is the verdict of ClassifyCreateFault.
type FaultClass int

const (
	FaultOther FaultClass = iota
	FaultAlreadyExists
)

// ClassifyCreateFault decides whether a creation fault means the resource
// already exists. markers is one of the Markers slices; matching is
// case-insensitive substring search over the fault message.
func ClassifyCreateFault(err error, markers []string) FaultClass {
	if err == nil {
		return FaultOther
	}
	msg := strings.ToLower(err.Error())
	for _, m := range markers {
		if m == "" {
			continue
		}
		if strings.Contains(msg, strings.ToLower(m)) {
			return FaultAlreadyExists
		}
	}
	return FaultOther
}
