package projection

import "github.com/example/booklog-timeline/internal/readmodel"

// Signal is a unit of work for the rebuild worker: either a TargetSignal or
// a FullSignal.
type Signal interface {
	isSignal()
}

// TargetSignal asks for one entity's snapshot, and its dependents, to be
// recomputed.
type TargetSignal struct {
	Ref readmodel.EntityRef
}

// FullSignal asks for every snapshot to be recomputed.
type FullSignal struct{}

func (TargetSignal) isSignal() {}
func (FullSignal) isSignal()   {}
