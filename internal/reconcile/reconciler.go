package reconcile

import (
	"log/slog"

	"branchward/internal/gitlab"
	"branchward/internal/retry"
)

// Reconciler issues all reads and writes through the retry executor and maps
// faults to Outcomes. One instance serves a whole run; it holds no per-call
// state.
type Reconciler struct {
	api     gitlab.API
	exec    *retry.Executor
	markers Markers
	log     *slog.Logger
}

type Option func(*Reconciler)

// WithMarkers overrides the already-exists detection fixtures.
func WithMarkers(m Markers) Option {
	return func(r *Reconciler) {
		if len(m.BranchExists) > 0 {
			r.markers.BranchExists = m.BranchExists
		}
		if len(m.BranchProtected) > 0 {
			r.markers.BranchProtected = m.BranchProtected
		}
		if len(m.RuleTaken) > 0 {
			r.markers.RuleTaken = m.RuleTaken
		}
	}
}

func WithLogger(log *slog.Logger) Option {
	return func(r *Reconciler) {
		if log != nil {
			r.log = log
		}
	}
}

func New(api gitlab.API, exec *retry.Executor, opts ...Option) *Reconciler {
	r := &Reconciler{
		api:     api,
		exec:    exec,
		markers: DefaultMarkers(),
		log:     slog.Default(),
	}
	for _, apply := range opts {
		if apply != nil {
			apply(r)
		}
	}
	return r
}
