package cron

import "context"

// Job is one unit of background work the worker runs on each tick.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds the jobs a worker instance executes. Order is fixed at
// registration time, so capture sweeps always run before expunge passes.
type Registry struct {
	jobs []Job
}

// NewRegistry builds a registry from the given jobs. Nil entries are skipped
// so conditionally constructed jobs can be passed without guarding.
func NewRegistry(jobs ...Job) *Registry {
	r := &Registry{}
	for _, job := range jobs {
		r.Register(job)
	}
	return r
}

// Register appends a job to the run order, ignoring nil.
func (r *Registry) Register(job Job) {
	if job == nil {
		return
	}
	r.jobs = append(r.jobs, job)
}

// Jobs returns a copy of the run order.
func (r *Registry) Jobs() []Job {
	out := make([]Job, len(r.jobs))
	copy(out, r.jobs)
	return out
}
