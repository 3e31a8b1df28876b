package cron

import (
	"context"
	"fmt"
	"strings"
)

// Job is one unit of scheduled work run by the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Registry holds jobs in registration order. Names are unique because they
// label metrics and logs.
type Registry struct {
	jobs  []Job
	names map[string]struct{}
}

// NewRegistry builds a registry from jobs, skipping nils. It panics on a
// duplicate or blank name, like http.ServeMux does for conflicting patterns.
func NewRegistry(jobs ...Job) *Registry {
	registry := &Registry{names: map[string]struct{}{}}
	for _, job := range jobs {
		if job == nil {
			continue
		}
		if err := registry.Register(job); err != nil {
			panic(err)
		}
	}
	return registry
}

// Register appends job. Blank and duplicate names are rejected.
func (r *Registry) Register(job Job) error {
	if job == nil {
		return nil
	}
	name := strings.TrimSpace(job.Name())
	if name == "" {
		return fmt.Errorf("cron: job name is required")
	}
	if r.names == nil {
		r.names = map[string]struct{}{}
	}
	if _, dup := r.names[name]; dup {
		return fmt.Errorf("cron: job %q already registered", name)
	}
	r.names[name] = struct{}{}
	r.jobs = append(r.jobs, job)
	return nil
}

// Jobs returns a copy of the registered jobs.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, len(r.jobs))
	copy(jobs, r.jobs)
	return jobs
}

// Names lists job names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for _, job := range r.jobs {
		names = append(names, job.Name())
	}
	return names
}
