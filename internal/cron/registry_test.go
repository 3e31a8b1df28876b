package cron

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubJob struct {
	name string
}

func (s *stubJob) Name() string              { return s.name }
func (s *stubJob) Run(context.Context) error { return nil }

func TestRegistryKeepsOrderAndCopies(t *testing.T) {
	registry := NewRegistry()
	jobA := &stubJob{name: "booking-expiry"}
	jobB := &stubJob{name: "slot-audit"}
	require.NoError(t, registry.Register(jobA))
	require.NoError(t, registry.Register(jobB))

	jobs := registry.Jobs()
	require.Len(t, jobs, 2)
	assert.Same(t, jobA, jobs[0])
	assert.Same(t, jobB, jobs[1])
	assert.Equal(t, []string{"booking-expiry", "slot-audit"}, registry.Names())

	jobs[0] = nil
	assert.NotNil(t, registry.Jobs()[0], "internal slice leaked")
}

func TestRegistryRejectsDuplicateAndBlankNames(t *testing.T) {
	registry := NewRegistry(&stubJob{name: "booking-expiry"}, nil)
	assert.Error(t, registry.Register(&stubJob{name: "booking-expiry"}))
	assert.Error(t, registry.Register(&stubJob{name: "  "}))
	assert.Len(t, registry.Jobs(), 1)

	assert.Panics(t, func() {
		NewRegistry(&stubJob{name: "a"}, &stubJob{name: "a"})
	})
}
