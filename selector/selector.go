// Package selector implements the auto-selector (spec.md §4.I): probe
// the backends compiled into this build in priority order, rank the
// ones that actually initialise by available device memory, and hand
// back a constructed executor wired to the winner.
//
// Grounded on the teacher's Execute in exec.go, which inspects what it
// has (a directory vs a single file vs a pipe) and picks the matching
// code path before doing any work; here the "what do we have" question
// is "which backend actually initialises on this machine", generalized
// from filesystem-mode detection to backend-capability probing.
package selector

import (
	"fmt"
	"sort"

	"github.com/vfxgo/compute/backend"
	"github.com/vfxgo/compute/cache"
	"github.com/vfxgo/compute/executor"
	"github.com/vfxgo/compute/internal/worklog"
)

// Priority is the preference order ties are broken by when two backends
// report exactly equal available memory: vendor GPU first (highest
// ceiling, lowest overhead once resident), then the portable GPU tier,
// then the CPU reference backend, which is always available.
var Priority = map[string]int{
	"vendor-vulkan": 0,
	"portable":      1,
	"cpu":           2,
}

// Candidate is one backend this process knows how to construct. Probe
// returns (nil, err) when the backend cannot initialise on this machine
// (e.g. no Vulkan driver present); the selector treats that as "not
// available" rather than a fatal error.
type Candidate struct {
	Name  string
	Probe func() (backend.Backend, error)
}

// Select tries every candidate, keeps the ones that initialise, and
// returns the best one by (available device memory desc, Priority asc).
// At least the CPU backend should always be registered by the caller so
// Select never returns an error in practice.
func Select(candidates []Candidate, log *worklog.Logger) (backend.Backend, error) {
	if log == nil {
		log = worklog.Discard()
	}
	type probed struct {
		name string
		be   backend.Backend
	}
	var available []probed
	for _, c := range candidates {
		be, err := c.Probe()
		if err != nil {
			log.Warn("backend unavailable", "backend", c.Name, "error", err)
			continue
		}
		log.Info("backend available", "backend", c.Name, "available_bytes", be.Limits().AvailableDeviceMemory)
		available = append(available, probed{name: c.Name, be: be})
	}
	if len(available) == 0 {
		return nil, fmt.Errorf("selector: no backend could be initialised")
	}

	sort.SliceStable(available, func(i, j int) bool {
		li, lj := available[i].be.Limits(), available[j].be.Limits()
		if li.AvailableDeviceMemory != lj.AvailableDeviceMemory {
			return li.AvailableDeviceMemory > lj.AvailableDeviceMemory
		}
		return Priority[available[i].name] < Priority[available[j].name]
	})

	chosen := available[0]
	log.Info("backend selected", "backend", chosen.name)
	return chosen.be, nil
}

// NewExecutor is a convenience that probes candidates and wraps the
// winner in an Executor with the given cache (nil disables caching) and
// worker count.
func NewExecutor(candidates []Candidate, c *cache.Cache, log *worklog.Logger, workers int) (*executor.Executor, error) {
	be, err := Select(candidates, log)
	if err != nil {
		return nil, err
	}
	return executor.New(be, c, log, workers), nil
}
