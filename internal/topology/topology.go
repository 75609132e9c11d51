package topology

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
)

var ErrTopologyUnavailable = errors.New("topology unavailable")

type CoreKind string

const (
	KindPerformance CoreKind = "performance"
	KindEfficiency  CoreKind = "efficiency"
	KindUnknown     CoreKind = "unknown"
)

type CPU struct {
	ID       int      `json:"id"`
	Siblings []int    `json:"siblings"`
	Kind     CoreKind `json:"kind"`
}

type Topology struct {
	CPUs         []CPU `json:"cpus"`
	TotalLogical int   `json:"total_logical"`
	TotalCores   int   `json:"total_cores"`
	HasSMT       bool  `json:"has_smt"`
}

// LogicalCount returns the number of logical cores currently online. It reads
// sysfs fresh on every call: the state file may have been authored on a
// machine with a different core count, so mask validation always works
// against the live value.
func LogicalCount() int {
	cpus, err := ListCPUs()
	if err != nil || len(cpus) == 0 {
		return runtime.NumCPU()
	}
	return len(cpus)
}

// Detect reads per-CPU topology from sysfs. The core kind (performance vs
// efficiency) is a display hint for core selection, derived from cpu_capacity
// on hybrid parts; on uniform parts every core reports unknown.
func Detect() (*Topology, error) {
	info, err := os.Stat(SysfsBasePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: sysfs base path not found", ErrTopologyUnavailable)
		}
		if os.IsPermission(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrTopologyUnavailable, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: sysfs base path not a directory", ErrTopologyUnavailable)
	}

	cpuIDs, err := ListCPUs()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTopologyUnavailable, err)
	}
	if len(cpuIDs) == 0 {
		return nil, fmt.Errorf("%w: no CPUs found", ErrTopologyUnavailable)
	}

	capacities := make(map[int]int, len(cpuIDs))
	hybrid := false
	first := -1
	for _, id := range cpuIDs {
		capacity, err := ReadIntFile(cpuCapacityPath(id))
		if err != nil {
			continue
		}
		capacities[id] = capacity
		if first == -1 {
			first = capacity
		} else if capacity != first {
			hybrid = true
		}
	}

	cpus := make([]CPU, 0, len(cpuIDs))
	totalCores := 0
	for _, id := range cpuIDs {
		siblings, err := ReadListFile(cpuPath(id, "thread_siblings_list"))
		if err != nil || len(siblings) == 0 {
			siblings = []int{id}
		}
		sort.Ints(siblings)
		if id == siblings[0] {
			totalCores++
		}

		kind := KindUnknown
		if hybrid {
			if capacities[id] >= 1000 {
				kind = KindPerformance
			} else if capacities[id] > 0 {
				kind = KindEfficiency
			}
		}

		cpus = append(cpus, CPU{ID: id, Siblings: siblings, Kind: kind})
	}

	return &Topology{
		CPUs:         cpus,
		TotalLogical: len(cpus),
		TotalCores:   totalCores,
		HasSMT:       len(cpus) > totalCores,
	}, nil
}
