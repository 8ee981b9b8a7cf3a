package tracker

import (
	"context"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// DefaultProcessNames are the executables of the tracking service.
var DefaultProcessNames = []string{"pupil_service", "pupil_capture"}

// ProcessInfo is a running tracker process.
type ProcessInfo struct {
	PID  int32  `json:"pid"`
	Name string `json:"name"`
}

// listProcesses is swapped in tests.
var listProcesses = func(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	ret := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil {
			// Exited or not ours to inspect.
			continue
		}
		ret = append(ret, ProcessInfo{PID: p.Pid, Name: name})
	}
	return ret, nil
}

// FindProcesses returns the running processes whose name contains one of
// names, case-insensitively. Used to tell the operator whether the tracking
// service has been started at all.
func FindProcesses(ctx context.Context, names []string) ([]ProcessInfo, error) {
	if len(names) == 0 {
		names = DefaultProcessNames
	}
	all, err := listProcesses(ctx)
	if err != nil {
		return nil, err
	}
	var found []ProcessInfo
	for _, p := range all {
		lower := strings.ToLower(p.Name)
		for _, n := range names {
			if strings.Contains(lower, strings.ToLower(n)) {
				found = append(found, p)
				break
			}
		}
	}
	return found, nil
}
