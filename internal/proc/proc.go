// Package proc resolves capture targets to running processes: name to
// PID lookup for process-scoped capture and candidate listings for the
// CLI.
package proc

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shirou/gopsutil/v3/process"
)

// Info identifies a running process
type Info struct {
	PID  uint32 `json:"pid"`
	Name string `json:"name"`
}

// String returns a human-readable representation of the process
func (i Info) String() string {
	return fmt.Sprintf("%s (pid %d)", i.Name, i.PID)
}

// kernel-side names that never produce capturable audio
var excludedNames = map[string]bool{
	"System":   true,
	"Registry": true,
	"Idle":     true,
}

// FindByName returns the first process whose name contains the given
// name (case-insensitive). An exact match wins over a partial one.
func FindByName(name string) (Info, error) {
	if name == "" {
		return Info{}, fmt.Errorf("process name is empty")
	}

	candidates, err := ListCandidates()
	if err != nil {
		return Info{}, err
	}

	search := strings.ToLower(name)
	var partial *Info
	for i := range candidates {
		lower := strings.ToLower(candidates[i].Name)
		if lower == search {
			return candidates[i], nil
		}
		if partial == nil && strings.Contains(lower, search) {
			partial = &candidates[i]
		}
	}
	if partial != nil {
		return *partial, nil
	}

	return Info{}, fmt.Errorf("no process found matching name: %s", name)
}

// Name resolves a PID to its process name
func Name(pid uint32) (string, error) {
	p, err := process.NewProcess(int32(pid))
	if err != nil {
		return "", fmt.Errorf("process %d: %w", pid, err)
	}
	name, err := p.Name()
	if err != nil {
		return "", fmt.Errorf("process %d name: %w", pid, err)
	}
	return name, nil
}

// ListCandidates returns the running processes that could be capture
// targets, sorted by name. Kernel pseudo-processes are filtered out.
func ListCandidates() ([]Info, error) {
	procs, err := process.Processes()
	if err != nil {
		return nil, fmt.Errorf("enumerate processes: %w", err)
	}

	infos := make([]Info, 0, len(procs))
	for _, p := range procs {
		if p.Pid <= 0 {
			continue
		}
		name, err := p.Name()
		if err != nil || name == "" || excludedNames[name] {
			continue
		}
		infos = append(infos, Info{PID: uint32(p.Pid), Name: name})
	}

	sort.Slice(infos, func(i, j int) bool {
		if infos[i].Name != infos[j].Name {
			return infos[i].Name < infos[j].Name
		}
		return infos[i].PID < infos[j].PID
	})
	return infos, nil
}
