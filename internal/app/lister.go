package app

import (
	"os"
	"strings"

	"github.com/emmett/loopcap/internal/audio"
	"github.com/emmett/loopcap/internal/output"
	"github.com/emmett/loopcap/internal/proc"
)

// ListDevices prints the available loopback sources
func ListDevices(format string) error {
	devices, err := audio.ListLoopbackSources()
	if err != nil {
		return err
	}
	reporter := output.NewReporter(strings.ToLower(format), os.Stdout)
	return reporter.WriteDevices(devices)
}

// ListProcesses prints the running processes that could be capture
// targets
func ListProcesses(format string) error {
	processes, err := proc.ListCandidates()
	if err != nil {
		return err
	}
	reporter := output.NewReporter(strings.ToLower(format), os.Stdout)
	return reporter.WriteProcesses(processes)
}
