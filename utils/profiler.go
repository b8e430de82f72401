package utils

import (
	. "github.com/plutoid/plutoid/utils/flag"
	. "github.com/plutoid/plutoid/utils/log"
	"gopkg.in/DataDog/dd-trace-go.v1/profiler"
)

// StartProfiler starts the Datadog continuous profiler. It only runs in
// production where an agent is available.
func StartProfiler() {
	if ddEnv() != "production" {
		return
	}
	if err := profiler.Start(
		profiler.WithService(ServiceName),
		profiler.WithEnv(ddEnv()),
		profiler.WithProfileTypes(
			profiler.CPUProfile,
			profiler.HeapProfile,
		),
	); err != nil {
		Log.Fatal(err)
	}
}

// Stop profiler, OK to be closed multiple times
func CloseProfiler() {
	profiler.Stop()
}
