package utils

import (
	"github.com/plutoid/plutoid/utils/dotenv"
	. "github.com/plutoid/plutoid/utils/flag"
	. "github.com/plutoid/plutoid/utils/log"
	"github.com/sirupsen/logrus"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"
)

func ddEnv() string {
	if dotenv.IsProdEnv() {
		return "production"
	}
	return "development"
}

// StartTracer starts the Datadog tracer. Must be called after flag parsing.
func StartTracer() {
	tracer.Start(
		tracer.WithService(ServiceName),
		tracer.WithEnv(ddEnv()),
	)

	Log.WithFields(
		logrus.Fields{"service": ServiceName, "is_development": IsDevelopment},
	).Info("tracer initialized")
}

// Stop tracer, OK to be closed multiple times
func CloseTracer() {
	tracer.Stop()
}
