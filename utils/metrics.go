package utils

import (
	"fmt"
	"os"

	"github.com/DataDog/datadog-go/statsd"
	. "github.com/plutoid/plutoid/utils/flag"
	. "github.com/plutoid/plutoid/utils/log"
)

const statsdNamespace = "plutoid."

// NewDogStatsdClient connects to the Datadog agent at DD_AGENT_HOST. Without
// an agent metrics are discarded.
func NewDogStatsdClient() statsd.ClientInterface {
	host := os.Getenv("DD_AGENT_HOST")
	if host == "" {
		return &statsd.NoOpClient{}
	}
	port := os.Getenv("DD_DOGSTATSD_PORT")
	if port == "" {
		port = "8125"
	}
	client, err := statsd.New(
		fmt.Sprintf("%s:%s", host, port),
		statsd.WithNamespace(statsdNamespace),
		statsd.WithTags([]string{"service:" + ServiceName}),
	)
	if err != nil {
		Log.WithError(err).Warn("cannot reach dogstatsd, metrics disabled")
		return &statsd.NoOpClient{}
	}
	return client
}
