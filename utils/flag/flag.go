/*
flag Package set up cli flags shared across services

Usage:

	Flags listed in this package are shared across boundaries and service-agnostic
	For service dependent flags please define in their respective package.
	Binaries must call flag.Parse() in main, tests never parse.
*/

package flag

import (
	"flag"
)

const (
	APIServer   = "api_server"
	ViewTracker = "view_tracker"
	Seeder      = "seeder"
)

var (
	IsDevelopment bool
	ServiceName   string
	ByPassAuth    bool
	AppConfigPath string
)

func init() {
	flag.BoolVar(&IsDevelopment, "dev", true, "set to true if the current run is for development. default value is true")
	flag.StringVar(&ServiceName, "service", APIServer, "'api_server', 'view_tracker' or 'seeder'")
	flag.BoolVar(&ByPassAuth, "no_auth", false, "skip token verification and trust the viewer uid sent in the sub header, for local development only")
	flag.StringVar(&AppConfigPath, "config", "app_config/plutoid_app_config.yaml", "path of the yaml app config")
}
