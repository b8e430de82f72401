package docstore

import (
	"context"
	"fmt"
	"os"

	"github.com/pkg/errors"
	"github.com/plutoid/plutoid/utils"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"

	defaultMongoDatabase = "plutoid"
)

// Open connects to the backend named by driver, reading connection settings
// from env. collections are the names the caller will use, backends that need
// per-collection setup prepare them here.
func Open(ctx context.Context, driver string, collections ...string) (Store, error) {
	switch driver {
	case DriverMemory, "":
		return NewMemoryStore(), nil
	case DriverPostgres:
		db, err := utils.GetDBConnection()
		if err != nil {
			return nil, errors.Wrap(err, "connect postgres")
		}
		if err := Migrate(db); err != nil {
			return nil, errors.Wrap(err, "migrate documents table")
		}
		return NewPostgresStore(db), nil
	case DriverMongo:
		database := os.Getenv("MONGODB_DATABASE")
		if database == "" {
			database = defaultMongoDatabase
		}
		s, err := NewMongoStore(ctx, os.Getenv("MONGODB_URI"), database)
		if err != nil {
			return nil, err
		}
		if err := s.EnsureIndexes(ctx, collections...); err != nil {
			return nil, err
		}
		return s, nil
	}
	return nil, fmt.Errorf("unknown store driver %q", driver)
}
