// Package db selects the relational driver for the configured profile.
package db

import (
	"github.com/pkg/errors"

	"github.com/partdesk/partdesk/internal/profile"
	"github.com/partdesk/partdesk/store"
	"github.com/partdesk/partdesk/store/db/postgres"
	"github.com/partdesk/partdesk/store/db/sqlite"
)

// NewDriver opens the backend named by the profile.
func NewDriver(p *profile.Profile) (store.Driver, error) {
	switch p.Driver {
	case "postgres":
		return postgres.NewDB(p.DSN)
	case "sqlite":
		return sqlite.NewDB(p.DSN)
	default:
		return nil, errors.Errorf("unknown db driver %q", p.Driver)
	}
}
