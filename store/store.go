// Package store defines the composite Store interface for all gateway
// persistence.
//
// Each subsystem defines its own store interface; the aggregate Store
// composes them all so a single backend can serve the whole gateway.
package store

import (
	"context"

	"github.com/ovuhq/partnergate/credential"
	"github.com/ovuhq/partnergate/dispatch"
	"github.com/ovuhq/partnergate/event"
	"github.com/ovuhq/partnergate/partner"
	"github.com/ovuhq/partnergate/tracker"
)

// Store is the aggregate persistence interface.
type Store interface {
	partner.Store
	credential.ServiceStore
	event.Store
	dispatch.Store
	tracker.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks backend connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}
