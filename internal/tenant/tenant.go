// Package tenant resolves and enforces the tenant scope of a request.
package tenant

import (
	"quoin/internal/tenant/service"
)

// Resolver decides the effective tenant for a request.
type Resolver = service.Resolver

// Service manages the tenant lifecycle on the admin surface.
type Service = service.Service

// Option configures the resolver and the lifecycle service.
type Option = service.Option

// NewResolver constructs a resolver over the given tenant store.
var NewResolver = service.NewResolver

// NewService constructs the lifecycle service over the given tenant store.
var NewService = service.NewService

// Resolver options re-exported for callers wiring the package.
var (
	WithLogger  = service.WithLogger
	WithMetrics = service.WithMetrics
)
