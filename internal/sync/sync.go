// Package sync implements the entity flows run against the catalog:
// paginated fetches, system-to-service and domain-to-system conversions,
// and the reassignment of child services after a conversion cycle.
package sync

import (
	"context"

	"github.com/jhaugan/catsync/internal/graphql"
)

// Executor issues a single GraphQL operation. *graphql.Client implements
// it; tests substitute stubs.
type Executor interface {
	Execute(ctx context.Context, doc *graphql.Document, vars map[string]any) (*graphql.Response, error)
}

var _ Executor = (*graphql.Client)(nil)
