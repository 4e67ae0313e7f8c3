package sync

import "github.com/jhaugan/catsync/internal/graphql"

// EntityQuery pairs a paginated entity query with the path of its entity
// connection inside the response data.
type EntityQuery struct {
	Doc  *graphql.Document
	Path []string
}

// The entity queries. Their field selections define what a snapshot
// contains, so extending them widens the snapshots as well.
var (
	DomainsQuery = EntityQuery{
		Path: []string{"account", "domains"},
		Doc: graphql.MustParseDocument(`
query get_all_domains($endCursor: String) {
  account {
    domains(after: $endCursor) {
      nodes {
        id
        name
        description
        aliases
        managedAliases
        owner {
          ... on Team {
            id
            name
            alias
          }
        }
        tags {
          nodes {
            id
            key
            value
          }
        }
        childSystems {
          nodes {
            id
            name
            aliases
            managedAliases
          }
        }
        note
      }
      pageInfo {
        endCursor
        hasNextPage
      }
      totalCount
    }
  }
}`),
	}

	SystemsQuery = EntityQuery{
		Path: []string{"account", "systems"},
		Doc: graphql.MustParseDocument(`
query get_all_systems($endCursor: String) {
  account {
    systems(after: $endCursor) {
      nodes {
        id
        name
        description
        aliases
        managedAliases
        owner {
          ... on Team {
            id
            name
            alias
          }
        }
        tags {
          nodes {
            id
            key
            value
          }
        }
        parent {
          id
          name
        }
        childServices {
          nodes {
            id
            name
          }
        }
        childInfrastructureResources {
          nodes {
            id
            name
          }
        }
        note
      }
      pageInfo {
        endCursor
        hasNextPage
      }
    }
  }
}`),
	}
)

// ServicesQuery lists existing services and their aliases. It backs the
// skip-existing pre-check of the conversion flows; services are never
// snapshotted, so the selection stays minimal.
var ServicesQuery = EntityQuery{
	Path: []string{"account", "services"},
	Doc: graphql.MustParseDocument(`
query get_all_services($endCursor: String) {
  account {
    services(after: $endCursor) {
      nodes {
        id
        name
        aliases
        managedAliases
      }
      pageInfo {
        endCursor
        hasNextPage
      }
    }
  }
}`),
}

// The creation and assignment mutations. systemCreate has no errors
// selection, so validation failures surface as a missing created entity;
// the other two return an explicit errors list.
var (
	createSystemMutation = graphql.MustParseDocument(`
mutation create_system($alias: String, $description: String, $ownerId: ID, $note: String) {
  systemCreate(input: {name: $alias, description: $description, ownerId: $ownerId, note: $note}) {
    system {
      id
      name
      aliases
      description
      owner {
        ... on Team {
          id
          name
        }
      }
    }
  }
}`)

	createServiceMutation = graphql.MustParseDocument(`
mutation service_create($alias: String!, $description: String, $ownerInput: IdentifierInput) {
  serviceCreate(input: {name: $alias, description: $description, ownerInput: $ownerInput}) {
    service {
      id
      name
      description
      aliases
      htmlUrl
      owner {
        alias
      }
      tier {
        alias
      }
      tags {
        totalCount
        pageInfo {
          hasNextPage
          endCursor
        }
        nodes {
          id
          key
          value
        }
      }
    }
    errors {
      message
      path
    }
  }
}`)

	assignChildrenMutation = graphql.MustParseDocument(`
mutation assign_child_services($system: IdentifierInput!, $childServices: [IdentifierInput!]!) {
  systemChildAssign(system: $system, childServices: $childServices) {
    system {
      id
      name
      aliases
      childServices {
        nodes {
          id
          name
        }
      }
    }
    errors {
      message
      path
    }
  }
}`)
)
