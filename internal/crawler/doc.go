// Package crawler defines the harvest data model, the collaborator interfaces
// consumed by the orchestration engine, and the shared error taxonomy.
package crawler
