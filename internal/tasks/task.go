// Package tasks is the background task queue: the server enqueues work
// (e.g. subdomain provisioning after a claim) over RabbitMQ and the
// provisioner worker consumes it, recording results under the task's opaque
// id for later status lookup.
package tasks

import (
	"github.com/google/uuid"
)

// Task names.
const (
	TaskSetupSubdomain = "site.setup_subdomain"
)

// Task is the envelope published to the task exchange.
type Task struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	SiteID    uuid.UUID `json:"site_id"`
	Subdomain string    `json:"subdomain,omitempty"`
}

// NewSubdomainSetup builds a subdomain-provisioning task for a freshly
// claimed site.
func NewSubdomainSetup(siteID uuid.UUID, subdomain string) Task {
	return Task{
		ID:        uuid.New(),
		Name:      TaskSetupSubdomain,
		SiteID:    siteID,
		Subdomain: subdomain,
	}
}
