package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/verdantio/hydrofarm-backend/internal/db"
	"github.com/verdantio/hydrofarm-backend/internal/registry"
	"go.uber.org/zap"
)

// SiteRegistry is the registry subset the provisioner needs.
type SiteRegistry interface {
	GetSite(ctx context.Context, id uuid.UUID) (*db.Site, error)
	CoordinatorBySite(ctx context.Context, siteID uuid.UUID) (*db.Coordinator, error)
	SetCoordinatorUser(ctx context.Context, id, userID uuid.UUID) error
}

// ResultStore records task outcomes.
type ResultStore interface {
	SetStatus(ctx context.Context, id uuid.UUID, name, status string, result json.RawMessage) error
}

// Provisioner executes subdomain-setup tasks: it verifies the claimed site,
// links a login credential to its coordinator and records the task outcome.
// The credential itself lives with the external identity provider; only its
// handle is stored here.
type Provisioner struct {
	store  ResultStore
	repo   SiteRegistry
	logger *zap.Logger
}

// NewProvisioner creates a new provisioner
func NewProvisioner(store ResultStore, repo SiteRegistry, logger *zap.Logger) *Provisioner {
	return &Provisioner{store: store, repo: repo, logger: logger}
}

// HandleTask is the consumer entry point for one task envelope.
func (p *Provisioner) HandleTask(ctx context.Context, body []byte) error {
	var task Task
	if err := json.Unmarshal(body, &task); err != nil {
		return fmt.Errorf("failed to unmarshal task: %w", err)
	}

	switch task.Name {
	case TaskSetupSubdomain:
		return p.setupSubdomain(ctx, task)
	default:
		return fmt.Errorf("unknown task name: %s", task.Name)
	}
}

func (p *Provisioner) setupSubdomain(ctx context.Context, task Task) error {
	if err := p.store.SetStatus(ctx, task.ID, task.Name, db.TaskStarted, nil); err != nil {
		return err
	}

	err := p.provision(ctx, task)
	if err != nil {
		detail, _ := json.Marshal(map[string]string{"error": err.Error()})
		if storeErr := p.store.SetStatus(ctx, task.ID, task.Name, db.TaskFailure, detail); storeErr != nil {
			p.logger.Error("failed to record task failure", zap.Error(storeErr))
		}
		return err
	}

	result, _ := json.Marshal(map[string]string{"subdomain": task.Subdomain})
	if err := p.store.SetStatus(ctx, task.ID, task.Name, db.TaskSuccess, result); err != nil {
		return err
	}

	p.logger.Info("subdomain provisioned",
		zap.String("task_id", task.ID.String()),
		zap.String("site_id", task.SiteID.String()),
		zap.String("subdomain", task.Subdomain),
	)
	return nil
}

func (p *Provisioner) provision(ctx context.Context, task Task) error {
	site, err := p.repo.GetSite(ctx, task.SiteID)
	if err != nil {
		return fmt.Errorf("site lookup failed: %w", err)
	}
	if site.Subdomain != task.Subdomain {
		return fmt.Errorf("site subdomain changed since claim: have %q, task carries %q",
			site.Subdomain, task.Subdomain)
	}

	coordinator, err := p.repo.CoordinatorBySite(ctx, task.SiteID)
	if err != nil {
		if errors.Is(err, registry.ErrNotFound) {
			return fmt.Errorf("site has no bound coordinator")
		}
		return err
	}

	if coordinator.UserID == nil {
		if err := p.repo.SetCoordinatorUser(ctx, coordinator.ID, uuid.New()); err != nil {
			return fmt.Errorf("failed to link coordinator credential: %w", err)
		}
	}
	return nil
}
