package tasks_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/google/uuid"
	"github.com/verdantio/hydrofarm-backend/internal/db"
	"github.com/verdantio/hydrofarm-backend/internal/registry"
	"github.com/verdantio/hydrofarm-backend/internal/tasks"
	"go.uber.org/zap"
)

type statusUpdate struct {
	Status string
	Result json.RawMessage
}

// fakeResultStore records every status transition per task.
type fakeResultStore struct {
	updates map[uuid.UUID][]statusUpdate
}

func newFakeResultStore() *fakeResultStore {
	return &fakeResultStore{updates: map[uuid.UUID][]statusUpdate{}}
}

func (f *fakeResultStore) SetStatus(_ context.Context, id uuid.UUID, _ string, status string, result json.RawMessage) error {
	f.updates[id] = append(f.updates[id], statusUpdate{Status: status, Result: result})
	return nil
}

// fakeSiteRegistry serves sites and coordinators from fixed maps.
type fakeSiteRegistry struct {
	sites        map[uuid.UUID]*db.Site
	coordinators map[uuid.UUID]*db.Coordinator
	linkedUsers  map[uuid.UUID]uuid.UUID
}

func newFakeSiteRegistry() *fakeSiteRegistry {
	return &fakeSiteRegistry{
		sites:        map[uuid.UUID]*db.Site{},
		coordinators: map[uuid.UUID]*db.Coordinator{},
		linkedUsers:  map[uuid.UUID]uuid.UUID{},
	}
}

func (f *fakeSiteRegistry) GetSite(_ context.Context, id uuid.UUID) (*db.Site, error) {
	if s, ok := f.sites[id]; ok {
		return s, nil
	}
	return nil, registry.ErrNotFound
}

func (f *fakeSiteRegistry) CoordinatorBySite(_ context.Context, siteID uuid.UUID) (*db.Coordinator, error) {
	for _, c := range f.coordinators {
		if c.SiteID != nil && *c.SiteID == siteID {
			return c, nil
		}
	}
	return nil, registry.ErrNotFound
}

func (f *fakeSiteRegistry) SetCoordinatorUser(_ context.Context, id, userID uuid.UUID) error {
	f.linkedUsers[id] = userID
	return nil
}

func TestHandleTask_SubdomainSetupSucceeds(t *testing.T) {
	store := newFakeResultStore()
	repo := newFakeSiteRegistry()
	provisioner := tasks.NewProvisioner(store, repo, zap.NewNop())

	siteID := uuid.New()
	coordinatorID := uuid.New()
	subdomain := "greenhouse-1.farms.example.com"
	repo.sites[siteID] = &db.Site{ID: siteID, Subdomain: subdomain}
	repo.coordinators[coordinatorID] = &db.Coordinator{ID: coordinatorID, SiteID: &siteID}

	task := tasks.NewSubdomainSetup(siteID, subdomain)
	body, _ := json.Marshal(task)

	if err := provisioner.HandleTask(context.Background(), body); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	updates := store.updates[task.ID]
	if len(updates) != 2 {
		t.Fatalf("Expected STARTED then SUCCESS, got %d updates", len(updates))
	}
	if updates[0].Status != db.TaskStarted {
		t.Errorf("Expected first status STARTED, got %s", updates[0].Status)
	}
	if updates[1].Status != db.TaskSuccess {
		t.Errorf("Expected final status SUCCESS, got %s", updates[1].Status)
	}
	if _, linked := repo.linkedUsers[coordinatorID]; !linked {
		t.Error("Expected a credential handle linked to the coordinator")
	}
}

func TestHandleTask_ExistingCredentialKept(t *testing.T) {
	store := newFakeResultStore()
	repo := newFakeSiteRegistry()
	provisioner := tasks.NewProvisioner(store, repo, zap.NewNop())

	siteID := uuid.New()
	coordinatorID := uuid.New()
	userID := uuid.New()
	subdomain := "greenhouse-1.farms.example.com"
	repo.sites[siteID] = &db.Site{ID: siteID, Subdomain: subdomain}
	repo.coordinators[coordinatorID] = &db.Coordinator{ID: coordinatorID, SiteID: &siteID, UserID: &userID}

	task := tasks.NewSubdomainSetup(siteID, subdomain)
	body, _ := json.Marshal(task)

	if err := provisioner.HandleTask(context.Background(), body); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if _, relinked := repo.linkedUsers[coordinatorID]; relinked {
		t.Error("Expected existing credential to survive re-provisioning")
	}
}

func TestHandleTask_MissingSiteFails(t *testing.T) {
	store := newFakeResultStore()
	repo := newFakeSiteRegistry()
	provisioner := tasks.NewProvisioner(store, repo, zap.NewNop())

	task := tasks.NewSubdomainSetup(uuid.New(), "greenhouse-1.farms.example.com")
	body, _ := json.Marshal(task)

	if err := provisioner.HandleTask(context.Background(), body); err == nil {
		t.Fatal("Expected error for missing site")
	}

	updates := store.updates[task.ID]
	if len(updates) != 2 {
		t.Fatalf("Expected STARTED then FAILURE, got %d updates", len(updates))
	}
	if updates[1].Status != db.TaskFailure {
		t.Errorf("Expected final status FAILURE, got %s", updates[1].Status)
	}
	if updates[1].Result == nil {
		t.Error("Expected failure detail in the result document")
	}
}

func TestHandleTask_StaleSubdomainFails(t *testing.T) {
	store := newFakeResultStore()
	repo := newFakeSiteRegistry()
	provisioner := tasks.NewProvisioner(store, repo, zap.NewNop())

	siteID := uuid.New()
	repo.sites[siteID] = &db.Site{ID: siteID, Subdomain: "renamed.farms.example.com"}

	task := tasks.NewSubdomainSetup(siteID, "greenhouse-1.farms.example.com")
	body, _ := json.Marshal(task)

	if err := provisioner.HandleTask(context.Background(), body); err == nil {
		t.Fatal("Expected error for stale task subdomain")
	}
}

func TestHandleTask_UnknownName(t *testing.T) {
	store := newFakeResultStore()
	repo := newFakeSiteRegistry()
	provisioner := tasks.NewProvisioner(store, repo, zap.NewNop())

	body, _ := json.Marshal(tasks.Task{ID: uuid.New(), Name: "site.teardown"})

	if err := provisioner.HandleTask(context.Background(), body); err == nil {
		t.Fatal("Expected error for unknown task name")
	}
}

func TestHandleTask_MalformedBody(t *testing.T) {
	store := newFakeResultStore()
	repo := newFakeSiteRegistry()
	provisioner := tasks.NewProvisioner(store, repo, zap.NewNop())

	if err := provisioner.HandleTask(context.Background(), []byte("not json")); err == nil {
		t.Fatal("Expected error for malformed body")
	}
}
