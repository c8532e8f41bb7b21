// Package registration implements the ping/claim handshake that binds
// previously-unknown coordinators and controllers to a user's site. Devices
// move through unseen -> pinged (unregistered) -> claimed (bound); the
// shared external address is the locality heuristic throughout.
package registration

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"regexp"

	"github.com/google/uuid"
	"github.com/verdantio/hydrofarm-backend/internal/auth"
	"github.com/verdantio/hydrofarm-backend/internal/db"
	"github.com/verdantio/hydrofarm-backend/internal/registry"
	"github.com/verdantio/hydrofarm-backend/internal/tasks"
	"go.uber.org/zap"
)

// Registry is the subset of the device registry the protocol needs.
type Registry interface {
	GetCoordinator(ctx context.Context, id uuid.UUID) (*db.Coordinator, error)
	UpsertCoordinatorPing(ctx context.Context, id uuid.UUID, localIP, externalIP string) (*db.Coordinator, error)
	CoordinatorsByAddress(ctx context.Context, addr string) (unregistered, registered []db.Coordinator, err error)
	FirstCoordinatorByAddress(ctx context.Context, addr string) (*db.Coordinator, error)
	CoordinatorBySite(ctx context.Context, siteID uuid.UUID) (*db.Coordinator, error)
	BindCoordinator(ctx context.Context, coordinatorID, siteID uuid.UUID, subdomain string) error
	GetSite(ctx context.Context, id uuid.UUID) (*db.Site, error)
	GetController(ctx context.Context, id uuid.UUID) (*db.Controller, error)
	UpsertControllerPing(ctx context.Context, id uuid.UUID, name, mac, controllerType, externalIP string) (*db.Controller, error)
	UnregisteredControllersSharingAddress(ctx context.Context, addr string) ([]db.Controller, error)
	BindController(ctx context.Context, controllerID, coordinatorID, siteID uuid.UUID) error
	IssueControllerToken(ctx context.Context, controllerID uuid.UUID, key string) error
}

// TaskPublisher enqueues background tasks after a successful claim.
type TaskPublisher interface {
	PublishTask(ctx context.Context, t tasks.Task) error
}

// Options holds the protocol's deployment parameters.
type Options struct {
	ServerDomain       string
	SubdomainNamespace string
	TokenBytes         int
}

// Service is the registration protocol state machine.
type Service struct {
	repo   Registry
	tasks  TaskPublisher
	opts   Options
	logger *zap.Logger
}

// NewService creates a new registration service
func NewService(repo Registry, publisher TaskPublisher, opts Options, logger *zap.Logger) *Service {
	return &Service{repo: repo, tasks: publisher, opts: opts, logger: logger}
}

// CoordinatorPing is an anonymous ping from a coordinator device.
type CoordinatorPing struct {
	ID             uuid.UUID
	LocalIPAddress netip.Addr
	External       netip.Addr
}

// ControllerPing is an anonymous ping from a controller device.
type ControllerPing struct {
	ID             uuid.UUID
	Name           string
	WifiMACAddress string
	ControllerType string
	External       netip.Addr
}

// CoordinatorURL returns the canonical resource URL for a coordinator.
func CoordinatorURL(id uuid.UUID) string {
	return fmt.Sprintf("/api/coordinators/%s", id)
}

// ControllerURL returns the canonical resource URL for a controller.
func ControllerURL(id uuid.UUID) string {
	return fmt.Sprintf("/api/controllers/%s", id)
}

// PingCoordinator handles an anonymous coordinator ping: the record is
// created or refreshed unless the identity is already claimed, in which
// case the ping is rejected with the authenticated resource URL.
func (s *Service) PingCoordinator(ctx context.Context, ping CoordinatorPing) (*db.Coordinator, error) {
	existing, err := s.repo.GetCoordinator(ctx, ping.ID)
	if err != nil && !errors.Is(err, registry.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.Registered() {
		return nil, &UnauthenticatedPingError{URL: CoordinatorURL(ping.ID)}
	}

	coordinator, err := s.repo.UpsertCoordinatorPing(ctx, ping.ID,
		ping.LocalIPAddress.String(), ping.External.String())
	if err != nil {
		return nil, err
	}
	s.logger.Info("coordinator pinged",
		zap.String("coordinator_id", ping.ID.String()),
		zap.String("external_ip_address", ping.External.String()),
	)
	return coordinator, nil
}

// PingController handles an anonymous controller ping, mirroring
// PingCoordinator but keyed on the coordinator binding instead of the site.
func (s *Service) PingController(ctx context.Context, ping ControllerPing) (*db.Controller, error) {
	if !db.ValidControllerType(ping.ControllerType) {
		return nil, &ValidationError{
			Field:  "controller_type",
			Detail: fmt.Sprintf("unknown controller type: %s", ping.ControllerType),
		}
	}

	existing, err := s.repo.GetController(ctx, ping.ID)
	if err != nil && !errors.Is(err, registry.ErrNotFound) {
		return nil, err
	}
	if existing != nil && existing.Registered() {
		return nil, &UnauthenticatedPingError{URL: ControllerURL(ping.ID)}
	}

	controller, err := s.repo.UpsertControllerPing(ctx, ping.ID,
		ping.Name, ping.WifiMACAddress, ping.ControllerType, ping.External.String())
	if err != nil {
		return nil, err
	}
	s.logger.Info("controller pinged",
		zap.String("controller_id", ping.ID.String()),
		zap.String("external_ip_address", ping.External.String()),
	)
	return controller, nil
}

// LookupCoordinator returns the local address of a coordinator sharing the
// caller's external address, if any. Controllers use it to find their
// coordinator on the local network.
func (s *Service) LookupCoordinator(ctx context.Context, external netip.Addr) (localIP string, found bool, err error) {
	coordinator, err := s.repo.FirstCoordinatorByAddress(ctx, external.String())
	if errors.Is(err, registry.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return coordinator.LocalIPAddress, true, nil
}

// Selection holds the coordinators a user may choose from during setup.
type Selection struct {
	Unregistered []db.Coordinator
	Registered   []db.Coordinator
}

// CoordinatorsForSelect lists pinged coordinators sharing the user's
// external address, split into unregistered and registered groups sorted by
// recency.
func (s *Service) CoordinatorsForSelect(ctx context.Context, external netip.Addr) (*Selection, error) {
	unregistered, registered, err := s.repo.CoordinatorsByAddress(ctx, external.String())
	if err != nil {
		return nil, err
	}
	return &Selection{Unregistered: unregistered, Registered: registered}, nil
}

var subdomainPrefixPattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?$`)

// ClaimCoordinator binds a pinged coordinator to a site owned by the
// principal. The caller's external address must still equal the
// coordinator's stored one. Subdomain assignment and binding commit
// atomically or not at all; the loser of a concurrent claim observes
// registry.ErrConflict and must retry against fresh state. On success a
// subdomain-provisioning task is enqueued and its id returned.
func (s *Service) ClaimCoordinator(
	ctx context.Context,
	principal auth.Principal,
	coordinatorID, siteID uuid.UUID,
	subdomainPrefix string,
	external netip.Addr,
) (uuid.UUID, error) {
	site, err := s.repo.GetSite(ctx, siteID)
	if errors.Is(err, registry.ErrNotFound) {
		return uuid.Nil, &ValidationError{Field: "site", Detail: "site does not exist"}
	}
	if err != nil {
		return uuid.Nil, err
	}
	if site.OwnerID != principal.UserID {
		return uuid.Nil, &ValidationError{Field: "site", Detail: "site is not owned by the user"}
	}
	if _, err := s.repo.CoordinatorBySite(ctx, siteID); err == nil {
		return uuid.Nil, &ValidationError{Field: "site", Detail: "site already has a coordinator"}
	} else if !errors.Is(err, registry.ErrNotFound) {
		return uuid.Nil, err
	}

	coordinator, err := s.repo.GetCoordinator(ctx, coordinatorID)
	if err != nil {
		return uuid.Nil, err
	}
	// Exact value equality, not subnet-aware.
	if coordinator.ExternalIPAddress != external.String() {
		return uuid.Nil, &ValidationError{
			Field:  "external_ip_address",
			Detail: fmt.Sprintf("your external IP address (%s) does not match the coordinator's", external),
		}
	}

	if !subdomainPrefixPattern.MatchString(subdomainPrefix) {
		return uuid.Nil, &ValidationError{
			Field:  "subdomain_prefix",
			Detail: "must be a valid lowercase DNS label",
		}
	}
	subdomain := fmt.Sprintf("%s.%s.%s", subdomainPrefix, s.opts.SubdomainNamespace, s.opts.ServerDomain)

	if err := s.repo.BindCoordinator(ctx, coordinatorID, siteID, subdomain); err != nil {
		return uuid.Nil, err
	}

	task := tasks.NewSubdomainSetup(siteID, subdomain)
	if err := s.tasks.PublishTask(ctx, task); err != nil {
		// The claim itself is committed; provisioning can be re-triggered.
		s.logger.Warn("failed to enqueue subdomain setup task",
			zap.Error(err),
			zap.String("site_id", siteID.String()),
		)
	}

	s.logger.Info("coordinator claimed",
		zap.String("coordinator_id", coordinatorID.String()),
		zap.String("site_id", siteID.String()),
		zap.String("subdomain", subdomain),
	)
	return task.ID, nil
}

// ClaimedController pairs a freshly bound controller with its issued
// bearer token.
type ClaimedController struct {
	Controller db.Controller
	Token      string
}

// ClaimLocalControllers binds every unregistered controller sharing the
// coordinator's external address to it, issuing each a bearer token. Called
// server-side on behalf of a registered coordinator.
func (s *Service) ClaimLocalControllers(ctx context.Context, coordinatorID uuid.UUID) ([]ClaimedController, error) {
	coordinator, err := s.repo.GetCoordinator(ctx, coordinatorID)
	if err != nil {
		return nil, err
	}
	if !coordinator.Registered() {
		return nil, &ValidationError{Field: "coordinator", Detail: "coordinator is not registered to a site"}
	}

	candidates, err := s.repo.UnregisteredControllersSharingAddress(ctx, coordinator.ExternalIPAddress)
	if err != nil {
		return nil, err
	}

	claimed := []ClaimedController{}
	for _, controller := range candidates {
		if err := s.repo.BindController(ctx, controller.ID, coordinator.ID, *coordinator.SiteID); err != nil {
			if errors.Is(err, registry.ErrConflict) {
				// Lost a race for this controller; skip it.
				continue
			}
			return claimed, err
		}
		key, err := auth.GenerateToken(s.opts.TokenBytes)
		if err != nil {
			return claimed, err
		}
		if err := s.repo.IssueControllerToken(ctx, controller.ID, key); err != nil {
			return claimed, err
		}
		controller.CoordinatorID = &coordinator.ID
		controller.SiteID = coordinator.SiteID
		claimed = append(claimed, ClaimedController{Controller: controller, Token: key})
	}

	s.logger.Info("local controllers claimed",
		zap.String("coordinator_id", coordinatorID.String()),
		zap.Int("count", len(claimed)),
	)
	return claimed, nil
}
