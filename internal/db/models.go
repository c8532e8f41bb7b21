package db

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Hydroponic system types.
const (
	SystemVerticalTower = "VT"
	SystemFloodAndDrain = "FD"
	SystemNutrientFilm  = "NFT"
	SystemDeepWater     = "DWC"
)

// Controller types.
const (
	ControllerPump    = "PUM"
	ControllerDosage  = "DOS"
	ControllerCamera  = "CAM"
	ControllerSensor  = "SEN"
	ControllerUnknown = "UNK"
)

// ValidControllerType reports whether t is a known controller type tag.
func ValidControllerType(t string) bool {
	switch t {
	case ControllerPump, ControllerDosage, ControllerCamera, ControllerSensor, ControllerUnknown:
		return true
	}
	return false
}

// Site is the aggregation root for hydroponic systems, controllers and the
// site's coordinator. Owned by exactly one user.
type Site struct {
	ID            uuid.UUID
	OwnerID       uuid.UUID
	Name          string
	Subdomain     string
	PostalAddress string
	CreatedAt     time.Time
	ModifiedAt    time.Time
}

// HydroponicSystem is a growing system belonging to a site.
type HydroponicSystem struct {
	ID         uuid.UUID
	SiteID     uuid.UUID
	Name       string
	SystemType string
	CreatedAt  time.Time
	ModifiedAt time.Time
}

// Coordinator is the on-site relay device bridging cloud and local
// controllers. It is registered iff SiteID is set.
type Coordinator struct {
	ID                uuid.UUID
	SiteID            *uuid.UUID
	LocalIPAddress    string
	ExternalIPAddress string
	ChannelName       string
	UserID            *uuid.UUID
	CreatedAt         time.Time
	ModifiedAt        time.Time
}

// Registered reports whether the coordinator has been bound to a site.
func (c *Coordinator) Registered() bool {
	return c.SiteID != nil
}

// Controller is a physical device (pump, dosage, camera or sensor
// controller). It is registered iff CoordinatorID is set.
type Controller struct {
	ID                uuid.UUID
	Name              string
	CoordinatorID     *uuid.UUID
	SiteID            *uuid.UUID
	WifiMACAddress    string
	ExternalIPAddress string
	ControllerType    string
	ChannelName       string
	CreatedAt         time.Time
	ModifiedAt        time.Time
}

// Registered reports whether the controller has been claimed by a coordinator.
func (c *Controller) Registered() bool {
	return c.CoordinatorID != nil
}

// ControllerToken is the bearer secret a claimed controller authenticates with.
type ControllerToken struct {
	Key          string
	ControllerID uuid.UUID
	CreatedAt    time.Time
}

// ControllerMessage is an append-only log entry for a message exchanged with
// a controller over a direct transport. (CreatedAt, ControllerID) is unique.
type ControllerMessage struct {
	CreatedAt    time.Time
	ControllerID uuid.UUID
	Kind         string
	Message      json.RawMessage
}

// MqttMessage is an append-only log entry for a broker-relayed message.
// (CreatedAt, CoordinatorID) is unique.
type MqttMessage struct {
	CreatedAt     time.Time
	CoordinatorID uuid.UUID
	ControllerID  *uuid.UUID
	TopicPrefix   string
	TopicSuffix   string
	Message       json.RawMessage
}

// DataPointType describes a measurement kind, e.g. "air temperature" in "°C".
type DataPointType struct {
	ID   uuid.UUID
	Name string
	Unit string
}

// DataPoint is a time-series fact. Time alone is the primary key; collisions
// are smeared forward by the telemetry store rather than rejected.
type DataPoint struct {
	Time            time.Time
	ControllerID    uuid.UUID
	DataPointTypeID uuid.UUID
	Value           float64
}

// Task result states, mirroring the background worker's lifecycle.
const (
	TaskPending = "PENDING"
	TaskStarted = "STARTED"
	TaskSuccess = "SUCCESS"
	TaskFailure = "FAILURE"
)

// TaskResult records the outcome of a background task, looked up by its
// opaque id.
type TaskResult struct {
	ID         uuid.UUID
	Name       string
	Status     string
	Result     json.RawMessage
	CreatedAt  time.Time
	ModifiedAt time.Time
}
