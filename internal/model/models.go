package model

import (
	"database/sql"
	"time"
)

// ItemType names the kind of an externally addressable item.
type ItemType string

const (
	ItemProject        ItemType = "project"
	ItemScene          ItemType = "scene"
	ItemMacro          ItemType = "macro"
	ItemDeviceServer   ItemType = "device_server"
	ItemDeviceInstance ItemType = "device_instance"
	ItemDeviceConfig   ItemType = "device_config"
)

// LoadOrder is the order in which item types are tried when a load
// request does not name the type.
var LoadOrder = []ItemType{
	ItemProject,
	ItemScene,
	ItemMacro,
	ItemDeviceServer,
	ItemDeviceInstance,
	ItemDeviceConfig,
}

// ParseItemType returns the ItemType for s, or false if s is not a known type.
func ParseItemType(s string) (ItemType, bool) {
	for _, t := range LoadOrder {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// Domain groups projects. Names are unique.
type Domain struct {
	ID   int64
	Name string
}

// Project is the top-level aggregate, owned by exactly one domain.
type Project struct {
	ID          int64
	UUID        string
	Name        string
	Description string
	IsTrashed   bool
	Date        time.Time    // UTC
	LastLoaded  sql.NullTime // UTC, set by the read path
	User        string       // last modifying user
	DomainID    int64
}

// ProjectSubproject is the ordered, non-owning project-to-project join.
type ProjectSubproject struct {
	ID           int64
	ProjectID    int64
	SubprojectID int64
	Order        int
}

// Scene is a drawing payload owned by at most one project.
type Scene struct {
	ID        int64
	UUID      string
	Name      string
	SVGData   string
	Date      time.Time
	User      string
	DomainID  int64
	ProjectID sql.NullInt64 // null when detached
	Order     sql.NullInt64
}

// SceneLinkedScene records an advisory scene-to-scene link parsed from SVG.
type SceneLinkedScene struct {
	ID              int64
	SceneID         int64
	LinkedSceneUUID string // may name a scene that does not exist
}

// Macro is a code payload owned by at most one project.
type Macro struct {
	ID        int64
	UUID      string
	Name      string
	Body      string
	Date      time.Time
	User      string
	DomainID  int64
	ProjectID sql.NullInt64
	Order     sql.NullInt64
}

// DeviceServer owns an ordered list of device instances.
type DeviceServer struct {
	ID        int64
	UUID      string
	Name      string
	ServerID  string
	Host      string
	Date      time.Time
	User      string
	DomainID  int64
	ProjectID sql.NullInt64
	Order     sql.NullInt64
}

// DeviceInstance places a device on a server and owns its configurations.
type DeviceInstance struct {
	ID             int64
	UUID           string
	Name           string // the device instance id
	ClassID        string
	Date           time.Time
	User           string
	DomainID       int64
	DeviceServerID sql.NullInt64
	Order          sql.NullInt64
}

// DeviceConfig is one serialized configuration of a device instance.
type DeviceConfig struct {
	ID               int64
	UUID             string
	Name             string // unique within the owning instance
	ConfigData       string
	Date             time.Time
	User             string
	DomainID         int64
	IsActive         bool
	DeviceInstanceID sql.NullInt64
	Order            sql.NullInt64
}
