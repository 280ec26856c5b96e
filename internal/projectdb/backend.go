package projectdb

import (
	"context"
	"strings"
	"time"

	"projectdb-go/internal/envelope"
	"projectdb-go/internal/model"
)

// Backend binds the Service to a concrete store. Implementations must give
// identical observable results; error wording and storage layout may
// differ. Methods that find nothing return a nil record and a nil error.
type Backend interface {
	// Initialize creates the schema or collection root if it is missing.
	Initialize(ctx context.Context) error
	Close() error
	SchemaVersion(ctx context.Context) (string, error)

	ListDomains(ctx context.Context) ([]string, error)
	DomainExists(ctx context.Context, domain string) (bool, error)
	// AddDomain is idempotent, including under concurrent creation.
	AddDomain(ctx context.Context, domain string) error

	// ListItems returns the items of the requested types reachable from a
	// project of the domain. Ordering is left to the caller.
	ListItems(ctx context.Context, domain string, types []model.ItemType) ([]ItemRecord, error)
	LoadItem(ctx context.Context, domain, uuid string, t model.ItemType) (*envelope.Item, error)
	// SaveItem inserts or updates it and relinks its children in one
	// transaction. The conflict gate runs against the stored date before
	// any update. it.Date already holds the new stamp.
	SaveItem(ctx context.Context, domain string, it *envelope.Item, opts SaveOptions) error
	RegisterProjectLoad(ctx context.Context, domain, uuid string, at time.Time) error
	// UpdateAttribute writes one allowlisted attribute without the
	// conflict gate. A missing item is a not-found error.
	UpdateAttribute(ctx context.Context, domain string, change AttributeChange) error

	// FindDevices returns device instances placed on servers of projects
	// in the domain, with their configurations in order.
	FindDevices(ctx context.Context, domain string, filter DeviceFilter) ([]DeviceRecord, error)
	// FindProjectChildren returns macros or servers of projects in the
	// domain whose name contains namePart, case-insensitively.
	FindProjectChildren(ctx context.Context, domain string, t model.ItemType, namePart string) ([]ProjectChild, error)
	SceneLinks(ctx context.Context, domain, sceneUUID string) ([]string, error)
}

// SaveOptions carries the client's view of the item being saved.
type SaveOptions struct {
	Overwrite     bool
	ClientDate    time.Time // zero when the envelope had no date
	ClientRawDate string
}

// ItemRecord is one row of an item listing.
type ItemRecord struct {
	UUID        string
	Type        model.ItemType
	Name        string
	Date        time.Time
	IsTrashed   bool
	User        string
	Description string
}

// AttributeChange is a validated, coerced single-attribute update.
type AttributeChange struct {
	UUID  string
	Type  model.ItemType
	Name  string
	Value any // bool or string, per the allowlist
}

// DeviceFilter narrows FindDevices. Empty fields match everything.
type DeviceFilter struct {
	UUID       string
	InstanceID string // exact, case-insensitive
	NamePart   string // substring, case-insensitive
}

// Matches reports whether a device with the given uuid and instance id
// passes the filter.
func (f DeviceFilter) Matches(uuid, instanceID string) bool {
	if f.UUID != "" && f.UUID != uuid {
		return false
	}
	if f.InstanceID != "" && !strings.EqualFold(f.InstanceID, instanceID) {
		return false
	}
	if f.NamePart != "" && !ContainsFold(instanceID, f.NamePart) {
		return false
	}
	return true
}

// ProjectRef identifies the project an item is reachable from.
type ProjectRef struct {
	UUID string
	Name string
	Date time.Time
}

// DeviceRecord is a device instance with its owning project and configs.
type DeviceRecord struct {
	UUID       string
	InstanceID string
	ClassID    string
	Project    ProjectRef
	Configs    []ConfigRecord
}

// ActiveConfig returns the active configuration, or nil.
func (d DeviceRecord) ActiveConfig() *ConfigRecord {
	for i := range d.Configs {
		if d.Configs[i].IsActive {
			return &d.Configs[i]
		}
	}
	return nil
}

// ConfigRecord summarises one configuration of a device.
type ConfigRecord struct {
	UUID     string
	Name     string
	IsActive bool
}

// ProjectChild is a macro or server together with its owning project.
type ProjectChild struct {
	UUID    string
	Name    string
	Project ProjectRef
}

// ContainsFold reports whether sub occurs in s, ignoring case.
func ContainsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
