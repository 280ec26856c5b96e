package projectdb

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"projectdb-go/internal/envelope"
	"projectdb-go/internal/model"
)

// Service is the public face of the project database. It parses and emits
// envelopes, stamps dates, validates requests and routes each operation to
// the configured Backend.
type Service struct {
	backend Backend
	logger  Logger
	clock   Clock
	idgen   IDGenerator
}

// NewService creates a Service over an initialized backend.
func NewService(backend Backend, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		backend: backend,
		logger:  logger,
		clock:   clock,
		idgen:   idgen,
	}
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC().Truncate(time.Second)
}

// Domains

// AddDomain creates domain if it does not exist yet.
func (s *Service) AddDomain(ctx context.Context, domain string) error {
	if domain == "" {
		return Errorf(KindSchema, "domain name must not be empty")
	}
	exists, err := s.backend.DomainExists(ctx, domain)
	if err != nil {
		return asBackend("checking domain", err)
	}
	if exists {
		return nil
	}
	if err := s.backend.AddDomain(ctx, domain); err != nil {
		return asBackend("adding domain", err)
	}
	s.logger.Info("domain created", "domain", domain)
	return nil
}

// DomainExists reports whether domain has been created.
func (s *Service) DomainExists(ctx context.Context, domain string) (bool, error) {
	ok, err := s.backend.DomainExists(ctx, domain)
	return ok, asBackend("checking domain", err)
}

// ListDomains returns all domain names, sorted.
func (s *Service) ListDomains(ctx context.Context) ([]string, error) {
	domains, err := s.backend.ListDomains(ctx)
	if err != nil {
		return nil, asBackend("listing domains", err)
	}
	sort.Strings(domains)
	return domains, nil
}

func (s *Service) requireDomain(ctx context.Context, domain string) error {
	ok, err := s.backend.DomainExists(ctx, domain)
	if err != nil {
		return asBackend("checking domain", err)
	}
	if !ok {
		return Errorf(KindNotFound, "domain %q not found", domain)
	}
	return nil
}

// Listing

// ListItems lists the items of the given types in domain. No types means
// all types. Rows are ordered by the requested type order, then by name.
func (s *Service) ListItems(ctx context.Context, domain string, itemTypes []string) ([]ItemSummary, error) {
	types, err := parseTypes(itemTypes)
	if err != nil {
		return nil, err
	}
	if err := s.requireDomain(ctx, domain); err != nil {
		return nil, err
	}

	records, err := s.backend.ListItems(ctx, domain, types)
	if err != nil {
		return nil, asBackend("listing items", err)
	}

	rank := make(map[model.ItemType]int, len(types))
	for i, t := range types {
		rank[t] = i
	}
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if rank[a.Type] != rank[b.Type] {
			return rank[a.Type] < rank[b.Type]
		}
		if a.Name != b.Name {
			return a.Name < b.Name
		}
		return a.UUID < b.UUID
	})

	out := make([]ItemSummary, 0, len(records))
	for _, r := range records {
		out = append(out, summarize(r))
	}
	return out, nil
}

// ListNamedItems lists items of one type whose name is exactly name,
// oldest first.
func (s *Service) ListNamedItems(ctx context.Context, domain, itemType, name string) ([]ItemSummary, error) {
	if _, err := parseType(itemType); err != nil {
		return nil, err
	}
	all, err := s.ListItems(ctx, domain, []string{itemType})
	if err != nil {
		return nil, err
	}
	var out []ItemSummary
	for _, it := range all {
		if it.SimpleName == name {
			out = append(out, it)
		}
	}
	// The legacy date layout sorts lexically in time order.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].UUID < out[j].UUID
	})
	return out, nil
}

func summarize(r ItemRecord) ItemSummary {
	row := ItemSummary{
		UUID:       r.UUID,
		ItemType:   string(r.Type),
		SimpleName: r.Name,
		Date:       envelope.FormatDate(r.Date),
	}
	if r.Type == model.ItemProject {
		row.IsTrashed = strconv.FormatBool(r.IsTrashed)
		row.User = r.User
		row.Description = r.Description
	}
	return row
}

// Saving

// SaveItem stores the envelope xml under domain, creating the domain if
// needed. uuid may be empty; otherwise it must match the envelope.
func (s *Service) SaveItem(ctx context.Context, domain, uuid, xml string, overwrite bool) (*SaveResult, error) {
	it, err := envelope.Parse(xml)
	if err != nil {
		return nil, envelopeError(err)
	}
	return s.save(ctx, domain, uuid, it, overwrite)
}

// NewItem creates an empty item of the given type with a fresh UUID.
func (s *Service) NewItem(ctx context.Context, domain, itemType, name string) (*SaveResult, error) {
	t, err := parseType(itemType)
	if err != nil {
		return nil, err
	}
	return s.save(ctx, domain, "", envelope.New(t, s.idgen.New(), name), false)
}

func (s *Service) save(ctx context.Context, domain, uuid string, it *envelope.Item, overwrite bool) (*SaveResult, error) {
	if uuid != "" && uuid != it.UUID {
		return nil, Errorf(KindSchema, "uuid %q does not match envelope uuid %q", uuid, it.UUID)
	}
	Canonicalize(it)

	if err := s.AddDomain(ctx, domain); err != nil {
		return nil, err
	}

	opts := SaveOptions{
		Overwrite:     overwrite,
		ClientDate:    it.Date,
		ClientRawDate: it.RawDate,
	}
	now := s.now()
	it.Date = now
	it.RawDate = ""

	if err := s.backend.SaveItem(ctx, domain, it, opts); err != nil {
		if errors.Is(err, ErrConflict) {
			s.logger.Warn("save rejected", "type", it.Type, "uuid", it.UUID, "domain", domain, "error", err)
		} else {
			s.logger.Error("save failed", "type", it.Type, "uuid", it.UUID, "domain", domain, "error", err)
		}
		return nil, asBackend(fmt.Sprintf("saving %s %s", it.Type, it.UUID), err)
	}

	s.logger.Info("item saved", "type", it.Type, "uuid", it.UUID, "domain", domain)
	return &SaveResult{Domain: domain, UUID: it.UUID, Date: envelope.FormatDate(now)}, nil
}

func envelopeError(err error) error {
	if errors.Is(err, envelope.ErrUnknownType) || errors.Is(err, envelope.ErrTooLarge) {
		return Wrap(KindSchema, "reading envelope", err)
	}
	return Wrap(KindParse, "reading envelope", err)
}

// Loading

// LoadItems returns the envelopes for uuids. With an empty itemType each
// uuid is tried against every type in model.LoadOrder. Loading a project
// records its last-loaded time.
func (s *Service) LoadItems(ctx context.Context, domain string, uuids []string, itemType string) ([]LoadedItem, error) {
	types := model.LoadOrder
	if itemType != "" {
		t, err := parseType(itemType)
		if err != nil {
			return nil, err
		}
		types = []model.ItemType{t}
	}

	out := make([]LoadedItem, 0, len(uuids))
	for _, uuid := range uuids {
		it, err := s.loadOne(ctx, domain, uuid, types)
		if err != nil {
			return nil, err
		}
		text, err := envelope.Emit(it)
		if err != nil {
			return nil, Wrap(KindBackend, "emitting "+uuid, err)
		}
		out = append(out, LoadedItem{UUID: uuid, XML: text})
	}
	return out, nil
}

func (s *Service) loadOne(ctx context.Context, domain, uuid string, types []model.ItemType) (*envelope.Item, error) {
	for _, t := range types {
		it, err := s.backend.LoadItem(ctx, domain, uuid, t)
		if err != nil {
			return nil, asBackend("loading "+uuid, err)
		}
		if it == nil {
			continue
		}
		s.logger.Debug("item loaded", "type", t, "uuid", uuid, "domain", domain)
		if t == model.ItemProject {
			if err := s.backend.RegisterProjectLoad(ctx, domain, uuid, s.now()); err != nil {
				s.logger.Warn("recording project load failed", "uuid", uuid, "error", err)
			}
		}
		return it, nil
	}
	if len(types) == 1 {
		return nil, Errorf(KindNotFound, "%s %q not found in domain %q", types[0], uuid, domain)
	}
	return nil, Errorf(KindNotFound, "item %q not found in domain %q", uuid, domain)
}

// Attributes

// UpdateAttributes applies single-attribute updates without the conflict
// gate. Every update is validated before any is applied. The input is
// echoed on success.
func (s *Service) UpdateAttributes(ctx context.Context, updates []AttributeUpdate) ([]AttributeUpdate, error) {
	changes := make([]AttributeChange, len(updates))
	for i, u := range updates {
		t, err := parseType(u.ItemType)
		if err != nil {
			return nil, err
		}
		value, err := coerceAttribute(t, u.AttrName, u.AttrValue)
		if err != nil {
			return nil, err
		}
		changes[i] = AttributeChange{UUID: u.UUID, Type: t, Name: u.AttrName, Value: value}
	}

	for i, c := range changes {
		domain := updates[i].Domain
		if err := s.backend.UpdateAttribute(ctx, domain, c); err != nil {
			return nil, asBackend(fmt.Sprintf("updating %s of %s", c.Name, c.UUID), err)
		}
		s.logger.Info("attribute updated", "type", c.Type, "uuid", c.UUID, "attr", c.Name, "domain", domain)
	}
	return updates, nil
}

// Device queries

// ConfigurationsFromDeviceName returns the active configuration of every
// device whose instance id equals instanceID, ignoring case.
func (s *Service) ConfigurationsFromDeviceName(ctx context.Context, domain, instanceID string) ([]NamedConfiguration, error) {
	devices, err := s.findDevices(ctx, domain, DeviceFilter{InstanceID: instanceID})
	if err != nil {
		return nil, err
	}
	var out []NamedConfiguration
	for _, d := range devices {
		if active := d.ActiveConfig(); active != nil {
			out = append(out, NamedConfiguration{ConfigID: active.UUID, InstanceID: d.InstanceID})
		}
	}
	return out, nil
}

// ConfigurationsFromDeviceNamePart returns the configurations of devices
// whose instance id contains part, ignoring case.
func (s *Service) ConfigurationsFromDeviceNamePart(ctx context.Context, domain, part string, onlyActive bool) ([]DeviceConfiguration, error) {
	devices, err := s.findDevices(ctx, domain, DeviceFilter{NamePart: part})
	if err != nil {
		return nil, err
	}
	var out []DeviceConfiguration
	for _, d := range devices {
		for _, c := range d.Configs {
			if onlyActive && !c.IsActive {
				continue
			}
			out = append(out, DeviceConfiguration{ConfigID: c.UUID, DeviceUUID: d.UUID, DeviceID: d.InstanceID})
		}
	}
	return out, nil
}

// ProjectsFromDevice returns the names of projects containing the device
// with the given uuid.
func (s *Service) ProjectsFromDevice(ctx context.Context, domain, uuid string) ([]string, error) {
	data, err := s.ProjectsDataFromDevice(ctx, domain, uuid)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var names []string
	for _, p := range data {
		if !seen[p.ProjectName] {
			seen[p.ProjectName] = true
			names = append(names, p.ProjectName)
		}
	}
	sort.Strings(names)
	return names, nil
}

// ProjectsDataFromDevice describes the projects containing the device with
// the given uuid.
func (s *Service) ProjectsDataFromDevice(ctx context.Context, domain, uuid string) ([]ProjectData, error) {
	devices, err := s.findDevices(ctx, domain, DeviceFilter{UUID: uuid})
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []ProjectData
	for _, d := range devices {
		if seen[d.Project.UUID] {
			continue
		}
		seen[d.Project.UUID] = true
		out = append(out, ProjectData{
			ProjectName: d.Project.Name,
			Date:        envelope.FormatDate(d.Project.Date),
			UUID:        d.Project.UUID,
		})
	}
	return out, nil
}

// ProjectsWithConf maps the name of every project containing a device
// named deviceID to that device's active configuration uuid.
func (s *Service) ProjectsWithConf(ctx context.Context, domain, deviceID string) (map[string]string, error) {
	devices, err := s.findDevices(ctx, domain, DeviceFilter{InstanceID: deviceID})
	if err != nil {
		return nil, err
	}
	out := make(map[string]string)
	for _, d := range devices {
		if active := d.ActiveConfig(); active != nil {
			out[d.Project.Name] = active.UUID
		}
	}
	return out, nil
}

// ProjectsWithDevice aggregates, per project, the instance ids containing
// part.
func (s *Service) ProjectsWithDevice(ctx context.Context, domain, part string) ([]ProjectItems, error) {
	devices, err := s.findDevices(ctx, domain, DeviceFilter{NamePart: part})
	if err != nil {
		return nil, err
	}
	children := make([]ProjectChild, 0, len(devices))
	for _, d := range devices {
		children = append(children, ProjectChild{UUID: d.UUID, Name: d.InstanceID, Project: d.Project})
	}
	return groupByProject(children), nil
}

// ProjectsWithMacro aggregates, per project, the macro names containing part.
func (s *Service) ProjectsWithMacro(ctx context.Context, domain, part string) ([]ProjectItems, error) {
	return s.projectsWithChild(ctx, domain, model.ItemMacro, part)
}

// ProjectsWithServer aggregates, per project, the server names containing part.
func (s *Service) ProjectsWithServer(ctx context.Context, domain, part string) ([]ProjectItems, error) {
	return s.projectsWithChild(ctx, domain, model.ItemDeviceServer, part)
}

func (s *Service) projectsWithChild(ctx context.Context, domain string, t model.ItemType, part string) ([]ProjectItems, error) {
	children, err := s.backend.FindProjectChildren(ctx, domain, t, part)
	if err != nil {
		return nil, asBackend("searching "+string(t)+" items", err)
	}
	return groupByProject(children), nil
}

// DevicesFromDomain lists every device instance reachable from a project
// of domain.
func (s *Service) DevicesFromDomain(ctx context.Context, domain string) ([]DomainDevice, error) {
	devices, err := s.findDevices(ctx, domain, DeviceFilter{})
	if err != nil {
		return nil, err
	}
	out := make([]DomainDevice, 0, len(devices))
	for _, d := range devices {
		out = append(out, DomainDevice{
			DeviceUUID:  d.UUID,
			DeviceName:  d.InstanceID,
			ProjectUUID: d.Project.UUID,
			ProjectName: d.Project.Name,
		})
	}
	return out, nil
}

// DeviceConfigFromDeviceUUID loads the active configuration of a device.
func (s *Service) DeviceConfigFromDeviceUUID(ctx context.Context, domain, uuid string) (*LoadedItem, error) {
	devices, err := s.findDevices(ctx, domain, DeviceFilter{UUID: uuid})
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		active := d.ActiveConfig()
		if active == nil {
			continue
		}
		items, err := s.LoadItems(ctx, domain, []string{active.UUID}, string(model.ItemDeviceConfig))
		if err != nil {
			return nil, err
		}
		return &items[0], nil
	}
	return nil, Errorf(KindNotFound, "no active configuration for device %q in domain %q", uuid, domain)
}

// findDevices returns matching devices sorted by instance id, then uuid.
func (s *Service) findDevices(ctx context.Context, domain string, filter DeviceFilter) ([]DeviceRecord, error) {
	devices, err := s.backend.FindDevices(ctx, domain, filter)
	if err != nil {
		return nil, asBackend("searching devices", err)
	}
	sort.SliceStable(devices, func(i, j int) bool {
		if devices[i].InstanceID != devices[j].InstanceID {
			return devices[i].InstanceID < devices[j].InstanceID
		}
		if devices[i].UUID != devices[j].UUID {
			return devices[i].UUID < devices[j].UUID
		}
		return devices[i].Project.UUID < devices[j].Project.UUID
	})
	return devices, nil
}

// groupByProject folds children into one row per project, sorted by
// project name; item names within a row are sorted too.
func groupByProject(children []ProjectChild) []ProjectItems {
	index := make(map[string]int)
	var out []ProjectItems
	for _, c := range children {
		i, ok := index[c.Project.UUID]
		if !ok {
			i = len(out)
			index[c.Project.UUID] = i
			out = append(out, ProjectItems{
				ProjectName: c.Project.Name,
				Date:        envelope.FormatDate(c.Project.Date),
				UUID:        c.Project.UUID,
			})
		}
		out[i].Items = append(out[i].Items, c.Name)
	}
	for i := range out {
		sort.Strings(out[i].Items)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].ProjectName != out[j].ProjectName {
			return out[i].ProjectName < out[j].ProjectName
		}
		return out[i].UUID < out[j].UUID
	})
	return out
}

// Scenes and metadata

// SceneLinks returns the scene uuids linked from a scene's SVG.
func (s *Service) SceneLinks(ctx context.Context, domain, sceneUUID string) ([]string, error) {
	links, err := s.backend.SceneLinks(ctx, domain, sceneUUID)
	return links, asBackend("reading scene links", err)
}

// SchemaVersion reports the stored schema version.
func (s *Service) SchemaVersion(ctx context.Context) (string, error) {
	v, err := s.backend.SchemaVersion(ctx)
	return v, asBackend("reading schema version", err)
}

func parseType(s string) (model.ItemType, error) {
	t, ok := model.ParseItemType(s)
	if !ok {
		return "", Errorf(KindSchema, "unknown item type %q", s)
	}
	return t, nil
}

func parseTypes(ss []string) ([]model.ItemType, error) {
	if len(ss) == 0 {
		return model.LoadOrder, nil
	}
	types := make([]model.ItemType, 0, len(ss))
	for _, s := range ss {
		t, err := parseType(s)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}
