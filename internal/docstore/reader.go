package docstore

import (
	"context"
	"errors"
	"fmt"

	"projectdb-go/internal/blob"
	"projectdb-go/internal/envelope"
	"projectdb-go/internal/model"
	"projectdb-go/internal/projectdb"
)

// view is one loaded collection. items maps every document by uuid.
type view struct {
	idx      *envelope.Index
	items    map[string]*envelope.Item
	projects []*envelope.Item
}

func (s *Store) load(ctx context.Context, domain string) (*view, error) {
	idx, err := s.collection(ctx, domain)
	if err != nil {
		return nil, err
	}
	all, err := idx.Select("./xml")
	if err != nil {
		return nil, err
	}
	v := &view{idx: idx, items: make(map[string]*envelope.Item, len(all))}
	for _, it := range all {
		v.items[it.UUID] = it
	}
	if v.projects, err = idx.Select(envelope.ByType(string(model.ItemProject))); err != nil {
		return nil, err
	}
	return v, nil
}

// get returns the document with uuid if it has type t.
func (v *view) get(uuid string, t model.ItemType) *envelope.Item {
	it := v.items[uuid]
	if it == nil || it.Type != t {
		return nil
	}
	return it
}

// parents returns the documents that own uuid as a child of type t.
// Subproject references do not own and are not returned.
func (v *view) parents(t model.ItemType, uuid string) ([]*envelope.Item, error) {
	var path string
	switch t {
	case model.ItemScene:
		path = envelope.ProjectsReferencing("scenes", uuid)
	case model.ItemMacro:
		path = envelope.ProjectsReferencing("macros", uuid)
	case model.ItemDeviceServer:
		path = envelope.ProjectsReferencing("servers", uuid)
	case model.ItemDeviceInstance:
		path = envelope.ByChildUUID(string(model.ItemDeviceServer), "device_server/device_instance", uuid)
	case model.ItemDeviceConfig:
		path = envelope.ByChildUUID(string(model.ItemDeviceInstance), "device_instance/device_config", uuid)
	default:
		return nil, nil
	}
	return v.idx.Select(path)
}

// placed is an owned child together with the project it hangs under.
type placed struct {
	item    *envelope.Item
	project *envelope.Item
}

// reachable walks projects in collection order and returns the children of
// type t that hang under one of them, each once.
func (v *view) reachable(t model.ItemType) []placed {
	var out []placed
	seen := make(map[string]bool)
	add := func(uuid string, typ model.ItemType, project *envelope.Item) *envelope.Item {
		child := v.get(uuid, typ)
		if child == nil || seen[uuid] {
			return nil
		}
		seen[uuid] = true
		if typ == t {
			out = append(out, placed{item: child, project: project})
		}
		return child
	}

	for _, p := range v.projects {
		body := p.Project
		switch t {
		case model.ItemScene:
			for _, u := range body.Scenes {
				add(u, model.ItemScene, p)
			}
		case model.ItemMacro:
			for _, u := range body.Macros {
				add(u, model.ItemMacro, p)
			}
		case model.ItemDeviceServer, model.ItemDeviceInstance, model.ItemDeviceConfig:
			for _, su := range body.Servers {
				srv := add(su, model.ItemDeviceServer, p)
				if srv == nil || t == model.ItemDeviceServer {
					continue
				}
				for _, iu := range srv.Server.Instances {
					inst := add(iu, model.ItemDeviceInstance, p)
					if inst == nil || t == model.ItemDeviceInstance {
						continue
					}
					for _, cu := range inst.Instance.Configs {
						add(cu, model.ItemDeviceConfig, p)
					}
				}
			}
		}
	}
	return out
}

func (s *Store) ListItems(ctx context.Context, domain string, types []model.ItemType) ([]projectdb.ItemRecord, error) {
	if checkDomain(domain) != nil {
		return nil, nil
	}
	v, err := s.load(ctx, domain)
	if err != nil {
		return nil, err
	}

	var out []projectdb.ItemRecord
	for _, t := range types {
		if t == model.ItemProject {
			for _, p := range v.projects {
				out = append(out, projectdb.ItemRecord{
					UUID:        p.UUID,
					Type:        model.ItemProject,
					Name:        p.SimpleName,
					Date:        p.Date,
					IsTrashed:   p.IsTrashed,
					User:        p.User,
					Description: p.Description,
				})
			}
			continue
		}
		for _, c := range v.reachable(t) {
			out = append(out, projectdb.ItemRecord{UUID: c.item.UUID, Type: t, Name: c.item.SimpleName, Date: c.item.Date})
		}
	}
	return out, nil
}

// LoadItem reads a single document without loading the collection.
func (s *Store) LoadItem(ctx context.Context, domain, uuid string, t model.ItemType) (*envelope.Item, error) {
	if checkDomain(domain) != nil {
		return nil, nil
	}
	it, err := s.readItem(ctx, domain, uuid)
	if err != nil || it == nil {
		return nil, err
	}
	if it.Type != t {
		return nil, nil
	}
	return it, nil
}

// readItem returns the stored document for uuid, or nil.
func (s *Store) readItem(ctx context.Context, domain, uuid string) (*envelope.Item, error) {
	data, err := s.readDoc(ctx, s.docKey(domain, uuid))
	if errors.Is(err, blob.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", uuid, err)
	}
	it, err := envelope.Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("stored document %s: %w", uuid, err)
	}
	it.RawDate = ""
	return it, nil
}

func (s *Store) FindDevices(ctx context.Context, domain string, filter projectdb.DeviceFilter) ([]projectdb.DeviceRecord, error) {
	if checkDomain(domain) != nil {
		return nil, nil
	}
	v, err := s.load(ctx, domain)
	if err != nil {
		return nil, err
	}

	var out []projectdb.DeviceRecord
	for _, c := range v.reachable(model.ItemDeviceInstance) {
		inst := c.item
		if !filter.Matches(inst.UUID, inst.Instance.InstanceID) {
			continue
		}
		rec := projectdb.DeviceRecord{
			UUID:       inst.UUID,
			InstanceID: inst.Instance.InstanceID,
			ClassID:    inst.Instance.ClassID,
			Project:    projectRef(c.project),
		}
		for _, cu := range inst.Instance.Configs {
			cfg := v.get(cu, model.ItemDeviceConfig)
			if cfg == nil {
				continue
			}
			rec.Configs = append(rec.Configs, projectdb.ConfigRecord{
				UUID:     cfg.UUID,
				Name:     cfg.SimpleName,
				IsActive: cfg.UUID == inst.Instance.ActiveUUID,
			})
		}
		out = append(out, rec)
	}
	return out, nil
}

func projectRef(p *envelope.Item) projectdb.ProjectRef {
	return projectdb.ProjectRef{UUID: p.UUID, Name: p.SimpleName, Date: p.Date}
}

func (s *Store) FindProjectChildren(ctx context.Context, domain string, t model.ItemType, namePart string) ([]projectdb.ProjectChild, error) {
	if t != model.ItemMacro && t != model.ItemDeviceServer {
		return nil, projectdb.Errorf(projectdb.KindSchema, "cannot search projects by %s", t)
	}
	if checkDomain(domain) != nil {
		return nil, nil
	}
	v, err := s.load(ctx, domain)
	if err != nil {
		return nil, err
	}

	var out []projectdb.ProjectChild
	for _, c := range v.reachable(t) {
		if !projectdb.ContainsFold(c.item.SimpleName, namePart) {
			continue
		}
		out = append(out, projectdb.ProjectChild{
			UUID:    c.item.UUID,
			Name:    c.item.SimpleName,
			Project: projectRef(c.project),
		})
	}
	return out, nil
}

// SceneLinks reads the links from the stored SVG.
func (s *Store) SceneLinks(ctx context.Context, domain, sceneUUID string) ([]string, error) {
	var it *envelope.Item
	if checkDomain(domain) == nil {
		var err error
		if it, err = s.readItem(ctx, domain, sceneUUID); err != nil {
			return nil, err
		}
	}
	if it == nil || it.Type != model.ItemScene {
		return nil, projectdb.Errorf(projectdb.KindNotFound, "scene %q not found", sceneUUID)
	}
	return envelope.SceneLinks(it.Scene.SVG), nil
}
