package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"projectdb-go/internal/envelope"
	"projectdb-go/internal/model"
	"projectdb-go/internal/projectdb"
)

func (d *Database) ListItems(ctx context.Context, domain string, types []model.ItemType) ([]projectdb.ItemRecord, error) {
	var out []projectdb.ItemRecord
	err := d.inReadTx(ctx, func(q *Queries) error {
		domainID, ok, err := lookupDomain(ctx, q, domain)
		if err != nil || !ok {
			return err
		}
		for _, t := range types {
			if t == model.ItemProject {
				projects, err := q.ListProjectsByDomain(ctx, domainID)
				if err != nil {
					return fmt.Errorf("listing projects: %w", err)
				}
				for _, p := range projects {
					out = append(out, projectdb.ItemRecord{
						UUID:        p.UUID,
						Type:        model.ItemProject,
						Name:        p.Name,
						Date:        p.Date,
						IsTrashed:   p.IsTrashed,
						User:        p.User,
						Description: p.Description,
					})
				}
				continue
			}
			rows, err := q.ListDomainItems(ctx, t, domainID)
			if err != nil {
				return fmt.Errorf("listing %s items: %w", t, err)
			}
			for _, r := range rows {
				out = append(out, projectdb.ItemRecord{UUID: r.UUID, Type: t, Name: r.Name, Date: r.Date})
			}
		}
		return nil
	})
	return out, err
}

// LoadItem reads one item of domain with its ordered children.
func (d *Database) LoadItem(ctx context.Context, domain, uuid string, t model.ItemType) (*envelope.Item, error) {
	var it *envelope.Item
	err := d.inReadTx(ctx, func(q *Queries) error {
		domainID, ok, err := lookupDomain(ctx, q, domain)
		if err != nil || !ok {
			return err
		}
		r := &reader{q: q, domainID: domainID}
		switch t {
		case model.ItemProject:
			it, err = r.loadProject(ctx, uuid)
		case model.ItemScene:
			it, err = r.loadScene(ctx, uuid)
		case model.ItemMacro:
			it, err = r.loadMacro(ctx, uuid)
		case model.ItemDeviceServer:
			it, err = r.loadServer(ctx, uuid)
		case model.ItemDeviceInstance:
			it, err = r.loadInstance(ctx, uuid)
		case model.ItemDeviceConfig:
			it, err = r.loadConfig(ctx, uuid)
		default:
			return projectdb.Errorf(projectdb.KindSchema, "unknown item type %q", t)
		}
		return err
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		if projectdb.KindOf(err) != "" {
			return nil, err
		}
		return nil, fmt.Errorf("loading %s %s: %w", t, uuid, err)
	}
	return it, nil
}

// reader runs the statements of one load inside its transaction. Rows of
// other domains read as missing.
type reader struct {
	q        *Queries
	domainID int64
}

// owned turns a row of another domain into sql.ErrNoRows.
func (r *reader) owned(domainID int64, err error) error {
	if err == nil && domainID != r.domainID {
		return sql.ErrNoRows
	}
	return err
}

func newItem(t model.ItemType, uuid, name string, date time.Time, user string) *envelope.Item {
	it := envelope.New(t, uuid, name)
	it.Date = date.UTC()
	it.User = user
	return it
}

func (r *reader) loadProject(ctx context.Context, uuid string) (*envelope.Item, error) {
	p, err := r.q.GetProjectByUUID(ctx, uuid)
	if err := r.owned(p.DomainID, err); err != nil {
		return nil, err
	}

	it := newItem(model.ItemProject, p.UUID, p.Name, p.Date, p.User)
	it.Description = p.Description
	it.IsTrashed = p.IsTrashed

	body := it.Project
	if body.Scenes, err = r.childUUIDs(ctx, sceneTable, p.ID); err != nil {
		return nil, err
	}
	if body.Macros, err = r.childUUIDs(ctx, macroTable, p.ID); err != nil {
		return nil, err
	}
	if body.Servers, err = r.childUUIDs(ctx, serverTable, p.ID); err != nil {
		return nil, err
	}
	subs, err := r.q.ListSubprojects(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	for _, s := range subs {
		body.Subprojects = append(body.Subprojects, s.UUID)
	}
	return it, nil
}

func (r *reader) childUUIDs(ctx context.Context, t childTable, parentID int64) ([]string, error) {
	refs, err := r.q.ListChildRefs(ctx, t, parentID)
	if err != nil {
		return nil, err
	}
	var uuids []string
	for _, c := range refs {
		uuids = append(uuids, c.UUID)
	}
	return uuids, nil
}

func (r *reader) loadScene(ctx context.Context, uuid string) (*envelope.Item, error) {
	s, err := r.q.GetScene(ctx, uuid)
	if err := r.owned(s.DomainID, err); err != nil {
		return nil, err
	}
	it := newItem(model.ItemScene, s.UUID, s.Name, s.Date, s.User)
	it.Scene.SVG = s.SVGData
	return it, nil
}

func (r *reader) loadMacro(ctx context.Context, uuid string) (*envelope.Item, error) {
	m, err := r.q.GetMacro(ctx, uuid)
	if err := r.owned(m.DomainID, err); err != nil {
		return nil, err
	}
	it := newItem(model.ItemMacro, m.UUID, m.Name, m.Date, m.User)
	it.Macro.Code = m.Body
	return it, nil
}

func (r *reader) loadServer(ctx context.Context, uuid string) (*envelope.Item, error) {
	s, err := r.q.GetDeviceServer(ctx, uuid)
	if err := r.owned(s.DomainID, err); err != nil {
		return nil, err
	}
	it := newItem(model.ItemDeviceServer, s.UUID, s.Name, s.Date, s.User)
	it.Server.ServerID = s.ServerID
	it.Server.Host = s.Host
	if it.Server.Instances, err = r.childUUIDs(ctx, instanceTable, s.ID); err != nil {
		return nil, err
	}
	return it, nil
}

func (r *reader) loadInstance(ctx context.Context, uuid string) (*envelope.Item, error) {
	i, err := r.q.GetDeviceInstance(ctx, uuid)
	if err := r.owned(i.DomainID, err); err != nil {
		return nil, err
	}
	it := newItem(model.ItemDeviceInstance, i.UUID, i.Name, i.Date, i.User)
	it.Instance.ClassID = i.ClassID
	it.Instance.InstanceID = i.Name

	configs, err := r.q.ListConfigsByInstance(ctx, i.ID)
	if err != nil {
		return nil, err
	}
	for _, c := range configs {
		it.Instance.Configs = append(it.Instance.Configs, c.UUID)
		if c.IsActive {
			it.Instance.ActiveUUID = c.UUID
		}
	}
	return it, nil
}

func (r *reader) loadConfig(ctx context.Context, uuid string) (*envelope.Item, error) {
	c, err := r.q.GetDeviceConfig(ctx, uuid)
	if err := r.owned(c.DomainID, err); err != nil {
		return nil, err
	}
	it := newItem(model.ItemDeviceConfig, c.UUID, c.Name, c.Date, c.User)
	it.Config.Data = c.ConfigData
	return it, nil
}

func (d *Database) FindDevices(ctx context.Context, domain string, filter projectdb.DeviceFilter) ([]projectdb.DeviceRecord, error) {
	var out []projectdb.DeviceRecord
	err := d.inReadTx(ctx, func(q *Queries) error {
		domainID, ok, err := lookupDomain(ctx, q, domain)
		if err != nil || !ok {
			return err
		}
		rows, err := q.ListDomainDevices(ctx, domainID, filter.UUID)
		if err != nil {
			return fmt.Errorf("searching devices: %w", err)
		}
		for _, r := range rows {
			// Names fold in Go, the same way for every backend.
			if !filter.Matches(r.UUID, r.Name) {
				continue
			}
			configs, err := q.ListConfigsByInstance(ctx, r.ID)
			if err != nil {
				return fmt.Errorf("listing configs of %s: %w", r.UUID, err)
			}
			rec := projectdb.DeviceRecord{
				UUID:       r.UUID,
				InstanceID: r.Name,
				ClassID:    r.ClassID,
				Project:    projectdb.ProjectRef{UUID: r.ProjectUUID, Name: r.ProjectName, Date: r.ProjectDate},
			}
			for _, c := range configs {
				rec.Configs = append(rec.Configs, projectdb.ConfigRecord{UUID: c.UUID, Name: c.Name, IsActive: c.IsActive})
			}
			out = append(out, rec)
		}
		return nil
	})
	return out, err
}

func (d *Database) FindProjectChildren(ctx context.Context, domain string, t model.ItemType, namePart string) ([]projectdb.ProjectChild, error) {
	var table childTable
	switch t {
	case model.ItemMacro:
		table = macroTable
	case model.ItemDeviceServer:
		table = serverTable
	default:
		return nil, projectdb.Errorf(projectdb.KindSchema, "cannot search projects by %s", t)
	}

	var out []projectdb.ProjectChild
	err := d.inReadTx(ctx, func(q *Queries) error {
		domainID, ok, err := lookupDomain(ctx, q, domain)
		if err != nil || !ok {
			return err
		}
		rows, err := q.ListDomainChildren(ctx, table, domainID)
		if err != nil {
			return fmt.Errorf("searching %s items: %w", t, err)
		}
		for _, r := range rows {
			if !projectdb.ContainsFold(r.Name, namePart) {
				continue
			}
			out = append(out, projectdb.ProjectChild{
				UUID:    r.UUID,
				Name:    r.Name,
				Project: projectdb.ProjectRef{UUID: r.ProjectUUID, Name: r.ProjectName, Date: r.ProjectDate},
			})
		}
		return nil
	})
	return out, err
}

func (d *Database) SceneLinks(ctx context.Context, domain, sceneUUID string) ([]string, error) {
	var out []string
	err := d.inReadTx(ctx, func(q *Queries) error {
		domainID, ok, err := lookupDomain(ctx, q, domain)
		if err != nil {
			return err
		}
		s, err := q.GetScene(ctx, sceneUUID)
		if !ok || errors.Is(err, sql.ErrNoRows) || (err == nil && s.DomainID != domainID) {
			return projectdb.Errorf(projectdb.KindNotFound, "scene %q not found", sceneUUID)
		}
		if err != nil {
			return fmt.Errorf("finding scene: %w", err)
		}
		links, err := q.ListSceneLinks(ctx, s.ID)
		if err != nil {
			return fmt.Errorf("listing scene links: %w", err)
		}
		out = make([]string, 0, len(links))
		for _, l := range links {
			out = append(out, l.LinkedSceneUUID)
		}
		return nil
	})
	return out, err
}
