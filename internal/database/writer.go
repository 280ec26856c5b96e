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

// SaveItem inserts or updates it and relinks its children in a single
// transaction. Any error rolls the whole save back.
func (d *Database) SaveItem(ctx context.Context, domain string, it *envelope.Item, opts projectdb.SaveOptions) error {
	return d.inTx(ctx, func(q *Queries) error {
		domainID, err := ensureDomain(ctx, q, domain)
		if err != nil {
			return err
		}
		w := &writer{q: q, domainID: domainID, removeOrphans: d.removeOrphans}
		switch it.Type {
		case model.ItemProject:
			return w.saveProject(ctx, it, opts)
		case model.ItemScene:
			return w.saveScene(ctx, it, opts)
		case model.ItemMacro:
			return w.saveMacro(ctx, it, opts)
		case model.ItemDeviceServer:
			return w.saveServer(ctx, it, opts)
		case model.ItemDeviceInstance:
			return w.saveInstance(ctx, it, opts)
		case model.ItemDeviceConfig:
			return w.saveConfig(ctx, it, opts)
		default:
			return projectdb.Errorf(projectdb.KindSchema, "unknown item type %q", it.Type)
		}
	})
}

// writer runs the statements of one save inside its transaction. Every
// lookup and insert is confined to domainID.
type writer struct {
	q             *Queries
	domainID      int64
	removeOrphans bool
}

// checkStored runs the domain check and the conflict gate against a stored
// row of it.
func (w *writer) checkStored(it *envelope.Item, storedDomain int64, storedDate time.Time, opts projectdb.SaveOptions) error {
	if storedDomain != w.domainID {
		return foreignItem(it)
	}
	return projectdb.CheckConflict(it, storedDate, opts)
}

func foreignItem(it *envelope.Item) error {
	return projectdb.Errorf(projectdb.KindSchema, "%s %q belongs to another domain", it.Type, it.UUID)
}

// exists turns a single-row lookup error into a found flag.
func exists(err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return false, err
}

func (w *writer) saveProject(ctx context.Context, it *envelope.Item, opts projectdb.SaveOptions) error {
	stored, err := w.q.GetProjectByUUID(ctx, it.UUID)
	found, err := exists(err)
	if err != nil {
		return fmt.Errorf("finding project: %w", err)
	}

	row := model.Project{
		ID:          stored.ID,
		UUID:        it.UUID,
		Name:        it.SimpleName,
		Description: it.Description,
		IsTrashed:   it.IsTrashed,
		Date:        it.Date,
		User:        it.User,
		DomainID:    w.domainID,
	}
	if found {
		if err := w.checkStored(it, stored.DomainID, stored.Date, opts); err != nil {
			return err
		}
		if err := w.q.UpdateProject(ctx, row); err != nil {
			return fmt.Errorf("updating project: %w", err)
		}
	} else {
		if row.ID, err = w.q.InsertProject(ctx, row); err != nil {
			return fmt.Errorf("inserting project: %w", err)
		}
	}

	body := it.Project
	if _, err := w.relink(ctx, sceneTable, it, row.ID, body.Scenes); err != nil {
		return err
	}
	if _, err := w.relink(ctx, macroTable, it, row.ID, body.Macros); err != nil {
		return err
	}
	if _, err := w.relink(ctx, serverTable, it, row.ID, body.Servers); err != nil {
		return err
	}
	return w.relinkSubprojects(ctx, it, row.ID)
}

// relinkSubprojects replaces the project's references. Referenced
// projects are never deleted.
func (w *writer) relinkSubprojects(ctx context.Context, it *envelope.Item, projectID int64) error {
	if err := w.q.DeleteSubprojects(ctx, projectID); err != nil {
		return fmt.Errorf("clearing subprojects: %w", err)
	}
	for i, uuid := range it.Project.Subprojects {
		sub, err := w.q.GetProjectByUUID(ctx, uuid)
		if errors.Is(err, sql.ErrNoRows) || (err == nil && sub.DomainID != w.domainID) {
			return missingChild(it, model.ItemProject, uuid)
		}
		if err != nil {
			return fmt.Errorf("finding subproject: %w", err)
		}
		if err := w.q.InsertSubproject(ctx, projectID, sub.ID, i); err != nil {
			return fmt.Errorf("linking subproject %s: %w", uuid, err)
		}
	}
	return nil
}

func (w *writer) saveScene(ctx context.Context, it *envelope.Item, opts projectdb.SaveOptions) error {
	stored, err := w.q.GetScene(ctx, it.UUID)
	found, err := exists(err)
	if err != nil {
		return fmt.Errorf("finding scene: %w", err)
	}

	row := model.Scene{ID: stored.ID, UUID: it.UUID, Name: it.SimpleName, SVGData: it.Scene.SVG, Date: it.Date, User: it.User, DomainID: w.domainID}
	if found {
		if err := w.checkStored(it, stored.DomainID, stored.Date, opts); err != nil {
			return err
		}
		if err := w.q.UpdateScene(ctx, row); err != nil {
			return fmt.Errorf("updating scene: %w", err)
		}
	} else {
		if row.ID, err = w.q.InsertScene(ctx, row); err != nil {
			return fmt.Errorf("inserting scene: %w", err)
		}
	}

	if err := w.q.DeleteSceneLinks(ctx, row.ID); err != nil {
		return fmt.Errorf("clearing scene links: %w", err)
	}
	for _, target := range envelope.SceneLinks(it.Scene.SVG) {
		if err := w.q.InsertSceneLink(ctx, model.SceneLinkedScene{SceneID: row.ID, LinkedSceneUUID: target}); err != nil {
			return fmt.Errorf("recording scene link: %w", err)
		}
	}
	return nil
}

func (w *writer) saveMacro(ctx context.Context, it *envelope.Item, opts projectdb.SaveOptions) error {
	stored, err := w.q.GetMacro(ctx, it.UUID)
	found, err := exists(err)
	if err != nil {
		return fmt.Errorf("finding macro: %w", err)
	}

	row := model.Macro{ID: stored.ID, UUID: it.UUID, Name: it.SimpleName, Body: it.Macro.Code, Date: it.Date, User: it.User, DomainID: w.domainID}
	if found {
		if err := w.checkStored(it, stored.DomainID, stored.Date, opts); err != nil {
			return err
		}
		if err := w.q.UpdateMacro(ctx, row); err != nil {
			return fmt.Errorf("updating macro: %w", err)
		}
		return nil
	}
	if _, err := w.q.InsertMacro(ctx, row); err != nil {
		return fmt.Errorf("inserting macro: %w", err)
	}
	return nil
}

func (w *writer) saveServer(ctx context.Context, it *envelope.Item, opts projectdb.SaveOptions) error {
	stored, err := w.q.GetDeviceServer(ctx, it.UUID)
	found, err := exists(err)
	if err != nil {
		return fmt.Errorf("finding device server: %w", err)
	}

	row := model.DeviceServer{
		ID:       stored.ID,
		UUID:     it.UUID,
		Name:     it.SimpleName,
		ServerID: it.Server.ServerID,
		Host:     it.Server.Host,
		Date:     it.Date,
		User:     it.User,
		DomainID: w.domainID,
	}
	if found {
		if err := w.checkStored(it, stored.DomainID, stored.Date, opts); err != nil {
			return err
		}
		if err := w.q.UpdateDeviceServer(ctx, row); err != nil {
			return fmt.Errorf("updating device server: %w", err)
		}
	} else {
		if row.ID, err = w.q.InsertDeviceServer(ctx, row); err != nil {
			return fmt.Errorf("inserting device server: %w", err)
		}
	}

	_, err = w.relink(ctx, instanceTable, it, row.ID, it.Server.Instances)
	return err
}

func (w *writer) saveInstance(ctx context.Context, it *envelope.Item, opts projectdb.SaveOptions) error {
	stored, err := w.q.GetDeviceInstance(ctx, it.UUID)
	found, err := exists(err)
	if err != nil {
		return fmt.Errorf("finding device instance: %w", err)
	}

	row := model.DeviceInstance{
		ID:       stored.ID,
		UUID:     it.UUID,
		Name:     it.Instance.InstanceID,
		ClassID:  it.Instance.ClassID,
		Date:     it.Date,
		User:     it.User,
		DomainID: w.domainID,
	}
	if found {
		if err := w.checkStored(it, stored.DomainID, stored.Date, opts); err != nil {
			return err
		}
		if err := w.q.UpdateDeviceInstance(ctx, row); err != nil {
			return fmt.Errorf("updating device instance: %w", err)
		}
	} else {
		if row.ID, err = w.q.InsertDeviceInstance(ctx, row); err != nil {
			return fmt.Errorf("inserting device instance: %w", err)
		}
	}

	refs, err := w.relink(ctx, configTable, it, row.ID, it.Instance.Configs)
	if err != nil {
		return err
	}
	for _, ref := range refs {
		if ref.UUID == it.Instance.ActiveUUID {
			if err := w.q.SetActiveConfig(ctx, row.ID, ref.ID); err != nil {
				return fmt.Errorf("activating config %s: %w", ref.UUID, err)
			}
			break
		}
	}
	return nil
}

func (w *writer) saveConfig(ctx context.Context, it *envelope.Item, opts projectdb.SaveOptions) error {
	stored, err := w.q.GetDeviceConfig(ctx, it.UUID)
	found, err := exists(err)
	if err != nil {
		return fmt.Errorf("finding device config: %w", err)
	}

	row := model.DeviceConfig{ID: stored.ID, UUID: it.UUID, Name: it.SimpleName, ConfigData: it.Config.Data, Date: it.Date, User: it.User, DomainID: w.domainID}
	if !found {
		if _, err := w.q.InsertDeviceConfig(ctx, row); err != nil {
			return fmt.Errorf("inserting device config: %w", err)
		}
		return nil
	}

	if err := w.checkStored(it, stored.DomainID, stored.Date, opts); err != nil {
		return err
	}
	if stored.DeviceInstanceID.Valid && stored.Name != row.Name {
		if err := w.checkConfigName(ctx, stored.DeviceInstanceID.Int64, stored.ID, row.Name); err != nil {
			return err
		}
	}
	if err := w.q.UpdateDeviceConfig(ctx, row); err != nil {
		return fmt.Errorf("updating device config: %w", err)
	}
	return nil
}

func (w *writer) checkConfigName(ctx context.Context, instanceID, configID int64, name string) error {
	n, err := w.q.CountSiblingConfigsNamed(ctx, instanceID, configID, name)
	if err != nil {
		return fmt.Errorf("checking config name: %w", err)
	}
	if n > 0 {
		return projectdb.Errorf(projectdb.KindSchema, "a configuration named %q already exists for this device", name)
	}
	return nil
}

// relink makes uuids, in order, the complete child list of parentID in
// table t. Children are detached first; children not listed any more are
// deleted under the orphan policy; parents that lost a child to this save
// are renumbered.
func (w *writer) relink(ctx context.Context, t childTable, parent *envelope.Item, parentID int64, uuids []string) ([]childRef, error) {
	current, err := w.q.ListChildRefs(ctx, t, parentID)
	if err != nil {
		return nil, fmt.Errorf("listing %s children: %w", t.kind, err)
	}

	refs := make([]childRef, 0, len(uuids))
	names := make(map[string]bool, len(uuids))
	for _, uuid := range uuids {
		ref, err := w.q.GetChildRef(ctx, t, w.domainID, uuid)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, missingChild(parent, t.kind, uuid)
		}
		if err != nil {
			return nil, fmt.Errorf("finding %s %s: %w", t.kind, uuid, err)
		}
		if t == configTable {
			if names[ref.Name] {
				return nil, projectdb.Errorf(projectdb.KindSchema,
					"device instance %q lists two configurations named %q", parent.SimpleName, ref.Name)
			}
			names[ref.Name] = true
		}
		refs = append(refs, ref)
	}

	if err := w.q.DetachChildren(ctx, t, parentID); err != nil {
		return nil, fmt.Errorf("detaching %s children: %w", t.kind, err)
	}

	kept := make(map[int64]bool, len(refs))
	var losers []int64
	for i, ref := range refs {
		if ref.ParentID.Valid && ref.ParentID.Int64 != parentID {
			losers = append(losers, ref.ParentID.Int64)
		}
		if err := w.q.AttachChild(ctx, t, ref.ID, parentID, i); err != nil {
			return nil, fmt.Errorf("attaching %s %s: %w", t.kind, ref.UUID, err)
		}
		kept[ref.ID] = true
	}

	for _, pid := range losers {
		if err := w.compact(ctx, t, pid); err != nil {
			return nil, err
		}
	}

	if w.removeOrphans {
		for _, c := range current {
			if kept[c.ID] {
				continue
			}
			if err := w.q.DeleteChild(ctx, t, c.ID); err != nil {
				return nil, fmt.Errorf("deleting orphaned %s %s: %w", t.kind, c.UUID, err)
			}
		}
	}
	return refs, nil
}

// compact renumbers the children of parentID densely. An instance left
// without an active config promotes its first one.
func (w *writer) compact(ctx context.Context, t childTable, parentID int64) error {
	refs, err := w.q.ListChildRefs(ctx, t, parentID)
	if err != nil {
		return fmt.Errorf("listing %s children: %w", t.kind, err)
	}
	for i, ref := range refs {
		if err := w.q.AttachChild(ctx, t, ref.ID, parentID, i); err != nil {
			return fmt.Errorf("renumbering %s %s: %w", t.kind, ref.UUID, err)
		}
	}
	if t != configTable || len(refs) == 0 {
		return nil
	}

	configs, err := w.q.ListConfigsByInstance(ctx, parentID)
	if err != nil {
		return fmt.Errorf("listing configs: %w", err)
	}
	for _, c := range configs {
		if c.IsActive {
			return nil
		}
	}
	if err := w.q.SetActiveConfig(ctx, parentID, configs[0].ID); err != nil {
		return fmt.Errorf("activating config %s: %w", configs[0].UUID, err)
	}
	return nil
}

func missingChild(parent *envelope.Item, t model.ItemType, uuid string) error {
	return projectdb.Errorf(projectdb.KindReferential,
		"%s %q references %s %q, which does not exist", parent.Type, parent.UUID, t, uuid)
}

// RegisterProjectLoad stamps the load time of a project of domain.
// Unknown projects are ignored.
func (d *Database) RegisterProjectLoad(ctx context.Context, domain, uuid string, at time.Time) error {
	return d.inTx(ctx, func(q *Queries) error {
		domainID, ok, err := lookupDomain(ctx, q, domain)
		if err != nil || !ok {
			return err
		}
		if _, err := q.UpdateProjectLastLoaded(ctx, domainID, uuid, at.UTC()); err != nil {
			return fmt.Errorf("recording project load: %w", err)
		}
		return nil
	})
}

var itemTables = map[model.ItemType]string{
	model.ItemProject:        "Project",
	model.ItemScene:          "Scene",
	model.ItemMacro:          "Macro",
	model.ItemDeviceServer:   "DeviceServer",
	model.ItemDeviceInstance: "DeviceInstance",
	model.ItemDeviceConfig:   "DeviceConfig",
}

// UpdateAttribute writes one attribute. The stored date is left alone so
// that clients holding the item can still save it.
func (d *Database) UpdateAttribute(ctx context.Context, domain string, c projectdb.AttributeChange) error {
	return d.inTx(ctx, func(q *Queries) error {
		domainID, ok, err := lookupDomain(ctx, q, domain)
		if err != nil {
			return err
		}
		if !ok {
			return projectdb.Errorf(projectdb.KindNotFound, "%s %q not found", c.Type, c.UUID)
		}

		var n int64
		switch {
		case c.Type == model.ItemProject && c.Name == projectdb.AttrIsTrashed:
			trashed, _ := c.Value.(bool)
			n, err = q.UpdateProjectTrashed(ctx, domainID, c.UUID, trashed)
		case c.Type == model.ItemProject && c.Name == projectdb.AttrDescription:
			description, _ := c.Value.(string)
			n, err = q.UpdateProjectDescription(ctx, domainID, c.UUID, description)
		case c.Name == projectdb.AttrSimpleName:
			name, _ := c.Value.(string)
			if c.Type == model.ItemDeviceConfig {
				if err := checkConfigRename(ctx, q, domainID, c.UUID, name); err != nil {
					return err
				}
			}
			n, err = q.UpdateName(ctx, itemTables[c.Type], domainID, c.UUID, name)
		default:
			return projectdb.Errorf(projectdb.KindSchema, "attribute %q cannot be updated on %s items", c.Name, c.Type)
		}
		if err != nil {
			return fmt.Errorf("updating %s: %w", c.Name, err)
		}
		if n == 0 {
			return projectdb.Errorf(projectdb.KindNotFound, "%s %q not found", c.Type, c.UUID)
		}
		return nil
	})
}

func checkConfigRename(ctx context.Context, q *Queries, domainID int64, uuid, name string) error {
	cfg, err := q.GetDeviceConfig(ctx, uuid)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && cfg.DomainID != domainID) {
		return projectdb.Errorf(projectdb.KindNotFound, "%s %q not found", model.ItemDeviceConfig, uuid)
	}
	if err != nil {
		return fmt.Errorf("finding device config: %w", err)
	}
	if !cfg.DeviceInstanceID.Valid {
		return nil
	}
	w := &writer{q: q, domainID: domainID}
	return w.checkConfigName(ctx, cfg.DeviceInstanceID.Int64, cfg.ID, name)
}
