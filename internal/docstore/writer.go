package docstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"projectdb-go/internal/blob"
	"projectdb-go/internal/envelope"
	"projectdb-go/internal/model"
	"projectdb-go/internal/projectdb"
)

// childList is one owning collection of a parent document.
type childList struct {
	t     model.ItemType
	uuids *[]string
}

// ownedLists returns the child collections it owns. Subprojects are
// references and are not owned.
func ownedLists(it *envelope.Item) []childList {
	switch it.Type {
	case model.ItemProject:
		p := it.Project
		return []childList{
			{model.ItemScene, &p.Scenes},
			{model.ItemMacro, &p.Macros},
			{model.ItemDeviceServer, &p.Servers},
		}
	case model.ItemDeviceServer:
		return []childList{{model.ItemDeviceInstance, &it.Server.Instances}}
	case model.ItemDeviceInstance:
		return []childList{{model.ItemDeviceConfig, &it.Instance.Configs}}
	}
	return nil
}

// saveOp collects the document changes of one save before any is written.
type saveOp struct {
	v             *view
	it            *envelope.Item
	removeOrphans bool
	dirty         map[string]*envelope.Item
	doomed        map[string]bool
}

// SaveItem writes it and rewires its children. Every check runs before
// the first write, so a rejected save leaves the collection untouched.
func (s *Store) SaveItem(ctx context.Context, domain string, it *envelope.Item, opts projectdb.SaveOptions) error {
	if err := checkDomain(domain); err != nil {
		return err
	}
	if opts.ClientRawDate != "" && !envelope.IsLegacyDate(opts.ClientRawDate) {
		return projectdb.Errorf(projectdb.KindParse,
			"date %q of %s %q must be written as %q for the document store",
			opts.ClientRawDate, it.Type, it.UUID, envelope.LegacyDateLayout)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	v, err := s.load(ctx, domain)
	if err != nil {
		return err
	}
	stored := v.items[it.UUID]
	if stored != nil {
		if stored.Type != it.Type {
			return projectdb.Errorf(projectdb.KindSchema,
				"uuid %q is already used by a %s item", it.UUID, stored.Type)
		}
		if err := projectdb.CheckConflict(it, stored.Date, opts); err != nil {
			return err
		}
	} else if err := s.checkForeign(ctx, domain, it); err != nil {
		return err
	}

	op := &saveOp{
		v:             v,
		it:            it,
		removeOrphans: s.removeOrphans,
		dirty:         make(map[string]*envelope.Item),
		doomed:        make(map[string]bool),
	}
	if err := op.check(); err != nil {
		return err
	}
	if err := op.rewire(); err != nil {
		return err
	}
	if stored != nil {
		op.dropOrphans(stored)
	}

	if v.idx.Len() == 0 {
		if err := s.AddDomain(ctx, domain); err != nil {
			return err
		}
	}
	return op.apply(ctx, s, domain)
}

// check validates references and configuration names.
func (op *saveOp) check() error {
	it := op.it
	if it.Type == model.ItemProject {
		for _, u := range it.Project.Subprojects {
			if op.v.get(u, model.ItemProject) == nil {
				return missingChild(it, model.ItemProject, u)
			}
		}
	}
	for _, l := range ownedLists(it) {
		names := make(map[string]bool)
		for _, u := range *l.uuids {
			child := op.v.get(u, l.t)
			if child == nil {
				return missingChild(it, l.t, u)
			}
			if l.t != model.ItemDeviceConfig {
				continue
			}
			if names[child.SimpleName] {
				return projectdb.Errorf(projectdb.KindSchema,
					"device instance %q lists two configurations named %q", it.SimpleName, child.SimpleName)
			}
			names[child.SimpleName] = true
		}
	}
	if it.Type == model.ItemDeviceConfig {
		return op.v.checkConfigName(it.UUID, it.SimpleName)
	}
	return nil
}

// checkConfigName rejects a name already used by a sibling of config uuid.
func (v *view) checkConfigName(uuid, name string) error {
	owners, err := v.parents(model.ItemDeviceConfig, uuid)
	if err != nil {
		return err
	}
	for _, inst := range owners {
		for _, u := range inst.Instance.Configs {
			if u == uuid {
				continue
			}
			if sib := v.get(u, model.ItemDeviceConfig); sib != nil && sib.SimpleName == name {
				return projectdb.Errorf(projectdb.KindSchema,
					"a configuration named %q already exists for this device", name)
			}
		}
	}
	return nil
}

// rewire takes every listed child away from any other owner. An instance
// losing its active configuration promotes its first remaining one.
func (op *saveOp) rewire() error {
	for _, l := range ownedLists(op.it) {
		for _, u := range *l.uuids {
			owners, err := op.v.parents(l.t, u)
			if err != nil {
				return err
			}
			for _, p := range owners {
				if p.UUID == op.it.UUID {
					continue
				}
				for _, pl := range ownedLists(p) {
					if pl.t == l.t {
						*pl.uuids = without(*pl.uuids, u)
					}
				}
				if p.Instance != nil {
					p.Instance.ActiveUUID = projectdb.ResolveActive(p.Instance.ActiveUUID, p.Instance.Configs)
				}
				op.dirty[p.UUID] = p
			}
		}
	}
	return nil
}

// dropOrphans marks children stored under the previous version but no
// longer listed. Without the orphan policy they stay as detached
// documents.
func (op *saveOp) dropOrphans(stored *envelope.Item) {
	if !op.removeOrphans {
		return
	}
	current := ownedLists(op.it)
	for i, l := range ownedLists(stored) {
		kept := make(map[string]bool)
		for _, u := range *current[i].uuids {
			kept[u] = true
		}
		for _, u := range *l.uuids {
			if !kept[u] {
				op.doom(op.v.get(u, l.t))
			}
		}
	}
}

// doom marks child and everything it owns for deletion.
func (op *saveOp) doom(child *envelope.Item) {
	if child == nil || op.doomed[child.UUID] {
		return
	}
	op.doomed[child.UUID] = true
	for _, l := range ownedLists(child) {
		for _, u := range *l.uuids {
			op.doom(op.v.get(u, l.t))
		}
	}
}

// checkForeign rejects it when another domain already holds an item of
// the same type under its uuid.
func (s *Store) checkForeign(ctx context.Context, domain string, it *envelope.Item) error {
	domains, err := s.ListDomains(ctx)
	if err != nil {
		return err
	}
	for _, other := range domains {
		if other == domain {
			continue
		}
		held, err := s.readItem(ctx, other, it.UUID)
		if err != nil {
			return err
		}
		if held != nil && held.Type == it.Type {
			return projectdb.Errorf(projectdb.KindSchema, "%s %q belongs to another domain", it.Type, it.UUID)
		}
	}
	return nil
}

// apply writes the collected changes. Cancellation is honoured up to the
// first write.
func (op *saveOp) apply(ctx context.Context, s *Store, domain string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, uuid := range sortedKeys(op.dirty) {
		if op.doomed[uuid] {
			continue
		}
		if err := s.writeItem(ctx, domain, op.dirty[uuid]); err != nil {
			return err
		}
	}
	if err := s.writeItem(ctx, domain, op.it); err != nil {
		return err
	}
	for _, uuid := range sortedKeys(op.doomed) {
		if err := s.deleteItem(ctx, domain, uuid); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func without(uuids []string, uuid string) []string {
	out := uuids[:0:0]
	for _, u := range uuids {
		if u != uuid {
			out = append(out, u)
		}
	}
	return out
}

func missingChild(parent *envelope.Item, t model.ItemType, uuid string) error {
	return projectdb.Errorf(projectdb.KindReferential,
		"%s %q references %s %q, which does not exist", parent.Type, parent.UUID, t, uuid)
}

// RegisterProjectLoad stamps the project's load time next to its document.
// Unknown projects are ignored.
func (s *Store) RegisterProjectLoad(ctx context.Context, domain, uuid string, at time.Time) error {
	if checkDomain(domain) != nil {
		return nil
	}
	it, err := s.readItem(ctx, domain, uuid)
	if err != nil {
		return fmt.Errorf("recording project load: %w", err)
	}
	if it == nil || it.Type != model.ItemProject {
		return nil
	}
	return s.put(ctx, s.loadedKey(domain, uuid), []byte(envelope.FormatDate(at)))
}

// LastLoaded returns when a project was last loaded, or the zero time.
func (s *Store) LastLoaded(ctx context.Context, domain, uuid string) (time.Time, error) {
	var buf bytes.Buffer
	err := s.blobs.Get(ctx, s.loadedKey(domain, uuid), &buf)
	if errors.Is(err, blob.ErrNotFound) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("reading load stamp: %w", err)
	}
	return envelope.ParseDate(buf.String())
}

// UpdateAttribute rewrites one attribute in place. The stored date is left
// alone so that clients holding the item can still save it.
func (s *Store) UpdateAttribute(ctx context.Context, domain string, c projectdb.AttributeChange) error {
	switch {
	case c.Type == model.ItemProject && (c.Name == projectdb.AttrIsTrashed || c.Name == projectdb.AttrDescription):
	case c.Name == projectdb.AttrSimpleName:
	default:
		return projectdb.Errorf(projectdb.KindSchema, "attribute %q cannot be updated on %s items", c.Name, c.Type)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var it *envelope.Item
	if checkDomain(domain) == nil {
		var err error
		if it, err = s.readItem(ctx, domain, c.UUID); err != nil {
			return err
		}
	}
	if it == nil || it.Type != c.Type {
		return projectdb.Errorf(projectdb.KindNotFound, "%s %q not found", c.Type, c.UUID)
	}

	if c.Type == model.ItemDeviceConfig {
		name, _ := c.Value.(string)
		v, err := s.load(ctx, domain)
		if err != nil {
			return err
		}
		if err := v.checkConfigName(c.UUID, name); err != nil {
			return err
		}
	}
	projectdb.ApplyAttribute(it, c.Name, c.Value)
	return s.writeItem(ctx, domain, it)
}
