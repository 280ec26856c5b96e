package docstore

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"projectdb-go/internal/blob"
	"projectdb-go/internal/encryption"
	"projectdb-go/internal/envelope"
	"projectdb-go/internal/model"
	"projectdb-go/internal/projectdb"
)

var stamp = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

const testRoot = "/db/krb_config"

// newTestStore returns a Store over an in-memory blob store, sealing
// documents with the test encryptor.
func newTestStore(t *testing.T, removeOrphans bool) (*Store, *blob.MemoryStore) {
	t.Helper()

	blobs := blob.NewMemoryStore()
	enc := encryption.NewTestEncryptor()
	dec, err := enc.Unlock("")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	s := New(blobs, enc, dec, testRoot, removeOrphans)
	if err := s.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	return s, blobs
}

func testItem(t model.ItemType, uuid, name string) *envelope.Item {
	it := envelope.New(t, uuid, name)
	it.Date = stamp
	return it
}

func project(uuid, name string, scenes, macros, servers []string) *envelope.Item {
	it := testItem(model.ItemProject, uuid, name)
	it.Project.Scenes = scenes
	it.Project.Macros = macros
	it.Project.Servers = servers
	return it
}

func server(uuid, name string, instances ...string) *envelope.Item {
	it := testItem(model.ItemDeviceServer, uuid, name)
	it.Server.ServerID = name
	it.Server.Host = "exflhost"
	it.Server.Instances = instances
	return it
}

func instance(uuid, instanceID, active string, configs ...string) *envelope.Item {
	it := testItem(model.ItemDeviceInstance, uuid, instanceID)
	it.Instance.InstanceID = instanceID
	it.Instance.ClassID = "Motor"
	it.Instance.ActiveUUID = active
	it.Instance.Configs = configs
	return it
}

func deviceConfig(uuid, name string) *envelope.Item {
	it := testItem(model.ItemDeviceConfig, uuid, name)
	it.Config.Data = "<Motor><velocity>1</velocity></Motor>"
	return it
}

func mustSave(t *testing.T, s *Store, domain string, items ...*envelope.Item) {
	t.Helper()
	for _, it := range items {
		if err := s.SaveItem(context.Background(), domain, it, projectdb.SaveOptions{}); err != nil {
			t.Fatalf("SaveItem(%s %s) error = %v", it.Type, it.UUID, err)
		}
	}
}

func mustLoad(t *testing.T, s *Store, domain, uuid string, typ model.ItemType) *envelope.Item {
	t.Helper()
	it, err := s.LoadItem(context.Background(), domain, uuid, typ)
	if err != nil {
		t.Fatalf("LoadItem(%s) error = %v", uuid, err)
	}
	if it == nil {
		t.Fatalf("LoadItem(%s) = nil, want item", uuid)
	}
	return it
}

func seedDevices(t *testing.T, s *Store) {
	t.Helper()
	mustSave(t, s, "CAS",
		deviceConfig("c1", "default"),
		deviceConfig("c2", "fast"),
		deviceConfig("c3", "default"),
		instance("i1", "DEV/MOTOR/1", "c2", "c1", "c2"),
		instance("i2", "dev/camera/1", "", "c3"),
		server("s1", "srv/motors", "i1", "i2"),
		project("p1", "motors", nil, nil, []string{"s1"}),
	)
}

func TestStore_Domains(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, false)

	for _, name := range []string{"SPB", "CAS", "SPB"} {
		if err := s.AddDomain(ctx, name); err != nil {
			t.Fatalf("AddDomain(%s) error = %v", name, err)
		}
	}
	mustSave(t, s, "MID", testItem(model.ItemMacro, "m1", "align"))

	got, err := s.ListDomains(ctx)
	if err != nil {
		t.Fatalf("ListDomains() error = %v", err)
	}
	if diff := cmp.Diff([]string{"CAS", "MID", "SPB"}, got); diff != "" {
		t.Errorf("ListDomains() mismatch (-want +got):\n%s", diff)
	}

	for _, tt := range []struct {
		domain string
		want   bool
	}{
		{"CAS", true},
		{"FXE", false},
		{"../CAS", false},
	} {
		ok, err := s.DomainExists(ctx, tt.domain)
		if err != nil {
			t.Fatalf("DomainExists(%s) error = %v", tt.domain, err)
		}
		if ok != tt.want {
			t.Errorf("DomainExists(%s) = %v, want %v", tt.domain, ok, tt.want)
		}
	}

	if err := s.AddDomain(ctx, "a/b"); projectdb.KindOf(err) != projectdb.KindSchema {
		t.Errorf("AddDomain(a/b) error = %v, want schema error", err)
	}
}

func TestStore_SchemaVersion(t *testing.T) {
	s, _ := newTestStore(t, false)

	v, err := s.SchemaVersion(context.Background())
	if err != nil {
		t.Fatalf("SchemaVersion() error = %v", err)
	}
	if v != schemaVersion {
		t.Errorf("SchemaVersion() = %q, want %q", v, schemaVersion)
	}
}

func TestStore_Layout(t *testing.T) {
	ctx := context.Background()
	s, blobs := newTestStore(t, false)
	mustSave(t, s, "CAS", testItem(model.ItemMacro, "m1", "align"))

	keys, err := blobs.List(ctx, "db/krb_config/CAS/")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	want := []string{"db/krb_config/CAS/.collection", "db/krb_config/CAS/m1_0"}
	if diff := cmp.Diff(want, keys); diff != "" {
		t.Errorf("keys mismatch (-want +got):\n%s", diff)
	}

	var raw bytes.Buffer
	if err := blobs.Get(ctx, "db/krb_config/CAS/m1_0", &raw); err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if strings.HasPrefix(raw.String(), "<") {
		t.Error("stored document is not sealed by the encryptor")
	}
}

func TestStore_SaveLoad(t *testing.T) {
	t.Run("project with ordered children", func(t *testing.T) {
		s, _ := newTestStore(t, false)
		m1 := testItem(model.ItemMacro, "m1", "align")
		m1.Macro.Code = "print('hello')"
		m2 := testItem(model.ItemMacro, "m2", "scan")
		sc := testItem(model.ItemScene, "sc1", "overview")
		sc.Scene.SVG = "<svg/>"
		p := project("p1", "beamline", []string{"sc1"}, []string{"m2", "m1"}, nil)
		p.Description = "main project"
		p.User = "alice"
		mustSave(t, s, "CAS", m1, m2, sc, p)

		got := mustLoad(t, s, "CAS", "p1", model.ItemProject)
		want := &envelope.ProjectBody{Scenes: []string{"sc1"}, Macros: []string{"m2", "m1"}}
		if diff := cmp.Diff(want, got.Project); diff != "" {
			t.Errorf("project body mismatch (-want +got):\n%s", diff)
		}
		if got.SimpleName != "beamline" || got.User != "alice" || got.Description != "main project" {
			t.Errorf("project = %q/%q/%q, want beamline/alice/main project", got.SimpleName, got.User, got.Description)
		}
		if !got.Date.Equal(stamp) {
			t.Errorf("Date = %v, want %v", got.Date, stamp)
		}

		macro := mustLoad(t, s, "CAS", "m1", model.ItemMacro)
		if macro.Macro.Code != "print('hello')" {
			t.Errorf("macro code = %q", macro.Macro.Code)
		}
	})

	t.Run("items are scoped to their domain", func(t *testing.T) {
		s, _ := newTestStore(t, false)
		mustSave(t, s, "CAS", project("p1", "beamline", nil, nil, nil))

		got, err := s.LoadItem(context.Background(), "SPB", "p1", model.ItemProject)
		if err != nil {
			t.Fatalf("LoadItem() error = %v", err)
		}
		if got != nil {
			t.Errorf("LoadItem() = %+v, want nil", got)
		}
	})

	t.Run("wrong type returns nil", func(t *testing.T) {
		s, _ := newTestStore(t, false)
		mustSave(t, s, "CAS", testItem(model.ItemMacro, "m1", "align"))

		got, err := s.LoadItem(context.Background(), "CAS", "m1", model.ItemScene)
		if err != nil {
			t.Fatalf("LoadItem() error = %v", err)
		}
		if got != nil {
			t.Errorf("LoadItem() = %+v, want nil", got)
		}
	})

	t.Run("device tree with active config", func(t *testing.T) {
		s, _ := newTestStore(t, false)
		seedDevices(t, s)

		in := mustLoad(t, s, "CAS", "i1", model.ItemDeviceInstance)
		if in.Instance.ActiveUUID != "c2" {
			t.Errorf("ActiveUUID = %q, want c2", in.Instance.ActiveUUID)
		}
		if diff := cmp.Diff([]string{"c1", "c2"}, in.Instance.Configs); diff != "" {
			t.Errorf("configs mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("uuid reused with another type", func(t *testing.T) {
		s, _ := newTestStore(t, false)
		mustSave(t, s, "CAS", testItem(model.ItemMacro, "x1", "align"))

		err := s.SaveItem(context.Background(), "CAS", testItem(model.ItemScene, "x1", "overview"), projectdb.SaveOptions{})
		if projectdb.KindOf(err) != projectdb.KindSchema {
			t.Errorf("SaveItem() error = %v, want schema error", err)
		}
	})

	t.Run("non-legacy client date", func(t *testing.T) {
		s, _ := newTestStore(t, false)
		opts := projectdb.SaveOptions{ClientDate: stamp, ClientRawDate: "2024-03-01T12:00:00+00:00"}

		err := s.SaveItem(context.Background(), "CAS", testItem(model.ItemMacro, "m1", "align"), opts)
		if projectdb.KindOf(err) != projectdb.KindParse {
			t.Errorf("SaveItem() error = %v, want parse error", err)
		}
	})
}

func TestStore_SaveItem_Conflict(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, false)
	mustSave(t, s, "CAS", testItem(model.ItemMacro, "m1", "align"))

	older := stamp.Add(-time.Hour)
	tests := []struct {
		name     string
		opts     projectdb.SaveOptions
		wantKind projectdb.Kind
	}{
		{"stale client date", projectdb.SaveOptions{ClientDate: older}, projectdb.KindConflict},
		{"stale client date with overwrite", projectdb.SaveOptions{ClientDate: older, Overwrite: true}, ""},
		{"equal client date", projectdb.SaveOptions{ClientDate: stamp}, ""},
		{"no client date", projectdb.SaveOptions{}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			it := testItem(model.ItemMacro, "m1", "align-"+tt.name)
			err := s.SaveItem(ctx, "CAS", it, tt.opts)
			if got := projectdb.KindOf(err); got != tt.wantKind {
				t.Errorf("SaveItem() error = %v, want kind %q", err, tt.wantKind)
			}
		})
	}
}

func TestStore_SaveItem_Rewire(t *testing.T) {
	t.Run("moving an instance detaches it from the old server", func(t *testing.T) {
		s, _ := newTestStore(t, false)
		seedDevices(t, s)
		mustSave(t, s, "CAS", server("s2", "srv/cameras", "i1"))

		old := mustLoad(t, s, "CAS", "s1", model.ItemDeviceServer)
		if diff := cmp.Diff([]string{"i2"}, old.Server.Instances); diff != "" {
			t.Errorf("old server instances mismatch (-want +got):\n%s", diff)
		}
		if !old.Date.Equal(stamp) {
			t.Errorf("old server Date = %v, want it unchanged", old.Date)
		}
	})

	t.Run("moving the active config promotes the first remaining", func(t *testing.T) {
		s, _ := newTestStore(t, false)
		seedDevices(t, s)
		mustSave(t, s, "CAS", instance("i3", "DEV/MOTOR/2", "c2", "c2"))

		old := mustLoad(t, s, "CAS", "i1", model.ItemDeviceInstance)
		if diff := cmp.Diff([]string{"c1"}, old.Instance.Configs); diff != "" {
			t.Errorf("old instance configs mismatch (-want +got):\n%s", diff)
		}
		if old.Instance.ActiveUUID != "c1" {
			t.Errorf("old instance ActiveUUID = %q, want c1", old.Instance.ActiveUUID)
		}
	})

	t.Run("missing child leaves the store untouched", func(t *testing.T) {
		s, _ := newTestStore(t, false)
		seedDevices(t, s)

		err := s.SaveItem(context.Background(), "CAS", server("s2", "srv/x", "i1", "ghost"), projectdb.SaveOptions{})
		if projectdb.KindOf(err) != projectdb.KindReferential {
			t.Fatalf("SaveItem() error = %v, want referential error", err)
		}
		old := mustLoad(t, s, "CAS", "s1", model.ItemDeviceServer)
		if diff := cmp.Diff([]string{"i1", "i2"}, old.Server.Instances); diff != "" {
			t.Errorf("s1 instances mismatch (-want +got):\n%s", diff)
		}
		if got, _ := s.LoadItem(context.Background(), "CAS", "s2", model.ItemDeviceServer); got != nil {
			t.Error("rejected server was stored")
		}
	})

	t.Run("children of another domain are missing", func(t *testing.T) {
		s, _ := newTestStore(t, false)
		mustSave(t, s, "SPB", testItem(model.ItemMacro, "m1", "align"))

		err := s.SaveItem(context.Background(), "CAS", project("p1", "x", nil, []string{"m1"}, nil), projectdb.SaveOptions{})
		if projectdb.KindOf(err) != projectdb.KindReferential {
			t.Errorf("SaveItem() error = %v, want referential error", err)
		}
	})

	t.Run("duplicate config names", func(t *testing.T) {
		s, _ := newTestStore(t, false)
		seedDevices(t, s)

		err := s.SaveItem(context.Background(), "CAS", instance("i1", "DEV/MOTOR/1", "c1", "c1", "c3"), projectdb.SaveOptions{})
		if projectdb.KindOf(err) != projectdb.KindSchema {
			t.Errorf("SaveItem() error = %v, want schema error", err)
		}
	})

	t.Run("renaming a config onto a sibling name", func(t *testing.T) {
		s, _ := newTestStore(t, false)
		seedDevices(t, s)

		err := s.SaveItem(context.Background(), "CAS", deviceConfig("c2", "default"), projectdb.SaveOptions{})
		if projectdb.KindOf(err) != projectdb.KindSchema {
			t.Errorf("SaveItem() error = %v, want schema error", err)
		}
	})

	t.Run("subprojects must exist", func(t *testing.T) {
		s, _ := newTestStore(t, false)
		mustSave(t, s, "CAS", project("p2", "child", nil, nil, nil))

		p := project("p1", "parent", nil, nil, nil)
		p.Project.Subprojects = []string{"p2"}
		mustSave(t, s, "CAS", p)

		p.Project.Subprojects = []string{"p3"}
		err := s.SaveItem(context.Background(), "CAS", p, projectdb.SaveOptions{})
		if projectdb.KindOf(err) != projectdb.KindReferential {
			t.Errorf("SaveItem() error = %v, want referential error", err)
		}
	})
}

func TestStore_SaveItem_Orphans(t *testing.T) {
	tests := []struct {
		name          string
		removeOrphans bool
		wantKept      bool
	}{
		{"kept without orphan policy", false, true},
		{"removed with orphan policy", true, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			s, _ := newTestStore(t, tt.removeOrphans)
			seedDevices(t, s)
			mustSave(t, s, "CAS", project("p1", "motors", nil, nil, nil))

			for _, uuid := range []string{"s1", "i1", "c1"} {
				it, err := s.readItem(ctx, "CAS", uuid)
				if err != nil {
					t.Fatalf("readItem(%s) error = %v", uuid, err)
				}
				if (it != nil) != tt.wantKept {
					t.Errorf("%s stored = %v, want %v", uuid, it != nil, tt.wantKept)
				}
			}

			devices, err := s.FindDevices(ctx, "CAS", projectdb.DeviceFilter{})
			if err != nil {
				t.Fatalf("FindDevices() error = %v", err)
			}
			if len(devices) != 0 {
				t.Errorf("FindDevices() = %d devices, want none once detached", len(devices))
			}
		})
	}
}

func TestStore_SceneLinks(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, false)
	sc := testItem(model.ItemScene, "sc1", "overview")
	sc.Scene.SVG = `<svg xmlns:krb="http://karabo.eu/scene"><rect krb:class="SceneLink" krb:target="detail:sc2"/></svg>`
	mustSave(t, s, "CAS", sc)

	got, err := s.SceneLinks(ctx, "CAS", "sc1")
	if err != nil {
		t.Fatalf("SceneLinks() error = %v", err)
	}
	if diff := cmp.Diff([]string{"sc2"}, got); diff != "" {
		t.Errorf("SceneLinks() mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.SceneLinks(ctx, "CAS", "nope"); projectdb.KindOf(err) != projectdb.KindNotFound {
		t.Errorf("SceneLinks(nope) error = %v, want not found", err)
	}
}

func TestStore_UpdateAttribute(t *testing.T) {
	ctx := context.Background()

	t.Run("project flags keep the stored date", func(t *testing.T) {
		s, _ := newTestStore(t, false)
		mustSave(t, s, "CAS", project("p1", "motors", nil, nil, nil))

		changes := []projectdb.AttributeChange{
			{UUID: "p1", Type: model.ItemProject, Name: projectdb.AttrIsTrashed, Value: true},
			{UUID: "p1", Type: model.ItemProject, Name: projectdb.AttrDescription, Value: "retired"},
		}
		for _, c := range changes {
			if err := s.UpdateAttribute(ctx, "CAS", c); err != nil {
				t.Fatalf("UpdateAttribute(%s) error = %v", c.Name, err)
			}
		}
		got := mustLoad(t, s, "CAS", "p1", model.ItemProject)
		if !got.IsTrashed || got.Description != "retired" {
			t.Errorf("project = trashed %v, description %q", got.IsTrashed, got.Description)
		}
		if !got.Date.Equal(stamp) {
			t.Errorf("Date = %v, want %v", got.Date, stamp)
		}
	})

	t.Run("renaming an instance renames its id", func(t *testing.T) {
		s, _ := newTestStore(t, false)
		seedDevices(t, s)

		c := projectdb.AttributeChange{UUID: "i2", Type: model.ItemDeviceInstance, Name: projectdb.AttrSimpleName, Value: "DEV/CAMERA/2"}
		if err := s.UpdateAttribute(ctx, "CAS", c); err != nil {
			t.Fatalf("UpdateAttribute() error = %v", err)
		}
		got := mustLoad(t, s, "CAS", "i2", model.ItemDeviceInstance)
		if got.Instance.InstanceID != "DEV/CAMERA/2" {
			t.Errorf("InstanceID = %q, want DEV/CAMERA/2", got.Instance.InstanceID)
		}
	})

	tests := []struct {
		name     string
		change   projectdb.AttributeChange
		wantKind projectdb.Kind
	}{
		{
			"missing item",
			projectdb.AttributeChange{UUID: "nope", Type: model.ItemMacro, Name: projectdb.AttrSimpleName, Value: "x"},
			projectdb.KindNotFound,
		},
		{
			"type mismatch",
			projectdb.AttributeChange{UUID: "c1", Type: model.ItemMacro, Name: projectdb.AttrSimpleName, Value: "x"},
			projectdb.KindNotFound,
		},
		{
			"description on a config",
			projectdb.AttributeChange{UUID: "c1", Type: model.ItemDeviceConfig, Name: projectdb.AttrDescription, Value: "x"},
			projectdb.KindSchema,
		},
		{
			"config rename onto sibling",
			projectdb.AttributeChange{UUID: "c1", Type: model.ItemDeviceConfig, Name: projectdb.AttrSimpleName, Value: "fast"},
			projectdb.KindSchema,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := newTestStore(t, false)
			seedDevices(t, s)

			err := s.UpdateAttribute(ctx, "CAS", tt.change)
			if got := projectdb.KindOf(err); got != tt.wantKind {
				t.Errorf("UpdateAttribute() error = %v, want kind %q", err, tt.wantKind)
			}
		})
	}
}

func TestStore_FindDevices(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, false)
	seedDevices(t, s)

	tests := []struct {
		name   string
		filter projectdb.DeviceFilter
		want   []string
	}{
		{"all", projectdb.DeviceFilter{}, []string{"i1", "i2"}},
		{"by uuid", projectdb.DeviceFilter{UUID: "i2"}, []string{"i2"}},
		{"by instance id folds case", projectdb.DeviceFilter{InstanceID: "dev/motor/1"}, []string{"i1"}},
		{"by name part", projectdb.DeviceFilter{NamePart: "CAMERA"}, []string{"i2"}},
		{"no match", projectdb.DeviceFilter{NamePart: "pump"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			devices, err := s.FindDevices(ctx, "CAS", tt.filter)
			if err != nil {
				t.Fatalf("FindDevices() error = %v", err)
			}
			var got []string
			for _, d := range devices {
				got = append(got, d.UUID)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("FindDevices() mismatch (-want +got):\n%s", diff)
			}
		})
	}

	devices, err := s.FindDevices(ctx, "CAS", projectdb.DeviceFilter{UUID: "i1"})
	if err != nil {
		t.Fatalf("FindDevices() error = %v", err)
	}
	want := []projectdb.DeviceRecord{{
		UUID:       "i1",
		InstanceID: "DEV/MOTOR/1",
		ClassID:    "Motor",
		Project:    projectdb.ProjectRef{UUID: "p1", Name: "motors", Date: stamp},
		Configs: []projectdb.ConfigRecord{
			{UUID: "c1", Name: "default"},
			{UUID: "c2", Name: "fast", IsActive: true},
		},
	}}
	if diff := cmp.Diff(want, devices); diff != "" {
		t.Errorf("FindDevices(i1) mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_FindProjectChildren(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, false)
	seedDevices(t, s)
	mustSave(t, s, "CAS",
		testItem(model.ItemMacro, "m1", "Align"),
		testItem(model.ItemMacro, "m2", "scan"),
		project("p2", "optics", nil, []string{"m1", "m2"}, nil),
	)

	got, err := s.FindProjectChildren(ctx, "CAS", model.ItemMacro, "ALI")
	if err != nil {
		t.Fatalf("FindProjectChildren() error = %v", err)
	}
	want := []projectdb.ProjectChild{{
		UUID:    "m1",
		Name:    "Align",
		Project: projectdb.ProjectRef{UUID: "p2", Name: "optics", Date: stamp},
	}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("FindProjectChildren() mismatch (-want +got):\n%s", diff)
	}

	if _, err := s.FindProjectChildren(ctx, "CAS", model.ItemScene, ""); projectdb.KindOf(err) != projectdb.KindSchema {
		t.Errorf("FindProjectChildren(scene) error = %v, want schema error", err)
	}
}

func TestStore_ListItems(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, false)
	seedDevices(t, s)
	// Stored but not reachable from any project.
	mustSave(t, s, "CAS", testItem(model.ItemMacro, "m9", "loose"))

	records, err := s.ListItems(ctx, "CAS", []model.ItemType{model.ItemProject, model.ItemDeviceConfig, model.ItemMacro})
	if err != nil {
		t.Fatalf("ListItems() error = %v", err)
	}
	var got []string
	for _, r := range records {
		got = append(got, string(r.Type)+":"+r.UUID)
	}
	want := []string{"project:p1", "device_config:c1", "device_config:c2", "device_config:c3"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ListItems() mismatch (-want +got):\n%s", diff)
	}
}

func TestStore_RegisterProjectLoad(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t, false)
	mustSave(t, s, "CAS", project("p1", "motors", nil, nil, nil))

	at := stamp.Add(time.Hour)
	if err := s.RegisterProjectLoad(ctx, "CAS", "p1", at); err != nil {
		t.Fatalf("RegisterProjectLoad() error = %v", err)
	}
	got, err := s.LastLoaded(ctx, "CAS", "p1")
	if err != nil {
		t.Fatalf("LastLoaded() error = %v", err)
	}
	if !got.Equal(at) {
		t.Errorf("LastLoaded() = %v, want %v", got, at)
	}

	if err := s.RegisterProjectLoad(ctx, "CAS", "nope", at); err != nil {
		t.Errorf("RegisterProjectLoad(nope) error = %v", err)
	}
	if got, _ := s.LastLoaded(ctx, "CAS", "nope"); !got.IsZero() {
		t.Errorf("LastLoaded(nope) = %v, want zero", got)
	}
}
