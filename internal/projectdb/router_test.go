package projectdb_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"projectdb-go/internal/projectdb"
	"projectdb-go/internal/testutil"
)

func mustJSON(t *testing.T, v any) json.RawMessage {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	return data
}

func newTestRouter(t *testing.T) *projectdb.Router {
	t.Helper()
	svc, _ := testutil.NewTestService(testutil.NewTestDatabase(t, false))
	seedDevices(t, svc, "LOCAL")
	return projectdb.NewRouter(svc)
}

func TestRouter_HandleJSON(t *testing.T) {
	r := newTestRouter(t)
	ctx := context.Background()

	tests := []struct {
		name        string
		request     string
		wantSuccess bool
		wantReason  string
	}{
		{"list domains", `{"type":"listDomains"}`, true, ""},
		{"list items", `{"type":"listItems","domain":"LOCAL","item_types":["project"]}`, true, ""},
		{"malformed json", `{"type":`, false, "decoding request"},
		{"missing type", `{}`, false, "no type"},
		{"unknown type", `{"type":"dropDatabase"}`, false, "not implemented"},
		{"unknown domain", `{"type":"listItems","domain":"FXE"}`, false, "not found"},
		{"load without items", `{"type":"loadItems"}`, false, "has no items"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := r.HandleJSON(ctx, []byte(tt.request))
			if err != nil {
				t.Fatalf("HandleJSON() error = %v", err)
			}
			var reply struct {
				Success bool   `json:"success"`
				Reason  string `json:"reason"`
			}
			if err := json.Unmarshal(data, &reply); err != nil {
				t.Fatalf("reply is not JSON: %v\n%s", err, data)
			}
			if reply.Success != tt.wantSuccess {
				t.Errorf("success = %v, want %v (reason %q)", reply.Success, tt.wantSuccess, reply.Reason)
			}
			if !strings.Contains(reply.Reason, tt.wantReason) {
				t.Errorf("reason = %q, want it to contain %q", reply.Reason, tt.wantReason)
			}
		})
	}
}

func TestRouter_SaveAndLoadItems(t *testing.T) {
	r := newTestRouter(t)
	ctx := context.Background()

	save := &projectdb.Request{
		Type: "saveItems",
		Items: mustJSON(t, []projectdb.SaveRequestItem{
			{Domain: "LOCAL", UUID: "m1", XML: testutil.XML(t, testutil.Macro("m1", "align", "print('hi')"))},
			{Domain: "LOCAL", UUID: "bad", XML: "<xml"},
		}),
	}
	reply := r.Handle(ctx, save)
	if reply.Success {
		t.Error("saveItems with a malformed item succeeded")
	}
	rows, ok := reply.Items.([]projectdb.SaveReplyItem)
	if !ok || len(rows) != 2 {
		t.Fatalf("saveItems items = %#v, want two results", reply.Items)
	}
	if !rows[0].Success || rows[0].Date != "2024-01-15 10:30:00" {
		t.Errorf("first result = %+v, want saved", rows[0])
	}
	if rows[1].Success || rows[1].Reason == "" {
		t.Errorf("second result = %+v, want failure with reason", rows[1])
	}

	load := &projectdb.Request{
		Type:  "loadItems",
		Items: mustJSON(t, []projectdb.LoadRequestItem{{Domain: "LOCAL", UUID: "m1"}, {Domain: "LOCAL", UUID: "p1"}}),
	}
	reply = r.Handle(ctx, load)
	if !reply.Success {
		t.Fatalf("loadItems failed: %s", reply.Reason)
	}
	loaded := reply.Items.([]projectdb.LoadReplyItem)
	if len(loaded) != 2 || loaded[0].UUID != "m1" || loaded[1].UUID != "p1" {
		t.Errorf("loadItems = %+v, want m1 then p1", loaded)
	}
	if !strings.Contains(loaded[0].XML, `item_type="macro"`) {
		t.Errorf("m1 xml = %s", loaded[0].XML)
	}

	spanning := &projectdb.Request{
		Type:  "loadItems",
		Items: mustJSON(t, []projectdb.LoadRequestItem{{Domain: "LOCAL", UUID: "m1"}, {Domain: "CAS", UUID: "p1"}}),
	}
	if reply := r.Handle(ctx, spanning); reply.Success {
		t.Error("loadItems across domains succeeded")
	}
}

func TestRouter_SaveItems_SchemaVersion(t *testing.T) {
	r := newTestRouter(t)
	ctx := context.Background()
	items := mustJSON(t, []projectdb.SaveRequestItem{
		{Domain: "LOCAL", UUID: "m1", XML: testutil.XML(t, testutil.Macro("m1", "align", ""))},
	})

	stale := 0
	reply := r.Handle(ctx, &projectdb.Request{Type: "saveItems", SchemaVersion: &stale, Items: items})
	if reply.Success || !strings.Contains(reply.Reason, "schema version") {
		t.Errorf("saveItems(schema 0) = %+v, want schema version failure", reply)
	}

	current := 1
	reply = r.Handle(ctx, &projectdb.Request{Type: "saveItems", SchemaVersion: &current, Items: items})
	if !reply.Success {
		t.Errorf("saveItems(schema 1) failed: %s", reply.Reason)
	}
}

func TestRouter_UpdateTrashed(t *testing.T) {
	r := newTestRouter(t)
	ctx := context.Background()

	// updateTrashed may send a single object without attr_name.
	reply := r.Handle(ctx, &projectdb.Request{
		Type:  "updateTrashed",
		Items: json.RawMessage(`{"domain":"LOCAL","uuid":"p1","item_type":"project","attr_value":"true"}`),
	})
	if !reply.Success {
		t.Fatalf("updateTrashed failed: %s", reply.Reason)
	}
	if reply.Domain != "LOCAL" {
		t.Errorf("domain = %q, want LOCAL", reply.Domain)
	}

	reply = r.Handle(ctx, &projectdb.Request{Type: "listItems", Domain: "LOCAL", ItemTypes: []string{"project"}})
	rows := reply.Items.([]projectdb.ItemSummary)
	if len(rows) != 1 || rows[0].IsTrashed != "true" {
		t.Errorf("listItems = %+v, want p1 trashed", rows)
	}
}

func TestRouter_ProjectQueries(t *testing.T) {
	r := newTestRouter(t)
	ctx := context.Background()

	reply := r.Handle(ctx, &projectdb.Request{Type: "listProjectsWithDevice", Domain: "LOCAL", Name: "motor"})
	want := []projectdb.ProjectItems{{ProjectName: "motors", Date: "2024-01-15 10:30:00", UUID: "p1", Items: []string{"MOTOR_1"}}}
	if diff := cmp.Diff(want, reply.Items); diff != "" {
		t.Errorf("listProjectsWithDevice mismatch (-want +got):\n%s", diff)
	}

	reply = r.Handle(ctx, &projectdb.Request{Type: "listProjectsWithMacro", Domain: "LOCAL", Name: "nothing"})
	if diff := cmp.Diff([]projectdb.ProjectItems{}, reply.Items); diff != "" {
		t.Errorf("listProjectsWithMacro mismatch (-want +got):\n%s", diff)
	}

	reply = r.Handle(ctx, &projectdb.Request{Type: "listDomainWithDevices", Domain: "LOCAL"})
	devices := []projectdb.DomainDevice{{DeviceUUID: "i1", DeviceName: "MOTOR_1", ProjectUUID: "p1", ProjectName: "motors"}}
	if diff := cmp.Diff(devices, reply.Items); diff != "" {
		t.Errorf("listDomainWithDevices mismatch (-want +got):\n%s", diff)
	}

	reply = r.Handle(ctx, &projectdb.Request{Type: "listProjectsWithDeviceConfigurations", Domain: "LOCAL", DeviceID: "MOTOR_1"})
	configs := []projectdb.ConfigProject{{ProjectName: "motors", ConfigUUID: "c1"}}
	if diff := cmp.Diff(configs, reply.Items); diff != "" {
		t.Errorf("listProjectsWithDeviceConfigurations mismatch (-want +got):\n%s", diff)
	}
}
