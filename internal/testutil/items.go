package testutil

import (
	"testing"
	"time"

	"projectdb-go/internal/envelope"
	"projectdb-go/internal/model"
)

// Envelope builders. Items carry no date unless one is set, so saving them
// never trips the conflict gate.

func Project(uuid, name string) *envelope.Item {
	return envelope.New(model.ItemProject, uuid, name)
}

func Scene(uuid, name, svg string) *envelope.Item {
	it := envelope.New(model.ItemScene, uuid, name)
	it.Scene.SVG = svg
	return it
}

func Macro(uuid, name, code string) *envelope.Item {
	it := envelope.New(model.ItemMacro, uuid, name)
	it.Macro.Code = code
	return it
}

func Server(uuid, serverID string, instances ...string) *envelope.Item {
	it := envelope.New(model.ItemDeviceServer, uuid, serverID)
	it.Server.ServerID = serverID
	it.Server.Host = "exflhost"
	it.Server.Instances = instances
	return it
}

// Instance builds a device instance listing configs; active may be empty.
func Instance(uuid, instanceID, classID, active string, configs ...string) *envelope.Item {
	it := envelope.New(model.ItemDeviceInstance, uuid, instanceID)
	it.Instance.InstanceID = instanceID
	it.Instance.ClassID = classID
	it.Instance.ActiveUUID = active
	it.Instance.Configs = configs
	return it
}

func Config(uuid, name, data string) *envelope.Item {
	it := envelope.New(model.ItemDeviceConfig, uuid, name)
	it.Config.Data = data
	return it
}

// Dated returns it with its date set, as a client holding a loaded copy
// would send it.
func Dated(it *envelope.Item, date time.Time) *envelope.Item {
	it.Date = date
	return it
}

// XML renders it as envelope text.
func XML(t *testing.T, it *envelope.Item) string {
	t.Helper()
	text, err := envelope.Emit(it)
	if err != nil {
		t.Fatalf("Emit(%s %s) error = %v", it.Type, it.UUID, err)
	}
	return text
}
