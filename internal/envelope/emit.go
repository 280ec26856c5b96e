package envelope

import (
	"encoding/base64"
	"fmt"
	"strconv"

	"github.com/beevik/etree"

	"projectdb-go/internal/model"
)

// Emit renders it as envelope text.
func Emit(it *Item) (string, error) {
	root, err := EmitElement(it)
	if err != nil {
		return "", err
	}
	doc := etree.NewDocument()
	doc.SetRoot(root)
	s, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("writing envelope: %w", err)
	}
	return s, nil
}

// EmitElement renders it as an envelope tree.
func EmitElement(it *Item) (*etree.Element, error) {
	root := etree.NewElement("xml")
	root.CreateAttr("uuid", it.UUID)
	root.CreateAttr("simple_name", it.SimpleName)
	root.CreateAttr("item_type", string(it.Type))
	if !it.Date.IsZero() {
		root.CreateAttr("date", FormatDate(it.Date))
	}
	user := it.User
	if user == "" {
		user = DefaultUser
	}
	root.CreateAttr("user", user)
	root.CreateAttr("description", it.Description)
	root.CreateAttr("is_trashed", strconv.FormatBool(it.IsTrashed))
	root.CreateAttr("revision", "0")
	root.CreateAttr("alias", "default")

	var err error
	switch it.Type {
	case model.ItemProject:
		writeProject(root, it.Project)
	case model.ItemScene:
		if it.Scene != nil {
			err = appendSubtree(root, it.Scene.SVG)
		}
	case model.ItemMacro:
		code := ""
		if it.Macro != nil {
			code = it.Macro.Code
		}
		root.CreateElement("macro").SetText(base64.StdEncoding.EncodeToString([]byte(code)))
	case model.ItemDeviceServer:
		writeServer(root, it.Server)
	case model.ItemDeviceInstance:
		writeInstance(root, it.Instance)
	case model.ItemDeviceConfig:
		if it.Config != nil {
			err = appendSubtree(root, it.Config.Data)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, it.Type)
	}
	if err != nil {
		return nil, err
	}
	return root, nil
}

func writeProject(root *etree.Element, p *ProjectBody) {
	if p == nil {
		p = &ProjectBody{}
	}
	wrapper := root.CreateElement("root")
	wrapper.CreateAttr("KRB_Artificial", "")
	proj := wrapper.CreateElement("project")
	proj.CreateAttr("KRB_Type", "HASH")
	writeItemList(proj, "macros", p.Macros)
	writeItemList(proj, "scenes", p.Scenes)
	writeItemList(proj, "servers", p.Servers)
	writeItemList(proj, "subprojects", p.Subprojects)
}

func writeItemList(proj *etree.Element, tag string, uuids []string) {
	list := proj.CreateElement(tag)
	list.CreateAttr("KRB_Type", "VECTOR_HASH")
	for _, u := range uuids {
		entry := list.CreateElement("KRB_Item")
		uel := entry.CreateElement("uuid")
		uel.CreateAttr("KRB_Type", "STRING")
		uel.SetText(u)
		rev := entry.CreateElement("revision")
		rev.CreateAttr("KRB_Type", "INT32")
		rev.SetText("0")
	}
}

func writeServer(root *etree.Element, s *ServerBody) {
	if s == nil {
		s = &ServerBody{}
	}
	el := root.CreateElement("device_server")
	el.CreateAttr("server_id", s.ServerID)
	el.CreateAttr("host", s.Host)
	for _, u := range s.Instances {
		child := el.CreateElement("device_instance")
		child.CreateAttr("uuid", u)
		child.CreateAttr("revision", "0")
	}
}

func writeInstance(root *etree.Element, in *InstanceBody) {
	if in == nil {
		in = &InstanceBody{}
	}
	el := root.CreateElement("device_instance")
	el.CreateAttr("class_id", in.ClassID)
	el.CreateAttr("instance_id", in.InstanceID)
	el.CreateAttr("active_uuid", in.ActiveUUID)
	el.CreateAttr("active_rev", "0")
	for _, u := range in.Configs {
		child := el.CreateElement("device_config")
		child.CreateAttr("class_id", in.ClassID)
		child.CreateAttr("uuid", u)
		child.CreateAttr("revision", "0")
	}
}

// appendSubtree parses a stored body and attaches it under root.
func appendSubtree(root *etree.Element, body string) error {
	if body == "" {
		return nil
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromString(body); err != nil {
		return fmt.Errorf("%w: stored body: %v", ErrMalformed, err)
	}
	if doc.Root() == nil {
		return nil
	}
	root.AddChild(doc.Root().Copy())
	return nil
}
