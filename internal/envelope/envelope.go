// Package envelope converts between the XML item envelope exchanged with
// clients and the typed Item record used everywhere else. It is the only
// package that reads or writes XML.
package envelope

import (
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/beevik/etree"
	"golang.org/x/text/unicode/norm"

	"projectdb-go/internal/model"
)

// DefaultUser is recorded when an envelope does not name its author.
const DefaultUser = "Karabo User"

// ErrMalformed is wrapped by every error caused by unreadable envelopes.
var ErrMalformed = errors.New("malformed envelope")

// ErrUnknownType is wrapped when the item_type attribute names no known type.
var ErrUnknownType = errors.New("unknown item type")

// ErrTooLarge is wrapped when a scene, macro or configuration body exceeds
// MaxBodySize.
var ErrTooLarge = errors.New("body too large")

// MaxBodySize bounds svg_data, macro bodies and config_data, in bytes.
const MaxBodySize = 4 << 20

// uuidPattern is the character set accepted for item uuids. Uuids end up
// in storage keys and path queries, so quotes and separators are refused.
var uuidPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._:-]*$`)

// Item is the typed form of one envelope. Exactly one of the body
// pointers is set, selected by Type.
type Item struct {
	UUID        string
	Type        model.ItemType
	SimpleName  string
	Date        time.Time // UTC; zero when the envelope carried no date
	RawDate     string    // the date attribute exactly as received
	User        string
	Description string
	IsTrashed   bool

	Project  *ProjectBody
	Scene    *SceneBody
	Macro    *MacroBody
	Server   *ServerBody
	Instance *InstanceBody
	Config   *ConfigBody
}

// ProjectBody lists the UUIDs of a project's children in order.
type ProjectBody struct {
	Macros      []string
	Scenes      []string
	Servers     []string
	Subprojects []string
}

// SceneBody holds the serialized SVG subtree.
type SceneBody struct {
	SVG string
}

// MacroBody holds decoded macro source.
type MacroBody struct {
	Code string
}

// ServerBody describes a device server and its ordered instances.
type ServerBody struct {
	ServerID  string
	Host      string
	Instances []string
}

// InstanceBody describes a device instance and its ordered configurations.
type InstanceBody struct {
	ClassID    string
	InstanceID string
	ActiveUUID string
	Configs    []string
}

// ConfigBody holds the serialized configuration subtree.
type ConfigBody struct {
	Data string
}

// New returns an Item of the given type with an empty body of the
// matching variant.
func New(t model.ItemType, uuid, name string) *Item {
	it := &Item{UUID: uuid, Type: t, SimpleName: name, User: DefaultUser}
	switch t {
	case model.ItemProject:
		it.Project = &ProjectBody{}
	case model.ItemScene:
		it.Scene = &SceneBody{}
	case model.ItemMacro:
		it.Macro = &MacroBody{}
	case model.ItemDeviceServer:
		it.Server = &ServerBody{}
	case model.ItemDeviceInstance:
		it.Instance = &InstanceBody{}
	case model.ItemDeviceConfig:
		it.Config = &ConfigBody{}
	}
	return it
}

// Parse reads an envelope from its text form.
func Parse(data string) (*Item, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformed)
	}
	return FromElement(root)
}

// FromElement reads an envelope from an already parsed tree.
func FromElement(root *etree.Element) (*Item, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: no root element", ErrMalformed)
	}

	uuid := strings.TrimSpace(root.SelectAttrValue("uuid", ""))
	if uuid == "" {
		return nil, fmt.Errorf("%w: missing uuid attribute", ErrMalformed)
	}
	rawType := root.SelectAttr("item_type")
	if rawType == nil {
		return nil, fmt.Errorf("%w: missing item_type attribute", ErrMalformed)
	}
	t, ok := model.ParseItemType(rawType.Value)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, rawType.Value)
	}

	it := New(t, uuid, norm.NFC.String(root.SelectAttrValue("simple_name", "")))
	if u := root.SelectAttrValue("user", ""); u != "" {
		it.User = norm.NFC.String(u)
	}
	it.Description = norm.NFC.String(root.SelectAttrValue("description", ""))
	it.IsTrashed = root.SelectAttrValue("is_trashed", "false") == "true"

	if raw := strings.TrimSpace(root.SelectAttrValue("date", "")); raw != "" {
		d, err := ParseDate(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		it.Date = d
		it.RawDate = raw
	}

	var err error
	switch t {
	case model.ItemProject:
		it.Project = readProject(root)
	case model.ItemScene:
		it.Scene.SVG, err = firstChildText(root)
	case model.ItemMacro:
		it.Macro, err = readMacro(root)
	case model.ItemDeviceServer:
		it.Server = readServer(root)
	case model.ItemDeviceInstance:
		it.Instance = readInstance(root)
	case model.ItemDeviceConfig:
		it.Config.Data, err = firstChildText(root)
	}
	if err != nil {
		return nil, err
	}
	if err := checkUUIDs(it); err != nil {
		return nil, err
	}
	if n := bodySize(it); n > MaxBodySize {
		return nil, fmt.Errorf("%w: %s %q has a %d byte body, the limit is %d", ErrTooLarge, t, uuid, n, MaxBodySize)
	}
	return it, nil
}

// checkUUIDs validates the uuid of it and every uuid it references.
func checkUUIDs(it *Item) error {
	refs := []string{it.UUID}
	switch {
	case it.Project != nil:
		p := it.Project
		refs = append(refs, p.Macros...)
		refs = append(refs, p.Scenes...)
		refs = append(refs, p.Servers...)
		refs = append(refs, p.Subprojects...)
	case it.Server != nil:
		refs = append(refs, it.Server.Instances...)
	case it.Instance != nil:
		refs = append(refs, it.Instance.Configs...)
		if it.Instance.ActiveUUID != "" {
			refs = append(refs, it.Instance.ActiveUUID)
		}
	}
	for _, u := range refs {
		if !uuidPattern.MatchString(u) {
			return fmt.Errorf("%w: invalid uuid %q", ErrMalformed, u)
		}
	}
	return nil
}

func bodySize(it *Item) int {
	switch {
	case it.Scene != nil:
		return len(it.Scene.SVG)
	case it.Macro != nil:
		return len(it.Macro.Code)
	case it.Config != nil:
		return len(it.Config.Data)
	}
	return 0
}

func readProject(root *etree.Element) *ProjectBody {
	p := &ProjectBody{}
	proj := root.FindElement("./root/project")
	if proj == nil {
		proj = root.FindElement("./project")
	}
	if proj == nil {
		return p
	}
	p.Macros = readItemList(proj, "macros")
	p.Scenes = readItemList(proj, "scenes")
	p.Servers = readItemList(proj, "servers")
	p.Subprojects = readItemList(proj, "subprojects")
	return p
}

func readItemList(proj *etree.Element, tag string) []string {
	list := proj.SelectElement(tag)
	if list == nil {
		return nil
	}
	var uuids []string
	for _, entry := range list.SelectElements("KRB_Item") {
		u := entry.SelectElement("uuid")
		if u == nil {
			continue
		}
		if v := strings.TrimSpace(u.Text()); v != "" {
			uuids = append(uuids, v)
		}
	}
	return uuids
}

func readMacro(root *etree.Element) (*MacroBody, error) {
	el := root.SelectElement("macro")
	if el == nil {
		return &MacroBody{}, nil
	}
	code, err := base64.StdEncoding.DecodeString(strings.TrimSpace(el.Text()))
	if err != nil {
		return nil, fmt.Errorf("%w: macro body is not base64: %v", ErrMalformed, err)
	}
	return &MacroBody{Code: string(code)}, nil
}

func readServer(root *etree.Element) *ServerBody {
	s := &ServerBody{}
	el := root.SelectElement("device_server")
	if el == nil {
		return s
	}
	s.ServerID = el.SelectAttrValue("server_id", "")
	s.Host = el.SelectAttrValue("host", "")
	for _, child := range el.SelectElements("device_instance") {
		if u := strings.TrimSpace(child.SelectAttrValue("uuid", "")); u != "" {
			s.Instances = append(s.Instances, u)
		}
	}
	return s
}

func readInstance(root *etree.Element) *InstanceBody {
	in := &InstanceBody{}
	el := root.SelectElement("device_instance")
	if el == nil {
		return in
	}
	in.ClassID = el.SelectAttrValue("class_id", "")
	in.InstanceID = el.SelectAttrValue("instance_id", "")
	in.ActiveUUID = strings.TrimSpace(el.SelectAttrValue("active_uuid", ""))
	for _, child := range el.SelectElements("device_config") {
		if u := strings.TrimSpace(child.SelectAttrValue("uuid", "")); u != "" {
			in.Configs = append(in.Configs, u)
		}
	}
	return in
}

// firstChildText serializes the first child element of root, keeping any
// namespace declarations it inherits from its ancestors.
func firstChildText(root *etree.Element) (string, error) {
	children := root.ChildElements()
	if len(children) == 0 {
		return "", nil
	}
	body := children[0].Copy()
	inheritNamespaces(children[0], body)

	doc := etree.NewDocument()
	doc.SetRoot(body)
	s, err := doc.WriteToString()
	if err != nil {
		return "", fmt.Errorf("serializing body: %w", err)
	}
	return s, nil
}

func inheritNamespaces(orig, body *etree.Element) {
	for p := orig.Parent(); p != nil; p = p.Parent() {
		for _, a := range p.Attr {
			if !isNamespaceDecl(a) || body.SelectAttr(a.FullKey()) != nil {
				continue
			}
			body.CreateAttr(a.FullKey(), a.Value)
		}
	}
}

func isNamespaceDecl(a etree.Attr) bool {
	return a.Space == "xmlns" || (a.Space == "" && a.Key == "xmlns")
}
