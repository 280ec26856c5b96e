package projectdb

import (
	"projectdb-go/internal/envelope"
	"projectdb-go/internal/model"
)

type attrKind int

const (
	attrString attrKind = iota
	attrBool
)

// Attribute names accepted by update_attributes.
const (
	AttrIsTrashed   = "is_trashed"
	AttrSimpleName  = "simple_name"
	AttrDescription = "description"
)

var attributeAllowlist = map[model.ItemType]map[string]attrKind{
	model.ItemProject: {
		AttrIsTrashed:   attrBool,
		AttrSimpleName:  attrString,
		AttrDescription: attrString,
	},
	model.ItemScene:          {AttrSimpleName: attrString},
	model.ItemMacro:          {AttrSimpleName: attrString},
	model.ItemDeviceServer:   {AttrSimpleName: attrString},
	model.ItemDeviceInstance: {AttrSimpleName: attrString},
	model.ItemDeviceConfig:   {AttrSimpleName: attrString},
}

// coerceAttribute validates name against the allowlist for t and converts
// the wire value to the attribute's type.
func coerceAttribute(t model.ItemType, name, raw string) (any, error) {
	kind, ok := attributeAllowlist[t][name]
	if !ok {
		return nil, Errorf(KindSchema, "attribute %q cannot be updated on %s items", name, t)
	}
	if kind == attrBool {
		switch raw {
		case "true":
			return true, nil
		case "false":
			return false, nil
		default:
			return nil, Errorf(KindSchema, "attribute %q expects \"true\" or \"false\", got %q", name, raw)
		}
	}
	return raw, nil
}

// ApplyAttribute sets an already coerced attribute on a typed item.
// Renaming a device instance renames its instance id as well.
func ApplyAttribute(it *envelope.Item, name string, value any) {
	switch name {
	case AttrIsTrashed:
		it.IsTrashed, _ = value.(bool)
	case AttrDescription:
		it.Description, _ = value.(string)
	case AttrSimpleName:
		it.SimpleName, _ = value.(string)
		if it.Instance != nil {
			it.Instance.InstanceID = it.SimpleName
		}
	}
}
