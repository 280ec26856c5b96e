package projectdb

import (
	"projectdb-go/internal/envelope"
	"projectdb-go/internal/model"
)

// Canonicalize brings a parsed item into the form both backends store, so
// that a stored item reads back identically from either of them.
func Canonicalize(it *envelope.Item) {
	if it.User == "" {
		it.User = envelope.DefaultUser
	}
	if it.Type != model.ItemProject {
		it.Description = ""
		it.IsTrashed = false
	}

	switch it.Type {
	case model.ItemProject:
		if it.Project == nil {
			it.Project = &envelope.ProjectBody{}
		}
		p := it.Project
		p.Macros = dedupe(p.Macros)
		p.Scenes = dedupe(p.Scenes)
		p.Servers = dedupe(p.Servers)
		p.Subprojects = dedupe(p.Subprojects)
	case model.ItemScene:
		if it.Scene == nil {
			it.Scene = &envelope.SceneBody{}
		}
	case model.ItemMacro:
		if it.Macro == nil {
			it.Macro = &envelope.MacroBody{}
		}
	case model.ItemDeviceServer:
		if it.Server == nil {
			it.Server = &envelope.ServerBody{}
		}
		it.Server.Instances = dedupe(it.Server.Instances)
	case model.ItemDeviceInstance:
		if it.Instance == nil {
			it.Instance = &envelope.InstanceBody{}
		}
		in := it.Instance
		if in.InstanceID == "" {
			in.InstanceID = it.SimpleName
		}
		it.SimpleName = in.InstanceID
		in.Configs = dedupe(in.Configs)
		in.ActiveUUID = ResolveActive(in.ActiveUUID, in.Configs)
	case model.ItemDeviceConfig:
		if it.Config == nil {
			it.Config = &envelope.ConfigBody{}
		}
	}
}

// ResolveActive returns the config that must be active for an instance
// listing configs: the requested one if listed, otherwise the first, or
// "" when there are no configs.
func ResolveActive(requested string, configs []string) string {
	for _, c := range configs {
		if c == requested {
			return requested
		}
	}
	if len(configs) > 0 {
		return configs[0]
	}
	return ""
}

// dedupe keeps the first occurrence of every uuid.
func dedupe(uuids []string) []string {
	if len(uuids) < 2 {
		return uuids
	}
	seen := make(map[string]bool, len(uuids))
	out := uuids[:0:0]
	for _, u := range uuids {
		if !seen[u] {
			seen[u] = true
			out = append(out, u)
		}
	}
	return out
}
