package projectdb

import (
	"context"
	"encoding/json"
	"sort"
	"strconv"
)

// Request is the generic request accepted by Router. Type selects the
// operation; the remaining fields are read as that operation needs them.
type Request struct {
	Type          string          `json:"type"`
	Domain        string          `json:"domain,omitempty"`
	ItemTypes     []string        `json:"item_types,omitempty"`
	ItemType      string          `json:"item_type,omitempty"`
	SimpleName    string          `json:"simple_name,omitempty"`
	Name          string          `json:"name,omitempty"`
	DeviceID      string          `json:"deviceId,omitempty"`
	Client        string          `json:"client,omitempty"`
	SchemaVersion *int            `json:"schema_version,omitempty"`
	Items         json.RawMessage `json:"items,omitempty"`
}

// Reply is the generic reply. Items holds the operation's result rows.
type Reply struct {
	Success bool     `json:"success"`
	Reason  string   `json:"reason"`
	Domain  string   `json:"domain,omitempty"`
	Domains []string `json:"domains,omitempty"`
	Items   any      `json:"items,omitempty"`
}

// SaveRequestItem is one entry of a saveItems request.
type SaveRequestItem struct {
	Domain   string `json:"domain"`
	UUID     string `json:"uuid"`
	XML      string `json:"xml"`
	ItemType string `json:"item_type,omitempty"`
}

// SaveReplyItem reports the outcome of one saved item.
type SaveReplyItem struct {
	Success bool   `json:"success"`
	Reason  string `json:"reason"`
	Domain  string `json:"domain"`
	UUID    string `json:"uuid"`
	Date    string `json:"date"`
}

// LoadRequestItem names one item to load.
type LoadRequestItem struct {
	Domain string `json:"domain"`
	UUID   string `json:"uuid"`
}

// LoadReplyItem is one loaded envelope.
type LoadReplyItem struct {
	Domain string `json:"domain"`
	UUID   string `json:"uuid"`
	XML    string `json:"xml"`
}

// ConfigProject pairs a project with the active config of a device in it.
type ConfigProject struct {
	ProjectName string `json:"project_name"`
	ConfigUUID  string `json:"config_uuid"`
}

// Router translates generic requests into Service calls. It has no
// transport of its own.
type Router struct {
	service *Service
}

// NewRouter creates a Router over s.
func NewRouter(s *Service) *Router {
	return &Router{service: s}
}

// HandleJSON decodes a request, dispatches it and encodes the reply.
// Failures are reported in the reply, never as an error, unless the
// reply itself cannot be encoded.
func (r *Router) HandleJSON(ctx context.Context, data []byte) ([]byte, error) {
	var req Request
	var reply *Reply
	if err := json.Unmarshal(data, &req); err != nil {
		reply = failure(Wrap(KindParse, "decoding request", err))
	} else {
		reply = r.Handle(ctx, &req)
	}
	return json.Marshal(reply)
}

// Handle dispatches one decoded request.
func (r *Router) Handle(ctx context.Context, req *Request) *Reply {
	var (
		reply *Reply
		err   error
	)
	switch req.Type {
	case "listItems":
		reply, err = r.listItems(ctx, req)
	case "listNamedItems":
		reply, err = r.listNamedItems(ctx, req)
	case "loadItems":
		reply, err = r.loadItems(ctx, req)
	case "saveItems":
		reply, err = r.saveItems(ctx, req)
	case "listDomains":
		reply, err = r.listDomains(ctx)
	case "updateAttributes", "updateTrashed":
		reply, err = r.updateAttributes(ctx, req)
	case "listProjectsWithDevice":
		reply, err = r.projectItems(r.service.ProjectsWithDevice(ctx, req.Domain, req.Name))
	case "listProjectsWithMacro":
		reply, err = r.projectItems(r.service.ProjectsWithMacro(ctx, req.Domain, req.Name))
	case "listProjectsWithServer":
		reply, err = r.projectItems(r.service.ProjectsWithServer(ctx, req.Domain, req.Name))
	case "listDomainWithDevices":
		reply, err = r.domainWithDevices(ctx, req)
	case "listProjectsWithDeviceConfigurations":
		reply, err = r.projectsWithConf(ctx, req)
	case "":
		err = Errorf(KindSchema, "request has no type")
	default:
		err = Errorf(KindSchema, "request type %q not implemented", req.Type)
	}
	if err != nil {
		return failure(err)
	}
	// A reply may carry its own reason when only part of it failed.
	reply.Success = reply.Reason == ""
	return reply
}

func failure(err error) *Reply {
	return &Reply{Success: false, Reason: err.Error()}
}

func decodeItems(req *Request, v any) error {
	if len(req.Items) == 0 {
		return Errorf(KindSchema, "%s request has no items", req.Type)
	}
	if err := json.Unmarshal(req.Items, v); err != nil {
		return Wrap(KindSchema, "decoding items", err)
	}
	return nil
}

func (r *Router) listItems(ctx context.Context, req *Request) (*Reply, error) {
	rows, err := r.service.ListItems(ctx, req.Domain, req.ItemTypes)
	if err != nil {
		return nil, err
	}
	return &Reply{Items: nonNil(rows)}, nil
}

func (r *Router) listNamedItems(ctx context.Context, req *Request) (*Reply, error) {
	rows, err := r.service.ListNamedItems(ctx, req.Domain, req.ItemType, req.SimpleName)
	if err != nil {
		return nil, err
	}
	return &Reply{Items: nonNil(rows)}, nil
}

func (r *Router) loadItems(ctx context.Context, req *Request) (*Reply, error) {
	var items []LoadRequestItem
	if err := decodeItems(req, &items); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return &Reply{Items: []LoadReplyItem{}}, nil
	}
	domain := items[0].Domain
	uuids := make([]string, len(items))
	for i, it := range items {
		if it.Domain != domain {
			return nil, Errorf(KindSchema, "items span domains %q and %q", domain, it.Domain)
		}
		uuids[i] = it.UUID
	}
	loaded, err := r.service.LoadItems(ctx, domain, uuids, "")
	if err != nil {
		return nil, err
	}
	out := make([]LoadReplyItem, len(loaded))
	for i, l := range loaded {
		out[i] = LoadReplyItem{Domain: domain, UUID: l.UUID, XML: l.XML}
	}
	return &Reply{Items: out}, nil
}

// saveItems stores every item independently. The reply carries one
// result per item; the first failure also fails the request.
func (r *Router) saveItems(ctx context.Context, req *Request) (*Reply, error) {
	if req.SchemaVersion != nil {
		stored, err := r.service.SchemaVersion(ctx)
		if err != nil {
			return nil, err
		}
		if strconv.Itoa(*req.SchemaVersion) != stored {
			return nil, Errorf(KindSchema, "cannot store into project database with schema version %s", stored)
		}
	}

	var items []SaveRequestItem
	if err := decodeItems(req, &items); err != nil {
		return nil, err
	}

	out := make([]SaveReplyItem, 0, len(items))
	var firstErr error
	for _, it := range items {
		row := SaveReplyItem{Success: true, Domain: it.Domain, UUID: it.UUID}
		res, err := r.service.SaveItem(ctx, it.Domain, it.UUID, it.XML, false)
		if err != nil {
			row.Success = false
			row.Reason = err.Error()
			if firstErr == nil {
				firstErr = err
			}
		} else {
			row.Date = res.Date
		}
		out = append(out, row)
	}
	reply := &Reply{Items: out}
	if firstErr != nil {
		reply.Reason = firstErr.Error()
	}
	return reply, nil
}

func (r *Router) listDomains(ctx context.Context) (*Reply, error) {
	domains, err := r.service.ListDomains(ctx)
	if err != nil {
		return nil, err
	}
	if domains == nil {
		domains = []string{}
	}
	return &Reply{Domains: domains}, nil
}

func (r *Router) updateAttributes(ctx context.Context, req *Request) (*Reply, error) {
	var updates []AttributeUpdate
	if err := decodeItems(req, &updates); err != nil {
		// updateTrashed historically sent a single object.
		var single AttributeUpdate
		if err2 := json.Unmarshal(req.Items, &single); err2 != nil {
			return nil, err
		}
		if single.AttrName == "" {
			single.AttrName = AttrIsTrashed
		}
		updates = []AttributeUpdate{single}
	}
	done, err := r.service.UpdateAttributes(ctx, updates)
	if err != nil {
		return nil, err
	}
	reply := &Reply{Items: done}
	if len(done) > 0 {
		reply.Domain = done[0].Domain
	}
	return reply, nil
}

func (r *Router) projectItems(rows []ProjectItems, err error) (*Reply, error) {
	if err != nil {
		return nil, err
	}
	return &Reply{Items: nonNil(rows)}, nil
}

func (r *Router) domainWithDevices(ctx context.Context, req *Request) (*Reply, error) {
	rows, err := r.service.DevicesFromDomain(ctx, req.Domain)
	if err != nil {
		return nil, err
	}
	return &Reply{Items: nonNil(rows)}, nil
}

func (r *Router) projectsWithConf(ctx context.Context, req *Request) (*Reply, error) {
	m, err := r.service.ProjectsWithConf(ctx, req.Domain, req.DeviceID)
	if err != nil {
		return nil, err
	}
	rows := make([]ConfigProject, 0, len(m))
	for name, uuid := range m {
		rows = append(rows, ConfigProject{ProjectName: name, ConfigUUID: uuid})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ProjectName < rows[j].ProjectName })
	return &Reply{Items: rows}, nil
}

func nonNil[T any](rows []T) []T {
	if rows == nil {
		return []T{}
	}
	return rows
}
