package projectdb

// Result rows returned to clients. JSON names follow the historical wire
// format, which is why they are not uniform.

// SaveResult acknowledges a stored item. Date is the new stored date.
type SaveResult struct {
	Domain string `json:"domain"`
	UUID   string `json:"uuid"`
	Date   string `json:"date"`
}

// LoadedItem is one envelope returned by LoadItems.
type LoadedItem struct {
	UUID string `json:"uuid"`
	XML  string `json:"xml"`
}

// ItemSummary is one row of ListItems. The project-only fields are empty
// for other item types.
type ItemSummary struct {
	UUID        string `json:"uuid"`
	ItemType    string `json:"item_type"`
	SimpleName  string `json:"simple_name"`
	Date        string `json:"date"`
	IsTrashed   string `json:"is_trashed,omitempty"`
	User        string `json:"user,omitempty"`
	Description string `json:"description,omitempty"`
}

// AttributeUpdate is one entry of an UpdateAttributes request.
type AttributeUpdate struct {
	Domain    string `json:"domain"`
	UUID      string `json:"uuid"`
	ItemType  string `json:"item_type"`
	AttrName  string `json:"attr_name"`
	AttrValue string `json:"attr_value"`
}

// NamedConfiguration is the active configuration of an exactly named device.
type NamedConfiguration struct {
	ConfigID   string `json:"configid"`
	InstanceID string `json:"instanceid"`
}

// DeviceConfiguration is a configuration of a device found by name part.
type DeviceConfiguration struct {
	ConfigID   string `json:"config_id"`
	DeviceUUID string `json:"device_uuid"`
	DeviceID   string `json:"device_id"`
}

// ProjectData describes a project containing a given device.
type ProjectData struct {
	ProjectName string `json:"projectname"`
	Date        string `json:"date"`
	UUID        string `json:"uuid"`
}

// ProjectItems aggregates the matching item names found in one project.
type ProjectItems struct {
	ProjectName string   `json:"project_name"`
	Date        string   `json:"date"`
	UUID        string   `json:"uuid"`
	Items       []string `json:"items"`
}

// DomainDevice is a device instance reachable from a project of a domain.
type DomainDevice struct {
	DeviceUUID  string `json:"device_uuid"`
	DeviceName  string `json:"device_name"`
	ProjectUUID string `json:"project_uuid"`
	ProjectName string `json:"project_name"`
}
