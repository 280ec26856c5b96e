package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"projectdb-go/internal/model"
)

// DBTX is satisfied by *sql.DB, *sql.Tx and *sql.Conn.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every statement the relational backend runs. All SQL is
// portable between sqlite and mysql (the latter runs with ANSI_QUOTES).
type Queries struct {
	db DBTX
}

func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries running on tx.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

type scanner interface {
	Scan(dest ...any) error
}

// Metadata

func (q *Queries) GetMetadata(ctx context.Context, key string) (string, error) {
	var value string
	err := q.db.QueryRowContext(ctx, `SELECT value FROM DatabaseMetadata WHERE "key" = ?`, key).Scan(&value)
	return value, err
}

// Domains

func (q *Queries) GetDomainByName(ctx context.Context, name string) (model.Domain, error) {
	var d model.Domain
	err := q.db.QueryRowContext(ctx, `SELECT id, name FROM ProjectDomain WHERE name = ?`, name).Scan(&d.ID, &d.Name)
	return d, err
}

func (q *Queries) ListDomains(ctx context.Context) ([]model.Domain, error) {
	rows, err := q.db.QueryContext(ctx, `SELECT id, name FROM ProjectDomain ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.Domain
	for rows.Next() {
		var d model.Domain
		if err := rows.Scan(&d.ID, &d.Name); err != nil {
			return nil, err
		}
		items = append(items, d)
	}
	return items, rows.Err()
}

func (q *Queries) InsertDomain(ctx context.Context, name string) (int64, error) {
	res, err := q.db.ExecContext(ctx, `INSERT INTO ProjectDomain (name) VALUES (?)`, name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Projects

const projectColumns = `id, uuid, name, description, is_trashed, date, last_loaded, last_modified_user, project_domain_id`

func scanProject(s scanner) (model.Project, error) {
	var p model.Project
	err := s.Scan(&p.ID, &p.UUID, &p.Name, &p.Description, &p.IsTrashed, &p.Date, &p.LastLoaded, &p.User, &p.DomainID)
	p.Date = p.Date.UTC()
	if p.LastLoaded.Valid {
		p.LastLoaded.Time = p.LastLoaded.Time.UTC()
	}
	return p, err
}

func (q *Queries) GetProjectByUUID(ctx context.Context, uuid string) (model.Project, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM Project WHERE uuid = ?`, uuid)
	return scanProject(row)
}

func (q *Queries) ListProjectsByDomain(ctx context.Context, domainID int64) ([]model.Project, error) {
	return q.listProjects(ctx, `SELECT `+projectColumns+` FROM Project WHERE project_domain_id = ? ORDER BY name, id`, domainID)
}

// ListSubprojects returns the projects referenced by projectID in order.
func (q *Queries) ListSubprojects(ctx context.Context, projectID int64) ([]model.Project, error) {
	return q.listProjects(ctx, `
		SELECT p.id, p.uuid, p.name, p.description, p.is_trashed, p.date, p.last_loaded, p.last_modified_user, p.project_domain_id
		FROM ProjectSubproject ps
		JOIN Project p ON p.id = ps.subproject_id
		WHERE ps.project_id = ?
		ORDER BY ps."order", ps.id`, projectID)
}

func (q *Queries) listProjects(ctx context.Context, query string, args ...any) ([]model.Project, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (q *Queries) InsertProject(ctx context.Context, p model.Project) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO Project (uuid, name, description, is_trashed, date, last_modified_user, project_domain_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		p.UUID, p.Name, p.Description, p.IsTrashed, p.Date, p.User, p.DomainID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateProject(ctx context.Context, p model.Project) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE Project
		SET name = ?, description = ?, is_trashed = ?, date = ?, last_modified_user = ?
		WHERE id = ?`,
		p.Name, p.Description, p.IsTrashed, p.Date, p.User, p.ID)
	return err
}

func (q *Queries) UpdateProjectLastLoaded(ctx context.Context, domainID int64, uuid string, at time.Time) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE Project SET last_loaded = ? WHERE uuid = ? AND project_domain_id = ?`, at, uuid, domainID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) UpdateProjectTrashed(ctx context.Context, domainID int64, uuid string, trashed bool) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE Project SET is_trashed = ? WHERE uuid = ? AND project_domain_id = ?`, trashed, uuid, domainID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) UpdateProjectDescription(ctx context.Context, domainID int64, uuid, description string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE Project SET description = ? WHERE uuid = ? AND project_domain_id = ?`, description, uuid, domainID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateName renames the item with uuid in table. Every item table
// carries project_domain_id.
func (q *Queries) UpdateName(ctx context.Context, table string, domainID int64, uuid, name string) (int64, error) {
	query := fmt.Sprintf(`UPDATE %s SET name = ? WHERE uuid = ? AND project_domain_id = ?`, table)
	res, err := q.db.ExecContext(ctx, query, name, uuid, domainID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (q *Queries) DeleteSubprojects(ctx context.Context, projectID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM ProjectSubproject WHERE project_id = ?`, projectID)
	return err
}

func (q *Queries) InsertSubproject(ctx context.Context, projectID, subprojectID int64, order int) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO ProjectSubproject (project_id, subproject_id, "order") VALUES (?, ?, ?)`,
		projectID, subprojectID, order)
	return err
}

// Owned children

// childTable describes a table whose rows are owned by an ordered parent.
type childTable struct {
	name   string
	parent string
	kind   model.ItemType
}

var (
	sceneTable    = childTable{name: "Scene", parent: "project_id", kind: model.ItemScene}
	macroTable    = childTable{name: "Macro", parent: "project_id", kind: model.ItemMacro}
	serverTable   = childTable{name: "DeviceServer", parent: "project_id", kind: model.ItemDeviceServer}
	instanceTable = childTable{name: "DeviceInstance", parent: "device_server_id", kind: model.ItemDeviceInstance}
	configTable   = childTable{name: "DeviceConfig", parent: "device_instance_id", kind: model.ItemDeviceConfig}
)

// childRef is the part of a child row needed to relink it.
type childRef struct {
	ID       int64
	UUID     string
	Name     string
	ParentID sql.NullInt64
}

// GetChildRef finds a child by uuid among the items of one domain.
func (q *Queries) GetChildRef(ctx context.Context, t childTable, domainID int64, uuid string) (childRef, error) {
	var c childRef
	query := fmt.Sprintf(`SELECT id, uuid, name, %s FROM %s WHERE uuid = ? AND project_domain_id = ?`, t.parent, t.name)
	err := q.db.QueryRowContext(ctx, query, uuid, domainID).Scan(&c.ID, &c.UUID, &c.Name, &c.ParentID)
	return c, err
}

// ListChildRefs returns the children of parentID in order, ties broken by id.
func (q *Queries) ListChildRefs(ctx context.Context, t childTable, parentID int64) ([]childRef, error) {
	query := fmt.Sprintf(`SELECT id, uuid, name, %s FROM %s WHERE %s = ? ORDER BY "order", id`, t.parent, t.name, t.parent)
	rows, err := q.db.QueryContext(ctx, query, parentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []childRef
	for rows.Next() {
		var c childRef
		if err := rows.Scan(&c.ID, &c.UUID, &c.Name, &c.ParentID); err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

// DetachChildren clears the parent reference and order of every child of
// parentID. Detached configs are never active.
func (q *Queries) DetachChildren(ctx context.Context, t childTable, parentID int64) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = NULL, "order" = NULL WHERE %s = ?`, t.name, t.parent, t.parent)
	if t == configTable {
		query = `UPDATE DeviceConfig SET device_instance_id = NULL, "order" = NULL, is_active = 0 WHERE device_instance_id = ?`
	}
	_, err := q.db.ExecContext(ctx, query, parentID)
	return err
}

func (q *Queries) AttachChild(ctx context.Context, t childTable, id, parentID int64, order int) error {
	query := fmt.Sprintf(`UPDATE %s SET %s = ?, "order" = ? WHERE id = ?`, t.name, t.parent)
	_, err := q.db.ExecContext(ctx, query, parentID, order, id)
	return err
}

// DeleteChild removes a row; owned descendants go with it by cascade.
func (q *Queries) DeleteChild(ctx context.Context, t childTable, id int64) error {
	_, err := q.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, t.name), id)
	return err
}

// Scenes

const sceneColumns = `id, uuid, name, svg_data, date, last_modified_user, project_domain_id, project_id, "order"`

func (q *Queries) GetScene(ctx context.Context, uuid string) (model.Scene, error) {
	var s model.Scene
	err := q.db.QueryRowContext(ctx, `SELECT `+sceneColumns+` FROM Scene WHERE uuid = ?`, uuid).
		Scan(&s.ID, &s.UUID, &s.Name, &s.SVGData, &s.Date, &s.User, &s.DomainID, &s.ProjectID, &s.Order)
	s.Date = s.Date.UTC()
	return s, err
}

func (q *Queries) InsertScene(ctx context.Context, s model.Scene) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO Scene (uuid, name, svg_data, date, last_modified_user, project_domain_id) VALUES (?, ?, ?, ?, ?, ?)`,
		s.UUID, s.Name, s.SVGData, s.Date, s.User, s.DomainID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateScene(ctx context.Context, s model.Scene) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE Scene SET name = ?, svg_data = ?, date = ?, last_modified_user = ? WHERE id = ?`,
		s.Name, s.SVGData, s.Date, s.User, s.ID)
	return err
}

func (q *Queries) DeleteSceneLinks(ctx context.Context, sceneID int64) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM SceneLinkedScene WHERE scene_id = ?`, sceneID)
	return err
}

func (q *Queries) InsertSceneLink(ctx context.Context, l model.SceneLinkedScene) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO SceneLinkedScene (scene_id, linked_scene_uuid) VALUES (?, ?)`,
		l.SceneID, l.LinkedSceneUUID)
	return err
}

func (q *Queries) ListSceneLinks(ctx context.Context, sceneID int64) ([]model.SceneLinkedScene, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, scene_id, linked_scene_uuid FROM SceneLinkedScene WHERE scene_id = ? ORDER BY id`, sceneID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.SceneLinkedScene
	for rows.Next() {
		var l model.SceneLinkedScene
		if err := rows.Scan(&l.ID, &l.SceneID, &l.LinkedSceneUUID); err != nil {
			return nil, err
		}
		items = append(items, l)
	}
	return items, rows.Err()
}

// Macros

func (q *Queries) GetMacro(ctx context.Context, uuid string) (model.Macro, error) {
	var m model.Macro
	err := q.db.QueryRowContext(ctx,
		`SELECT id, uuid, name, body, date, last_modified_user, project_domain_id, project_id, "order" FROM Macro WHERE uuid = ?`, uuid).
		Scan(&m.ID, &m.UUID, &m.Name, &m.Body, &m.Date, &m.User, &m.DomainID, &m.ProjectID, &m.Order)
	m.Date = m.Date.UTC()
	return m, err
}

func (q *Queries) InsertMacro(ctx context.Context, m model.Macro) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO Macro (uuid, name, body, date, last_modified_user, project_domain_id) VALUES (?, ?, ?, ?, ?, ?)`,
		m.UUID, m.Name, m.Body, m.Date, m.User, m.DomainID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateMacro(ctx context.Context, m model.Macro) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE Macro SET name = ?, body = ?, date = ?, last_modified_user = ? WHERE id = ?`,
		m.Name, m.Body, m.Date, m.User, m.ID)
	return err
}

// Device servers

func (q *Queries) GetDeviceServer(ctx context.Context, uuid string) (model.DeviceServer, error) {
	var s model.DeviceServer
	err := q.db.QueryRowContext(ctx, `
		SELECT id, uuid, name, server_id, host, date, last_modified_user, project_domain_id, project_id, "order"
		FROM DeviceServer WHERE uuid = ?`, uuid).
		Scan(&s.ID, &s.UUID, &s.Name, &s.ServerID, &s.Host, &s.Date, &s.User, &s.DomainID, &s.ProjectID, &s.Order)
	s.Date = s.Date.UTC()
	return s, err
}

func (q *Queries) InsertDeviceServer(ctx context.Context, s model.DeviceServer) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO DeviceServer (uuid, name, server_id, host, date, last_modified_user, project_domain_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.UUID, s.Name, s.ServerID, s.Host, s.Date, s.User, s.DomainID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateDeviceServer(ctx context.Context, s model.DeviceServer) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE DeviceServer SET name = ?, server_id = ?, host = ?, date = ?, last_modified_user = ?
		WHERE id = ?`,
		s.Name, s.ServerID, s.Host, s.Date, s.User, s.ID)
	return err
}

// Device instances

func (q *Queries) GetDeviceInstance(ctx context.Context, uuid string) (model.DeviceInstance, error) {
	var i model.DeviceInstance
	err := q.db.QueryRowContext(ctx, `
		SELECT id, uuid, name, class_id, date, last_modified_user, project_domain_id, device_server_id, "order"
		FROM DeviceInstance WHERE uuid = ?`, uuid).
		Scan(&i.ID, &i.UUID, &i.Name, &i.ClassID, &i.Date, &i.User, &i.DomainID, &i.DeviceServerID, &i.Order)
	i.Date = i.Date.UTC()
	return i, err
}

func (q *Queries) InsertDeviceInstance(ctx context.Context, i model.DeviceInstance) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO DeviceInstance (uuid, name, class_id, date, last_modified_user, project_domain_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		i.UUID, i.Name, i.ClassID, i.Date, i.User, i.DomainID)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateDeviceInstance(ctx context.Context, i model.DeviceInstance) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE DeviceInstance SET name = ?, class_id = ?, date = ?, last_modified_user = ?
		WHERE id = ?`,
		i.Name, i.ClassID, i.Date, i.User, i.ID)
	return err
}

// Device configs

const configColumns = `id, uuid, name, config_data, date, last_modified_user, project_domain_id, is_active, device_instance_id, "order"`

func scanConfig(s scanner) (model.DeviceConfig, error) {
	var c model.DeviceConfig
	err := s.Scan(&c.ID, &c.UUID, &c.Name, &c.ConfigData, &c.Date, &c.User, &c.DomainID, &c.IsActive, &c.DeviceInstanceID, &c.Order)
	c.Date = c.Date.UTC()
	return c, err
}

func (q *Queries) GetDeviceConfig(ctx context.Context, uuid string) (model.DeviceConfig, error) {
	return scanConfig(q.db.QueryRowContext(ctx, `SELECT `+configColumns+` FROM DeviceConfig WHERE uuid = ?`, uuid))
}

// ListConfigsByInstance returns the configs of instanceID in order.
func (q *Queries) ListConfigsByInstance(ctx context.Context, instanceID int64) ([]model.DeviceConfig, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+configColumns+` FROM DeviceConfig WHERE device_instance_id = ? ORDER BY "order", id`, instanceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []model.DeviceConfig
	for rows.Next() {
		c, err := scanConfig(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, c)
	}
	return items, rows.Err()
}

func (q *Queries) InsertDeviceConfig(ctx context.Context, c model.DeviceConfig) (int64, error) {
	res, err := q.db.ExecContext(ctx, `
		INSERT INTO DeviceConfig (uuid, name, config_data, date, last_modified_user, project_domain_id, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		c.UUID, c.Name, c.ConfigData, c.Date, c.User, c.DomainID, false)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (q *Queries) UpdateDeviceConfig(ctx context.Context, c model.DeviceConfig) error {
	_, err := q.db.ExecContext(ctx, `
		UPDATE DeviceConfig SET name = ?, config_data = ?, date = ?, last_modified_user = ?
		WHERE id = ?`,
		c.Name, c.ConfigData, c.Date, c.User, c.ID)
	return err
}

// SetActiveConfig makes activeID the only active config of instanceID.
func (q *Queries) SetActiveConfig(ctx context.Context, instanceID, activeID int64) error {
	_, err := q.db.ExecContext(ctx,
		`UPDATE DeviceConfig SET is_active = (id = ?) WHERE device_instance_id = ?`, activeID, instanceID)
	return err
}

// CountSiblingConfigsNamed counts the configs of instanceID other than
// excludeID that are called name.
func (q *Queries) CountSiblingConfigsNamed(ctx context.Context, instanceID, excludeID int64, name string) (int, error) {
	var n int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM DeviceConfig WHERE device_instance_id = ? AND name = ? AND id <> ?`,
		instanceID, name, excludeID).Scan(&n)
	return n, err
}

// Domain-wide reads

// itemRow is one listed item below a project of a domain.
type itemRow struct {
	UUID string
	Name string
	Date time.Time
}

// domainItemQueries select the items of each child type reachable from a
// project of a domain.
var domainItemQueries = map[model.ItemType]string{
	model.ItemScene: `
		SELECT c.uuid, c.name, c.date FROM Scene c
		JOIN Project p ON p.id = c.project_id
		WHERE p.project_domain_id = ?`,
	model.ItemMacro: `
		SELECT c.uuid, c.name, c.date FROM Macro c
		JOIN Project p ON p.id = c.project_id
		WHERE p.project_domain_id = ?`,
	model.ItemDeviceServer: `
		SELECT c.uuid, c.name, c.date FROM DeviceServer c
		JOIN Project p ON p.id = c.project_id
		WHERE p.project_domain_id = ?`,
	model.ItemDeviceInstance: `
		SELECT i.uuid, i.name, i.date FROM DeviceInstance i
		JOIN DeviceServer s ON s.id = i.device_server_id
		JOIN Project p ON p.id = s.project_id
		WHERE p.project_domain_id = ?`,
	model.ItemDeviceConfig: `
		SELECT c.uuid, c.name, c.date FROM DeviceConfig c
		JOIN DeviceInstance i ON i.id = c.device_instance_id
		JOIN DeviceServer s ON s.id = i.device_server_id
		JOIN Project p ON p.id = s.project_id
		WHERE p.project_domain_id = ?`,
}

func (q *Queries) ListDomainItems(ctx context.Context, t model.ItemType, domainID int64) ([]itemRow, error) {
	query, ok := domainItemQueries[t]
	if !ok {
		return nil, fmt.Errorf("no listing query for %s", t)
	}
	rows, err := q.db.QueryContext(ctx, query, domainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []itemRow
	for rows.Next() {
		var r itemRow
		if err := rows.Scan(&r.UUID, &r.Name, &r.Date); err != nil {
			return nil, err
		}
		r.Date = r.Date.UTC()
		items = append(items, r)
	}
	return items, rows.Err()
}

// deviceRow is a device instance together with its owning project.
type deviceRow struct {
	ID          int64
	UUID        string
	Name        string
	ClassID     string
	ProjectUUID string
	ProjectName string
	ProjectDate time.Time
}

// ListDomainDevices returns the device instances placed on servers of
// projects in the domain, optionally only the one with uuid. Names are
// matched by the caller so that case folding follows Go's Unicode rules
// on every dialect.
func (q *Queries) ListDomainDevices(ctx context.Context, domainID int64, uuid string) ([]deviceRow, error) {
	var b strings.Builder
	b.WriteString(`
		SELECT i.id, i.uuid, i.name, i.class_id, p.uuid, p.name, p.date
		FROM DeviceInstance i
		JOIN DeviceServer s ON s.id = i.device_server_id
		JOIN Project p ON p.id = s.project_id
		WHERE p.project_domain_id = ?`)
	args := []any{domainID}
	if uuid != "" {
		b.WriteString(` AND i.uuid = ?`)
		args = append(args, uuid)
	}
	b.WriteString(` ORDER BY i.name, i.uuid, p.uuid`)

	rows, err := q.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []deviceRow
	for rows.Next() {
		var r deviceRow
		if err := rows.Scan(&r.ID, &r.UUID, &r.Name, &r.ClassID, &r.ProjectUUID, &r.ProjectName, &r.ProjectDate); err != nil {
			return nil, err
		}
		r.ProjectDate = r.ProjectDate.UTC()
		items = append(items, r)
	}
	return items, rows.Err()
}

// projectChildRow is a macro or server together with its owning project.
type projectChildRow struct {
	UUID        string
	Name        string
	ProjectUUID string
	ProjectName string
	ProjectDate time.Time
}

// ListDomainChildren returns the children in table t of projects in the
// domain.
func (q *Queries) ListDomainChildren(ctx context.Context, t childTable, domainID int64) ([]projectChildRow, error) {
	query := fmt.Sprintf(`
		SELECT c.uuid, c.name, p.uuid, p.name, p.date
		FROM %s c
		JOIN Project p ON p.id = c.project_id
		WHERE p.project_domain_id = ?
		ORDER BY p.name, c.name, c.uuid`, t.name)
	rows, err := q.db.QueryContext(ctx, query, domainID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []projectChildRow
	for rows.Next() {
		var r projectChildRow
		if err := rows.Scan(&r.UUID, &r.Name, &r.ProjectUUID, &r.ProjectName, &r.ProjectDate); err != nil {
			return nil, err
		}
		r.ProjectDate = r.ProjectDate.UTC()
		items = append(items, r)
	}
	return items, rows.Err()
}
