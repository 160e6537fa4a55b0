package sqlstore

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/cloudhands/burst/pkg/fsm"
	"github.com/cloudhands/burst/pkg/model"
	"github.com/cloudhands/burst/pkg/store"
	"github.com/doug-martin/goqu/v9"

	_ "modernc.org/sqlite"
)

var dialect = goqu.Dialect("sqlite3")

// Store is the modernc.org/sqlite-backed implementation of store.Store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the sqlite database at dsn and applies
// the embedded schema. dsn may be a file path or "file::memory:?cache=shared"
// for an ephemeral, test-scoped database.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // single writer, single active instance (see Non-goals)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlstore: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// stateID returns the id of (fsmName, stateName), creating the row the
// first time it is seen. The states table is the closed-set vocabulary
// described in the data model; rows are created lazily here but the set of
// names ever inserted is bounded by fsm.Registry, which every caller
// validates against before reaching this point.
func stateID(execer interface {
	Exec(query string, args ...any) (sql.Result, error)
	QueryRow(query string, args ...any) *sql.Row
}, fsmName fsm.Name, name string) (int64, error) {
	var id int64
	err := execer.QueryRow(`SELECT id FROM states WHERE fsm = ? AND name = ?`, string(fsmName), name).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, err
	}
	res, err := execer.Exec(`INSERT INTO states (fsm, name) VALUES (?, ?)`, string(fsmName), name)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func scanArtifact(row interface {
	Scan(dest ...any) error
}) (model.Artifact, error) {
	var a model.Artifact
	var role sql.NullString
	var ccName, labelName, labelDesc sql.NullString
	var ccNAT sql.NullBool
	err := row.Scan(&a.ID, &a.UUID, &a.Kind, &a.ModelVersion, &a.OrganisationID,
		&role, &ccName, &ccNAT, &labelName, &labelDesc)
	if err != nil {
		return model.Artifact{}, err
	}
	if role.Valid {
		a.Role = model.Role(role.String)
	}
	if ccName.Valid {
		a.CatalogueChoice = &model.CatalogueChoice{Name: ccName.String, NATRouted: ccNAT.Bool}
	}
	if labelName.Valid {
		a.Label = &model.Label{Name: labelName.String, Description: labelDesc.String}
	}
	return a, nil
}

const artifactColumns = `id, uuid, kind, model_version, organisation_id, role, catalogue_choice_name, catalogue_choice_natrouted, label_name, label_description`

// ArtifactsInState implements the query behind every agent's Jobs() method:
// artifacts of one kind whose latest Touch is in one state. The subquery
// picks, per artifact, the single most recent touch (highest (at, id));
// this is the one query in the store that is clearer written directly in
// SQL than through goqu's builder.
func (s *Store) ArtifactsInState(kind model.Kind, state string) ([]model.Artifact, error) {
	const q = `
		SELECT ` + artifactColumns + ` FROM artifacts a
		WHERE a.kind = ?
		AND (
			SELECT st.name FROM touches t
			JOIN states st ON st.id = t.state_id
			WHERE t.artifact_id = a.id
			ORDER BY t.at DESC, t.id DESC
			LIMIT 1
		) = ?
		ORDER BY a.id`
	rows, err := s.db.Query(q, string(kind), state)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Artifact
	for rows.Next() {
		a, err := scanArtifact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) Artifact(uuid string) (model.Artifact, error) {
	row := s.db.QueryRow(`SELECT `+artifactColumns+` FROM artifacts WHERE uuid = ?`, uuid)
	return scanArtifact(row)
}

func (s *Store) ArtifactByID(id int64) (model.Artifact, error) {
	row := s.db.QueryRow(`SELECT `+artifactColumns+` FROM artifacts WHERE id = ?`, id)
	return scanArtifact(row)
}

func scanTouch(row interface{ Scan(dest ...any) error }) (model.Touch, error) {
	var t model.Touch
	var actorKind string
	var at string
	var stateID int64
	var fsmName, stateName string
	err := row.Scan(&t.ID, &t.ArtifactID, &actorKind, &t.Actor.ID, &stateID, &fsmName, &stateName, &at)
	if err != nil {
		return model.Touch{}, err
	}
	t.Actor.Kind = model.ActorKind(actorKind)
	t.State = model.State{ID: stateID, FSM: fsmName, Name: stateName}
	parsed, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return model.Touch{}, fmt.Errorf("sqlstore: parse touch timestamp %q: %w", at, err)
	}
	t.At = parsed
	return t, nil
}

const touchSelect = `
	SELECT t.id, t.artifact_id, t.actor_kind, t.actor_id, t.state_id, st.fsm, st.name, t.at
	FROM touches t JOIN states st ON st.id = t.state_id`

func (s *Store) Touches(artifactID int64) ([]model.Touch, error) {
	rows, err := s.db.Query(touchSelect+` WHERE t.artifact_id = ? ORDER BY t.at ASC, t.id ASC`, artifactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Touch
	for rows.Next() {
		t, err := scanTouch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) LatestTouch(artifactID int64) (model.Touch, error) {
	row := s.db.QueryRow(touchSelect+` WHERE t.artifact_id = ? ORDER BY t.at DESC, t.id DESC LIMIT 1`, artifactID)
	return scanTouch(row)
}

func scanResource(row interface{ Scan(dest ...any) error }) (model.Resource, error) {
	var r model.Resource
	var providerID sql.NullInt64
	var uri, value, ipInt, ipExt, tokenKey, tokenValue, creation, power, health sql.NullString
	err := row.Scan(&r.ID, &r.TouchID, &r.Kind, &providerID, &uri, &value, &ipInt, &ipExt,
		&tokenKey, &tokenValue, &creation, &power, &health)
	if err != nil {
		return model.Resource{}, err
	}
	r.ProviderID = providerID.Int64
	r.URI = uri.String
	r.Value = value.String
	r.IPInt = ipInt.String
	r.IPExt = ipExt.String
	r.TokenKey = tokenKey.String
	r.TokenValue = tokenValue.String
	r.Creation = creation.String
	r.Power = power.String
	r.Health = health.String
	return r, nil
}

const resourceColumns = `id, touch_id, kind, provider_id, uri, value, ip_int, ip_ext, token_key, token_value, creation, power, health`

func (s *Store) Resources(touchID int64) ([]model.Resource, error) {
	rows, err := s.db.Query(`SELECT `+resourceColumns+` FROM resources WHERE touch_id = ? ORDER BY id`, touchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) ArtifactResources(artifactID int64) ([]model.Resource, error) {
	const q = `
		SELECT ` + resourcePrefixed("r") + `
		FROM resources r
		JOIN touches t ON t.id = r.touch_id
		WHERE t.artifact_id = ?
		ORDER BY t.at ASC, t.id ASC, r.id ASC`
	rows, err := s.db.Query(q, artifactID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func resourcePrefixed(alias string) string {
	cols := []string{"id", "touch_id", "kind", "provider_id", "uri", "value", "ip_int", "ip_ext", "token_key", "token_value", "creation", "power", "health"}
	out := ""
	for i, c := range cols {
		if i > 0 {
			out += ", "
		}
		out += alias + "." + c
	}
	return out
}

func (s *Store) Organisation(id int64) (model.Organisation, error) {
	var o model.Organisation
	err := s.db.QueryRow(`SELECT id, name FROM organisations WHERE id = ?`, id).Scan(&o.ID, &o.Name)
	return o, err
}

func (s *Store) Provider(id int64) (model.Provider, error) {
	return scanProvider(s.db.QueryRow(providerSelect+` WHERE id = ?`, id))
}

func (s *Store) ProviderByName(name string) (model.Provider, error) {
	return scanProvider(s.db.QueryRow(providerSelect+` WHERE name = ?`, name))
}

const providerSelect = `SELECT id, name, host, port, verify_ssl, api_version, org_name, vdc_name, catalogue_name, gateway_name, gateway_interface, libcloud_id, pipe_path FROM providers`

func scanProvider(row interface{ Scan(dest ...any) error }) (model.Provider, error) {
	var p model.Provider
	var verifySSL int
	err := row.Scan(&p.ID, &p.Name, &p.Host, &p.Port, &verifySSL, &p.APIVersion,
		&p.OrgName, &p.VDCName, &p.CatalogueName, &p.GatewayName, &p.GatewayInterface,
		&p.LibcloudID, &p.PipePath)
	p.VerifySSL = verifySSL != 0
	return p, err
}

func (s *Store) Component(handle string) (model.Component, error) {
	var c model.Component
	err := s.db.QueryRow(`SELECT id, handle FROM components WHERE handle = ?`, handle).Scan(&c.ID, &c.Handle)
	return c, err
}

func (s *Store) SubscriptionFor(organisationID int64) (model.Subscription, error) {
	var sub model.Subscription
	err := s.db.QueryRow(
		`SELECT id, artifact_id, organisation_id, provider_id FROM subscriptions WHERE organisation_id = ?`,
		organisationID).Scan(&sub.ID, &sub.ArtifactID, &sub.OrganisationID, &sub.ProviderID)
	return sub, err
}

// ProviderTokensFor uses goqu to build the (provider, actor) filter and the
// descending time order the token-currency rule relies on.
func (s *Store) ProviderTokensFor(providerID, actorID int64) ([]store.ProviderTokenRecord, error) {
	ds := dialect.From(goqu.T("resources").As("r")).
		Join(goqu.T("touches").As("t"), goqu.On(goqu.Ex{"t.id": goqu.I("r.touch_id")})).
		Select(
			goqu.I("r.id"), goqu.I("r.touch_id"), goqu.I("r.kind"), goqu.I("r.provider_id"),
			goqu.I("r.token_key"), goqu.I("r.token_value"), goqu.I("t.at"), goqu.I("t.actor_id"),
		).
		Where(
			goqu.Ex{"r.kind": string(model.ResourceProviderToken)},
			goqu.Ex{"r.provider_id": providerID},
			goqu.Ex{"t.actor_id": actorID},
		).
		Order(goqu.I("t.at").Desc(), goqu.I("t.id").Desc())

	sqlStr, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: build token query: %w", err)
	}
	rows, err := s.db.Query(sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.ProviderTokenRecord
	for rows.Next() {
		var rec store.ProviderTokenRecord
		var providerID sql.NullInt64
		var at string
		if err := rows.Scan(&rec.Resource.ID, &rec.Resource.TouchID, &rec.Resource.Kind, &providerID,
			&rec.Resource.TokenKey, &rec.Resource.TokenValue, &at, &rec.ActorID); err != nil {
			return nil, err
		}
		rec.Resource.ProviderID = providerID.Int64
		parsed, err := time.Parse(time.RFC3339Nano, at)
		if err != nil {
			return nil, fmt.Errorf("sqlstore: parse token timestamp %q: %w", at, err)
		}
		rec.At = parsed
		out = append(out, rec)
	}
	return out, rows.Err()
}

// NATRoutingsFor uses goqu for the same reason: a straightforward
// kind+provider filter with no correlated subquery.
func (s *Store) NATRoutingsFor(providerID int64) ([]model.Resource, error) {
	ds := dialect.From("resources").
		Select(goqu.C("id"), goqu.C("touch_id"), goqu.C("kind"), goqu.C("provider_id"), goqu.C("ip_int"), goqu.C("ip_ext")).
		Where(goqu.Ex{"kind": string(model.ResourceNATRouting), "provider_id": providerID})

	sqlStr, args, err := ds.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("sqlstore: build nat routing query: %w", err)
	}
	rows, err := s.db.Query(sqlStr, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		var r model.Resource
		var providerID sql.NullInt64
		var ipInt, ipExt sql.NullString
		if err := rows.Scan(&r.ID, &r.TouchID, &r.Kind, &providerID, &ipInt, &ipExt); err != nil {
			return nil, err
		}
		r.ProviderID = providerID.Int64
		r.IPInt = ipInt.String
		r.IPExt = ipExt.String
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *Store) IPPoolFor(subscriptionArtifactID int64) ([]model.Resource, error) {
	const q = `
		SELECT ` + resourcePrefixed("r") + `
		FROM resources r
		JOIN touches t ON t.id = r.touch_id
		WHERE t.artifact_id = ? AND r.kind = ?
		ORDER BY r.id`
	rows, err := s.db.Query(q, subscriptionArtifactID, string(model.ResourceIPAddress))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Resource
	for rows.Next() {
		r, err := scanResource(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Begin starts a write transaction.
func (s *Store) Begin() (store.Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, err
	}
	return &sqlTx{tx: tx}, nil
}

type sqlTx struct {
	tx *sql.Tx
}

func (t *sqlTx) AppendTouch(artifactID int64, actor model.Actor, stateName string, at time.Time, resources []model.Resource) (model.Touch, error) {
	artifactRow := t.tx.QueryRow(`SELECT kind FROM artifacts WHERE id = ?`, artifactID)
	var kindStr string
	if err := artifactRow.Scan(&kindStr); err != nil {
		return model.Touch{}, fmt.Errorf("sqlstore: look up artifact %d: %w", artifactID, err)
	}
	fsmName := fsm.NameFor(model.Kind(kindStr))

	sid, err := stateID(t.tx, fsmName, stateName)
	if err != nil {
		return model.Touch{}, fmt.Errorf("sqlstore: resolve state %s/%s: %w", fsmName, stateName, err)
	}

	res, err := t.tx.Exec(
		`INSERT INTO touches (artifact_id, actor_kind, actor_id, state_id, at) VALUES (?, ?, ?, ?, ?)`,
		artifactID, string(actor.Kind), actor.ID, sid, at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return model.Touch{}, fmt.Errorf("sqlstore: insert touch: %w", err)
	}
	touchID, err := res.LastInsertId()
	if err != nil {
		return model.Touch{}, err
	}

	for _, r := range resources {
		if err := insertResource(t.tx, touchID, r); err != nil {
			return model.Touch{}, fmt.Errorf("sqlstore: insert resource: %w", err)
		}
	}

	return model.Touch{
		ID:         touchID,
		ArtifactID: artifactID,
		Actor:      actor,
		State:      model.State{ID: sid, FSM: string(fsmName), Name: stateName},
		At:         at,
	}, nil
}

func insertResource(tx *sql.Tx, touchID int64, r model.Resource) error {
	var providerID any
	if r.ProviderID != 0 {
		providerID = r.ProviderID
	}
	_, err := tx.Exec(
		`INSERT INTO resources (touch_id, kind, provider_id, uri, value, ip_int, ip_ext, token_key, token_value, creation, power, health)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		touchID, string(r.Kind), providerID, nullIfEmpty(r.URI), nullIfEmpty(r.Value),
		nullIfEmpty(r.IPInt), nullIfEmpty(r.IPExt), nullIfEmpty(r.TokenKey), nullIfEmpty(r.TokenValue),
		nullIfEmpty(r.Creation), nullIfEmpty(r.Power), nullIfEmpty(r.Health))
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

var _ store.Store = (*Store)(nil)

// ExecForTest runs a raw statement against the underlying database and
// returns its LastInsertId. It exists only to let _test.go files in this
// package's external test package seed rows (organisations, providers,
// artifacts) that the Store interface deliberately has no write method for
// — those rows are owned by the CLI's seed path, not the reconciliation
// engine.
func ExecForTest(s *Store, query string, args ...any) (int64, error) {
	res, err := s.db.Exec(query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}
