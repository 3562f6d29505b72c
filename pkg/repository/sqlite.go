package repository

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/quakead/pkg/model"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS earthquake_events (
	id INTEGER PRIMARY KEY,
	time TEXT NOT NULL,
	latitude REAL NOT NULL,
	longitude REAL NOT NULL,
	depth REAL,
	magnitude REAL NOT NULL,
	mag_type TEXT,
	place TEXT,
	network TEXT,
	event_id TEXT UNIQUE,
	updated TEXT,
	status TEXT
);

CREATE TABLE IF NOT EXISTS demographics (
	id INTEGER PRIMARY KEY,
	person_id TEXT UNIQUE NOT NULL,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL,
	email TEXT UNIQUE,
	phone TEXT,
	address TEXT,
	city TEXT,
	state TEXT,
	zip_code TEXT,
	latitude REAL,
	longitude REAL,
	house_value REAL,
	has_insurance BOOLEAN,
	income_level TEXT,
	age_group TEXT,
	created_at TEXT DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS campaigns (
	id TEXT PRIMARY KEY,
	target TEXT NOT NULL,
	person_id TEXT,
	event_id TEXT,
	risk_level TEXT,
	subject TEXT NOT NULL,
	body TEXT NOT NULL,
	created_at TEXT NOT NULL
);`

// SQLite is the default DataStore and CampaignStore.
type SQLite struct {
	db *sql.DB
}

var (
	_ DataStore     = (*SQLite)(nil)
	_ CampaignStore = (*SQLite)(nil)
)

// NewSQLite opens (or creates) the database at path and applies the schema.
func NewSQLite(path string) (*SQLite, error) {
	if strings.TrimSpace(path) == "" {
		return nil, goerr.New("sqlite path is required")
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, goerr.Wrap(err, "failed to create database directory", goerr.V("dir", dir))
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open sqlite", goerr.V("path", path))
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to set WAL mode", goerr.V("path", path))
	}

	if _, err := db.Exec(sqliteSchema); err != nil {
		_ = db.Close()
		return nil, goerr.Wrap(err, "failed to create schema", goerr.V("path", path))
	}

	return &SQLite{db: db}, nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) PutEvents(ctx context.Context, events []*model.SeismicEvent) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO earthquake_events
	(time, latitude, longitude, depth, magnitude, mag_type, place, network, event_id, updated, status)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(event_id) DO UPDATE SET
	time = excluded.time,
	latitude = excluded.latitude,
	longitude = excluded.longitude,
	depth = excluded.depth,
	magnitude = excluded.magnitude,
	mag_type = excluded.mag_type,
	place = excluded.place,
	network = excluded.network,
	updated = excluded.updated,
	status = excluded.status`)
	if err != nil {
		return goerr.Wrap(err, "failed to prepare event insert")
	}
	defer stmt.Close()

	for _, e := range events {
		if err := e.Validate(); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			formatTime(e.Time), e.Latitude, e.Longitude, e.Depth, e.Magnitude,
			e.MagType, e.Place, e.Network, string(e.EventID), formatTime(e.Updated), e.Status,
		); err != nil {
			return goerr.Wrap(err, "failed to insert event", goerr.V("event_id", e.EventID))
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit events")
	}
	return nil
}

func (s *SQLite) PutHouseholds(ctx context.Context, households []*model.Household) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return goerr.Wrap(err, "failed to begin transaction")
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO demographics
	(person_id, first_name, last_name, email, phone, address, city, state, zip_code,
	 latitude, longitude, house_value, has_insurance, income_level, age_group)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(person_id) DO UPDATE SET
	first_name = excluded.first_name,
	last_name = excluded.last_name,
	email = excluded.email,
	phone = excluded.phone,
	address = excluded.address,
	city = excluded.city,
	state = excluded.state,
	zip_code = excluded.zip_code,
	latitude = excluded.latitude,
	longitude = excluded.longitude,
	house_value = excluded.house_value,
	has_insurance = excluded.has_insurance,
	income_level = excluded.income_level,
	age_group = excluded.age_group`)
	if err != nil {
		return goerr.Wrap(err, "failed to prepare household insert")
	}
	defer stmt.Close()

	for _, h := range households {
		if err := h.Validate(); err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			string(h.PersonID), h.FirstName, h.LastName, h.Email, h.Phone, h.Address,
			h.City, h.State, h.ZipCode, h.Latitude, h.Longitude, h.HouseValue,
			h.HasInsurance, h.IncomeLevel, h.AgeGroup,
		); err != nil {
			return goerr.Wrap(err, "failed to insert household", goerr.V("person_id", h.PersonID))
		}
	}

	if err := tx.Commit(); err != nil {
		return goerr.Wrap(err, "failed to commit households")
	}
	return nil
}

func (s *SQLite) ListEvents(ctx context.Context) ([]*model.SeismicEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT event_id, time, latitude, longitude, COALESCE(depth, 0), magnitude,
	COALESCE(mag_type, ''), COALESCE(place, ''), COALESCE(network, ''),
	COALESCE(updated, ''), COALESCE(status, '')
FROM earthquake_events
ORDER BY time DESC, event_id ASC`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query events")
	}
	defer rows.Close()

	var events []*model.SeismicEvent
	for rows.Next() {
		var (
			e               model.SeismicEvent
			id              string
			evTime, updated string
		)
		if err := rows.Scan(&id, &evTime, &e.Latitude, &e.Longitude, &e.Depth, &e.Magnitude,
			&e.MagType, &e.Place, &e.Network, &updated, &e.Status); err != nil {
			return nil, goerr.Wrap(err, "failed to scan event")
		}
		e.EventID = model.EventID(id)
		if e.Time, err = parseTime(evTime); err != nil {
			return nil, goerr.Wrap(err, "invalid event time", goerr.V("event_id", id))
		}
		if e.Updated, err = parseTime(updated); err != nil {
			return nil, goerr.Wrap(err, "invalid event update time", goerr.V("event_id", id))
		}
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate events")
	}

	return events, nil
}

func (s *SQLite) ListHouseholds(ctx context.Context) ([]*model.Household, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT person_id, first_name, last_name, COALESCE(email, ''), COALESCE(phone, ''),
	COALESCE(address, ''), COALESCE(city, ''), COALESCE(state, ''), COALESCE(zip_code, ''),
	COALESCE(latitude, 0), COALESCE(longitude, 0), COALESCE(house_value, 0),
	COALESCE(has_insurance, 0), COALESCE(income_level, ''), COALESCE(age_group, '')
FROM demographics
ORDER BY person_id ASC`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query households")
	}
	defer rows.Close()

	var households []*model.Household
	for rows.Next() {
		var (
			h  model.Household
			id string
		)
		if err := rows.Scan(&id, &h.FirstName, &h.LastName, &h.Email, &h.Phone,
			&h.Address, &h.City, &h.State, &h.ZipCode,
			&h.Latitude, &h.Longitude, &h.HouseValue,
			&h.HasInsurance, &h.IncomeLevel, &h.AgeGroup); err != nil {
			return nil, goerr.Wrap(err, "failed to scan household")
		}
		h.PersonID = model.PersonID(id)
		households = append(households, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate households")
	}

	return households, nil
}

func (s *SQLite) PutCampaign(ctx context.Context, c *model.Campaign) error {
	if c.ID == "" {
		return goerr.New("campaign id is empty")
	}
	if _, err := s.db.ExecContext(ctx, `
INSERT OR REPLACE INTO campaigns (id, target, person_id, event_id, risk_level, subject, body, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(c.ID), c.TargetName, string(c.PersonID), string(c.EventID), string(c.RiskLevel),
		c.Subject, c.Body, formatTime(c.CreatedAt),
	); err != nil {
		return goerr.Wrap(err, "failed to put campaign", goerr.V("campaign_id", c.ID))
	}
	return nil
}

func (s *SQLite) GetCampaign(ctx context.Context, id model.CampaignID) (*model.Campaign, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT target, COALESCE(person_id, ''), COALESCE(event_id, ''), COALESCE(risk_level, ''),
	subject, body, created_at
FROM campaigns
WHERE id = ?`, string(id))

	var (
		c                       model.Campaign
		personID, eventID, risk string
		createdAt               string
	)
	if err := row.Scan(&c.TargetName, &personID, &eventID, &risk, &c.Subject, &c.Body, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(ErrNotFound, "campaign not found", goerr.V("campaign_id", id))
		}
		return nil, goerr.Wrap(err, "failed to get campaign", goerr.V("campaign_id", id))
	}

	c.ID = id
	c.PersonID = model.PersonID(personID)
	c.EventID = model.EventID(eventID)
	c.RiskLevel = model.RiskLevel(risk)
	var err error
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, goerr.Wrap(err, "invalid campaign time", goerr.V("campaign_id", id))
	}
	return &c, nil
}

func (s *SQLite) ListCampaigns(ctx context.Context, offset, limit int) ([]*model.Campaign, error) {
	if limit <= 0 {
		limit = -1 // no limit in SQLite
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT id, target, COALESCE(person_id, ''), COALESCE(event_id, ''), COALESCE(risk_level, ''),
	subject, body, created_at
FROM campaigns
ORDER BY created_at DESC, id ASC
LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query campaigns")
	}
	defer rows.Close()

	var campaigns []*model.Campaign
	for rows.Next() {
		var (
			c                           model.Campaign
			id, personID, eventID, risk string
			createdAt                   string
		)
		if err := rows.Scan(&id, &c.TargetName, &personID, &eventID, &risk,
			&c.Subject, &c.Body, &createdAt); err != nil {
			return nil, goerr.Wrap(err, "failed to scan campaign")
		}
		c.ID = model.CampaignID(id)
		c.PersonID = model.PersonID(personID)
		c.EventID = model.EventID(eventID)
		c.RiskLevel = model.RiskLevel(risk)
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, goerr.Wrap(err, "invalid campaign time", goerr.V("campaign_id", id))
		}
		campaigns = append(campaigns, &c)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate campaigns")
	}

	return campaigns, nil
}

func (s *SQLite) DeleteCampaigns(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM campaigns`); err != nil {
		return goerr.Wrap(err, "failed to delete campaigns")
	}
	return nil
}

// timeLayout is fixed width so that ORDER BY on the text column is chronological.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, goerr.Wrap(err, "failed to parse time", goerr.V("value", s))
	}
	return t, nil
}
