// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package store persists observations to SQLite and serves the history,
// search, and stats queries behind the HTTP API.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"grimm.is/dhcpscry/internal/dhcp"
	"grimm.is/dhcpscry/internal/metrics"
	"grimm.is/dhcpscry/internal/pipeline"
)

// Store handles persistence of observations to SQLite.
type Store struct {
	db *sql.DB
}

// Open opens or creates the observation database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open observation db: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS observations (
		id TEXT PRIMARY KEY,
		ts INTEGER NOT NULL, -- Unix timestamp
		source_ip TEXT,
		source_port INTEGER,
		mac TEXT,
		message_type TEXT,
		xid INTEGER,
		client_ip TEXT,
		hostname TEXT,
		fqdn TEXT,
		vendor_class TEXT,
		fingerprint TEXT,
		options TEXT, -- JSON-encoded wire options
		os_name TEXT,
		device_class TEXT,
		vendor TEXT,
		confidence REAL,
		method TEXT,
		smb_dialect TEXT,
		smb_build INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_observations_ts ON observations(ts);
	CREATE INDEX IF NOT EXISTS idx_observations_mac ON observations(mac);
	CREATE INDEX IF NOT EXISTS idx_observations_os ON observations(os_name);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record implements pipeline.Sink.
func (s *Store) Record(obs *pipeline.Observation) error {
	return s.Insert(obs)
}

// Insert persists one observation.
func (s *Store) Insert(obs *pipeline.Observation) error {
	options, err := json.Marshal(obs.Options)
	if err != nil {
		return fmt.Errorf("failed to encode options: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO observations (
			id, ts, source_ip, source_port, mac, message_type, xid,
			client_ip, hostname, fqdn, vendor_class, fingerprint, options,
			os_name, device_class, vendor, confidence, method,
			smb_dialect, smb_build
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		obs.ID, obs.Timestamp.Unix(), obs.SourceIP, obs.SourcePort,
		obs.MAC, obs.MessageType, obs.XID,
		obs.ClientIP, obs.Hostname, obs.FQDN, obs.VendorClass,
		obs.Fingerprint, string(options),
		obs.OSName, obs.DeviceClass, obs.Vendor, obs.Confidence, obs.Method,
		obs.SMBDialect, obs.SMBBuild,
	)
	if err != nil {
		return err
	}
	metrics.ObservationsStored.Inc()
	return nil
}

// Filter narrows Query and Count. Zero values mean no constraint; a zero
// Limit falls back to 100.
type Filter struct {
	MAC    string
	OSName string
	Method string
	From   time.Time
	To     time.Time
	Limit  int
	Offset int
}

func (f Filter) where() (string, []interface{}) {
	clause := " WHERE 1=1"
	var args []interface{}
	if f.MAC != "" {
		clause += " AND mac = ?"
		args = append(args, f.MAC)
	}
	if f.OSName != "" {
		clause += " AND os_name = ?"
		args = append(args, f.OSName)
	}
	if f.Method != "" {
		clause += " AND method = ?"
		args = append(args, f.Method)
	}
	if !f.From.IsZero() {
		clause += " AND ts >= ?"
		args = append(args, f.From.Unix())
	}
	if !f.To.IsZero() {
		clause += " AND ts <= ?"
		args = append(args, f.To.Unix())
	}
	return clause, args
}

const selectColumns = `
	SELECT id, ts, source_ip, source_port, mac, message_type, xid,
		client_ip, hostname, fqdn, vendor_class, fingerprint, options,
		os_name, device_class, vendor, confidence, method,
		smb_dialect, smb_build
	FROM observations`

// Query returns observations matching the filter, newest first.
func (s *Store) Query(f Filter) ([]*pipeline.Observation, error) {
	clause, args := f.where()
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	query := selectColumns + clause + " ORDER BY ts DESC, id LIMIT ? OFFSET ?"
	args = append(args, limit, f.Offset)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}

// Count returns how many observations match the filter.
func (s *Store) Count(f Filter) (int64, error) {
	clause, args := f.where()
	var n int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM observations"+clause, args...).Scan(&n)
	return n, err
}

// Search matches the term as a substring of hostname, MAC, or OS name,
// newest first.
func (s *Store) Search(term string, limit int) ([]*pipeline.Observation, error) {
	if limit <= 0 {
		limit = 100
	}
	pattern := "%" + term + "%"
	query := selectColumns + `
		WHERE hostname LIKE ? OR mac LIKE ? OR os_name LIKE ?
		ORDER BY ts DESC, id LIMIT ?`

	rows, err := s.db.Query(query, pattern, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanObservations(rows)
}

// OSBreakdown is one row of the stats aggregation.
type OSBreakdown struct {
	OSName string `json:"os_name"`
	Count  int64  `json:"count"`
}

// CountByOS aggregates observations per detected OS, largest first.
func (s *Store) CountByOS() ([]OSBreakdown, error) {
	rows, err := s.db.Query(`
		SELECT os_name, COUNT(*) FROM observations
		GROUP BY os_name ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []OSBreakdown
	for rows.Next() {
		var b OSBreakdown
		if err := rows.Scan(&b.OSName, &b.Count); err != nil {
			return nil, err
		}
		result = append(result, b)
	}
	return result, rows.Err()
}

// CountByMethod aggregates observations per detection method.
func (s *Store) CountByMethod() (map[string]int64, error) {
	rows, err := s.db.Query("SELECT method, COUNT(*) FROM observations GROUP BY method")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make(map[string]int64)
	for rows.Next() {
		var method string
		var n int64
		if err := rows.Scan(&method, &n); err != nil {
			return nil, err
		}
		result[method] = n
	}
	return result, rows.Err()
}

// Cleanup removes observations older than the retention period and reports
// how many rows were deleted.
func (s *Store) Cleanup(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	result, err := s.db.Exec("DELETE FROM observations WHERE ts < ?", cutoff)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanObservations(rows *sql.Rows) ([]*pipeline.Observation, error) {
	var result []*pipeline.Observation
	for rows.Next() {
		var obs pipeline.Observation
		var ts int64
		var options string
		err := rows.Scan(
			&obs.ID, &ts, &obs.SourceIP, &obs.SourcePort,
			&obs.MAC, &obs.MessageType, &obs.XID,
			&obs.ClientIP, &obs.Hostname, &obs.FQDN, &obs.VendorClass,
			&obs.Fingerprint, &options,
			&obs.OSName, &obs.DeviceClass, &obs.Vendor, &obs.Confidence, &obs.Method,
			&obs.SMBDialect, &obs.SMBBuild,
		)
		if err != nil {
			return nil, err
		}
		obs.Timestamp = time.Unix(ts, 0).UTC()
		if options != "" && options != "null" {
			var opts []dhcp.Option
			if err := json.Unmarshal([]byte(options), &opts); err == nil {
				obs.Options = opts
			}
		}
		result = append(result, &obs)
	}
	return result, rows.Err()
}
