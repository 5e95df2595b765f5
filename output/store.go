// Package output 把行程生命周期事件写入SQLite数据库
package output

import (
	"database/sql"
	"fmt"

	"github.com/mshenfield/abstreet/entity"

	_ "modernc.org/sqlite"
)

// Store 行程事件数据库
type Store struct {
	db *sql.DB
}

// Open 打开（或创建）数据库并建表
func Open(path string) (*Store, error) {
	dsn := path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(60000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// 只有runner一个写入方
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Infof("trip events -> %s", path)
	return s, nil
}

// Close 关闭数据库
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS trip_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		trip_id    INTEGER NOT NULL,
		kind       TEXT NOT NULL,
		t          REAL NOT NULL,
		leg        INTEGER NOT NULL,
		mode       TEXT NOT NULL,
		agent_kind TEXT NOT NULL,
		agent_id   INTEGER NOT NULL,
		reason     TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_trip_events_trip ON trip_events(trip_id, t);
	CREATE INDEX IF NOT EXISTS idx_trip_events_kind ON trip_events(kind);
	`
	_, err := s.db.Exec(schema)
	return err
}

func agentKind(a entity.AgentID) string {
	if a.Kind == entity.AgentKindCar {
		return "car"
	}
	return "ped"
}

// RecordTripEvents 在一个事务中写入一批事件
func (s *Store) RecordTripEvents(events []entity.TripEvent) error {
	if len(events) == 0 {
		return nil
	}
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	stmt, err := tx.Prepare(
		`INSERT INTO trip_events (trip_id, kind, t, leg, mode, agent_kind, agent_id, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()
	for _, e := range events {
		var reason any
		if e.Reason != "" {
			reason = e.Reason
		}
		if _, err := stmt.Exec(
			int32(e.Trip), e.Kind.String(), e.Time, e.Leg, e.Mode.String(), agentKind(e.Agent), e.Agent.ID, reason,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %v of trip %d: %w", e.Kind, e.Trip, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CountByKind 各类事件的数量
func (s *Store) CountByKind() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT kind, COUNT(*) FROM trip_events GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("count: %w", err)
	}
	defer rows.Close()
	out := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		out[kind] = n
	}
	return out, rows.Err()
}

// TripHistory 单个行程的事件，按写入顺序
func (s *Store) TripHistory(id entity.TripID) ([]entity.TripEvent, error) {
	rows, err := s.db.Query(
		`SELECT kind, t, leg, mode, agent_kind, agent_id, COALESCE(reason, '')
		 FROM trip_events WHERE trip_id = ? ORDER BY id`, int32(id),
	)
	if err != nil {
		return nil, fmt.Errorf("query trip %d: %w", id, err)
	}
	defer rows.Close()
	out := make([]entity.TripEvent, 0)
	for rows.Next() {
		var kind, mode, ak string
		var agentID int32
		e := entity.TripEvent{Trip: id}
		if err := rows.Scan(&kind, &e.Time, &e.Leg, &mode, &ak, &agentID, &e.Reason); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		if e.Kind, err = parseTripEventKind(kind); err != nil {
			return nil, err
		}
		if mode == entity.LegDrive.String() {
			e.Mode = entity.LegDrive
		}
		if ak == "car" {
			e.Agent = entity.CarAgent(entity.CarID(agentID))
		} else {
			e.Agent = entity.PedAgent(entity.PedestrianID(agentID))
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func parseTripEventKind(s string) (entity.TripEventKind, error) {
	for k := entity.TripEventStarted; k <= entity.TripEventAborted; k++ {
		if k.String() == s {
			return k, nil
		}
	}
	return 0, fmt.Errorf("bad trip event kind %q", s)
}
