// Package graphstore persists the symbol graph in sqlite so scans survive
// process restarts. It implements the same store contract as the in-memory
// store and can be swapped in through configuration.
package graphstore

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"symgraph/internal/engine/address"
	"symgraph/internal/engine/graph"
)

const (
	driverName  = "sqlite"
	maxAttempts = 5
)

// Store is the sqlite-backed graph store. One connection, serialized writes;
// WAL keeps readers unblocked during watch-mode churn.
type Store struct {
	path string
	db   *sql.DB

	mu        sync.Mutex
	listeners []func(graph.Edge)
}

var _ graph.Store = (*Store)(nil)
var _ graph.BatchWriter = (*Store)(nil)
var _ graph.ChangeNotifier = (*Store)(nil)

func Open(path string) (*Store, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("graph store path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("graph store path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create graph store directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(2000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)", cleanPath)
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite graph store %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite graph store %q: %w", cleanPath, err)
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize sqlite schema %q: %w", cleanPath, err)
	}

	return &Store{path: cleanPath, db: db}, nil
}

func (s *Store) Path() string {
	if s == nil {
		return ""
	}
	return s.path
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) GetNode(addr string) (*graph.Node, error) {
	row := s.db.QueryRow(
		`SELECT address, project, file_path, kind, name, metadata FROM nodes WHERE address = ?`, addr)
	node, err := scanNode(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}
	return node, nil
}

func (s *Store) PutNode(node graph.Node) error {
	meta, err := encodeMetadata(node.Metadata)
	if err != nil {
		return err
	}
	return s.withRetry("put node", func() error {
		_, err := s.db.Exec(`
INSERT INTO nodes (address, project, file_path, kind, name, metadata)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(address) DO UPDATE SET
  project=excluded.project,
  file_path=excluded.file_path,
  kind=excluded.kind,
  name=excluded.name,
  metadata=excluded.metadata
`, node.Address, node.Project, node.FilePath, string(node.Kind), node.Name, meta)
		return err
	})
}

func (s *Store) GetEdges(addr string, edgeType graph.EdgeType, dir graph.Direction) ([]graph.Edge, error) {
	col := "from_addr"
	if dir == graph.DirIn {
		col = "to_addr"
	}

	query := `SELECT from_addr, to_addr, edge_type, derived_by, depth, metadata FROM edges WHERE ` + col + ` = ?`
	args := []any{addr}
	if edgeType != "" {
		query += ` AND edge_type = ?`
		args = append(args, string(edgeType))
	}
	query += ` ORDER BY edge_type ASC, from_addr ASC, to_addr ASC, derived_by ASC`

	var rows *sql.Rows
	err := s.withRetry("get edges", func() error {
		var qErr error
		rows, qErr = s.db.Query(query, args...)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var edges []graph.Edge
	for rows.Next() {
		var e graph.Edge
		var edgeTypeRaw, metaRaw string
		if err := rows.Scan(&e.From, &e.To, &edgeTypeRaw, &e.DerivedBy, &e.Depth, &metaRaw); err != nil {
			return nil, fmt.Errorf("scan edge row: %w", err)
		}
		e.Type = graph.EdgeType(edgeTypeRaw)
		if e.Metadata, err = decodeMetadata(metaRaw); err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edge rows: %w", err)
	}
	return edges, nil
}

func (s *Store) PutEdge(edge graph.Edge) error {
	meta, err := encodeMetadata(edge.Metadata)
	if err != nil {
		return err
	}
	err = s.withRetry("put edge", func() error {
		_, err := s.db.Exec(`
INSERT INTO edges (from_addr, to_addr, edge_type, derived_by, depth, metadata)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(from_addr, to_addr, edge_type, derived_by) DO UPDATE SET
  depth=excluded.depth,
  metadata=excluded.metadata
`, edge.From, edge.To, string(edge.Type), edge.DerivedBy, edge.Depth, meta)
		return err
	})
	if err != nil {
		return err
	}
	s.notify(edge)
	return nil
}

func (s *Store) AllNodes(filter func(graph.Node) bool) ([]graph.Node, error) {
	var rows *sql.Rows
	err := s.withRetry("all nodes", func() error {
		var qErr error
		rows, qErr = s.db.Query(
			`SELECT address, project, file_path, kind, name, metadata FROM nodes ORDER BY address ASC`)
		return qErr
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var nodes []graph.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("scan node row: %w", err)
		}
		if filter == nil || filter(*node) {
			nodes = append(nodes, *node)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate node rows: %w", err)
	}
	return nodes, nil
}

// ApplyBatch replaces the file's previous contribution in one transaction:
// its nodes go away along with every asserted edge touching them, inferred
// edges survive, then the batch contents are inserted.
func (s *Store) ApplyBatch(batch graph.Batch) error {
	err := s.withRetry("apply batch", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}

		if err := deleteFileLocked(tx, batch.Project, batch.FilePath); err != nil {
			_ = tx.Rollback()
			return err
		}

		for _, n := range batch.Nodes {
			meta, err := encodeMetadata(n.Metadata)
			if err != nil {
				_ = tx.Rollback()
				return err
			}
			if _, err := tx.Exec(`
INSERT INTO nodes (address, project, file_path, kind, name, metadata)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(address) DO UPDATE SET
  project=excluded.project, file_path=excluded.file_path,
  kind=excluded.kind, name=excluded.name, metadata=excluded.metadata
`, n.Address, n.Project, n.FilePath, string(n.Kind), n.Name, meta); err != nil {
				_ = tx.Rollback()
				return err
			}
		}

		for _, e := range batch.Edges {
			meta, err := encodeMetadata(e.Metadata)
			if err != nil {
				_ = tx.Rollback()
				return err
			}
			if _, err := tx.Exec(`
INSERT INTO edges (from_addr, to_addr, edge_type, derived_by, depth, metadata)
VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(from_addr, to_addr, edge_type, derived_by) DO UPDATE SET
  depth=excluded.depth, metadata=excluded.metadata
`, e.From, e.To, string(e.Type), e.DerivedBy, e.Depth, meta); err != nil {
				_ = tx.Rollback()
				return err
			}
		}

		return tx.Commit()
	})
	if err != nil {
		return err
	}

	for _, e := range batch.Edges {
		s.notify(e)
	}
	return nil
}

// RemoveFile drops every node and asserted edge owned by the file.
func (s *Store) RemoveFile(project, filePath string) error {
	return s.withRetry("remove file", func() error {
		tx, err := s.db.Begin()
		if err != nil {
			return err
		}
		if err := deleteFileLocked(tx, project, filePath); err != nil {
			_ = tx.Rollback()
			return err
		}
		return tx.Commit()
	})
}

func deleteFileLocked(tx *sql.Tx, project, filePath string) error {
	if _, err := tx.Exec(`
DELETE FROM edges WHERE derived_by = '' AND (
  from_addr IN (SELECT address FROM nodes WHERE project = ? AND file_path = ?)
  OR to_addr IN (SELECT address FROM nodes WHERE project = ? AND file_path = ?)
)`, project, filePath, project, filePath); err != nil {
		return fmt.Errorf("delete file edges: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM nodes WHERE project = ? AND file_path = ?`, project, filePath); err != nil {
		return fmt.Errorf("delete file nodes: %w", err)
	}
	return nil
}

func (s *Store) OnEdgeWrite(fn func(graph.Edge)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *Store) notify(edge graph.Edge) {
	s.mu.Lock()
	listeners := append([]func(graph.Edge){}, s.listeners...)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(edge)
	}
}

// NodeCount is used by the stats surfaces; failures read as zero.
func (s *Store) NodeCount() int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM nodes`).Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *Store) EdgeCount() int {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM edges`).Scan(&n); err != nil {
		return 0
	}
	return n
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNode(row rowScanner) (*graph.Node, error) {
	var n graph.Node
	var kindRaw, metaRaw string
	if err := row.Scan(&n.Address, &n.Project, &n.FilePath, &kindRaw, &n.Name, &metaRaw); err != nil {
		return nil, err
	}
	n.Kind = address.NodeKind(kindRaw)
	var err error
	if n.Metadata, err = decodeMetadata(metaRaw); err != nil {
		return nil, err
	}
	return &n, nil
}

func encodeMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode metadata: %w", err)
	}
	return string(raw), nil
}

func decodeMetadata(raw string) (map[string]string, error) {
	if raw == "" || raw == "{}" {
		return nil, nil
	}
	var m map[string]string
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return m, nil
}

func (s *Store) withRetry(op string, fn func() error) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !isLockError(err) || attempt == maxAttempts {
			break
		}
		time.Sleep(time.Duration(attempt*25) * time.Millisecond)
	}
	return fmt.Errorf("%s: %w", op, lastErr)
}

func isLockError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "busy")
}
