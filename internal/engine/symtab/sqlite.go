package symtab

import (
	"database/sql"
	"duchain/internal/engine/ident"
	"duchain/internal/shared/observability"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	_ "modernc.org/sqlite"
)

const (
	sqliteDriverName = "sqlite"
	backendSQLite    = "sqlite"
	defaultCacheSize = 1024
)

// SQLiteIndex persists the symbol table in a SQLite database so handles
// survive a restart. Handles whose unit is not loaded after a restart are
// reported by Lookup like any other and rejected by the resolver's liveness
// check. Several projects may share one database file; every row is scoped
// by project key.
type SQLiteIndex struct {
	db         *sql.DB
	projectKey string
	lookupStmt *sql.Stmt

	// mu serializes writers against lookups so a reader never observes a
	// half-applied Replace.
	mu    sync.RWMutex
	cache *lookupCache
}

func OpenSQLiteIndex(path, projectKey string, cacheSize int) (*SQLiteIndex, error) {
	cleanPath := strings.TrimSpace(path)
	if cleanPath == "" {
		return nil, fmt.Errorf("symbol index path must not be empty")
	}
	if info, err := os.Stat(cleanPath); err == nil && info.IsDir() {
		return nil, fmt.Errorf("symbol index path %q is a directory, expected file", cleanPath)
	}

	dir := filepath.Dir(cleanPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create symbol index directory %q: %w", dir, err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cleanPath)
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite symbol index %q: %w", cleanPath, err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite symbol index %q: %w", cleanPath, err)
	}
	if err := migrateIndexSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	key := strings.TrimSpace(projectKey)
	if key == "" {
		key = "default"
	}

	lookupStmt, err := db.Prepare(`SELECT unit, decl_index
FROM declarations
WHERE project_key = ? AND qualified_key = ?
ORDER BY seq`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("prepare lookup stmt: %w", err)
	}

	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	idx := &SQLiteIndex{
		db:         db,
		projectKey: key,
		lookupStmt: lookupStmt,
		cache:      newLookupCache(cacheSize),
	}
	observability.IndexEntries.WithLabelValues(backendSQLite).Set(float64(idx.Len()))
	return idx, nil
}

func (s *SQLiteIndex) Insert(id ident.QualifiedIdentifier, decl IndexedDeclaration) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("symbol index not initialized")
	}
	key := id.Key()
	if key == "" || !decl.IsValid() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.Exec(`INSERT INTO declarations (project_key, qualified_key, unit, decl_index) VALUES (?, ?, ?, ?)`,
		s.projectKey, key, decl.Unit, decl.Index); err != nil {
		return fmt.Errorf("insert declaration %q: %w", key, err)
	}
	s.cache.forget(id)
	s.updateGaugeLocked()
	return nil
}

func (s *SQLiteIndex) Lookup(id ident.QualifiedIdentifier) []IndexedDeclaration {
	if s == nil || s.db == nil || s.lookupStmt == nil {
		return nil
	}
	key := id.Key()
	if key == "" {
		return nil
	}
	observability.IndexLookupsTotal.WithLabelValues(backendSQLite).Inc()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if res, ok := s.cache.get(id); ok {
		return res
	}

	rows, err := s.lookupStmt.Query(s.projectKey, key)
	if err != nil {
		slog.Warn("symbol index lookup failed", "key", key, "error", err)
		return nil
	}
	defer rows.Close()

	var out []IndexedDeclaration
	for rows.Next() {
		var (
			decl  IndexedDeclaration
			index int64
		)
		if err := rows.Scan(&decl.Unit, &index); err != nil {
			continue
		}
		decl.Index = uint32(index)
		out = append(out, decl)
	}
	s.cache.put(id, out)
	return cloneHandles(out)
}

func (s *SQLiteIndex) Remove(unit string) error {
	return s.withTx("remove", func(tx *sql.Tx) error {
		return deleteUnit(tx, s.projectKey, unit)
	})
}

func (s *SQLiteIndex) Replace(unit string, entries []Entry) error {
	return s.withTx("replace", func(tx *sql.Tx) error {
		if err := deleteUnit(tx, s.projectKey, unit); err != nil {
			return err
		}
		return insertEntries(tx, s.projectKey, unit, entries)
	})
}

func (s *SQLiteIndex) Units() []string {
	if s == nil || s.db == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`SELECT DISTINCT unit FROM declarations WHERE project_key = ? ORDER BY unit`, s.projectKey)
	if err != nil {
		slog.Warn("list indexed units failed", "error", err)
		return nil
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var unit string
		if err := rows.Scan(&unit); err == nil {
			out = append(out, unit)
		}
	}
	return out
}

func (s *SQLiteIndex) PruneToUnits(keep []string) error {
	return s.withTx("prune", func(tx *sql.Tx) error {
		if len(keep) == 0 {
			if _, err := tx.Exec(`DELETE FROM declarations WHERE project_key = ?`, s.projectKey); err != nil {
				return fmt.Errorf("clear declarations for empty unit set: %w", err)
			}
			return nil
		}
		if err := loadTempUnits(tx, s.projectKey, keep); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM declarations WHERE project_key = ? AND unit NOT IN (SELECT unit FROM current_units WHERE project_key = ?)`,
			s.projectKey, s.projectKey); err != nil {
			return fmt.Errorf("delete stale declarations: %w", err)
		}
		return nil
	})
}

func (s *SQLiteIndex) Len() int {
	if s == nil || s.db == nil {
		return 0
	}
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM declarations WHERE project_key = ?`, s.projectKey).Scan(&n); err != nil {
		return 0
	}
	return n
}

func (s *SQLiteIndex) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	if s.lookupStmt != nil {
		_ = s.lookupStmt.Close()
	}
	return s.db.Close()
}

func (s *SQLiteIndex) withTx(op string, fn func(tx *sql.Tx) error) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("symbol index not initialized")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin symbol index %s tx: %w", op, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit symbol index %s tx: %w", op, err)
	}
	s.cache.reset()
	s.updateGaugeLocked()
	return nil
}

func (s *SQLiteIndex) updateGaugeLocked() {
	observability.IndexEntries.WithLabelValues(backendSQLite).Set(float64(s.Len()))
}

// migrateIndexSchema creates the declarations table. The seq column keeps
// insertion order for Lookup.
func migrateIndexSchema(db *sql.DB) error {
	var version int
	_ = db.QueryRow(`PRAGMA user_version`).Scan(&version)
	if version >= 1 {
		return nil
	}
	_, err := db.Exec(`
CREATE TABLE IF NOT EXISTS declarations (
  seq INTEGER PRIMARY KEY AUTOINCREMENT,
  project_key TEXT NOT NULL,
  qualified_key TEXT NOT NULL,
  unit TEXT NOT NULL,
  decl_index INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_declarations_project_key ON declarations(project_key, qualified_key);
CREATE INDEX IF NOT EXISTS idx_declarations_project_unit ON declarations(project_key, unit);

PRAGMA user_version = 1;
`)
	if err != nil {
		return fmt.Errorf("create v1 schema: %w", err)
	}
	return nil
}

func deleteUnit(tx *sql.Tx, projectKey, unit string) error {
	if _, err := tx.Exec(`DELETE FROM declarations WHERE project_key = ? AND unit = ?`, projectKey, unit); err != nil {
		return fmt.Errorf("delete declarations for unit %q: %w", unit, err)
	}
	return nil
}

func insertEntries(tx *sql.Tx, projectKey, unit string, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}
	stmt, err := tx.Prepare(`INSERT INTO declarations (project_key, qualified_key, unit, decl_index) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare declaration insert: %w", err)
	}
	defer stmt.Close()

	for _, entry := range entries {
		key := entry.ID.Key()
		if key == "" || entry.Decl.Unit != unit {
			continue
		}
		if _, err := stmt.Exec(projectKey, key, unit, entry.Decl.Index); err != nil {
			return fmt.Errorf("insert declaration (%s:%s): %w", unit, key, err)
		}
	}
	return nil
}

func loadTempUnits(tx *sql.Tx, projectKey string, units []string) error {
	if _, err := tx.Exec(`CREATE TEMP TABLE IF NOT EXISTS current_units (
  project_key TEXT NOT NULL,
  unit TEXT NOT NULL,
  PRIMARY KEY (project_key, unit)
)`); err != nil {
		return fmt.Errorf("create temp units table: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM current_units WHERE project_key = ?`, projectKey); err != nil {
		return fmt.Errorf("clear temp units table: %w", err)
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO current_units (project_key, unit) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare temp unit insert: %w", err)
	}
	defer stmt.Close()
	for _, unit := range units {
		if _, err := stmt.Exec(projectKey, unit); err != nil {
			return fmt.Errorf("insert temp unit: %w", err)
		}
	}
	return nil
}
