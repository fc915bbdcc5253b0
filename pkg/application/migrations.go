package application

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-faster/errors"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/sirupsen/logrus"
)

// Schema is a named set of goose SQL migrations owned by a module.
type Schema struct {
	Name string
	FS   fs.FS
	Dir  string
}

type SchemaStatus struct {
	Name           string `json:"name"`
	CurrentVersion int64  `json:"currentVersion"`
	LatestVersion  int64  `json:"latestVersion"`
	Pending        int    `json:"pending"`
}

type MigrationManager interface {
	RegisterSchema(schemas ...Schema)
	Schemas() []Schema
	Run(ctx context.Context, db *sql.DB) error
	Rollback(ctx context.Context, db *sql.DB) error
	Status(ctx context.Context, db *sql.DB) ([]SchemaStatus, error)
}

// OpenDB opens a database/sql handle for goose using lib/pq.
func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open migrations db")
	}
	return db, nil
}

// goose keeps its dialect, base FS and table name in package globals.
var gooseMu sync.Mutex

func NewMigrationManager(logger *logrus.Logger) MigrationManager {
	return &migrationManager{logger: logger}
}

type migrationManager struct {
	logger  *logrus.Logger
	schemas []Schema
}

func (m *migrationManager) RegisterSchema(schemas ...Schema) {
	for _, s := range schemas {
		if s.Dir == "" {
			s.Dir = "."
		}
		m.schemas = append(m.schemas, s)
	}
}

func (m *migrationManager) Schemas() []Schema {
	return m.schemas
}

func versionTable(name string) string {
	return "goose_" + strings.ReplaceAll(name, "-", "_")
}

func (m *migrationManager) withGoose(s Schema, fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()
	goose.SetBaseFS(s.FS)
	defer goose.SetBaseFS(nil)
	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}
	goose.SetTableName(versionTable(s.Name))
	return fn()
}

func (m *migrationManager) Run(ctx context.Context, db *sql.DB) error {
	for _, s := range m.schemas {
		if m.logger != nil {
			m.logger.Infof("Applying migrations for %s", s.Name)
		}
		err := m.withGoose(s, func() error {
			return goose.UpContext(ctx, db, s.Dir)
		})
		if err != nil {
			return errors.Wrapf(err, "migrate %s up", s.Name)
		}
	}
	return nil
}

// Rollback reverts the latest migration of every schema, newest schema first.
func (m *migrationManager) Rollback(ctx context.Context, db *sql.DB) error {
	for i := len(m.schemas) - 1; i >= 0; i-- {
		s := m.schemas[i]
		err := m.withGoose(s, func() error {
			return goose.DownContext(ctx, db, s.Dir)
		})
		if err != nil {
			return errors.Wrapf(err, "migrate %s down", s.Name)
		}
	}
	return nil
}

func (m *migrationManager) Status(ctx context.Context, db *sql.DB) ([]SchemaStatus, error) {
	out := make([]SchemaStatus, 0, len(m.schemas))
	for _, s := range m.schemas {
		versions, err := fileVersions(s)
		if err != nil {
			return nil, errors.Wrapf(err, "list %s migrations", s.Name)
		}
		var current int64
		query := fmt.Sprintf("SELECT COALESCE(MAX(version_id), 0) FROM %s WHERE is_applied", versionTable(s.Name))
		if err := db.QueryRowContext(ctx, query).Scan(&current); err != nil {
			return nil, errors.Wrapf(err, "read %s version", s.Name)
		}
		st := SchemaStatus{Name: s.Name, CurrentVersion: current}
		for _, v := range versions {
			if v > current {
				st.Pending++
			}
			if v > st.LatestVersion {
				st.LatestVersion = v
			}
		}
		out = append(out, st)
	}
	return out, nil
}

func fileVersions(s Schema) ([]int64, error) {
	entries, err := fs.ReadDir(s.FS, s.Dir)
	if err != nil {
		return nil, err
	}
	versions := make([]int64, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		prefix, _, ok := strings.Cut(e.Name(), "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseInt(prefix, 10, 64)
		if err != nil {
			continue
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}
