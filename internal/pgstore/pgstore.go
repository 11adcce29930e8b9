// Package pgstore is the PostgreSQL Store adapter, built on bun.
//
// Owner sets are text[] columns. Adding or removing an owner is a single
// UPDATE using array_append / array_remove, so it is atomic per row. Guarded
// deletes strip the owner and delete on cardinality(owners) = 0 inside one
// transaction that holds the row lock throughout.
package pgstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/roach88/provsync/internal/prov"
)

// Store is the PostgreSQL Store adapter.
type Store struct {
	db  *bun.DB
	log *slog.Logger
}

// Open connects to dsn, verifies the connection and creates the schema if
// needed.
func Open(ctx context.Context, dsn string, log *slog.Logger) (*Store, error) {
	s := New(bun.NewDB(sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn))), pgdialect.New()), log)

	if err := s.db.PingContext(ctx); err != nil {
		s.db.Close()
		return nil, prov.NewStoreUnavailableError("connect postgres", err)
	}
	if err := s.CreateSchema(ctx); err != nil {
		s.db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing bun database without touching it.
func New(db *bun.DB, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{db: db, log: log.With("scope", "pgstore")}
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateSchema creates tables and indexes if they do not exist.
func (s *Store) CreateSchema(ctx context.Context) error {
	if _, err := s.db.NewCreateTable().
		Model((*nodeModel)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return fmt.Errorf("create nodes table: %w", err)
	}

	if _, err := s.db.NewCreateTable().
		Model((*edgeModel)(nil)).
		IfNotExists().
		ForeignKey(`("source_id") REFERENCES "provsync_nodes" ("id") ON DELETE RESTRICT`).
		ForeignKey(`("target_id") REFERENCES "provsync_nodes" ("id") ON DELETE RESTRICT`).
		Exec(ctx); err != nil {
		return fmt.Errorf("create edges table: %w", err)
	}

	indexes := []*bun.CreateIndexQuery{
		s.db.NewCreateIndex().Model((*edgeModel)(nil)).Index("idx_provsync_edges_target").Column("target_id"),
		s.db.NewCreateIndex().Model((*edgeModel)(nil)).Index("idx_provsync_edges_owners").Using("GIN").Column("owners"),
		s.db.NewCreateIndex().Model((*nodeModel)(nil)).Index("idx_provsync_nodes_owners").Using("GIN").Column("owners"),
	}
	for _, q := range indexes {
		if _, err := q.IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create index: %w", err)
		}
	}

	s.log.Debug("schema ready")
	return nil
}

// Truncate removes every node and edge. Used by tests.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.db.NewRaw(`TRUNCATE provsync_edges, provsync_nodes`).Exec(ctx)
	if err != nil {
		return fmt.Errorf("truncate: %w", err)
	}
	return nil
}

// addOwnerSet is the owners expression that adds ? once.
const addOwnerSet = "owners = CASE WHEN ? = ANY(owners) THEN owners ELSE array_append(owners, ?) END"

func (s *Store) addNodeOwnerQuery(db bun.IDB, nodeID, recordID string) *bun.UpdateQuery {
	return db.NewUpdate().
		Model((*nodeModel)(nil)).
		Set(addOwnerSet, recordID, recordID).
		Where("id = ?", nodeID)
}

func (s *Store) removeNodeOwnerQuery(db bun.IDB, nodeID, recordID string) *bun.UpdateQuery {
	return db.NewUpdate().
		Model((*nodeModel)(nil)).
		Set("owners = array_remove(owners, ?)", recordID).
		Where("id = ?", nodeID)
}

func (s *Store) addEdgeOwnerQuery(db bun.IDB, key prov.EdgeKey, recordID string) *bun.UpdateQuery {
	return db.NewUpdate().
		Model((*edgeModel)(nil)).
		Set(addOwnerSet, recordID, recordID).
		Where("source_id = ?", key.Source).
		Where("target_id = ?", key.Target)
}

func (s *Store) removeEdgeOwnerQuery(db bun.IDB, key prov.EdgeKey, recordID string) *bun.UpdateQuery {
	return db.NewUpdate().
		Model((*edgeModel)(nil)).
		Set("owners = array_remove(owners, ?)", recordID).
		Where("source_id = ?", key.Source).
		Where("target_id = ?", key.Target)
}

// affected runs q and reports whether it touched a row.
func affected(ctx context.Context, q interface {
	Exec(context.Context, ...any) (sql.Result, error)
}) (bool, error) {
	res, err := q.Exec(ctx)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
