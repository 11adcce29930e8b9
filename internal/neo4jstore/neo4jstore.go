// Package neo4jstore is the Neo4j Store adapter.
//
// Each mutation runs in one managed write transaction; owner changes and
// guarded deletes are single Cypher statements, so Neo4j's entity write locks
// make them atomic.
package neo4jstore

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/roach88/provsync/internal/prov"
)

// Config holds connection settings.
type Config struct {
	URI      string
	Username string
	Password string
	Database string
}

// Store is the Neo4j Store adapter.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	log      *slog.Logger
}

// Open connects, verifies connectivity and ensures the id constraint.
func Open(ctx context.Context, cfg Config, log *slog.Logger) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, prov.NewStoreUnavailableError("connect neo4j", err)
	}

	s := New(driver, cfg.Database, log)
	if err := s.EnsureSchema(ctx); err != nil {
		driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

// New wraps an existing driver.
func New(driver neo4j.DriverWithContext, database string, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{driver: driver, database: database, log: log.With("scope", "neo4jstore")}
}

// Close closes the driver.
func (s *Store) Close() error {
	return s.driver.Close(context.Background())
}

// EnsureSchema creates the node id uniqueness constraint.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.write(ctx, "ensure schema", cypherConstraint, nil)
	return err
}

// Truncate deletes every ProvNode and its relationships. Used by tests.
func (s *Store) Truncate(ctx context.Context) error {
	_, err := s.write(ctx, "truncate", cypherTruncate, nil)
	return err
}

func (s *Store) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: mode, DatabaseName: s.database})
}

// write runs one statement in a managed write transaction and collects its records.
func (s *Store) write(ctx context.Context, op, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	out, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	records, _ := out.([]*neo4j.Record)
	return records, nil
}

// read runs one statement in a managed read transaction.
func (s *Store) read(ctx context.Context, op, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return result.Collect(ctx)
	})
	if err != nil {
		return nil, wrap(op, err)
	}
	records, _ := out.([]*neo4j.Record)
	return records, nil
}

func wrap(op string, err error) error {
	if prov.CodeOf(err) != "" {
		return err
	}
	if neo4j.IsConnectivityError(err) {
		return prov.NewStoreUnavailableError(op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// matched reads the "matched" count of a single-row result.
func matched(records []*neo4j.Record) bool {
	if len(records) == 0 {
		return false
	}
	n, _, _ := neo4j.GetRecordValue[int64](records[0], "matched")
	return n > 0
}

// countOf reads an integer count column from the first record.
func countOf(records []*neo4j.Record, key string) int {
	if len(records) == 0 {
		return 0
	}
	n, _, _ := neo4j.GetRecordValue[int64](records[0], key)
	return int(n)
}

// deletedFlag reads the "deleted" flag; no row means no match.
func deletedFlag(records []*neo4j.Record) (deleted, found bool) {
	if len(records) == 0 {
		return false, false
	}
	v, _, _ := neo4j.GetRecordValue[bool](records[0], "deleted")
	return v, true
}

func getString(record *neo4j.Record, key string) string {
	v, _ := record.Get(key)
	s, _ := v.(string)
	return s
}

func getOwners(record *neo4j.Record, key string) prov.OwnerSet {
	v, _ := record.Get(key)
	list, _ := v.([]any)
	owners := prov.NewOwnerSet()
	for _, item := range list {
		if id, ok := item.(string); ok {
			owners.Add(id)
		}
	}
	return owners
}
