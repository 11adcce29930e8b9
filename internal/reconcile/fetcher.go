package reconcile

import (
	"context"
	"log/slog"

	"github.com/roach88/provsync/internal/prov"
)

// Fetcher reads a record's current logical graph from a Store.
type Fetcher struct {
	store  Store
	logger *slog.Logger
}

// NewFetcher wraps store. A nil logger falls back to slog.Default().
func NewFetcher(store Store, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{store: store, logger: logger.With("scope", "fetcher")}
}

// Fetch returns the logical graph owned by recordID. A record that owns
// nothing yields the empty graph, not an error.
func (f *Fetcher) Fetch(ctx context.Context, recordID string) (prov.LogicalGraph, error) {
	if recordID == "" {
		return prov.LogicalGraph{}, prov.NewInvalidGraphError("", "record id is required")
	}

	g, err := f.store.FetchOwnedSubgraph(ctx, recordID)
	if err != nil {
		return prov.LogicalGraph{}, classify("fetch owned subgraph", err)
	}
	g.RecordID = recordID
	if g.Edges == nil {
		g.Edges = []prov.Edge{}
	}

	f.logger.Debug("fetched logical graph",
		"record", recordID,
		"edges", len(g.Edges),
	)
	return g, nil
}

// classify keeps typed errors and context errors as they are and treats
// anything else from a store as an unavailable backend.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if prov.CodeOf(err) != "" || isContextErr(err) {
		return err
	}
	return prov.NewStoreUnavailableError(op, err)
}
