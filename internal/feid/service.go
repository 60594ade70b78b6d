package feid

import (
	"context"
	"fmt"
	"sync"

	"feid-go/internal/model"
	"feid-go/internal/tables"
)

// Options are the per-profile settings of a Service.
type Options struct {
	ProfileID string
	Changelog bool // request edit history with table fetches
}

// Service is the single coordinator of the dashboard state. It owns the
// overlay store, fetches and caches snapshots, keeps the pending overlay
// staged between invocations and persists layouts and settings.
type Service struct {
	api       API
	cache     Cache
	staging   StagingArea
	store     LocalStore
	encryptor Encryptor
	logger    Logger
	clock     Clock
	idgen     IDGenerator
	opts      Options

	tables *tables.Store

	mu         sync.Mutex
	restored   bool
	fetchGen   map[string]uint64
	changelogs map[string]model.Changelog
	samples    []model.Sample
	decryption DecryptionContext
}

// NewService creates a Service. encryptor may be nil, in which case local-store
// objects are written in plaintext.
func NewService(api API, cache Cache, staging StagingArea, store LocalStore, encryptor Encryptor, logger Logger, clock Clock, idgen IDGenerator, opts Options) *Service {
	return &Service{
		api:        api,
		cache:      cache,
		staging:    staging,
		store:      store,
		encryptor:  encryptor,
		logger:     logger,
		clock:      clock,
		idgen:      idgen,
		opts:       opts,
		tables:     tables.NewStore(clock.Now),
		fetchGen:   make(map[string]uint64),
		changelogs: make(map[string]model.Changelog),
	}
}

// restorePending loads the staged overlay into the store once per session.
func (s *Service) restorePending() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.restored {
		return nil
	}

	staged, err := s.staging.Load()
	if err != nil {
		return fmt.Errorf("loading staged changes: %w", err)
	}
	for name, p := range staged {
		if err := s.tables.RestorePending(name, p); err != nil {
			s.logger.Warn("dropping staged changes", "table", name, "error", err)
			continue
		}
		s.logger.Debug("restored staged changes", "table", name,
			"created", len(p.Created), "changes", len(p.Changes), "deleted", len(p.Deleted))
	}
	s.restored = true
	return nil
}

// Query returns the visible rows and columns of a table. The snapshot comes
// from memory, then the cache, then the API; force skips straight to the API.
func (s *Service) Query(ctx context.Context, table string, force bool) ([]model.Row, []model.Column, error) {
	if err := s.restorePending(); err != nil {
		return nil, nil, err
	}
	if err := s.load(ctx, table, force); err != nil {
		return nil, nil, err
	}
	rows, err := s.tables.Visible(table)
	if err != nil {
		return nil, nil, err
	}
	cols, err := s.tables.Columns(table)
	if err != nil {
		return nil, nil, err
	}
	return rows, cols, nil
}

func (s *Service) load(ctx context.Context, table string, force bool) error {
	if !force {
		if s.tables.Loaded(table) {
			return nil
		}
		data, err := s.cache.GetSnapshot(table)
		if err != nil {
			s.logger.Warn("reading cached snapshot", "table", table, "error", err)
		} else if data != nil {
			s.logger.Debug("using cached snapshot", "table", table, "fetched_at", data.FetchedAt)
			return s.setSnapshot(table, data)
		}
	}
	return s.fetch(ctx, table)
}

// fetch requests a fresh snapshot. When fetches for the same table overlap,
// only the most recently started one is applied.
func (s *Service) fetch(ctx context.Context, table string) error {
	s.mu.Lock()
	s.fetchGen[table]++
	gen := s.fetchGen[table]
	s.mu.Unlock()

	data, err := s.api.FetchTable(ctx, table, s.opts.Changelog)
	if err != nil {
		return fmt.Errorf("fetching %s: %w", table, err)
	}

	s.mu.Lock()
	superseded := gen != s.fetchGen[table]
	s.mu.Unlock()
	if superseded {
		s.logger.Debug("dropping superseded fetch", "table", table)
		return nil
	}

	if data.FetchedAt.IsZero() {
		data.FetchedAt = s.clock.Now()
	}
	if err := s.cache.PutSnapshot(table, data); err != nil {
		s.logger.Warn("caching snapshot", "table", table, "error", err)
	}
	s.logger.Info("fetched table", "table", table, "rows", len(data.Rows))
	return s.setSnapshot(table, data)
}

func (s *Service) setSnapshot(table string, data *TableData) error {
	if err := s.tables.SetRawData(table, data.Rows, data.Columns); err != nil {
		return err
	}
	s.mu.Lock()
	s.changelogs[table] = data.Changelog
	s.mu.Unlock()
	return nil
}

// Refresh force-refetches every editable table and the sample list. Pending
// edits are kept.
func (s *Service) Refresh(ctx context.Context) error {
	if err := s.restorePending(); err != nil {
		return err
	}
	for _, name := range tables.Editable {
		if err := s.fetch(ctx, name); err != nil {
			return err
		}
	}
	if _, err := s.ListSamples(ctx, true); err != nil {
		return err
	}
	s.logger.Info("refresh complete")
	return nil
}

// Changelog returns the edit history of one row, keyed by column. It is empty
// unless changelog fetching is enabled.
func (s *Service) Changelog(table string, id int64) map[string][]model.ChangelogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.changelogs[table][id]
}

// GetHistory returns the most recent recorded operations.
func (s *Service) GetHistory(limit int) ([]*Operation, error) {
	ops, err := s.cache.ListOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("listing operations: %w", err)
	}
	return ops, nil
}
