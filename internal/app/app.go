package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"feid-go/internal/api"
	"feid-go/internal/config"
	"feid-go/internal/database"
	"feid-go/internal/encryption"
	"feid-go/internal/feid"
	"feid-go/internal/layout"
	"feid-go/internal/localstore"
	"feid-go/internal/model"
	"feid-go/internal/sample"
	"feid-go/internal/staging"
	"feid-go/internal/tables"
)

// FEIDApp is the application layer between the CLI and feid.Service.
// It constructs all dependencies from config, exposes high-level operations
// that accept raw CLI arguments, records mutating operations in the history
// and manages the cache lifecycle on Close.
type FEIDApp struct {
	cfg       *config.Config
	cache     feid.Cache
	store     feid.LocalStore
	encryptor feid.Encryptor
	clock     feid.Clock
	service   *feid.Service
	logger    *slog.Logger
	op        *Operation
	logFile   *os.File
}

// NewFEIDApp creates a fully wired FEIDApp from the given config.
// operation identifies the CLI command being run (e.g. "Edit", "Commit").
// The caller must call Close when done.
func NewFEIDApp(ctx context.Context, cfg *config.Config, operation string) (*FEIDApp, error) {
	client, err := api.NewClient(cfg.API.BaseURL, time.Duration(cfg.API.TimeoutSeconds)*time.Second, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api client: %w", err)
	}

	clock := feid.RealClock{}
	opID := clock.Now().UTC().Format("20060102T150405Z")
	logger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a, err := newFEIDApp(ctx, cfg, operation, client, clock, logger)
	if err != nil {
		logFile.Close()
		return nil, err
	}
	a.logFile = logFile
	return a, nil
}

// newFEIDApp wires everything but the API client and the log destination.
func newFEIDApp(ctx context.Context, cfg *config.Config, operation string, client feid.API, clock feid.Clock, logger *slog.Logger) (*FEIDApp, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	store, err := localstore.NewStoreFromConfig(ctx, cfg.Stores[0])
	if err != nil {
		return nil, fmt.Errorf("creating local store: %w", err)
	}

	sa, err := staging.NewStagingAreaFromConfig(cfg.Staging)
	if err != nil {
		return nil, fmt.Errorf("creating staging area: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	db, err := database.NewDatabaseFromConfig(cfg.Database, cfg.ProfileID, clock.Now)
	if err != nil {
		return nil, fmt.Errorf("creating database: %w", err)
	}
	if err := db.CheckMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database schema out of date: %w", err)
	}

	svc := feid.NewService(client, db, sa, store, enc, &slogAdapter{l: logger}, clock, feid.UUIDGenerator{},
		feid.Options{ProfileID: cfg.ProfileID, Changelog: cfg.API.Changelog})

	return &FEIDApp{
		cfg:       cfg,
		cache:     db,
		store:     store,
		encryptor: enc,
		clock:     clock,
		service:   svc,
		logger:    logger,
		op:        NewOperation(operation),
	}, nil
}

// Service exposes the underlying coordinator.
func (a *FEIDApp) Service() *feid.Service {
	return a.service
}

// ValidateStore checks that the local store is reachable and writable.
func (a *FEIDApp) ValidateStore(ctx context.Context) error {
	return a.store.ValidateSetup(ctx)
}

// Encrypted reports whether local-store objects are encrypted.
func (a *FEIDApp) Encrypted() bool {
	return a.encryptor != nil
}

// track persists the current operation with the given parameters, giving it
// an id from the cache. Only mutating commands are tracked.
func (a *FEIDApp) track(parameters ...string) error {
	if a.op.Persisted() {
		return nil
	}
	a.op.Parameters = strings.Join(parameters, " ")
	rec, err := a.cache.CreateOperation(a.op.Operation, a.op.Parameters, a.clock.Now())
	if err != nil {
		return fmt.Errorf("recording operation: %w", err)
	}
	a.op.ID = rec.ID
	return nil
}

// done marks the operation failed when err is non-nil and passes err through.
func (a *FEIDApp) done(err error) error {
	if err != nil {
		a.op.Fail()
	}
	return err
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid row id %q", raw)
	}
	return id, nil
}

// Fetch returns the visible rows of a table, refetching when force is set.
func (a *FEIDApp) Fetch(ctx context.Context, table string, force bool) ([]model.Row, []model.Column, error) {
	return a.service.Query(ctx, table, force)
}

// Refresh refetches every editable table and the sample list.
func (a *FEIDApp) Refresh(ctx context.Context) error {
	return a.service.Refresh(ctx)
}

// Edit records a change to one cell.
func (a *FEIDApp) Edit(ctx context.Context, table, rawID, column, value string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	if err := a.track(table, rawID, column+"="+value); err != nil {
		return err
	}
	return a.done(a.service.MakeChange(ctx, table, id, column, value))
}

// Create adds a pending row from key=value pairs and returns its temporary id.
func (a *FEIDApp) Create(ctx context.Context, table string, pairs []string) (int64, error) {
	fields := make(map[string]string, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return 0, fmt.Errorf("invalid field %q, expected column=value", p)
		}
		fields[key] = value
	}
	if err := a.track(append([]string{table}, pairs...)...); err != nil {
		return 0, err
	}
	id, err := a.service.CreateRow(ctx, table, fields)
	return id, a.done(err)
}

// Delete marks a row for deletion.
func (a *FEIDApp) Delete(ctx context.Context, table, rawID string) error {
	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	if err := a.track(table, rawID); err != nil {
		return err
	}
	return a.done(a.service.DeleteRow(ctx, table, id))
}

// Link links a source row to an event; rawExisting "" creates a new source.
func (a *FEIDApp) Link(ctx context.Context, table, rawEvent, rawExisting string) (int64, int64, error) {
	eventID, err := parseID(rawEvent)
	if err != nil {
		return 0, 0, err
	}
	var existing int64
	if rawExisting != "" {
		if existing, err = parseID(rawExisting); err != nil {
			return 0, 0, err
		}
	}
	if err := a.track(table, rawEvent, rawExisting); err != nil {
		return 0, 0, err
	}
	src, join, err := a.service.LinkSource(ctx, table, eventID, existing)
	return src, join, a.done(err)
}

// DiscardKind selects what Discard drops.
type DiscardKind string

const (
	DiscardChange  DiscardKind = "change"
	DiscardCreated DiscardKind = "created"
	DiscardDeleted DiscardKind = "deleted"
	DiscardAll     DiscardKind = "all"
)

// Discard drops pending state. column is only used for DiscardChange.
func (a *FEIDApp) Discard(ctx context.Context, kind DiscardKind, table, rawID, column string) error {
	if kind == DiscardAll {
		if err := a.track(string(kind)); err != nil {
			return err
		}
		return a.done(a.service.ResetChanges())
	}

	id, err := parseID(rawID)
	if err != nil {
		return err
	}
	if err := a.track(string(kind), table, rawID, column); err != nil {
		return err
	}
	switch kind {
	case DiscardChange:
		err = a.service.DiscardChange(ctx, table, id, column)
	case DiscardCreated:
		err = a.service.DiscardCreated(ctx, table, id)
	case DiscardDeleted:
		err = a.service.DiscardDeleted(ctx, table, id)
	default:
		err = fmt.Errorf("unknown discard kind %q", kind)
	}
	return a.done(err)
}

// Status returns the pending state of every table that has any.
func (a *FEIDApp) Status() (map[string]tables.Pending, error) {
	return a.service.Status()
}

// Commit submits all pending changes.
func (a *FEIDApp) Commit(ctx context.Context) ([]string, error) {
	pending, err := a.service.Status()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, name := range tables.Editable {
		if _, ok := pending[name]; ok {
			names = append(names, name)
		}
	}
	if err := a.track(names...); err != nil {
		return nil, err
	}
	committed, err := a.service.Commit(ctx)
	return committed, a.done(err)
}

// Changelog returns the edit history of a row.
func (a *FEIDApp) Changelog(ctx context.Context, table, rawID string) (map[string][]model.ChangelogEntry, error) {
	id, err := parseID(rawID)
	if err != nil {
		return nil, err
	}
	if _, _, err := a.service.Query(ctx, table, false); err != nil {
		return nil, err
	}
	return a.service.Changelog(table, id), nil
}

// Samples

func parseSampleID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid sample id %q", raw)
	}
	return id, nil
}

// ListSamples returns every sample.
func (a *FEIDApp) ListSamples(ctx context.Context, force bool) ([]model.Sample, error) {
	return a.service.ListSamples(ctx, force)
}

// ApplySample returns the event rows selected by a sample.
func (a *FEIDApp) ApplySample(ctx context.Context, rawID string) ([]model.Row, []model.Column, error) {
	id, err := parseSampleID(rawID)
	if err != nil {
		return nil, nil, err
	}
	return a.service.ApplySample(ctx, id)
}

// SampleMarkers returns the event rows with their picking-mode markers.
func (a *FEIDApp) SampleMarkers(ctx context.Context, rawID string, sortByMarker, descending bool) ([]model.Row, []string, []model.Column, error) {
	id, err := parseSampleID(rawID)
	if err != nil {
		return nil, nil, nil, err
	}
	smp, err := a.service.GetSample(ctx, id)
	if err != nil {
		return nil, nil, nil, err
	}
	return a.service.SampleMarkers(ctx, smp, sortByMarker, descending)
}

// CreateSample creates an empty sample.
func (a *FEIDApp) CreateSample(ctx context.Context, name string) (model.Sample, error) {
	if err := a.track(name); err != nil {
		return model.Sample{}, err
	}
	smp, err := a.service.CreateSample(ctx, name)
	return smp, a.done(err)
}

// RemoveSample deletes a sample.
func (a *FEIDApp) RemoveSample(ctx context.Context, rawID string) error {
	id, err := parseSampleID(rawID)
	if err != nil {
		return err
	}
	if err := a.track(rawID); err != nil {
		return err
	}
	return a.done(a.service.RemoveSample(ctx, id))
}

// EditSample applies fn to a draft of the sample and saves it. It reports
// whether anything changed.
func (a *FEIDApp) EditSample(ctx context.Context, rawID string, describe string, fn func(d *sample.Draft, columns []model.Column) error) (bool, error) {
	id, err := parseSampleID(rawID)
	if err != nil {
		return false, err
	}
	smp, err := a.service.GetSample(ctx, id)
	if err != nil {
		return false, err
	}
	_, cols, err := a.service.Query(ctx, tables.FEID, false)
	if err != nil {
		return false, err
	}

	d := sample.NewDraft(smp)
	if err := fn(d, cols); err != nil {
		return false, err
	}
	if !d.Dirty() {
		return false, nil
	}
	if err := a.track(rawID, describe); err != nil {
		return false, err
	}
	saved, err := a.service.SaveSample(ctx, d)
	return saved, a.done(err)
}

// Layouts

// Unlock unlocks an encrypted local store with the passphrase.
func (a *FEIDApp) Unlock(passphrase string) error {
	return a.service.Unlock(passphrase)
}

// SetupKeys generates the encryption key pair.
func (a *FEIDApp) SetupKeys(passphrase string) error {
	if a.encryptor == nil {
		return fmt.Errorf("encryption is disabled in the config")
	}
	return a.encryptor.Setup(passphrase)
}

// Layouts returns the persisted layouts.
func (a *FEIDApp) Layouts(ctx context.Context) (*layout.Layouts, error) {
	return a.service.LoadLayouts(ctx)
}

// Split splits a leaf of the active layout.
func (a *FEIDApp) Split(ctx context.Context, id string, orientation layout.Orientation, inverse, duplicate bool) (string, string, error) {
	if orientation != layout.Row && orientation != layout.Column {
		return "", "", fmt.Errorf("invalid orientation %q, expected row or column", orientation)
	}
	return a.service.SplitNode(ctx, id, orientation, inverse, duplicate)
}

// Relinquish removes a leaf of the active layout.
func (a *FEIDApp) Relinquish(ctx context.Context, id string) error {
	return a.service.RelinquishNode(ctx, id)
}

// Ratio sets the ratio of a split of the active layout.
func (a *FEIDApp) Ratio(ctx context.Context, id, rawRatio string) error {
	ratio, err := strconv.ParseFloat(rawRatio, 64)
	if err != nil {
		return fmt.Errorf("invalid ratio %q", rawRatio)
	}
	return a.service.UpdateRatio(ctx, id, ratio)
}

// Swap exchanges two leaves' items.
func (a *FEIDApp) Swap(ctx context.Context, first, second string) error {
	return a.service.SwapItems(ctx, first, second)
}

// SetPanel sets the panel type and key=value params of a leaf.
func (a *FEIDApp) SetPanel(ctx context.Context, id, panelType string, params []string) error {
	item := layout.Item{Type: panelType}
	for _, p := range params {
		key, value, ok := strings.Cut(p, "=")
		if !ok || key == "" {
			return fmt.Errorf("invalid param %q, expected key=value", p)
		}
		if item.Params == nil {
			item.Params = map[string]string{}
		}
		item.Params[key] = value
	}
	return a.service.SetItem(ctx, id, item)
}

// UseLayout switches the active layout.
func (a *FEIDApp) UseLayout(ctx context.Context, name string) error {
	return a.service.SetActiveLayout(ctx, name)
}

// Settings returns the persisted settings.
func (a *FEIDApp) Settings(ctx context.Context) (model.Settings, error) {
	return a.service.LoadSettings(ctx)
}

// UpdateSettings applies fn to the settings and saves them.
func (a *FEIDApp) UpdateSettings(ctx context.Context, fn func(*model.Settings) error) (model.Settings, error) {
	s, err := a.service.LoadSettings(ctx)
	if err != nil {
		return model.Settings{}, err
	}
	if err := fn(&s); err != nil {
		return model.Settings{}, err
	}
	if err := a.service.SaveSettings(ctx, s); err != nil {
		return model.Settings{}, err
	}
	return s, nil
}

// GetHistory returns the most recent recorded operations.
func (a *FEIDApp) GetHistory(limit int) ([]*feid.Operation, error) {
	return a.service.GetHistory(limit)
}

// Close finishes the operation record and closes all resources.
func (a *FEIDApp) Close() error {
	var firstErr error

	if a.op.Persisted() {
		if err := a.cache.FinishOperation(a.op.ID, a.op.Status, a.clock.Now()); err != nil {
			firstErr = fmt.Errorf("finishing operation: %w", err)
		}
	}
	if err := a.cache.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing database: %w", err)
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return firstErr
}
