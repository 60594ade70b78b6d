package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"feid-go/internal/feid"
	"feid-go/internal/model"
	"feid-go/internal/tables"
)

// T0 is the reference time of the seeded tables.
var T0 = time.Date(2023, 4, 23, 17, 0, 0, 0, time.UTC)

// Column sets of the seeded tables.
var (
	FEIDColumns = []model.Column{
		{Name: "Id", Key: "id", Type: model.ColumnInteger},
		{Name: "Time", Key: "time", Type: model.ColumnTime},
		{Name: "Duration", Key: "duration", Type: model.ColumnInteger, Nullable: true},
		{Name: "Magnitude", Key: "magnitude", Type: model.ColumnReal, Nullable: true},
		{Name: "Onset type", Key: "onset_type", Type: model.ColumnEnum, Nullable: true, Enum: []string{"SSC", "iCME", "SI"}},
		{Name: "Comment", Key: "comment", Type: model.ColumnText, Nullable: true},
	}
	JoinColumns = []model.Column{
		{Name: "Id", Key: "id", Type: model.ColumnInteger},
		{Name: "Event", Key: tables.ColFEIDID, Type: model.ColumnInteger},
		{Name: "Eruption", Key: tables.ColEruptID, Type: model.ColumnInteger, Nullable: true},
		{Name: "Coronal hole", Key: tables.ColCHID, Type: model.ColumnInteger, Nullable: true},
	}
	EruptColumns = []model.Column{
		{Name: "Id", Key: "id", Type: model.ColumnInteger},
		{Name: "Flare start", Key: "flr_start", Type: model.ColumnTime, Nullable: true},
		{Name: "CME time", Key: "cme_time", Type: model.ColumnTime, Nullable: true},
		{Name: "ICME time", Key: "rc_icme_time", Type: model.ColumnTime, Nullable: true},
	}
	CHColumns = []model.Column{
		{Name: "Id", Key: "id", Type: model.ColumnInteger},
		{Name: "Time", Key: "time", Type: model.ColumnTime, Nullable: true},
		{Name: "Tag", Key: "tag", Type: model.ColumnText, Nullable: true},
	}
)

// SeedTables returns a small consistent data set: three events, two of them
// linked to eruption 500 and one to coronal hole 700.
func SeedTables() map[string]*feid.TableData {
	return map[string]*feid.TableData{
		tables.FEID: {
			Columns: FEIDColumns,
			Rows: []model.Row{
				{int64(1), T0, int64(10), 1.5, "SSC", nil},
				{int64(2), T0.Add(2 * time.Hour), int64(20), 3.2, "SI", "big"},
				{int64(3), T0.Add(time.Hour), nil, 5.0, nil, nil},
			},
		},
		tables.FEIDSources: {
			Columns: JoinColumns,
			Rows: []model.Row{
				{int64(100), int64(1), int64(500), nil},
				{int64(101), int64(2), nil, int64(700)},
				{int64(102), int64(3), int64(500), nil},
			},
		},
		tables.SourcesErupt: {
			Columns: EruptColumns,
			Rows:    []model.Row{{int64(500), T0, nil, nil}},
		},
		tables.SourcesCH: {
			Columns: CHColumns,
			Rows:    []model.Row{{int64(700), T0, "CH 1"}},
		},
	}
}

// FakeAPI is an in-memory events API. Committed changes are applied to its
// tables, with created rows receiving server ids. Safe for concurrent use.
type FakeAPI struct {
	mu      sync.Mutex
	tables  map[string]*feid.TableData
	samples []model.Sample
	nextID  int64

	// Err, when set, is returned by every call.
	Err error
	// CommitErr, when set, is returned by CommitChanges.
	CommitErr error
	// OnFetch, when set, runs during FetchTable after the response has been
	// captured, letting tests interleave a second fetch.
	OnFetch func(entity string)

	TableFetches  map[string]int
	SampleFetches int
	Commits       []map[string]tables.Pending
}

// NewFakeAPI creates a fake API serving SeedTables.
func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		tables:       SeedTables(),
		nextID:       1000,
		TableFetches: make(map[string]int),
	}
}

// SetTable replaces the server-side rows of a table.
func (f *FakeAPI) SetTable(entity string, rows []model.Row) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables[entity].Rows = rows
}

// SetSamples replaces the server-side sample list.
func (f *FakeAPI) SetSamples(samples []model.Sample) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.samples = samples
}

// Samples returns the server-side sample list.
func (f *FakeAPI) Samples() []model.Sample {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.samples)
}

func (f *FakeAPI) FetchTable(_ context.Context, entity string, changelog bool) (*feid.TableData, error) {
	f.mu.Lock()
	if f.Err != nil {
		f.mu.Unlock()
		return nil, f.Err
	}
	f.TableFetches[entity]++
	src, ok := f.tables[entity]
	if !ok {
		f.mu.Unlock()
		return nil, fmt.Errorf("unknown entity %q", entity)
	}
	data := &feid.TableData{Columns: slices.Clone(src.Columns), Rows: make([]model.Row, len(src.Rows))}
	for i, r := range src.Rows {
		data.Rows[i] = r.Clone()
	}
	if changelog {
		data.Changelog = src.Changelog
	}
	hook := f.OnFetch
	f.mu.Unlock()

	if hook != nil {
		hook(entity)
	}
	return data, nil
}

func (f *FakeAPI) FetchSamples(context.Context) ([]model.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	f.SampleFetches++
	out := make([]model.Sample, len(f.samples))
	for i, s := range f.samples {
		out[i] = s.Clone()
	}
	return out, nil
}

func (f *FakeAPI) CreateSample(_ context.Context, name string) (model.Sample, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return model.Sample{}, f.Err
	}
	f.nextID++
	s := model.Sample{ID: f.nextID, Name: name, Authors: []string{"tester"}}
	f.samples = append(f.samples, s)
	return s.Clone(), nil
}

func (f *FakeAPI) UpdateSample(_ context.Context, s model.Sample) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	for i := range f.samples {
		if f.samples[i].ID == s.ID {
			f.samples[i] = s.Clone()
			return nil
		}
	}
	return fmt.Errorf("sample %d not found", s.ID)
}

func (f *FakeAPI) RemoveSample(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	n := len(f.samples)
	f.samples = slices.DeleteFunc(f.samples, func(s model.Sample) bool { return s.ID == id })
	if len(f.samples) == n {
		return fmt.Errorf("sample %d not found", id)
	}
	return nil
}

func (f *FakeAPI) CommitChanges(_ context.Context, entities map[string]tables.Pending) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return f.Err
	}
	if f.CommitErr != nil {
		return f.CommitErr
	}

	recorded := make(map[string]tables.Pending, len(entities))
	for name, p := range entities {
		recorded[name] = p.Clone()
		src, ok := f.tables[name]
		if !ok {
			return fmt.Errorf("unknown entity %q", name)
		}
		rows := tables.Materialize(src.Columns, src.Rows, p, nil)
		for _, r := range rows {
			if r.ID() < 0 {
				f.nextID++
				r[0] = f.nextID
			}
		}
		src.Rows = rows
	}
	f.Commits = append(f.Commits, recorded)
	return nil
}

// Compile-time check that FakeAPI implements feid.API
var _ feid.API = (*FakeAPI)(nil)
