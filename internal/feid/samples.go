package feid

import (
	"context"
	"fmt"
	"slices"

	"feid-go/internal/model"
	"feid-go/internal/sample"
	"feid-go/internal/tables"
)

// ListSamples returns the sample list, using the in-memory copy or the cache
// unless force is set.
func (s *Service) ListSamples(ctx context.Context, force bool) ([]model.Sample, error) {
	if !force {
		s.mu.Lock()
		cached := s.samples
		s.mu.Unlock()
		if cached != nil {
			return cloneSamples(cached), nil
		}
		list, ok, err := s.cache.GetSamples()
		if err != nil {
			s.logger.Warn("reading cached samples", "error", err)
		} else if ok {
			s.setSamples(list)
			return cloneSamples(list), nil
		}
	}

	list, err := s.api.FetchSamples(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching samples: %w", err)
	}
	if err := s.cache.PutSamples(list, s.clock.Now()); err != nil {
		s.logger.Warn("caching samples", "error", err)
	}
	s.setSamples(list)
	s.logger.Debug("fetched samples", "count", len(list))
	return cloneSamples(list), nil
}

func (s *Service) setSamples(list []model.Sample) {
	if list == nil {
		list = []model.Sample{}
	}
	s.mu.Lock()
	s.samples = cloneSamples(list)
	s.mu.Unlock()
}

func cloneSamples(list []model.Sample) []model.Sample {
	out := make([]model.Sample, len(list))
	for i, smp := range list {
		out[i] = smp.Clone()
	}
	return out
}

func (s *Service) invalidateSamples() {
	s.mu.Lock()
	s.samples = nil
	s.mu.Unlock()
	if err := s.cache.InvalidateSamples(); err != nil {
		s.logger.Warn("invalidating cached samples", "error", err)
	}
}

// GetSample returns one sample by id.
func (s *Service) GetSample(ctx context.Context, id int64) (model.Sample, error) {
	list, err := s.ListSamples(ctx, false)
	if err != nil {
		return model.Sample{}, err
	}
	smp := sample.Find(list, id)
	if smp == nil {
		return model.Sample{}, fmt.Errorf("sample %d: %w", id, ErrNotFound)
	}
	return smp.Clone(), nil
}

// ApplySample returns the visible event rows selected by a sample.
func (s *Service) ApplySample(ctx context.Context, id int64) ([]model.Row, []model.Column, error) {
	rows, cols, err := s.Query(ctx, tables.FEID, false)
	if err != nil {
		return nil, nil, err
	}
	list, err := s.ListSamples(ctx, false)
	if err != nil {
		return nil, nil, err
	}
	smp := sample.Find(list, id)
	if smp == nil {
		return nil, nil, fmt.Errorf("sample %d: %w", id, ErrNotFound)
	}
	return sample.Apply(rows, smp, cols, list), cols, nil
}

// SampleMarkers returns the visible event rows with their picking-mode markers
// for a sample being edited. With sortByMarker the rows are ordered by marker
// weight.
func (s *Service) SampleMarkers(ctx context.Context, smp model.Sample, sortByMarker, descending bool) ([]model.Row, []string, []model.Column, error) {
	rows, cols, err := s.Query(ctx, tables.FEID, false)
	if err != nil {
		return nil, nil, nil, err
	}
	markers := sample.Markers(rows, &smp, cols)
	if !sortByMarker {
		return rows, markers, cols, nil
	}

	byID := make(map[int64]string, len(rows))
	for i, r := range rows {
		byID[r.ID()] = markers[i]
	}
	rows = sample.SortByMarker(rows, markers, descending)
	sorted := make([]string, len(rows))
	for i, r := range rows {
		sorted[i] = byID[r.ID()]
	}
	return rows, sorted, cols, nil
}

// CreateSample creates a new empty sample owned by the current user.
func (s *Service) CreateSample(ctx context.Context, name string) (model.Sample, error) {
	created, err := s.api.CreateSample(ctx, name)
	if err != nil {
		return model.Sample{}, fmt.Errorf("creating sample: %w", err)
	}
	s.invalidateSamples()
	s.logger.Info("sample created", "id", created.ID, "name", name)
	return created, nil
}

// SaveSample submits a draft. An unchanged draft is not sent.
func (s *Service) SaveSample(ctx context.Context, d *sample.Draft) (bool, error) {
	if !d.Dirty() {
		return false, nil
	}
	smp := d.Sample()
	if slices.Contains(smp.Includes, smp.ID) {
		return false, fmt.Errorf("sample %d cannot include itself", smp.ID)
	}
	if err := s.api.UpdateSample(ctx, smp); err != nil {
		return false, fmt.Errorf("updating sample %d: %w", smp.ID, err)
	}
	s.invalidateSamples()
	s.logger.Info("sample updated", "id", smp.ID)
	return true, nil
}

// RemoveSample deletes a sample on the server.
func (s *Service) RemoveSample(ctx context.Context, id int64) error {
	if err := s.api.RemoveSample(ctx, id); err != nil {
		return fmt.Errorf("removing sample %d: %w", id, err)
	}
	s.invalidateSamples()
	s.logger.Info("sample removed", "id", id)
	return nil
}
