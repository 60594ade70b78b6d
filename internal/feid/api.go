package feid

import (
	"context"
	"time"

	"feid-go/internal/model"
	"feid-go/internal/tables"
)

// TableData is one fetched snapshot of an event table.
type TableData struct {
	Columns   []model.Column
	Rows      []model.Row
	Changelog model.Changelog
	FetchedAt time.Time
}

// API is the events API the dashboard reads from and commits to.
type API interface {
	// FetchTable returns the columns and rows of an entity, with the edit
	// history when changelog is set.
	FetchTable(ctx context.Context, entity string, changelog bool) (*TableData, error)

	FetchSamples(ctx context.Context) ([]model.Sample, error)

	// CreateSample creates an empty sample and returns it as stored by the server.
	CreateSample(ctx context.Context, name string) (model.Sample, error)

	UpdateSample(ctx context.Context, s model.Sample) error
	RemoveSample(ctx context.Context, id int64) error

	// CommitChanges submits the pending state of every listed table in a
	// single request. The server applies it atomically.
	CommitChanges(ctx context.Context, entities map[string]tables.Pending) error
}
