package feid

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"feid-go/internal/layout"
	"feid-go/internal/model"
)

// Unlock unlocks the private key so encrypted local-store objects can be read.
func (s *Service) Unlock(passphrase string) error {
	if s.encryptor == nil {
		return nil
	}
	dc, err := s.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking private key: %w", err)
	}
	s.mu.Lock()
	s.decryption = dc
	s.mu.Unlock()
	return nil
}

// putObject serializes v as JSON, encrypts it when an encryptor is set and
// writes it to the local store.
func (s *Service) putObject(ctx context.Context, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", name, err)
	}
	if s.encryptor != nil {
		var buf bytes.Buffer
		if err := s.encryptor.Encrypt(bytes.NewReader(data), &buf); err != nil {
			return fmt.Errorf("encrypting %s: %w", name, err)
		}
		data = buf.Bytes()
	}
	if err := s.store.Put(ctx, s.opts.ProfileID, name, bytes.NewReader(data), int64(len(data))); err != nil {
		return fmt.Errorf("storing %s: %w", name, err)
	}
	return nil
}

// getObject reads and decodes an object into v. It returns ErrNotFound when
// nothing is stored and ErrLocked when the object is encrypted but the key
// has not been unlocked.
func (s *Service) getObject(ctx context.Context, name string, v any) error {
	var buf bytes.Buffer
	if err := s.store.Get(ctx, s.opts.ProfileID, name, &buf); err != nil {
		return err
	}
	data := buf.Bytes()
	if s.encryptor != nil {
		s.mu.Lock()
		dc := s.decryption
		s.mu.Unlock()
		if dc == nil {
			return ErrLocked
		}
		var plain bytes.Buffer
		if err := dc.Decrypt(bytes.NewReader(data), &plain); err != nil {
			return fmt.Errorf("decrypting %s: %w", name, err)
		}
		data = plain.Bytes()
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", name, err)
	}
	return nil
}

// loadBestEffort reads an object, reporting whether the stored value should
// be replaced by a default. Only ErrLocked and store failures are errors.
func (s *Service) loadBestEffort(ctx context.Context, name string, v any) (useDefault bool, err error) {
	err = s.getObject(ctx, name, v)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, ErrNotFound):
		return true, nil
	case errors.Is(err, ErrLocked):
		return false, err
	}
	var syntax *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntax) || errors.As(err, &typeErr) {
		s.logger.Warn("stored object is malformed, using default", "name", name, "error", err)
		return true, nil
	}
	return false, fmt.Errorf("loading %s: %w", name, err)
}

// LoadLayouts returns the persisted layouts, or the default collection when
// none are stored or the stored value does not have the expected shape.
func (s *Service) LoadLayouts(ctx context.Context) (*layout.Layouts, error) {
	var ls layout.Layouts
	useDefault, err := s.loadBestEffort(ctx, LayoutsKey, &ls)
	if err != nil {
		return nil, err
	}
	if useDefault {
		return layout.Default(), nil
	}
	if !ls.Valid() {
		s.logger.Warn("stored layouts are malformed, using default")
		return layout.Default(), nil
	}
	return &ls, nil
}

// SaveLayouts persists the whole layouts object.
func (s *Service) SaveLayouts(ctx context.Context, ls *layout.Layouts) error {
	return s.putObject(ctx, LayoutsKey, ls)
}

// UpdateLayout loads the layouts, applies fn to the active layout and
// persists the result. Nothing is saved if fn fails.
func (s *Service) UpdateLayout(ctx context.Context, fn func(*layout.Layout) error) (*layout.Layouts, error) {
	ls, err := s.LoadLayouts(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(ls.Current()); err != nil {
		return nil, err
	}
	if err := s.SaveLayouts(ctx, ls); err != nil {
		return nil, err
	}
	return ls, nil
}

// SplitNode splits a leaf of the active layout, returning the ids of the leaf
// that inherits the item and of the new leaf.
func (s *Service) SplitNode(ctx context.Context, id string, orientation layout.Orientation, inverse, duplicate bool) (string, string, error) {
	var keep, added string
	_, err := s.UpdateLayout(ctx, func(l *layout.Layout) error {
		var err error
		keep, added, err = l.SplitNode(id, orientation, inverse, duplicate, s.idgen.New)
		return err
	})
	if err != nil {
		return "", "", err
	}
	s.logger.Info("layout node split", "node", id, "children", []string{keep, added})
	return keep, added, nil
}

// RelinquishNode removes a leaf of the active layout.
func (s *Service) RelinquishNode(ctx context.Context, id string) error {
	_, err := s.UpdateLayout(ctx, func(l *layout.Layout) error { return l.RelinquishNode(id) })
	return err
}

// UpdateRatio sets the ratio of a split of the active layout.
func (s *Service) UpdateRatio(ctx context.Context, id string, ratio float64) error {
	_, err := s.UpdateLayout(ctx, func(l *layout.Layout) error { return l.UpdateRatio(id, ratio) })
	return err
}

// SwapItems exchanges two leaves' items in the active layout.
func (s *Service) SwapItems(ctx context.Context, a, b string) error {
	_, err := s.UpdateLayout(ctx, func(l *layout.Layout) error { return l.SwapItems(a, b) })
	return err
}

// SetItem sets the panel shown by a leaf of the active layout.
func (s *Service) SetItem(ctx context.Context, id string, item layout.Item) error {
	_, err := s.UpdateLayout(ctx, func(l *layout.Layout) error { return l.SetItem(id, item) })
	return err
}

// SetActiveLayout switches to the named layout, creating it if needed.
func (s *Service) SetActiveLayout(ctx context.Context, name string) error {
	ls, err := s.LoadLayouts(ctx)
	if err != nil {
		return err
	}
	ls.Active = name
	ls.Current()
	return s.SaveLayouts(ctx, ls)
}

// LoadSettings returns the persisted settings, or the defaults.
func (s *Service) LoadSettings(ctx context.Context) (model.Settings, error) {
	settings := model.DefaultSettings()
	useDefault, err := s.loadBestEffort(ctx, SettingsKey, &settings)
	if err != nil {
		return model.Settings{}, err
	}
	if useDefault {
		return model.DefaultSettings(), nil
	}
	if settings.PanelDefaults == nil {
		settings.PanelDefaults = map[string]string{}
	}
	return settings, nil
}

// SaveSettings persists the settings object.
func (s *Service) SaveSettings(ctx context.Context, settings model.Settings) error {
	return s.putObject(ctx, SettingsKey, settings)
}
