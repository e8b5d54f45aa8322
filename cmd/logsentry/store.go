package main

import (
	"context"
	"encoding/json"

	"github.com/go-errors/errors"

	"github.com/strrl/logsentry/pkg/engine"
	"github.com/strrl/logsentry/pkg/store"
)

func openStore(ctx context.Context) (*store.DuckDBStore, error) {
	s, err := store.NewDuckDBStore(cfg.DB)
	if err != nil {
		return nil, errors.Errorf("store: %w", err)
	}
	if err := s.Init(ctx); err != nil {
		_ = s.Close()
		return nil, errors.Errorf("store init: %w", err)
	}
	return s, nil
}

// loadState restores eng from the saved snapshot. It reports false when
// nothing was saved yet.
func loadState(ctx context.Context, s store.Store, eng *engine.Engine) (bool, error) {
	data, err := s.LoadState(ctx, cfg.StateName)
	if errors.Is(err, store.ErrStateNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var st engine.State
	if err := json.Unmarshal(data, &st); err != nil {
		return false, errors.Errorf("decode state %s: %w", cfg.StateName, err)
	}
	if err := eng.Restore(st); err != nil {
		return false, errors.Errorf("restore state %s: %w", cfg.StateName, err)
	}
	return true, nil
}

func saveState(ctx context.Context, s store.Store, eng *engine.Engine) error {
	data, err := json.Marshal(eng.Snapshot())
	if err != nil {
		return errors.Errorf("encode state: %w", err)
	}
	return s.SaveState(ctx, cfg.StateName, data)
}
