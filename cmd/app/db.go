package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/maloquacious/backdrop/internal/store"
	"github.com/maloquacious/backdrop/internal/store/sqlite"
)

// openStore opens the configured datastore and requires it to be ready.
// The in-memory datastore is created on the fly.
func openStore() (*sqlite.SQLiteStore, error) {
	if cfg.Store.Path == store.MemoryPath {
		s := sqlite.New(store.MemoryPath, schemaVersion)
		if err := s.Open(); err != nil {
			return nil, err
		}
		if err := s.InitSchema(schemaVersion); err != nil {
			_ = s.Close()
			return nil, err
		}
		return s, nil
	}

	s, err := openExisting()
	if err != nil {
		return nil, err
	}
	state, err := s.CheckState()
	if err != nil {
		_ = s.Close()
		return nil, err
	}
	switch state {
	case store.StateReady:
		return s, nil
	case store.StateVersionMismatch:
		_ = s.Close()
		return nil, fmt.Errorf("datastore schema is out of date; run 'app db upgrade'")
	default:
		_ = s.Close()
		return nil, fmt.Errorf("datastore is %s; run 'app db create'", state)
	}
}

// openExisting opens the datastore file without checking its schema.
func openExisting() (*sqlite.SQLiteStore, error) {
	storePath := store.GetStorePath(cfg.Store.Path)
	exists, err := store.CheckExists(storePath)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("datastore not found in %s; run 'app db create'", storePath)
	}
	s := sqlite.New(store.GetDBPath(storePath), schemaVersion)
	if err := s.Open(); err != nil {
		return nil, err
	}
	return s, nil
}

func runDBCreate(cmd *cobra.Command, args []string) error {
	if cfg.Store.Path == store.MemoryPath {
		return errors.New("the in-memory datastore is created by 'serve'")
	}
	storePath := store.GetStorePath(cfg.Store.Path)
	exists, err := store.CheckExists(storePath)
	if err != nil {
		return err
	}
	if exists {
		return fmt.Errorf("datastore already exists in %s", storePath)
	}
	if err := os.MkdirAll(storePath, 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}

	s := sqlite.New(store.GetDBPath(storePath), schemaVersion)
	if err := s.Open(); err != nil {
		return err
	}
	defer s.Close()

	if err := s.InitSchema(schemaVersion); err != nil {
		return err
	}
	log.Info("db create: initialized %s at schema %s", store.GetDBPath(storePath), schemaVersion)
	return nil
}

func runDBUpgrade(cmd *cobra.Command, args []string) error {
	s, err := openExisting()
	if err != nil {
		return err
	}
	defer s.Close()

	before, err := s.GetSchemaVersion()
	if err != nil {
		return err
	}
	if err := s.Upgrade(schemaVersion); err != nil {
		return err
	}
	if before == schemaVersion {
		log.Info("db upgrade: already at schema %s", schemaVersion)
		return nil
	}
	log.Info("db upgrade: %s -> %s", before, schemaVersion)
	return nil
}

func runDBVerify(cmd *cobra.Command, args []string) error {
	s, err := openExisting()
	if err != nil {
		return err
	}
	defer s.Close()

	state, err := s.CheckState()
	if err != nil {
		return err
	}
	current, err := s.GetSchemaVersion()
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]string{
		"state":          state.String(),
		"schemaVersion":  current,
		"expectedSchema": schemaVersion,
	}); err != nil {
		return err
	}
	if state != store.StateReady {
		return fmt.Errorf("datastore is %s", state)
	}
	return nil
}
