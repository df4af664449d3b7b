package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/maloquacious/backdrop/internal/background"
)

// withBackground opens the datastore, loads the background and hands the
// store to fn. Pending writes are flushed before returning.
func withBackground(cmd *cobra.Command, fn func(ctx context.Context, bg *background.Store) error) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	bg := background.New(s, background.WithLogger(log.With("component", "background")))
	bg.Initialize(ctx)
	defer bg.Close(ctx)

	return fn(ctx, bg)
}

func runBackgroundGet(cmd *cobra.Command, args []string) error {
	return withBackground(cmd, func(ctx context.Context, bg *background.Store) error {
		snap := bg.Get()
		if !snap.IsSet() {
			fmt.Fprintln(cmd.OutOrStdout(), "(unset)")
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), snap.ImageURI)
		return nil
	})
}

func runBackgroundSet(cmd *cobra.Command, args []string) error {
	return withBackground(cmd, func(ctx context.Context, bg *background.Store) error {
		return bg.Set(ctx, args[0]).Wait(ctx)
	})
}

func runBackgroundClear(cmd *cobra.Command, args []string) error {
	return withBackground(cmd, func(ctx context.Context, bg *background.Store) error {
		return bg.Set(ctx, "").Wait(ctx)
	})
}
