package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/maloquacious/backdrop/internal/messages"
)

func openHistory() (*messages.History, func() error, error) {
	s, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	return messages.NewHistory(s, cfg.Messages.Limit, log), s.Close, nil
}

func runMessagesList(cmd *cobra.Command, args []string) error {
	h, closeFn, err := openHistory()
	if err != nil {
		return err
	}
	defer closeFn()

	list := h.List(context.Background())
	if len(list) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no messages")
		return nil
	}
	now := time.Now()
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	for _, m := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Age(now), m.Title, m.Body)
	}
	return tw.Flush()
}

func runMessagesClear(cmd *cobra.Command, args []string) error {
	h, closeFn, err := openHistory()
	if err != nil {
		return err
	}
	defer closeFn()
	return h.Clear(context.Background())
}
