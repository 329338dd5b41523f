package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newCompactCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compact [NAME...]",
		Short: "Reclaim deleted records from collection indexes",
		Long:  "Rebuild the indexes of the named collections, or of every collection, without their tombstones.",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			names := args
			if len(names) == 0 {
				names = s.client.ListCollections()
			}

			for _, name := range names {
				col, err := s.client.GetCollection(cmd.Context(), name)
				if err != nil {
					return err
				}

				before := col.Stats().Tombstones
				if err := col.Compact(cmd.Context()); err != nil {
					return fmt.Errorf("compact %s: %w", name, err)
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s: reclaimed %d rows\n", name, before)
			}
			return nil
		},
	}

	return cmd
}
