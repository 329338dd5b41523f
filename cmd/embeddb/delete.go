package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func newDeleteCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete [ID...]",
		Short: "Delete records by id or metadata filter",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			name, _ := cmd.Flags().GetString("collection")
			where, _ := cmd.Flags().GetString("where")

			if (len(args) == 0) == (where == "") {
				return errors.New("delete takes either ids or --where")
			}

			filter, err := parseWhere(where)
			if err != nil {
				return err
			}

			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			col, err := s.client.GetCollection(cmd.Context(), name)
			if err != nil {
				return err
			}

			var n int
			if len(args) > 0 {
				n, err = col.Delete(cmd.Context(), args...)
			} else {
				n, err = col.DeleteWhere(cmd.Context(), filter)
			}
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %d records from %s\n", n, name)
			return nil
		},
	}

	cmd.Flags().StringP("collection", "n", "default", "collection name")
	cmd.Flags().String("where", "", "metadata filter as a JSON where document")

	return cmd
}
