package main

import (
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/embeddb"
	"github.com/hupe1980/embeddb/metadata"
)

func newQueryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "query TEXT",
		Short: "Find the records most similar to TEXT",
		Example: `  embeddb query "how are vectors stored?" -k 3
  embeddb query "release notes" --where '{"year": {"$gte": 2024}}'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			flags := cmd.Flags()
			name, _ := flags.GetString("collection")
			k, _ := flags.GetInt("top")
			where, _ := flags.GetString("where")

			filter, err := parseWhere(where)
			if err != nil {
				return err
			}

			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			col, err := s.client.GetCollection(cmd.Context(), name, embeddb.WithEmbeddingFunction(s.embedder()))
			if err != nil {
				return err
			}

			results, err := col.QueryText(cmd.Context(), strings.Join(args, " "), k, filter)
			if err != nil {
				return err
			}
			if len(results) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no results")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "RANK\tID\tDISTANCE\tDOCUMENT")
			for i, r := range results {
				_, _ = fmt.Fprintf(w, "%d\t%s\t%.4f\t%s\n", i+1, r.ID, r.Distance, snippet(r.Document, 60))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringP("collection", "n", "default", "collection name")
	cmd.Flags().IntP("top", "k", 5, "number of results")
	cmd.Flags().String("where", "", "metadata filter as a JSON where document")

	return cmd
}

func newGetCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [ID...]",
		Short: "Print records by id or metadata filter",
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			name, _ := cmd.Flags().GetString("collection")
			where, _ := cmd.Flags().GetString("where")

			if len(args) == 0 && where == "" {
				return errors.New("get needs at least one id or --where")
			}
			if len(args) > 0 && where != "" {
				return errors.New("get takes ids or --where, not both")
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

			var records []embeddb.Record
			if len(args) > 0 {
				records, err = col.Get(cmd.Context(), args...)
			} else {
				records, err = col.GetWhere(cmd.Context(), filter)
			}
			if err != nil {
				return err
			}

			for _, r := range records {
				printRecord(cmd.OutOrStdout(), r)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%d of %d records\n", len(records), col.Count())
			return nil
		},
	}

	cmd.Flags().StringP("collection", "n", "default", "collection name")
	cmd.Flags().String("where", "", "metadata filter as a JSON where document")

	return cmd
}

func parseWhere(where string) (*metadata.Filter, error) {
	if strings.TrimSpace(where) == "" {
		return nil, nil
	}
	filter, err := metadata.ParseWhereJSON([]byte(where))
	if err != nil {
		return nil, fmt.Errorf("--where: %w", err)
	}
	return filter, nil
}

func printRecord(w io.Writer, r embeddb.Record) {
	_, _ = fmt.Fprintf(w, "id: %s\n", r.ID)

	if len(r.Metadata) > 0 {
		keys := make([]string, 0, len(r.Metadata))
		for k := range r.Metadata {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = fmt.Sprintf("%s=%v", k, r.Metadata[k].Any())
		}
		_, _ = fmt.Fprintf(w, "metadata: %s\n", strings.Join(pairs, " "))
	}
	if r.Document != "" {
		_, _ = fmt.Fprintf(w, "document: %s\n", r.Document)
	}
	_, _ = fmt.Fprintln(w)
}

// snippet shortens s to n runes on a single line.
func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > n {
		return string(r[:n-1]) + "…"
	}
	return s
}
