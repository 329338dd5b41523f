package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hupe1980/embeddb"
	"github.com/hupe1980/embeddb/distance"
	"github.com/hupe1980/embeddb/index"
	"github.com/hupe1980/embeddb/index/hnsw"
)

func newCollectionsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "collections",
		Aliases: []string{"collection", "col"},
		Short:   "Manage collections",
	}

	cmd.AddCommand(
		newCollectionsListCmd(a),
		newCollectionsCreateCmd(a),
		newCollectionsDeleteCmd(a),
	)

	return cmd
}

func newCollectionsListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List collections",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			names := s.client.ListCollections()
			if len(names) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "no collections")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "NAME\tRECORDS\tDIMENSION\tMETRIC\tINDEX\tTOMBSTONES")
			for _, name := range names {
				col, err := s.client.GetCollection(cmd.Context(), name)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%d\n", name, col.Count(), col.Dimension(),
					col.Metric(), col.IndexKind(), col.Stats().Tombstones)
			}
			return w.Flush()
		},
	}
}

func newCollectionsCreateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create NAME",
		Short: "Create a collection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			optFns, err := collectionFlags(cmd)
			if err != nil {
				return err
			}

			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			col, err := s.client.CreateCollection(cmd.Context(), args[0], optFns...)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "created collection %s (%s, %s)\n", col.Name(), col.Metric(), col.IndexKind())
			return nil
		},
	}

	cmd.Flags().Int("dimension", 0, "vector dimension (0 infers it from the first add)")
	cmd.Flags().String("metric", "cosine", "distance metric (cosine, euclidean, dot)")
	cmd.Flags().String("index", "flat", "index kind (flat, hnsw)")
	cmd.Flags().Int("m", hnsw.DefaultOptions.M, "hnsw: connections per node")
	cmd.Flags().Int("ef-construction", hnsw.DefaultOptions.EfConstruction, "hnsw: build candidate list size")
	cmd.Flags().Int("ef-search", hnsw.DefaultOptions.EfSearch, "hnsw: search candidate list size")
	cmd.Flags().Float64("compaction-threshold", embeddb.DefaultCompactionThreshold, "tombstone ratio that triggers compaction")

	return cmd
}

func collectionFlags(cmd *cobra.Command) ([]embeddb.CollectionOption, error) {
	flags := cmd.Flags()

	dim, _ := flags.GetInt("dimension")
	metricName, _ := flags.GetString("metric")
	kindName, _ := flags.GetString("index")
	threshold, _ := flags.GetFloat64("compaction-threshold")

	metric, err := distance.ParseMetric(metricName)
	if err != nil {
		return nil, err
	}
	kind, err := index.ParseKind(kindName)
	if err != nil {
		return nil, err
	}

	optFns := []embeddb.CollectionOption{
		embeddb.WithDimension(dim),
		embeddb.WithMetric(metric),
		embeddb.WithCompactionThreshold(threshold),
	}

	if kind == index.KindHNSW {
		m, _ := flags.GetInt("m")
		efc, _ := flags.GetInt("ef-construction")
		efs, _ := flags.GetInt("ef-search")
		optFns = append(optFns, embeddb.WithHNSWOptions(func(o *hnsw.Options) {
			o.M = m
			o.EfConstruction = efc
			o.EfSearch = efs
		}))
	}

	return append(optFns, embeddb.WithIndex(kind)), nil
}

func newCollectionsDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete NAME",
		Short: "Delete a collection and all of its records",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			if err := s.client.DeleteCollection(cmd.Context(), args[0]); err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted collection %s\n", args[0])
			return nil
		},
	}
}

// closeSession closes s and reports its error unless *err is already set.
func closeSession(s *session, err *error) {
	if cerr := s.Close(); *err == nil {
		*err = cerr
	}
}
