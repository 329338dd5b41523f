package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/hupe1980/embeddb"
	"github.com/hupe1980/embeddb/chunk"
	"github.com/hupe1980/embeddb/metadata"
)

func newIngestCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest FILE",
		Short: "Split a text file into chunks, embed and store them",
		Long: `Split a text file into chunks, embed each chunk with the configured
embedding provider and upsert it into a collection. Use "-" to read stdin.

Chunk ids are derived from the source name and the chunk text, so ingesting
the same file twice updates the existing records instead of duplicating them.
The same text from two different sources is stored twice.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			flags := cmd.Flags()
			name, _ := flags.GetString("collection")
			modeName, _ := flags.GetString("mode")
			minLen, _ := flags.GetInt("min-length")
			maxLen, _ := flags.GetInt("max-length")
			prefix, _ := flags.GetString("id-prefix")
			batch, _ := flags.GetInt("batch-size")

			mode, err := chunk.ParseMode(modeName)
			if err != nil {
				return err
			}
			if batch <= 0 {
				return fmt.Errorf("batch-size must be positive, got %d", batch)
			}

			text, source, err := readInput(cmd, args[0])
			if err != nil {
				return err
			}

			chunks := chunk.Split(text, func(o *chunk.Options) {
				o.Mode = mode
				o.MinLength = minLen
				o.MaxLength = maxLen
				o.IDPrefix = prefix
				o.Source = source
			})
			if len(chunks) == 0 {
				return fmt.Errorf("%s: no chunks longer than %d characters", source, minLen)
			}

			s, err := a.open(cmd)
			if err != nil {
				return err
			}
			defer closeSession(s, &err)

			col, err := s.client.GetOrCreateCollection(cmd.Context(), name,
				embeddb.WithEmbeddingFunction(s.embedder()))
			if err != nil {
				return err
			}

			// Repeated sections share a content id; keep the first.
			seen := make(map[string]struct{}, len(chunks))
			records := make([]embeddb.Record, 0, len(chunks))
			for _, c := range chunks {
				if _, dup := seen[c.ID]; dup {
					continue
				}
				seen[c.ID] = struct{}{}
				records = append(records, embeddb.Record{
					ID:       c.ID,
					Document: c.Text,
					Metadata: metadata.Document{
						"source": metadata.String(source),
						"chunk":  metadata.Int(int64(c.Index)),
					},
				})
			}

			for start := 0; start < len(records); start += batch {
				end := min(start+batch, len(records))
				if err := col.Upsert(cmd.Context(), records[start:end]...); err != nil {
					return fmt.Errorf("ingest chunks [%d:%d]: %w", start, end, err)
				}
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "ingested %d chunks from %s into %s (%d records)\n",
				len(records), source, col.Name(), col.Count())
			return nil
		},
	}

	defaults := chunk.DefaultOptions()
	cmd.Flags().StringP("collection", "n", "default", "collection name")
	cmd.Flags().String("mode", defaults.Mode.String(), "split mode (paragraphs, pages)")
	cmd.Flags().Int("min-length", defaults.MinLength, "drop chunks of at most this many characters")
	cmd.Flags().Int("max-length", 2000, "split chunks longer than this many characters (0 disables)")
	cmd.Flags().String("id-prefix", "", "sequential ids <prefix>_doc_<n> instead of content ids")
	cmd.Flags().Int("batch-size", 64, "chunks embedded per request")

	return cmd
}

func readInput(cmd *cobra.Command, path string) (text, source string, err error) {
	if path == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", "", fmt.Errorf("reading stdin: %w", err)
		}
		return string(data), "stdin", nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	return string(data), filepath.Base(path), nil
}
