// Package embeddb provides a small embedded vector database for Go.
//
// A Client holds named collections. Each Collection stores records (id,
// vector, document, metadata) in memory and indexes their vectors with an
// exact flat index or an approximate HNSW graph. Queries rank by cosine,
// euclidean or dot distance and can be narrowed with a metadata filter.
//
// # Quick Start
//
//	ctx := context.Background()
//	client, _ := embeddb.NewClient(ctx)
//	defer client.Close()
//
//	col, _ := client.CreateCollection(ctx, "tutorials",
//	    embeddb.WithDimension(3),
//	    embeddb.WithMetric(distance.MetricEuclidean))
//
//	_ = col.Add(ctx,
//	    embeddb.Record{ID: "a", Vector: []float32{1, 0, 0}, Metadata: metadata.Document{
//	        "category": metadata.String("beginner"),
//	    }},
//	    embeddb.Record{ID: "b", Vector: []float32{0, 1, 0}},
//	)
//
//	results, _ := col.Query(ctx, []float32{1, 0, 0}, 2, metadata.Eq("category", "beginner"))
//
// # Documents and Embeddings
//
// A collection created WithEmbeddingFunction embeds the documents of records
// added without a vector, and QueryText embeds the query text:
//
//	col, _ := client.GetOrCreateCollection(ctx, "docs",
//	    embeddb.WithEmbeddingFunction(embedding.NewHash(256)))
//	_ = col.Add(ctx, embeddb.Record{ID: "1", Document: "Vectors encode meaning."})
//	results, _ := col.QueryText(ctx, "what do vectors encode?", 1, nil)
//
// # Filtering
//
// Filters are applied after ranking. The candidate pool is sized from the
// estimated filter selectivity and grows until k matches are found, so a
// query returns min(k, matching records) results.
//
// # Persistence
//
// A client created with Open, WithBlobStore or WithSnapshotStore loads the
// latest snapshot at start, writes a new one on Flush and flushes on Close:
//
//	client, _ := embeddb.Open(ctx, "./data")
//	defer client.Close()
//
// Snapshots can live on the local file system, S3 (with a DynamoDB commit
// pointer), MinIO, Badger or SQLite; see the blobstore packages.
//
// # Deletion and Compaction
//
// Deleting or replacing a record tombstones its index entry. A background
// compactor reclaims tombstones once their share exceeds the collection's
// threshold; Compact does so on demand.
package embeddb
