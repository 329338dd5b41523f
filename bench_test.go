package embeddb_test

import (
	"context"
	"fmt"
	"strconv"
	"testing"

	"github.com/hupe1980/embeddb"
	"github.com/hupe1980/embeddb/distance"
	"github.com/hupe1980/embeddb/index"
	"github.com/hupe1980/embeddb/metadata"
	"github.com/hupe1980/embeddb/testutil"
)

const benchBuckets = 100 // enables 1% steps via "bucket < threshold"

type benchData struct {
	col     *embeddb.Collection
	vectors [][]float32
	buckets []int64
	queries [][]float32
}

func loadBench(b *testing.B, kind index.Kind, dim, n int) *benchData {
	b.Helper()
	ctx := context.Background()

	client, err := embeddb.NewClient(ctx, embeddb.WithCompactionInterval(0))
	if err != nil {
		b.Fatalf("new client: %v", err)
	}
	b.Cleanup(func() { _ = client.Close() })

	col, err := client.CreateCollection(ctx, "bench",
		embeddb.WithDimension(dim),
		embeddb.WithMetric(distance.MetricEuclidean),
		embeddb.WithIndex(kind))
	if err != nil {
		b.Fatalf("create collection: %v", err)
	}

	rng := testutil.NewRNG(1)
	d := &benchData{
		col:     col,
		vectors: rng.UniformVectors(n, dim),
		buckets: make([]int64, n),
		queries: rng.UniformVectors(10, dim),
	}

	const batchSize = 1000
	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)
		records := make([]embeddb.Record, 0, end-start)
		for i := start; i < end; i++ {
			d.buckets[i] = int64(i) % benchBuckets
			records = append(records, embeddb.Record{
				ID:       strconv.Itoa(i),
				Vector:   d.vectors[i],
				Metadata: metadata.Document{"bucket": metadata.Int(d.buckets[i])},
			})
		}
		if err := col.Add(ctx, records...); err != nil {
			b.Fatalf("add: %v", err)
		}
	}

	return d
}

func BenchmarkAdd(b *testing.B) {
	for _, kind := range []index.Kind{index.KindFlat, index.KindHNSW} {
		b.Run(kind.String(), func(b *testing.B) {
			ctx := context.Background()
			client, err := embeddb.NewClient(ctx, embeddb.WithCompactionInterval(0))
			if err != nil {
				b.Fatal(err)
			}
			defer client.Close()

			col, err := client.CreateCollection(ctx, "bench", embeddb.WithDimension(128), embeddb.WithIndex(kind))
			if err != nil {
				b.Fatal(err)
			}

			vectors := testutil.NewRNG(1).UniformVectors(b.N, 128)
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if err := col.Add(ctx, embeddb.Record{ID: strconv.Itoa(i), Vector: vectors[i]}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkQuery measures unfiltered top-10 queries.
func BenchmarkQuery(b *testing.B) {
	for _, kind := range []index.Kind{index.KindFlat, index.KindHNSW} {
		b.Run(kind.String(), func(b *testing.B) {
			d := loadBench(b, kind, 128, 10_000)
			ctx := context.Background()

			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				if _, err := d.col.Query(ctx, d.queries[i%len(d.queries)], 10, nil); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkFilteredQuerySelectivity measures post-filtered queries at
// several selectivities and reports recall against exact filtered search.
func BenchmarkFilteredQuerySelectivity(b *testing.B) {
	const k = 10

	d := loadBench(b, index.KindHNSW, 128, 20_000)
	ctx := context.Background()

	suites := []struct {
		name string
		sel  float64
	}{
		{name: "01pct", sel: 0.01},
		{name: "05pct", sel: 0.05},
		{name: "10pct", sel: 0.10},
		{name: "50pct", sel: 0.50},
		{name: "90pct", sel: 0.90},
	}

	for _, suite := range suites {
		threshold := max(int64(float64(benchBuckets)*suite.sel), 1)
		filter := metadata.Lt("bucket", threshold)

		// Ground truth over the matching subset, mapped back to record ids.
		var subset [][]float32
		var rows []int
		for i, bucket := range d.buckets {
			if bucket < threshold {
				subset = append(subset, d.vectors[i])
				rows = append(rows, i)
			}
		}

		b.Run(fmt.Sprintf("n%dk/%s", len(d.vectors)/1000, suite.name), func(b *testing.B) {
			b.ResetTimer()
			for i := 0; i < b.N; i++ {
				for _, q := range d.queries {
					_, _ = d.col.Query(ctx, q, k, filter)
				}
			}
			b.StopTimer()

			var sum float64
			for _, q := range d.queries {
				truth := testutil.BruteForceSearch(subset, q, k, distance.MetricEuclidean)
				for j := range truth {
					truth[j].ID = uint32(rows[truth[j].ID])
				}

				res, err := d.col.Query(ctx, q, k, filter)
				if err != nil {
					b.Fatal(err)
				}
				approx := make([]testutil.SearchResult, len(res))
				for j, r := range res {
					id, _ := strconv.Atoi(r.ID)
					approx[j] = testutil.SearchResult{ID: uint32(id), Distance: r.Distance}
				}
				sum += testutil.ComputeRecall(truth, approx)
			}

			b.ReportMetric(float64(len(subset)), "matches")
			b.ReportMetric(float64(len(subset))/float64(len(d.vectors)), "selectivity")
			b.ReportMetric(sum/float64(len(d.queries)), "recall@10")
		})
	}
}
