// Package testutil provides testing utilities for embeddb.
//
// This package is intended for use in tests only. It provides helpers for
// generating seeded random vectors, computing exact nearest neighbours and
// verifying search recall.
//
//	rng := testutil.NewRNG(seed)
//	data := rng.UnitVectors(1000, 32)
//	truth := testutil.BruteForceSearch(data, query, 10, distance.MetricEuclidean)
//	recall := testutil.ComputeRecall(truth, approx)
package testutil
