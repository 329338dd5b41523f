// Package metadata provides typed record metadata and predicate filters.
//
// # Metadata Types
//
// Metadata values are a tagged variant:
//
//   - String: metadata.String("tech")
//   - Int: metadata.Int(2024)
//   - Float: metadata.Float(3.14)
//   - Bool: metadata.Bool(true)
//
// Example:
//
//	meta := metadata.Document{
//	    "category": metadata.String("tech"),
//	    "year":     metadata.Int(2024),
//	}
//
// # Filter Operations
//
// Build predicate trees with:
//
//   - Eq, Ne: equality
//   - Gt, Gte, Lt, Lte: ranges over numbers or strings
//   - In, Nin: set membership
//   - Contains: substring match
//   - And, Or: boolean combination
//
// Example:
//
//	filter := metadata.And(
//	    metadata.Eq("category", "tech"),
//	    metadata.Gte("year", 2023),
//	    metadata.Or(
//	        metadata.Eq("status", "published"),
//	        metadata.Eq("status", "featured"),
//	    ),
//	)
//
// A leaf whose key is missing from a document evaluates to false instead
// of failing. Malformed trees are reported by Filter.Validate as
// *InvalidFilterError.
//
// Filters can also be parsed from where documents with ParseWhere and
// ParseWhereJSON.
package metadata
