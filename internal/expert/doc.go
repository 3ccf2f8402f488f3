// Package expert holds the catalog of experts available to a deployment.
//
// A catalog is built once at startup from configuration, validated, and never
// mutated afterwards. Lookups return copies so callers cannot alter it.
package expert
