// Package models contains GORM persistence models for the reporting pipeline.
// They are kept separate from the domain layer so the report calculus stays
// free of ORM concerns.
//
// Structure:
// - orders.go: source tables owned by the storefront (orders, items, customers)
// - catalog.go: source catalog tables (products, categories, coupons)
// - reports.go: derived report tables the sync pipeline writes
//
// The pipeline never writes to a source table.
package models
