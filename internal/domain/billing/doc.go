// Package billing contains the billing calculation core: pricing rule
// (tariff) resolution, meter reading window resolution, consumption
// calculation, the pricing engine, and the invoice aggregate.
//
// The package depends only on repository interfaces defined here; it never
// touches a concrete storage technology. All monetary math uses the Money
// value object backed by shopspring/decimal, rounded half-up to the smallest
// currency unit at the point an invoice item is created, so invoice totals
// are always the exact sum of their persisted items.
package billing
