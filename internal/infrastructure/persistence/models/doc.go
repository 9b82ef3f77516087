// Package models contains GORM-specific persistence models that map to
// database tables. They are kept separate from the domain entities so the
// domain layer stays free of ORM concerns: models carry the GORM tags and
// table mappings, and mappers convert between the two representations.
//
// Structure:
// - base.go: shared persistence bases (BaseModel, AggregateModel, ClientAggregateModel)
// - billing.go: bill, meter reading and year marker models
// - credit.go: credit balance and credit transaction models
package models
