// Package billing contains the fiscal billing domain: the fiscal
// calendar, meter readings, per-period unit bills with their payment
// history, and the billing policy configured per client.
//
// Bills are append-only ledger entries. They are created from a meter
// reading, accrue at most one penalty per period, and are mutated only
// through payment application or the audited correction path. Money is
// integer minor-currency units throughout; the cascade that distributes
// an incoming payment across bills lives in the application layer.
package billing
