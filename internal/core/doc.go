// Package core turns the cash-register and benefits exports into payroll
// flat-file records.
//
// This package holds all domain logic independent of any transport. It is
// used by the HTTP server, the planos CLI and tests without modification.
//
// # Rules
//
// A [Rule] maps one amount column of one input to an SAP concept code. The
// fixed table, in output order:
//
//	Z498  CAJA                  DESCUADRES DE CAJA PARA DESCONTAR
//	Z609  BIG PASS - Descontar  Descontar
//	Y602  BIG PASS - Pagar      Pagar
//	Y608  BIG PASS - People     PEOPLE
//
// # Extraction
//
// [Extract] applies each rule in order. A rule whose amount column is absent
// is skipped. A row is kept when its amount coerces to a number greater than
// zero; the amount is truncated toward zero. The employee id is trimmed and
// the termination date is reformatted, or left empty when it does not parse.
//
// Bad cells never fail a run. A run that matches nothing returns
// [OutcomeEmpty] rather than an error, so callers can tell "nothing to post"
// apart from "could not read the file".
//
// # Service
//
// [Service.Run] reads both inputs concurrently, extracts, and counts the
// outcome in Prometheus metrics. Each run carries a UUID run id in its logs.
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each error category has a unique code for support reference:
//
//   - FILE001-FILE005: File errors (size, unreadable, legacy .xls, missing, empty)
//   - EMPTY001: Run produced no records
//   - UPL004-UPL005: Request cancelled or timed out
package core
