// Package pgstore persists subscription records in PostgreSQL.
//
// Preconditions live in each UPDATE's WHERE clause, so concurrent webhook
// deliveries for the same user serialize on the row and at most one of them
// applies. Partial unique indexes keep provider subscription and customer IDs
// bound to a single user.
package pgstore
