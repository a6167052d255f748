// Package mongostore persists subscription records in MongoDB.
//
// Documents are keyed by user ID. Preconditions are part of each UpdateOne
// filter so the server evaluates and applies them atomically. Partial unique
// indexes keep a provider subscription bound to one user. WithinTx needs a
// replica set deployment.
package mongostore
