// Package binder decodes HTTP request bodies into typed request structs.
//
// JSON is strict: it requires an application/json content type, enforces a
// size limit, rejects unknown fields and trailing data, and trims string
// fields. Failures wrap the package sentinels so error handlers can map them
// to status codes with errors.Is.
package binder
