package main

import "errors"

var (
	errUnknownDriver    = errors.New("unknown backend driver")
	errInvalidConfig    = errors.New("invalid configuration")
	errMissingEventFile = errors.New("event file is required")
	errInvalidUserID    = errors.New("invalid user ID")
	errRollbackMongo    = errors.New("rollback is only supported for the postgres store")
)
