package store

import "errors"

var errMissingIntent = errors.New("entity model requires an intent")
