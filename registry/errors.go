package registry

import "errors"

// ErrManagerNotFound indicates the requested manager is not registered.
var ErrManagerNotFound = errors.New("registry: manager not found")
