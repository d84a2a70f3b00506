// internal/common/database/database.go
package database

import (
	"context"
	"errors"
	"fmt"
)

// Dependency is a backing service reported by readiness checks.
type Dependency interface {
	Name() string
	Ping(ctx context.Context) error
	Close() error
}

// PingAll pings every dependency and joins the failures.
func PingAll(ctx context.Context, deps ...Dependency) error {
	var errs []error
	for _, d := range deps {
		if d == nil {
			continue
		}
		if err := d.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", d.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// CloseAll closes every dependency in reverse order.
func CloseAll(deps ...Dependency) error {
	var errs []error
	for i := len(deps) - 1; i >= 0; i-- {
		if deps[i] == nil {
			continue
		}
		if err := deps[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", deps[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}
