//go:build !unix

package agent

import "context"

// lockFile is a no-op where flock is unavailable; the manager's in-process
// mutex still serializes index updates.
func lockFile(ctx context.Context, path string) (func() error, error) {
	return func() error { return nil }, nil
}
