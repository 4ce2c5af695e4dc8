// SPDX-License-Identifier: MPL-2.0

//go:build !linux

package supervisor

// runLock is the non-Linux stub. The in-process mutex already serializes
// sessions within one trainctl; cross-process serialization via flock is a
// Linux-only extra.
type runLock struct{}

// acquireRunLock always succeeds on non-Linux platforms.
func acquireRunLock() (*runLock, error) {
	return &runLock{}, nil
}

// Release is a no-op on non-Linux platforms.
func (l *runLock) Release() {}
