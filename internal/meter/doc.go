// Package meter holds the pure computations behind the dashboard: device
// resolution, usage deltas, billing and the 7-day trend. Nothing in this
// package performs I/O; callers read the inputs from the store and carry
// out the returned writes.
package meter
