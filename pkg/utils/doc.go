// Package utils provides bounded concurrency with panic recovery for bulk
// store writes.
package utils
