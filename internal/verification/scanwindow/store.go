// Package scanwindow counts verification attempts per serial number over a
// sliding time window. The count feeds the duplicate-scan detector.
package scanwindow

import (
	"context"
	"time"
)

// Store records one scan and returns how many scans the serial has seen
// inside the window, the new scan included.
type Store interface {
	Record(ctx context.Context, serialNumber string, at time.Time, window time.Duration) (int64, error)
}
