package store

import (
	"time"

	"google.golang.org/protobuf/types/known/durationpb"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Stats is a point-in-time introspection snapshot of the store. No command
// in pkg/port reads it. The timestamp and uptime fields use protobuf's
// well-known wrapper types, so a caller can serialize them without this
// package depending on any hand-generated protobuf message of its own.
type Stats struct {
	CapturedAt    *timestamppb.Timestamp
	Uptime        *durationpb.Duration
	Size          int
	ExpiringSize  int
	BucketCount   int
	Rehashes      int64
	Sweeps        int64
	ExpiredTotal  int64
}

// Stats captures a snapshot of the store's current size and index shape.
// It does not acquire any lock of its own; callers must invoke it through
// the same Loop as every other facade operation.
func (s *Store) Stats(startedAt time.Time) Stats {
	return Stats{
		CapturedAt:   timestamppb.Now(),
		Uptime:       durationpb.New(time.Since(startedAt)),
		Size:         s.primary.Size(),
		ExpiringSize: s.expiry.Size(),
		BucketCount:  s.primary.BucketCount(),
		Rehashes:     s.rehashCount,
		Sweeps:       s.sweepCount,
		ExpiredTotal: s.expiredCount,
	}
}
