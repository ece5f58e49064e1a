package tanks

import (
	"context"
	"fmt"
)

// FindNeighbors returns the readings of the reading's tank immediately before
// and after it in (CreatedAt, ID) order. Either may be nil. The reading itself
// is skipped even if it is still stored.
func FindNeighbors(ctx context.Context, readings ReadingStorage, reading VolumeReading) (previous, next *VolumeReading, err error) {
	all, err := readings.ReadingsByTank(ctx, reading.TankID)
	if err != nil {
		return nil, nil, fmt.Errorf("find neighbors of reading %d: %w", reading.ID, err)
	}
	for i := range all {
		candidate := all[i]
		if candidate.ID == reading.ID {
			continue
		}
		if candidate.before(reading) {
			previous = &candidate
			continue
		}
		next = &candidate
		break
	}
	return previous, next, nil
}
