package dispatch

import (
	"fmt"

	"github.com/proteogen/vcfbatch/internal/config"
)

// Partition splits ids into ordered, contiguous batches of batchSize
// identifiers each; the final batch holds the remainder. Concatenating the
// returned batches in order reproduces ids exactly.
func Partition(ids []string, batchSize int) ([][]string, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("%w: batch size must be positive, got %d",
			config.ErrInvalidConfiguration, batchSize)
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: no patient identifiers to partition",
			config.ErrInvalidConfiguration)
	}

	total := len(ids) / batchSize
	if len(ids)%batchSize > 0 {
		total++
	}

	batches := make([][]string, 0, total)
	for start := 0; start < len(ids); start += batchSize {
		end := start + batchSize
		if end > len(ids) {
			end = len(ids)
		}
		batches = append(batches, ids[start:end])
	}
	return batches, nil
}
