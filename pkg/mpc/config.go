package mpc

import "github.com/viethuyvu/MP-SPDZ/internal/params"

// Config carries the tunable parameters of a protocol run.
// The zero value is completed by Validate.
type Config struct {
	// BatchSize is the number of preprocessed items produced per refill.
	BatchSize int
	// BucketSize is the checked-to-used ratio of the triple sacrifice:
	// each output triple costs BucketSize raw triples, of which
	// BucketSize-1 are consumed by the check. Larger buckets buy
	// statistical soundness with communication.
	BucketSize int
	// SecurityParameter is the statistical soundness target in bits for
	// the MAC check and the sacrifice. It cannot exceed the field size.
	SecurityParameter int
}

// Validate fills in defaults and rejects inconsistent settings.
func (c *Config) Validate() error {
	if c.BatchSize == 0 {
		c.BatchSize = params.DefaultBatchSize
	}
	if c.BucketSize == 0 {
		c.BucketSize = params.DefaultBucketSize
	}
	if c.SecurityParameter == 0 {
		c.SecurityParameter = params.StatParam
	}
	if c.BatchSize < 1 {
		return Errorf(KindSetup, "batch size %d must be positive", c.BatchSize)
	}
	if c.BucketSize < 2 {
		return Errorf(KindSetup, "bucket size %d must be at least 2", c.BucketSize)
	}
	if c.SecurityParameter < 1 {
		return Errorf(KindSetup, "security parameter %d must be positive", c.SecurityParameter)
	}
	return nil
}
