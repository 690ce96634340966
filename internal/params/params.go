package params

const (
	// SecParam is the computational security parameter in bits, used to size
	// seeds and commitments.
	SecParam = 256
	SecBytes = SecParam / 8

	// StatParam is the default statistical security target for the MAC check
	// and the triple sacrifice. It can be lowered per run through the
	// configuration, never raised above the field size.
	StatParam = 40

	// SeedBytes is the length of the seeds feeding the synchronized
	// deterministic streams.
	SeedBytes = 32

	// CommitBytes is the length of hash commitments exchanged during joint
	// coin flips and seed agreement.
	CommitBytes = 32

	// DefaultBatchSize is the number of preprocessed items produced per
	// refill when the caller does not configure one.
	DefaultBatchSize = 1 << 10

	// DefaultBucketSize is the default checked-to-used ratio of the triple
	// sacrifice: one output triple per bucket, the rest are consumed by the
	// check.
	DefaultBucketSize = 2
)
