package metadata

// GetAligned rounds operand up to the next multiple of granularity, which
// must be a power of two.
func GetAligned(operand, granularity uint64) uint64 {
	val := (operand + (granularity - 1)) &^ (granularity - 1)
	return val
}

// IsAligned reports whether addr is a multiple of granularity.
func IsAligned(addr, granularity uint64) bool {
	return addr&(granularity-1) == 0
}
