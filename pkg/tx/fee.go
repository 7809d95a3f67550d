package tx

// Average serialized costs used before inputs are finalized: a signed
// P2PKH input runs about 148 bytes, a P2PKH output 34, and the fixed
// fields (version, counts, locktime) about 10.
const (
	approxInputSize  = 148
	approxOutputSize = 34
	approxOverhead   = 10
)

// EstimateSize returns the approximate serialized size of a transaction
// with the given input and output counts.
func EstimateSize(numInputs, numOutputs int) int {
	return approxOverhead + approxInputSize*numInputs + approxOutputSize*numOutputs
}

// EstimateFee returns the approximate fee for a transaction with the given
// shape at feeRate satoshis per byte.
func EstimateFee(numInputs, numOutputs int, feeRate uint64) uint64 {
	return uint64(EstimateSize(numInputs, numOutputs)) * feeRate
}
