package domain

// Commitment levels reported by getSignatureStatuses, weakest first.
type Commitment string

const (
	CommitmentProcessed Commitment = "processed"
	CommitmentConfirmed Commitment = "confirmed"
	CommitmentFinalized Commitment = "finalized"
)

// rank orders commitment levels; unknown levels rank below processed.
func (c Commitment) rank() int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	}
	return 0
}

// AtLeast reports whether c is as strong as want.
func (c Commitment) AtLeast(want Commitment) bool {
	return c.rank() >= want.rank() && c.rank() > 0
}

// SignatureStatus is what the node knows about a submitted transaction.
type SignatureStatus struct {
	Signature  string
	Found      bool // false when the node has not seen the signature yet
	Slot       uint64
	Commitment Commitment
	// Err is the on-chain error, empty for a successful transaction.
	Err string
}

// Failed reports whether the transaction landed with an error.
func (s SignatureStatus) Failed() bool {
	return s.Found && s.Err != ""
}

// Landed reports whether the transaction succeeded at commitment want.
func (s SignatureStatus) Landed(want Commitment) bool {
	return s.Found && s.Err == "" && s.Commitment.AtLeast(want)
}
