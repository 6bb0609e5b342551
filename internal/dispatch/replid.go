package dispatch

import "crypto/rand"

const replIDLen = 40

const hexAlphabet = "0123456789abcdef"

// newReplicationID produces a 40-character hex replication ID, the
// same shape as Redis's own run_id. A uuid-style generator was
// considered but rejected: it emits 36 characters with hyphens, not
// 40 hex digits.
func newReplicationID() string {
	b := make([]byte, replIDLen/2)
	if _, err := rand.Read(b); err != nil {
		// crypto/rand on a supported platform does not fail; if it
		// somehow does, degrade to an all-zero id rather than panic.
		return string(make([]byte, replIDLen))
	}
	out := make([]byte, replIDLen)
	for i, c := range b {
		out[2*i] = hexAlphabet[c>>4]
		out[2*i+1] = hexAlphabet[c&0x0F]
	}
	return string(out)
}
