package loop

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"

	"autoloop/envelope"
)

// commandSignature computes a deterministic signature for a dispatched
// command (name + hash of its params).
func commandSignature(req envelope.CommandRequest) string {
	data, _ := json.Marshal(req.Params)
	h := sha256.Sum256(data)
	return fmt.Sprintf("%s:%x", req.Name, h[:8])
}

// recentCommandSignatures extracts signatures of the most recent count
// dispatched commands from the history, in chronological order.
func recentCommandSignatures(history []Exchange, count int) []string {
	var sigs []string
	for i := len(history) - 1; i >= 0 && len(sigs) < count; i-- {
		reqs := history[i].Requests
		for j := len(reqs) - 1; j >= 0 && len(sigs) < count; j-- {
			sigs = append(sigs, commandSignature(reqs[j]))
		}
	}
	for i, j := 0, len(sigs)-1; i < j; i, j = i+1, j-1 {
		sigs[i], sigs[j] = sigs[j], sigs[i]
	}
	return sigs
}

// DetectLoop checks whether the last windowSize dispatched commands follow a
// repeating pattern of length 1, 2, or 3. With fewer than windowSize
// commands in the history it reports false.
func DetectLoop(history []Exchange, windowSize int) bool {
	sigs := recentCommandSignatures(history, windowSize)
	if len(sigs) < windowSize {
		return false
	}

	for patternLen := 1; patternLen <= 3; patternLen++ {
		if windowSize%patternLen != 0 {
			continue
		}
		pattern := sigs[:patternLen]
		allMatch := true
		for i := patternLen; i < windowSize && allMatch; i += patternLen {
			for j := 0; j < patternLen; j++ {
				if sigs[i+j] != pattern[j] {
					allMatch = false
					break
				}
			}
		}
		if allMatch {
			return true
		}
	}

	return false
}
