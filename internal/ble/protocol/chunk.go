package protocol

import "unicode/utf8"

// DefaultMaxByteSize is the largest write most BLE serial bridges accept
// without MTU negotiation (23-byte ATT MTU minus 3 bytes of header).
const DefaultMaxByteSize = 20

// ChunkBytes splits data into chunks that each fit within maxBytes and never
// splits in the middle of a UTF-8 encoded rune. A rune longer than maxBytes
// is emitted whole so the split always makes forward progress. Returns nil
// for empty data or a non-positive maxBytes.
func ChunkBytes(data []byte, maxBytes int) [][]byte {
	if len(data) == 0 || maxBytes <= 0 {
		return nil
	}
	if len(data) <= maxBytes {
		return [][]byte{data}
	}

	var chunks [][]byte
	for len(data) > 0 {
		if len(data) <= maxBytes {
			chunks = append(chunks, data)
			break
		}

		// Walk back to the start of a rune.
		split := maxBytes
		for split > 0 && !utf8.RuneStart(data[split]) {
			split--
		}
		if split == 0 {
			_, size := utf8.DecodeRune(data)
			split = size
		}

		chunks = append(chunks, data[:split])
		data = data[split:]
	}
	return chunks
}
