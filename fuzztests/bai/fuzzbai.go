package fuzzbai

import (
	"bytes"

	"github.com/biogo/htsindex/bai"
)

func Fuzz(data []byte) int {
	idx, err := bai.ReadIndex(bytes.NewReader(data))
	if err != nil {
		if !bai.IsFormatError(err) {
			panic(err)
		}
		return 0
	}
	for ref := -1; ref <= idx.NumRefs(); ref++ {
		chunks := idx.Chunks(ref, 1, 0)
		for i := 1; i < len(chunks); i++ {
			if chunks[i-1].Compare(chunks[i]) >= 0 {
				panic("unordered chunks")
			}
		}
		for _, b := range idx.Bins(ref) {
			idx.SpanOverlapping(b)
		}
	}
	return 1
}
