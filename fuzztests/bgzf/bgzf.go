package fuzzbgzf

import (
	"bytes"

	"github.com/biogo/htsindex/bgzf"
)

func Fuzz(data []byte) int {
	s, err := bgzf.NewScanner(bytes.NewReader(data))
	if err != nil {
		return 0
	}
	var next int64
	for s.Next() {
		b := s.Block()
		if b.Offset != next || b.CompressedSize <= 0 {
			panic("bad block walk")
		}
		next = b.Next()
	}
	if s.Err() != nil {
		return 0
	}
	return 1
}
