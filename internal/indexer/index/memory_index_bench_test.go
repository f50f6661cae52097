package index

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/tokenizer"
)

var benchText = "다음 이차함수의 그래프와 x축의 교점을 구하고 꼭짓점의 좌표를 이용하여 최댓값을 구하시오"

func populated(b *testing.B, n int) *MemoryIndex {
	b.Helper()
	idx := NewMemoryIndex(nil)
	set := tokenizer.Tokenize(benchText)
	ctx := context.Background()
	for i := 0; i < n; i++ {
		if err := idx.Put(ctx, fmt.Sprintf("q-%d", i), set); err != nil {
			b.Fatal(err)
		}
	}
	return idx
}

func BenchmarkMemoryIndexPut(b *testing.B) {
	idx := NewMemoryIndex(nil)
	set := tokenizer.Tokenize(benchText)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = idx.Put(ctx, fmt.Sprintf("q-%d", i), set)
	}
}

// BenchmarkMemoryIndexOverlaps measures a bigram lookup over 10 000 questions.
func BenchmarkMemoryIndexOverlaps(b *testing.B) {
	idx := populated(b, 10000)
	values := tokenizer.Tokenize("함수 최댓값").Bigrams
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Overlaps(ctx, tokenizer.FieldBigrams, values)
	}
}

func BenchmarkMemoryIndexOverlapsParallel(b *testing.B) {
	idx := populated(b, 10000)
	values := tokenizer.Tokenize("꼭짓점").Trigrams
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = idx.Overlaps(ctx, tokenizer.FieldTrigrams, values)
		}
	})
}
