package resolver

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/tokenizer"
)

var benchQuestions = []string{
	"이차함수의 최댓값과 최솟값을 구하시오",
	"다음 글의 주제로 가장 적절한 것은",
	"확률과 통계 조건부확률 문제",
	"수열의 극한값을 계산하시오",
}

func benchIndex(b *testing.B, n int) *index.MemoryIndex {
	b.Helper()
	idx := index.NewMemoryIndex(nil)
	ctx := context.Background()
	for i := 0; i < n; i++ {
		set := tokenizer.Tokenize(benchQuestions[i%len(benchQuestions)])
		if err := idx.Put(ctx, fmt.Sprintf("q-%d", i), set); err != nil {
			b.Fatal(err)
		}
	}
	return idx
}

// BenchmarkResolveTokenHit resolves on the first tier.
func BenchmarkResolveTokenHit(b *testing.B) {
	r := New(benchIndex(b, 10000), nil, nil)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = r.Resolve(ctx, "이차함수의")
	}
}

// BenchmarkResolveFallThrough misses tokens and bigrams before the trigram
// tier answers.
func BenchmarkResolveFallThrough(b *testing.B) {
	r := New(benchIndex(b, 10000), nil, nil)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = r.Resolve(ctx, "없는 단어")
	}
}
