package tokenizer

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWords(t *testing.T) {
	assert.Equal(t, []string{"public", "health", "covid_19", "2020"}, Words("Public-Health: COVID_19, 2020!"))
	assert.Empty(t, Words("  ,.;  "))
	assert.Equal(t, []string{"über", "naïve"}, Words("Über naïve"))
}

func TestLex(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"(cat AND dog) OR (mouse NOT cheese)", []string{"(", "cat", "AND", "dog", ")", "OR", "(", "mouse", "NOT", "cheese", ")"}},
		{"a&&b", []string{"a", "b"}},
		{"((x))", []string{"(", "(", "x", ")", ")"}},
		{"", []string{}},
		{"tail", []string{"tail"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Lex(tt.in))
		})
	}
}

func BenchmarkWords(b *testing.B) {
	base := "Information retrieval systems map each term to the documents containing it. "
	for _, size := range []int{100, 1000, 10000} {
		text := strings.Repeat(base, size/len(base)+1)[:size]
		b.Run(fmt.Sprintf("bytes_%d", size), func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for i := 0; i < b.N; i++ {
				_ = Words(text)
			}
		})
	}
}

func BenchmarkLexParallel(b *testing.B) {
	expr := "(cat AND dog) OR (mouse NOT cheese) OR NOT (bird AND fish)"
	b.ReportAllocs()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_ = Lex(expr)
		}
	})
}
