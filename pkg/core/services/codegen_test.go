package services

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wadjakorntonsri/go-shortlink/pkg/base62"
	"github.com/wadjakorntonsri/go-shortlink/pkg/core/domain"
	"github.com/wadjakorntonsri/go-shortlink/pkg/metrics"
)

func TestGenerate(t *testing.T) {
	tests := []struct {
		name      string
		taken     []string
		filterErr error
		want      string
		wantErr   error
	}{
		{name: "first candidate free", want: "aaa"},
		{name: "one collision", taken: []string{"aaa"}, want: "bbb"},
		{name: "third attempt wins", taken: []string{"aaa", "bbb"}, want: "ccc"},
		{name: "all attempts taken", taken: []string{"aaa", "bbb", "ccc"}, wantErr: domain.ErrCodeGenerationExhausted},
		{name: "filter down accepts candidate", taken: []string{"aaa"}, filterErr: errBackendDown, want: "aaa"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := &stubFilter{present: map[string]bool{}, err: tt.filterErr}
			for _, c := range tt.taken {
				f.present[domain.LinkKey(testDomain, c)] = true
			}
			g := NewCodeGenerator(f, testDomain)
			g.candidate = sequence("aaa", "bbb", "ccc", "ddd")

			code, err := g.Generate(context.Background(), "https://example.com")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.False(t, domain.IsClientError(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestGenerateCountsCollisions(t *testing.T) {
	f := &stubFilter{present: map[string]bool{domain.LinkKey(testDomain, "aaa"): true}}
	g := NewCodeGenerator(f, testDomain)
	g.candidate = sequence("aaa", "bbb")

	before := testutil.ToFloat64(metrics.CodeCollisions)
	_, err := g.Generate(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.CodeCollisions))
}

func TestHashCandidate(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		c := hashCandidate("https://example.com/same")
		assert.True(t, base62.IsValid(c))
		assert.LessOrEqual(t, len(c), maxCodeLength)
		seen[c] = true
	}
	// the uuid salt makes repeated URLs produce different codes
	assert.Greater(t, len(seen), 90)
}
