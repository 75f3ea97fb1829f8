package parallel_test

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/born-ml/dorefa/internal/parallel"
)

func forced(workers int) parallel.Config {
	return parallel.Config{Enabled: true, NumWorkers: workers, MinChunkSize: 1}
}

func TestFor_VisitsEveryIndexOnce(t *testing.T) {
	for _, cfg := range []parallel.Config{parallel.DefaultConfig(), parallel.Sequential(), forced(3), forced(64)} {
		n := 1000
		hits := make([]int32, n)
		parallel.For(n, cfg, func(i int) {
			atomic.AddInt32(&hits[i], 1)
		})
		for i, h := range hits {
			if h != 1 {
				t.Fatalf("cfg %+v: index %d visited %d times", cfg, i, h)
			}
		}
	}
}

func TestRange_Chunks(t *testing.T) {
	var (
		mu     sync.Mutex
		chunks [][2]int
	)
	parallel.Range(10, forced(3), func(start, end int) {
		mu.Lock()
		chunks = append(chunks, [2]int{start, end})
		mu.Unlock()
	})

	assert.Len(t, chunks, 3)
	total := 0
	for _, c := range chunks {
		assert.Less(t, c[0], c[1])
		total += c[1] - c[0]
	}
	assert.Equal(t, 10, total)
}

func TestRange_SmallInputRunsInline(t *testing.T) {
	calls := 0
	parallel.Range(5, parallel.Config{Enabled: true, NumWorkers: 8, MinChunkSize: 16}, func(start, end int) {
		calls++
		assert.Equal(t, 0, start)
		assert.Equal(t, 5, end)
	})
	assert.Equal(t, 1, calls)

	parallel.Range(0, forced(4), func(int, int) { t.Fatal("called for empty range") })
}
