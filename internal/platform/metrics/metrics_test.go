package metrics

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCollectorSnapshot(t *testing.T) {
	c := New()
	var wg sync.WaitGroup
	for _, status := range []int{http.StatusOK, http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusConflict} {
		wg.Add(1)
		go func(status int) {
			defer wg.Done()
			c.Record(status, 10*time.Millisecond)
		}(status)
	}
	wg.Wait()

	snap := c.Snapshot()
	assert.Equal(t, uint64(4), snap["requestsTotal"])
	assert.Equal(t, uint64(1), snap["errorsTotal"])
	assert.Equal(t, uint64(1), snap["rateLimitedTotal"])
	assert.Equal(t, uint64(1), snap["conflictsTotal"])
	assert.Equal(t, float64(10), snap["avgDurationMs"])
}
