package database

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestPoolStatsCollector_Describe(t *testing.T) {
	ch := make(chan *prometheus.Desc, 16)
	NewPoolStatsCollector(nil, "portal").Describe(ch)
	close(ch)

	var all strings.Builder
	n := 0
	for d := range ch {
		all.WriteString(d.String())
		n++
	}

	assert.Equal(t, 6, n)
	for _, name := range []string{
		"db_pool_acquired_connections",
		"db_pool_idle_connections",
		"db_pool_total_connections",
		"db_pool_max_connections",
		"db_pool_acquire_count_total",
		"db_pool_empty_acquire_count_total",
	} {
		assert.Contains(t, all.String(), `"`+name+`"`)
	}
}

func TestRegisterPoolMetrics_RejectsDuplicate(t *testing.T) {
	reg := prometheus.NewRegistry()
	assert.NoError(t, RegisterPoolMetrics(reg, nil, "portal"))
	assert.Error(t, RegisterPoolMetrics(reg, nil, "portal"))
}
