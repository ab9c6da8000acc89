package database

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
)

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := NewPoolStatsCollector(nil, "storefront")

	ch := make(chan *prometheus.Desc, 10)
	c.Describe(ch)
	close(ch)

	var names []string
	for d := range ch {
		names = append(names, d.String())
	}

	assert.Len(t, names, 6)
	assert.Contains(t, names[0], "db_pool_acquired_connections")
	assert.Contains(t, names[5], "db_pool_empty_acquire_count_total")
}

func TestPoolStatsCollector_ImplementsCollector(t *testing.T) {
	var _ prometheus.Collector = NewPoolStatsCollector(nil, "storefront")
}
