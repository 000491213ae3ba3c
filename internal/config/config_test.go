package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConfigDefaults(t *testing.T) {
	c := NewConfig()

	assert.Equal(t, []string{"localhost:9092"}, c.KafkaBrokers)
	assert.Equal(t, "orders", c.OrdersTopic)
	assert.Equal(t, "flashsale-order-consumer", c.ConsumerGroupID)
	assert.Equal(t, 8, c.PartitionCount)
	assert.Equal(t, 50.0, c.BucketCapacity)
	assert.Equal(t, 10.0, c.RefillRate)
	assert.Equal(t, 15*time.Minute, c.PayWindow)
	assert.Equal(t, time.Minute, c.ReaperPeriod)
	assert.Equal(t, 3, c.MaxRetry)
	assert.Equal(t, 100, c.BatchSize)
	assert.Equal(t, 5*time.Second, c.FlushInterval)
	assert.Equal(t, 40.0, c.RiskThresholdLow)
	assert.Equal(t, 75.0, c.RiskThresholdHigh)
	assert.Equal(t, int64(10), c.UserPurchaseLimit)
}

func TestSplitCSV(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{"a,b,c", []string{"a", "b", "c"}},
		{"a, b , c", []string{"a", "b", "c"}},
		{"", nil},
		{"single", []string{"single"}},
		{"a,,b", []string{"a", "b"}},
	}

	for _, tc := range cases {
		assert.Equal(t, tc.want, splitCSV(tc.in))
	}
}

func TestLoadEnvVarsOverridesDefaults(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("PARTITION_COUNT", "16")
	t.Setenv("RISK_THRESHOLD_LOW", "20.5")

	c := NewConfig()
	c.LoadEnvVars()

	assert.Equal(t, "9999", c.Port)
	assert.Equal(t, 16, c.PartitionCount)
	assert.Equal(t, 20.5, c.RiskThresholdLow)
}
