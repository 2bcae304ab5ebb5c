package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultSchedulerConfig(t *testing.T) {
	config := DefaultSchedulerConfig()

	assert.True(t, config.Enabled)
	assert.Len(t, config.Jobs, 2)

	ingestCfg := config.Jobs[JobIngestPending]
	assert.True(t, ingestCfg.Enabled)
	assert.Equal(t, 30*time.Second, ingestCfg.Interval)

	sweepCfg := config.Jobs[JobEmbeddingSweep]
	assert.True(t, sweepCfg.Enabled)
	assert.Equal(t, 15*time.Second, sweepCfg.Interval)
}

func TestSchedulerConfig_Job(t *testing.T) {
	config := DefaultSchedulerConfig()

	assert.True(t, config.Job(JobEmbeddingSweep).Enabled)

	unknownCfg := config.Job("unknown-job")
	assert.False(t, unknownCfg.Enabled)
	assert.Equal(t, time.Duration(0), unknownCfg.Interval)
}

func TestSchedulerConfig_Job_NilMap(t *testing.T) {
	config := SchedulerConfig{Enabled: true}

	cfg := config.Job("any-job")
	assert.False(t, cfg.Enabled)
}
