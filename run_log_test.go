package caper

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunLogLegalForwardAndUnwind(t *testing.T) {
	log := NewRunLog("run-1")

	require.NoError(t, log.Record("reserve", EventStepStarted))
	require.NoError(t, log.Record("reserve", EventStepSucceeded))
	require.NoError(t, log.Record("pay", EventStepStarted))
	require.NoError(t, log.Record("pay", EventStepFailed))
	assert.True(t, log.Unwinding())

	require.NoError(t, log.Record("reserve", EventCompStarted))
	require.NoError(t, log.Record("reserve", EventCompFinished))

	assert.Len(t, log.Events(), 6)
	assert.Contains(t, log.String(), "unwinding")
}

func TestRunLogRejectsIllegalEvents(t *testing.T) {
	log := NewRunLog("run-2")

	// Succeeding before starting.
	assert.Error(t, log.Record("reserve", EventStepSucceeded))

	// Compensating a step that never succeeded.
	require.NoError(t, log.Record("reserve", EventStepStarted))
	assert.Error(t, log.Record("reserve", EventCompStarted))

	// Double compensation.
	require.NoError(t, log.Record("reserve", EventStepSucceeded))
	require.NoError(t, log.Record("reserve", EventCompStarted))
	require.NoError(t, log.Record("reserve", EventCompFinished))
	assert.Error(t, log.Record("reserve", EventCompStarted))
}

func TestRunLogRecoverySequence(t *testing.T) {
	log := NewRunLog("run-3")

	require.NoError(t, log.Record("implant", EventStepStarted))
	require.NoError(t, log.Record("implant", EventStepFailed))
	require.NoError(t, log.Record("implant", EventRecoveryStarted))
	require.NoError(t, log.Record("implant", EventRecoveryFinished))

	// A second recovery attempt is illegal.
	assert.Error(t, log.Record("implant", EventRecoveryStarted))
}
