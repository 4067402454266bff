package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAlerter_Critical(t *testing.T) {
	log, hook := test.NewNullLogger()
	alerter := NewAlerter(log, 1)

	assert.True(t, alerter.Critical(logrus.Fields{"ip": "1.2.3.4"}, "burst detected"))
	assert.False(t, alerter.Critical(logrus.Fields{"ip": "1.2.3.4"}, "burst detected"))
	assert.False(t, alerter.Critical(logrus.Fields{"ip": "1.2.3.4"}, "burst detected"))
	assert.Equal(t, int64(2), alerter.Suppressed())

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, SeverityCritical, entry.Data["severity"])
	assert.Equal(t, "1.2.3.4", entry.Data["ip"])
}
