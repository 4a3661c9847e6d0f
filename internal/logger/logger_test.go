package logger

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func TestSetLevel(t *testing.T) {
	t.Cleanup(func() { SetLevel("info") })

	assert.Equal(t, logrus.DebugLevel, SetLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, Get().GetLevel())

	assert.Equal(t, logrus.InfoLevel, SetLevel("chatty"))
	assert.Equal(t, logrus.InfoLevel, Get().GetLevel())
}

func TestGetIsShared(t *testing.T) {
	assert.Same(t, Get(), Get())
}
