package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGreedySampleDelegatesToArgmax(t *testing.T) {
	buf := make([]byte, 6)
	putHalf(buf, 0, 0x3400) // 0.25
	putHalf(buf, 1, 0x3c00) // 1.0
	putHalf(buf, 2, 0x3800) // 0.5

	g := Greedy{}
	assert.Equal(t, 1, g.Sample(buf, 3))
}

func TestMsSinceIsPositiveForPastTime(t *testing.T) {
	start := time.Now().Add(-5 * time.Millisecond)
	assert.Greater(t, msSince(start), 0.0)
}
