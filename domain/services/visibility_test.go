package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVisibilityPolicy_DefaultThreshold(t *testing.T) {
	p := NewVisibilityPolicy(-0.5)

	assert.True(t, p.IsVisible(0))
	assert.True(t, p.IsVisible(3))
	assert.False(t, p.IsVisible(-1))
	assert.True(t, p.IsHidden(-5))
}

func TestVisibilityPolicy_Override(t *testing.T) {
	p := NewVisibilityPolicy(-0.5)

	assert.False(t, p.Shown(-1, false))
	assert.True(t, p.Shown(-1, true))
	assert.True(t, p.Shown(0, false))
}

func TestVisibilityPolicy_ThresholdBoundaryIsStrict(t *testing.T) {
	p := NewVisibilityPolicy(-2)

	assert.True(t, p.IsVisible(-2))
	assert.False(t, p.IsVisible(-3))
}

func TestVisibilityPolicy_SetThresholdConcurrent(t *testing.T) {
	p := NewVisibilityPolicy(-0.5)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			p.SetThreshold(1.5)
		}()
		go func() {
			defer wg.Done()
			_ = p.IsVisible(1)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1.5, p.Threshold())
	assert.False(t, p.IsVisible(1))
	assert.True(t, p.IsVisible(2))
}
