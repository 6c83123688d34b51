package geometry

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCropRegionValidate(t *testing.T) {
	assert.NoError(t, NewCropRegion(0, 0, 10, 10).Validate())
	assert.NoError(t, CropRegion{Width: 1, Height: 1}.Validate())
	assert.Error(t, NewCropRegion(0, 0, 0, 10).Validate())
	assert.Error(t, NewCropRegion(0, 0, 10, -1).Validate())
	assert.Error(t, CropRegion{Width: 5, Height: 5, Space: "source"}.Validate())

	// far edges past math.MaxInt would wrap in Rect
	assert.Error(t, NewCropRegion(math.MaxInt-5, 0, 10, 10).Validate())
	assert.Error(t, NewCropRegion(0, math.MaxInt, 10, 1).Validate())
	assert.NoError(t, NewCropRegion(math.MaxInt-10, 0, 10, 10).Validate())
	assert.NoError(t, NewCropRegion(math.MinInt, math.MinInt, 10, 10).Validate())
}

func TestCropRegionClamp(t *testing.T) {
	canvas := Size{Width: 100, Height: 200}

	inside := NewCropRegion(10, 10, 50, 50)
	got, clamped := inside.Clamp(canvas)
	assert.False(t, clamped)
	assert.Equal(t, inside, got)

	overhang := NewCropRegion(80, 190, 50, 50)
	got, clamped = overhang.Clamp(canvas)
	assert.True(t, clamped)
	assert.Equal(t, NewCropRegion(80, 190, 20, 10), got)

	negative := NewCropRegion(-10, -10, 30, 30)
	got, clamped = negative.Clamp(canvas)
	assert.True(t, clamped)
	assert.Equal(t, NewCropRegion(0, 0, 20, 20), got)

	outside := NewCropRegion(500, 500, 10, 10)
	got, clamped = outside.Clamp(canvas)
	assert.True(t, clamped)
	assert.Equal(t, 0, got.Width*got.Height)
}

func TestCropRegionContained(t *testing.T) {
	canvas := Size{Width: 100, Height: 100}
	assert.True(t, NewCropRegion(0, 0, 100, 100).Contained(canvas))
	assert.False(t, NewCropRegion(1, 0, 100, 100).Contained(canvas))
}
