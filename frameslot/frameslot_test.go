package frameslot

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TorrentialFire/vulkan-tutorial/gfx"
	"github.com/TorrentialFire/vulkan-tutorial/gfx/gfxtest"
)

func TestNew(t *testing.T) {
	dev := gfxtest.NewDevice()
	r, err := New(dev, 2, 3)
	require.NoError(t, err)

	assert.Equal(t, 2, r.Len())
	live := dev.Live()
	assert.Equal(t, 4, live.Semaphores)
	assert.Equal(t, 2, live.Fences)
	for i := 0; i < r.Len(); i++ {
		assert.True(t, dev.Signaled(r.Slot(i).InFlight), "slot %d fence starts signaled", i)
	}
	for img := 0; img < 3; img++ {
		_, owned := r.Owner(img)
		assert.False(t, owned)
	}
}

func TestNewRejectsEmptyRing(t *testing.T) {
	_, err := New(gfxtest.NewDevice(), 0, 3)
	assert.Error(t, err)
}

func TestNewReleasesOnFailure(t *testing.T) {
	dev := gfxtest.NewDevice()
	boom := errors.New("out of device memory")
	dev.Fail["CreateFence"] = boom

	r, err := New(dev, 2, 3)
	assert.Nil(t, r)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, gfxtest.Live{}, dev.Live())
}

func TestSlotRotation(t *testing.T) {
	r, err := New(gfxtest.NewDevice(), 3, 1)
	require.NoError(t, err)
	for frame := 0; frame < 10; frame++ {
		assert.Equal(t, frame%3, r.Slot(frame).Index)
	}
	assert.Equal(t, r.Slot(1), r.Slot(4))
}

func TestOwnership(t *testing.T) {
	r, err := New(gfxtest.NewDevice(), 2, 3)
	require.NoError(t, err)

	r.RecordOwnership(2, 1)
	f, ok := r.Owner(2)
	assert.True(t, ok)
	assert.Equal(t, r.Slot(1).InFlight, f)

	r.RecordOwnership(2, 0)
	f, _ = r.Owner(2)
	assert.Equal(t, r.Slot(0).InFlight, f)

	r.ResetOwnership(4)
	for img := 0; img < 4; img++ {
		f, ok := r.Owner(img)
		assert.False(t, ok)
		assert.Equal(t, gfx.NullFence, f)
	}
}

func TestTeardown(t *testing.T) {
	dev := gfxtest.NewDevice()
	r, err := New(dev, 2, 3)
	require.NoError(t, err)
	r.Teardown()
	assert.Equal(t, gfxtest.Live{}, dev.Live())
	assert.Equal(t, 0, r.Len())
}
