package vksgfx

import (
	"bytes"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/ibd1279/vks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TorrentialFire/vulkan-tutorial/gfx"
)

func TestHandles(t *testing.T) {
	h := newHandles[gfx.Fence, string]()
	id := h.put(gfx.Fence(7), "seven")
	assert.Equal(t, gfx.Fence(7), id)
	assert.Equal(t, "seven", h.get(id))

	v, ok := h.take(id)
	assert.True(t, ok)
	assert.Equal(t, "seven", v)

	_, ok = h.take(id)
	assert.False(t, ok)
	assert.Equal(t, "", h.get(id))
}

func TestNanos(t *testing.T) {
	assert.Equal(t, uint64(math.MaxUint64), nanos(gfx.NoTimeout))
	assert.Equal(t, uint64(2_000_000), nanos(2*time.Millisecond))
}

func TestCheck(t *testing.T) {
	assert.NoError(t, check(vks.VK_SUCCESS, "op"))
	assert.ErrorIs(t, check(vks.VK_SUBOPTIMAL_KHR, "op"), gfx.ErrSuboptimal)
	assert.ErrorIs(t, check(vks.VK_ERROR_OUT_OF_DATE_KHR, "op"), gfx.ErrOutOfDate)
	assert.ErrorIs(t, check(vks.VK_TIMEOUT, "op"), gfx.ErrTimeout)
	assert.ErrorIs(t, check(vks.VK_NOT_READY, "op"), gfx.ErrTimeout)
	assert.ErrorContains(t, check(vks.VK_ERROR_DEVICE_LOST, "wait idle"), "wait idle: ")
}

func TestNewWords(t *testing.T) {
	w, err := newWords([]byte{0x03, 0x02, 0x23, 0x07, 0x01, 0x00, 0x00, 0x00})
	require.NoError(t, err)
	assert.Equal(t, words{0x07230203, 1}, w)
	assert.Equal(t, uint64(8), w.sizeof())

	_, err = newWords([]byte{1, 2, 3})
	assert.Error(t, err)
	_, err = newWords(nil)
	assert.Error(t, err)
}

func TestNewTriangleRejectsBadShaders(t *testing.T) {
	good := []byte{0x03, 0x02, 0x23, 0x07}
	_, err := NewTriangle(nil, good, []byte{1})
	assert.ErrorContains(t, err, "fragment shader")
	_, err = NewTriangle(nil, []byte{1}, good)
	assert.ErrorContains(t, err, "vertex shader")

	tri, err := NewTriangle(nil, good, good)
	require.NoError(t, err)
	assert.Len(t, tri.vert, 1)
}

func TestOptionsExtensions(t *testing.T) {
	o := Options{Validation: true}
	assert.Equal(t, []string{"VK_LAYER_KHRONOS_validation"}, o.layers())
	assert.Nil(t, Options{}.layers())
	assert.Contains(t, o.instanceExtensions(), vks.VK_KHR_SURFACE_EXTENSION_NAME)
	assert.Contains(t, o.deviceExtensions(), vks.VK_KHR_SWAPCHAIN_EXTENSION_NAME)
	assert.Contains(t, o.instanceExtensions(), vks.VK_EXT_DEBUG_UTILS_EXTENSION_NAME)
	assert.NotContains(t, Options{}.instanceExtensions(), vks.VK_EXT_DEBUG_UTILS_EXTENSION_NAME)
}

func TestMissing(t *testing.T) {
	available := []string{"VK_KHR_surface", "VK_KHR_xcb_surface"}
	assert.Empty(t, missing(nil, available))
	assert.Empty(t, missing([]string{"VK_KHR_surface"}, available))
	assert.Equal(t, []string{"VK_LAYER_KHRONOS_validation"},
		missing([]string{"VK_LAYER_KHRONOS_validation"}, nil))
	assert.Equal(t, []string{"VK_EXT_debug_utils", "VK_KHR_swapchain"},
		missing([]string{"VK_EXT_debug_utils", "VK_KHR_surface", "VK_KHR_swapchain"}, available))
}

func TestSuitability(t *testing.T) {
	good := suitability{graphic: some(uint32(0)), present: some(uint32(1)), formats: 2, modes: 1}
	assert.Empty(t, good.problems())

	tests := []struct {
		name string
		s    suitability
		want string
	}{
		{"graphics", suitability{present: some(uint32(0)), formats: 1, modes: 1}, "no graphics queue family"},
		{"present", suitability{graphic: some(uint32(0)), formats: 1, modes: 1}, "no presentation queue family"},
		{"extensions", suitability{graphic: some(uint32(0)), present: some(uint32(0)), missingExtensions: []string{"VK_KHR_swapchain"}}, "missing extensions VK_KHR_swapchain"},
		{"formats", suitability{graphic: some(uint32(0)), present: some(uint32(0)), modes: 1}, "no surface formats"},
		{"modes", suitability{graphic: some(uint32(0)), present: some(uint32(0)), formats: 1}, "no present modes"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.s.problems(), tt.want)
		})
	}
	assert.Len(t, suitability{}.problems(), 4)
}

func TestSeverityLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, severityLevel(severityVerbose))
	assert.Equal(t, slog.LevelInfo, severityLevel(severityInfo))
	assert.Equal(t, slog.LevelWarn, severityLevel(severityWarning))
	assert.Equal(t, slog.LevelError, severityLevel(severityError))
	assert.Equal(t, slog.LevelError, severityLevel(severityWarning|severityError))
}

func TestMessageTypes(t *testing.T) {
	assert.Equal(t, "", messageTypes(0))
	assert.Equal(t, "validation", messageTypes(typeValidation))
	assert.Equal(t, "general|validation|performance", messageTypes(typeGeneral|typeValidation|typePerformance))
}

func TestLogValidation(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))

	logValidation(log, severityVerbose, typeGeneral, "Loader", "searching for layers")
	assert.Empty(t, buf.String())

	logValidation(log, severityError, typeValidation, "VUID-vkAcquireNextImageKHR-semaphore-01286", "semaphore has a pending signal")
	out := buf.String()
	assert.Contains(t, out, "level=ERROR")
	assert.Contains(t, out, "type=validation")
	assert.Contains(t, out, "id=VUID-vkAcquireNextImageKHR-semaphore-01286")
	assert.Contains(t, out, `message="semaphore has a pending signal"`)
}

func TestLogResult(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	assert.NoError(t, logResult(vks.VK_SUCCESS, "wait for device idle"))
	assert.Empty(t, buf.String())

	err := logResult(vks.VK_ERROR_DEVICE_LOST, "wait for device idle")
	assert.ErrorContains(t, err, "wait for device idle")
	assert.Contains(t, buf.String(), "wait for device idle")
}

func TestCloseUnopenedReleasesDebugLog(t *testing.T) {
	log := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	debugLog.Store(log)
	d := &Device{log: log}
	d.Close()
	assert.Nil(t, debugLog.Load())
}

func TestLoadTriangleMissingDir(t *testing.T) {
	_, err := LoadTriangle(nil, t.TempDir())
	assert.Error(t, err)
}

func TestOption(t *testing.T) {
	var o option[uint32]
	assert.False(t, o.isSet())
	assert.Equal(t, uint32(9), o.get(9))
	o = some(uint32(2))
	assert.True(t, o.isSet())
	assert.Equal(t, uint32(2), o.get(9))
}
