package vksgfx

import (
	"math"
	"time"

	"github.com/ibd1279/vks"
	"github.com/pkg/errors"

	"github.com/TorrentialFire/vulkan-tutorial/gfx"
)

// handles maps the opaque gfx identifiers handed out by Device to the
// Vulkan objects behind them.
type handles[H ~uint64, T any] struct {
	m map[H]T
}

func newHandles[H ~uint64, T any]() handles[H, T] {
	return handles[H, T]{m: map[H]T{}}
}

func (h handles[H, T]) put(id H, v T) H {
	h.m[id] = v
	return id
}

func (h handles[H, T]) get(id H) T {
	return h.m[id]
}

func (h handles[H, T]) take(id H) (T, bool) {
	v, ok := h.m[id]
	delete(h.m, id)
	return v, ok
}

// nanos converts a gfx timeout into the uint64 nanoseconds Vulkan expects.
func nanos(d time.Duration) uint64 {
	if d == gfx.NoTimeout {
		return math.MaxUint64
	}
	return uint64(d.Nanoseconds())
}

// check turns a Vulkan result into an error, mapping the results the frame
// loop recovers from onto the gfx sentinels.
func check(result vks.Result, op string) error {
	switch result {
	case vks.VK_SUCCESS:
		return nil
	case vks.VK_SUBOPTIMAL_KHR:
		return gfx.ErrSuboptimal
	case vks.VK_ERROR_OUT_OF_DATE_KHR:
		return gfx.ErrOutOfDate
	case vks.VK_TIMEOUT, vks.VK_NOT_READY:
		return gfx.ErrTimeout
	}
	if result.IsError() {
		return errors.Wrap(result.AsErr(), op)
	}
	return nil
}
