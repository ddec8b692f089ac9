package vksgfx

/*
#include <stdint.h>

// Leading fields of VkDebugUtilsMessengerCallbackDataEXT.
typedef struct {
	int32_t     sType;
	const void* pNext;
	uint32_t    flags;
	const char* pMessageIdName;
	int32_t     messageIdNumber;
	const char* pMessage;
} debugMessageData;

extern uint32_t vksgfxDebugMessage(uint32_t severity, uint32_t types, debugMessageData* data, void* user);
*/
import "C"

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"unsafe"

	"github.com/ibd1279/vks"
)

// Values of VkDebugUtilsMessageSeverityFlagBitsEXT and
// VkDebugUtilsMessageTypeFlagBitsEXT as the callback receives them.
const (
	severityVerbose uint32 = 0x0001
	severityInfo    uint32 = 0x0010
	severityWarning uint32 = 0x0100
	severityError   uint32 = 0x1000

	typeGeneral     uint32 = 0x1
	typeValidation  uint32 = 0x2
	typePerformance uint32 = 0x4
)

// debugLog receives validation messages. It is set while a device with
// validation enabled is open.
var debugLog atomic.Pointer[slog.Logger]

// setDebugMessenger asks for every severity and message type; filtering
// happens in the slog handler.
func setDebugMessenger(in *vks.DebugUtilsMessengerCreateInfoEXT) {
	in.SetMessageSeverity(vks.DebugUtilsMessageSeverityFlagsEXT(
		vks.VK_DEBUG_UTILS_MESSAGE_SEVERITY_VERBOSE_BIT_EXT |
			vks.VK_DEBUG_UTILS_MESSAGE_SEVERITY_INFO_BIT_EXT |
			vks.VK_DEBUG_UTILS_MESSAGE_SEVERITY_WARNING_BIT_EXT |
			vks.VK_DEBUG_UTILS_MESSAGE_SEVERITY_ERROR_BIT_EXT))
	in.SetMessageType(vks.DebugUtilsMessageTypeFlagsEXT(
		vks.VK_DEBUG_UTILS_MESSAGE_TYPE_GENERAL_BIT_EXT |
			vks.VK_DEBUG_UTILS_MESSAGE_TYPE_VALIDATION_BIT_EXT |
			vks.VK_DEBUG_UTILS_MESSAGE_TYPE_PERFORMANCE_BIT_EXT))
	in.SetPfnUserCallback(vks.PFN_vkDebugUtilsMessengerCallbackEXT(unsafe.Pointer(C.vksgfxDebugMessage)))
}

//export vksgfxDebugMessage
func vksgfxDebugMessage(severity, types C.uint32_t, data *C.debugMessageData, _ unsafe.Pointer) C.uint32_t {
	log := debugLog.Load()
	if log == nil || data == nil {
		return 0
	}
	logValidation(log, uint32(severity), uint32(types),
		C.GoString(data.pMessageIdName), C.GoString(data.pMessage))
	return 0
}

func severityLevel(severity uint32) slog.Level {
	switch {
	case severity&severityError != 0:
		return slog.LevelError
	case severity&severityWarning != 0:
		return slog.LevelWarn
	case severity&severityInfo != 0:
		return slog.LevelInfo
	}
	return slog.LevelDebug
}

func messageTypes(types uint32) string {
	var names []string
	if types&typeGeneral != 0 {
		names = append(names, "general")
	}
	if types&typeValidation != 0 {
		names = append(names, "validation")
	}
	if types&typePerformance != 0 {
		names = append(names, "performance")
	}
	return strings.Join(names, "|")
}

func logValidation(log *slog.Logger, severity, types uint32, id, msg string) {
	log.Log(context.Background(), severityLevel(severity), "validation layer",
		"type", messageTypes(types),
		"id", id,
		"message", msg)
}
