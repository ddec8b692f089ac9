// Package glfwshell owns the GLFW window the swapchain presents to.
//
// GLFW must be driven from the main OS thread. Every method except Wake
// must be called from the goroutine that called Open.
package glfwshell

import (
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
)

// Window is a resizable GLFW window without a client API.
type Window struct {
	w        *glfw.Window
	onResize func(width, height int)
}

// Open initializes GLFW and creates the window.
func Open(title string, width, height int) (*Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "glfw init")
	}

	// Tell GLFW we aren't using OpenGL.
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.True)

	w, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "create window")
	}
	win := &Window{w: w}
	w.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		if win.onResize != nil {
			win.onResize(width, height)
		}
	})
	return win, nil
}

// OnResize sets the function called with the new framebuffer size whenever
// it changes. It runs during PollEvents or WaitEvents.
func (win *Window) OnResize(fn func(width, height int)) {
	win.onResize = fn
}

func (win *Window) FramebufferSize() (int, int) {
	return win.w.GetFramebufferSize()
}

func (win *Window) PollEvents() {
	glfw.PollEvents()
}

func (win *Window) WaitEvents() {
	glfw.WaitEvents()
}

// Wake unblocks a pending WaitEvents. It is safe to call from any
// goroutine.
func (win *Window) Wake() {
	glfw.PostEmptyEvent()
}

func (win *Window) ShouldClose() bool {
	return win.w.ShouldClose()
}

func (win *Window) RequiredInstanceExtensions() []string {
	return win.w.GetRequiredInstanceExtensions()
}

// CreateWindowSurface creates a VkSurfaceKHR for instance, which must be a
// VkInstance handle.
func (win *Window) CreateWindowSurface(instance interface{}) (uintptr, error) {
	return win.w.CreateWindowSurface(instance, nil)
}

// Close destroys the window and terminates GLFW.
func (win *Window) Close() {
	if win.w != nil {
		win.w.Destroy()
		win.w = nil
	}
	glfw.Terminate()
}
