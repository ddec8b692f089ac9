package swapchain

// releaser collects release actions as resources are created and runs them
// in reverse order, so whatever was built last is released first.
type releaser struct {
	stack []func()
}

func (r *releaser) push(fn func()) {
	r.stack = append(r.stack, fn)
}

func (r *releaser) release() {
	for i := len(r.stack) - 1; i >= 0; i-- {
		r.stack[i]()
	}
	r.stack = nil
}
