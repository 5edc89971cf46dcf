package flow

import "context"

const KeyEnter = "Enter"

// Key is a key press inside the question input.
type Key struct {
	Name  string
	Shift bool
}

// KeyDown submits on Enter without Shift and reports whether the key was
// consumed. Unconsumed keys keep their default effect, so Shift+Enter still
// inserts a line break.
func (f *Flow) KeyDown(ctx context.Context, k Key) (bool, error) {
	if k.Name != KeyEnter || k.Shift {
		return false, nil
	}
	_, err := f.Submit(ctx)
	return true, err
}
