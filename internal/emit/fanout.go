package emit

import "context"

// FanoutEmitter broadcasts every event to a fixed set of emitters. A
// failure from one backend's EmitBatch/Flush does not stop delivery to
// the others; the last error encountered is returned.
type FanoutEmitter struct {
	emitters []Emitter
}

// NewFanoutEmitter builds an emitter broadcasting to all of emitters.
func NewFanoutEmitter(emitters ...Emitter) *FanoutEmitter {
	return &FanoutEmitter{emitters: emitters}
}

func (f *FanoutEmitter) Emit(event Event) {
	for _, e := range f.emitters {
		e.Emit(event)
	}
}

func (f *FanoutEmitter) EmitBatch(ctx context.Context, events []Event) error {
	var lastErr error
	for _, e := range f.emitters {
		if err := e.EmitBatch(ctx, events); err != nil {
			lastErr = err
		}
	}
	return lastErr
}

func (f *FanoutEmitter) Flush(ctx context.Context) error {
	var lastErr error
	for _, e := range f.emitters {
		if err := e.Flush(ctx); err != nil {
			lastErr = err
		}
	}
	return lastErr
}
