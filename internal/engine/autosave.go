package engine

import (
	"context"
	"time"
)

// startAutosave launches the ticker goroutine. It saves unconditionally on
// every tick until stopAutosave.
func (e *Engine) startAutosave() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.interval <= 0 || e.stop != nil || e.destroyed {
		return
	}
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go e.autosaveLoop(e.interval, e.stop, e.done)
}

func (e *Engine) autosaveLoop(interval time.Duration, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			_ = e.Save(context.Background())
		}
	}
}

// stopAutosave stops the loop and waits for it to exit. A save already in
// progress finishes first.
func (e *Engine) stopAutosave() {
	e.mu.Lock()
	stop, done := e.stop, e.done
	e.stop, e.done = nil, nil
	e.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}
