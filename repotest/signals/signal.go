package signals

import (
	"reflect"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Observer handles an event. A returned error does not stop other observers.
type Observer[E any] func(E) error

// Detach removes the observer it was returned for
type Detach func()

type Signal[E any] interface {
	Attach(observer Observer[E], observerID ...any) Detach
	Detach(observer Observer[E], observerID ...any)
	Notify(event E) error
}

type entry[E any] struct {
	id       any
	observer Observer[E]
}

type SignalImp[E any] struct {
	mu        sync.RWMutex
	observers []entry[E]
}

func NewSignal[E any]() *SignalImp[E] {
	return &SignalImp[E]{}
}

// Attach registers observer once per id. Without an explicit id the function pointer is used.
// Attaching an id that is already present keeps the first observer and returns a no-op Detach.
func (s *SignalImp[E]) Attach(observer Observer[E], observerID ...any) Detach {
	id := resolveID(observer, observerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.observers {
		if e.id == id {
			return func() {}
		}
	}
	s.observers = append(s.observers, entry[E]{id: id, observer: observer})
	return func() {
		s.Detach(observer, id)
	}
}

func (s *SignalImp[E]) Detach(observer Observer[E], observerID ...any) {
	id := resolveID(observer, observerID)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.observers {
		if e.id == id {
			s.observers = append(s.observers[:i], s.observers[i+1:]...)
			return
		}
	}
}

// Notify calls every observer in attach order and collects their errors.
func (s *SignalImp[E]) Notify(event E) error {
	s.mu.RLock()
	observers := make([]entry[E], len(s.observers))
	copy(observers, s.observers)
	s.mu.RUnlock()

	var result error
	for _, e := range observers {
		if err := e.observer(event); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

func resolveID[E any](observer Observer[E], observerID []any) any {
	if len(observerID) > 0 {
		return observerID[0]
	}
	return reflect.ValueOf(observer).Pointer()
}
