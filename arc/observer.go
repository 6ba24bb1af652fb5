package arc

import (
	"fmt"
	"reflect"
)

// Action is the operation an observer is notified about.
type Action uint8

const (
	Added Action = iota
	Extracted
	Removed
	Listed
	Dumped
	Compacted
)

func (a Action) String() string {
	switch a {
	case Added:
		return "added"
	case Extracted:
		return "extracted"
	case Removed:
		return "removed"
	case Listed:
		return "listed"
	case Dumped:
		return "dumped"
	case Compacted:
		return "compacted"
	default:
		return fmt.Sprintf("unknown(%d)", a)
	}
}

// ParseAction is the inverse of Action.String.
func ParseAction(s string) (Action, error) {
	for a := Added; a <= Compacted; a++ {
		if a.String() == s {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown action: %q", s)
}

// Observer is notified after every archive operation.
// name is empty for archive-wide operations (list, dump, compact).
type Observer interface {
	Notify(action Action, name string, ok bool)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(action Action, name string, ok bool)

func (f ObserverFunc) Notify(action Action, name string, ok bool) {
	f(action, name, ok)
}

// AddObserver subscribes an observer.
// It returns false if the observer is nil or already subscribed.
func (a *Archive) AddObserver(o Observer) bool {
	if o == nil {
		return false
	}
	for _, known := range a.observers {
		if sameObserver(known, o) {
			return false
		}
	}
	a.observers = append(a.observers, o)
	return true
}

// notify calls all observers in subscription order.
// A panic in an observer is NOT recovered.
func (a *Archive) notify(action Action, name string, ok bool) {
	for _, o := range a.observers {
		o.Notify(action, name, ok)
	}
}

// ----------  HELPER  -----------------------------------------------------------------------------------------------//

// sameObserver compares two observers.
// Functions are not comparable with '==', they are compared by code pointer.
func sameObserver(a, b Observer) bool {
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}
	switch va.Kind() {
	case reflect.Func, reflect.Ptr, reflect.Map, reflect.Chan, reflect.Slice:
		return va.Pointer() == vb.Pointer()
	}
	if va.Type().Comparable() {
		return a == b
	}
	return false
}
