package service

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/pettracker-core/internal/entity"
)

// Names of the built-in services.
const (
	NameRetrievePetPosition = "RetrievePetPosition"
	NameFindFaults          = "FindFaults"
	NameFaultRecovery       = "FaultRecovery"
	NameRoomAnalytics       = "RoomAnalytics"
)

// Service is a pluggable, stateless module computing a result from a
// snapshot. targetType narrows the entities it looks at ("" selects the
// service's natural type); attribute is an optional service-specific hint.
type Service interface {
	Execute(snap Snapshot, targetType, attribute string) (any, error)
}

// Func adapts a plain function to Service.
type Func func(snap Snapshot, targetType, attribute string) (any, error)

// Execute calls f.
func (f Func) Execute(snap Snapshot, targetType, attribute string) (any, error) {
	return f(snap, targetType, attribute)
}

// Engine dispatches service executions by name.
//
// Thread Safety: all methods are safe for concurrent use.
type Engine struct {
	mu       sync.RWMutex
	services map[string]Service
}

// NewEngine creates an engine with the four built-in services registered.
// defaultRoomName identifies the default room for FaultRecovery; clock
// supplies "now" for RoomAnalytics.
func NewEngine(defaultRoomName string, clock func() time.Time) *Engine {
	if clock == nil {
		clock = time.Now
	}

	e := &Engine{services: make(map[string]Service)}
	e.mustRegister(NameRetrievePetPosition, Func(func(snap Snapshot, target, _ string) (any, error) {
		if err := checkTarget(target, entity.TypeRoom); err != nil {
			return nil, err
		}
		return RetrievePetPosition(snap)
	}))
	e.mustRegister(NameFindFaults, Func(func(snap Snapshot, target, _ string) (any, error) {
		if err := checkTarget(target, entity.TypeDoor); err != nil {
			return nil, err
		}
		return FindFaults(snap), nil
	}))
	e.mustRegister(NameFaultRecovery, Func(func(snap Snapshot, _, _ string) (any, error) {
		plan, err := FaultRecovery(snap, defaultRoomName, FindFaults(snap))
		if err != nil || plan == nil {
			return nil, err
		}
		return plan, nil
	}))
	e.mustRegister(NameRoomAnalytics, Func(func(snap Snapshot, target, _ string) (any, error) {
		if err := checkTarget(target, entity.TypeRoom); err != nil {
			return nil, err
		}
		return RoomAnalytics(snap, clock().UTC()), nil
	}))
	return e
}

// Register adds a service under name.
func (e *Engine) Register(name string, svc Service) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.services[name]; exists {
		return fmt.Errorf("%w: %s", ErrServiceExists, name)
	}
	e.services[name] = svc
	return nil
}

func (e *Engine) mustRegister(name string, svc Service) {
	if err := e.Register(name, svc); err != nil {
		panic(err)
	}
}

// Execute runs the named service on snap.
func (e *Engine) Execute(name string, snap Snapshot, targetType, attribute string) (any, error) {
	e.mu.RLock()
	svc, ok := e.services[name]
	e.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownService, name)
	}
	return svc.Execute(snap, targetType, attribute)
}

// Names returns the registered service names, sorted.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.services))
	for name := range e.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkTarget(target, natural string) error {
	if target != "" && target != natural {
		return fmt.Errorf("%w: %s", ErrUnsupportedTarget, target)
	}
	return nil
}
