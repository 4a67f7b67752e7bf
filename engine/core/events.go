package core

import "sync"

// Event codes used by the avatar pipeline. Application codes should start beyond 0xFF.
type EventCode int

const (
	// A model finished loading into the target container.
	/* Context usage:
	 * container := data.Data.(*scene.Node)
	 */
	EVENT_CODE_AVATAR_LOADED EventCode = 0x01

	// The loaded model was moved onto the rig and a bone mapping was built.
	/* Context usage:
	 * mapping := data.Data.(*rig.BoneMapping)
	 */
	EVENT_CODE_AVATAR_TRANSPLANTED EventCode = 0x02

	MAX_EVENT_CODE EventCode = 0xFF
)

type EventContext struct {
	Type   EventCode
	Sender interface{}
	Data   interface{}
}

// Should return true if handled.
type FnOnEvent func(context EventContext) bool

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

// EventBus is a publish/subscribe channel keyed by event code.
// Listeners must unregister when they are torn down.
type EventBus struct {
	mu         sync.RWMutex
	registered map[EventCode][]*registeredEvent
}

func NewEventBus() *EventBus {
	return &EventBus{
		registered: make(map[EventCode][]*registeredEvent),
	}
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listeners will not be registered again and will cause this to return false.
 */
func (eb *EventBus) Register(code EventCode, listener interface{}, onEvent FnOnEvent) bool {
	if onEvent == nil {
		return false
	}
	eb.mu.Lock()
	defer eb.mu.Unlock()

	for _, e := range eb.registered[code] {
		if e.listener == listener {
			LogWarn("listener already registered for event code `%d`", code)
			return false
		}
	}
	eb.registered[code] = append(eb.registered[code], &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

/**
 * Unregister from listening for when events are sent with the provided code. If no matching
 * registration is found, this function returns false.
 */
func (eb *EventBus) Unregister(code EventCode, listener interface{}) bool {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	events := eb.registered[code]
	for i, e := range events {
		if e.listener == listener {
			eb.registered[code] = append(events[:i:i], events[i+1:]...)
			return true
		}
	}
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 * Callbacks run on the caller's goroutine, outside the bus lock.
 */
func (eb *EventBus) Fire(context EventContext) bool {
	eb.mu.RLock()
	events := make([]*registeredEvent, len(eb.registered[context.Type]))
	copy(events, eb.registered[context.Type])
	eb.mu.RUnlock()

	for _, e := range events {
		if e.callback(context) {
			return true
		}
	}
	return false
}

func (eb *EventBus) ListenerCount(code EventCode) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.registered[code])
}

// Shutdown drops every registration. Listeners should have unregistered already.
func (eb *EventBus) Shutdown() error {
	eb.mu.Lock()
	defer eb.mu.Unlock()
	for code, events := range eb.registered {
		if len(events) != 0 {
			LogDebug("dropping %d listener(s) still registered for event code `%d`", len(events), code)
		}
	}
	eb.registered = make(map[EventCode][]*registeredEvent)
	return nil
}
