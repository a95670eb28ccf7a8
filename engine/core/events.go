package core

import "sync"

type EventContext struct {
	Data struct {
		U32 [4]uint32
		I32 [4]int32
		F32 [4]float32
		C   [2]string
	}
	// Payload carries structured data, e.g. the error behind a failure event.
	Payload interface{}
}

// System internal event codes. Application should use codes beyond 255.
type SystemEventCode int

const (
	// Shuts the application down on the next frame.
	EVENT_CODE_APPLICATION_QUIT SystemEventCode = 0x01

	// Resized/resolution changed from the OS.
	/* Context usage:
	 * u32 width = data.U32[0];
	 * u32 height = data.U32[1];
	 */
	EVENT_CODE_RESIZED SystemEventCode = 0x08

	// The graphics context was lost. Every GPU resource has been invalidated.
	/* Context usage:
	 * u32 frame = data.U32[0];
	 */
	EVENT_CODE_CONTEXT_LOST SystemEventCode = 0x10

	// A GPU resource could not be materialized. Non-fatal.
	/* Context usage:
	 * u32 resource id = data.U32[0];
	 * u32 resource kind = data.U32[1];
	 * string name = data.C[0];
	 * Payload = error
	 */
	EVENT_CODE_RESOURCE_CREATION_FAILED SystemEventCode = 0x11

	// A command violated the renderer's usage rules.
	/* Context usage:
	 * u32 command index = data.U32[0];
	 * Payload = error
	 */
	EVENT_CODE_INVALID_USAGE SystemEventCode = 0x12

	MAX_EVENT_CODE SystemEventCode = 0xFF
)

// This should be more than enough codes...
const MAX_MESSAGE_CODES = 16384

type registeredEvent struct {
	listener interface{}
	callback FnOnEvent
}

type eventCodeEntry struct {
	events []*registeredEvent
}

// State structure.
type eventSystemState struct {
	mu sync.RWMutex
	// Lookup table for event codes.
	registered [MAX_MESSAGE_CODES]eventCodeEntry
}

/**
 * Event system internal state.
 */
var eventMu sync.Mutex
var eventState *eventSystemState = nil

// Should return true if handled.
type FnOnEvent func(code SystemEventCode, sender interface{}, listenerInst interface{}, data EventContext) bool

func EventSystemInitialize() bool {
	eventMu.Lock()
	defer eventMu.Unlock()
	if eventState != nil {
		return false
	}
	eventState = &eventSystemState{}
	return true
}

func EventSystemShutdown() error {
	eventMu.Lock()
	defer eventMu.Unlock()
	// Free the events arrays. And objects pointed to should be destroyed on their own.
	eventState = nil
	return nil
}

func currentEventState() *eventSystemState {
	eventMu.Lock()
	defer eventMu.Unlock()
	return eventState
}

/**
 * Register to listen for when events are sent with the provided code. Events with duplicate
 * listeners will not be registered again and will cause this to return false.
 * @param code The event code to listen for.
 * @param listener A pointer to a listener instance. Can be nil.
 * @param onEvent The callback function to be invoked when the event code is fired.
 * @returns true if the event is successfully registered; otherwise false.
 */
func EventRegister(code SystemEventCode, listener interface{}, onEvent FnOnEvent) bool {
	state := currentEventState()
	if state == nil || onEvent == nil {
		return false
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	for _, e := range state.registered[code].events {
		if e.listener == listener {
			LogWarn("event code %d already has this listener registered", code)
			return false
		}
	}
	state.registered[code].events = append(state.registered[code].events, &registeredEvent{
		listener: listener,
		callback: onEvent,
	})
	return true
}

/**
 * Unregister from listening for when events are sent with the provided code. If no matching
 * registration is found, this function returns false.
 */
func EventUnregister(code SystemEventCode, listener interface{}) bool {
	state := currentEventState()
	if state == nil {
		return false
	}
	state.mu.Lock()
	defer state.mu.Unlock()

	events := state.registered[code].events
	for i, e := range events {
		if e.listener == listener {
			state.registered[code].events = append(events[:i], events[i+1:]...)
			return true
		}
	}
	// Not found.
	return false
}

/**
 * Fires an event to listeners of the given code. If an event handler returns
 * true, the event is considered handled and is not passed on to any more listeners.
 * @returns true if handled, otherwise false.
 */
func EventFire(code SystemEventCode, sender interface{}, context EventContext) bool {
	state := currentEventState()
	if state == nil {
		return false
	}
	state.mu.RLock()
	events := make([]*registeredEvent, len(state.registered[code].events))
	copy(events, state.registered[code].events)
	state.mu.RUnlock()

	for _, e := range events {
		if e.callback(code, sender, e.listener, context) {
			// Message has been handled, do not send to other listeners.
			return true
		}
	}
	return false
}
