package maptile

import "fmt"

// RenderState is the lifecycle position of one map render request.
type RenderState string

const (
	StateIdle                   RenderState = "idle"
	StateResolving              RenderState = "resolving"
	StateRenderedInteractive    RenderState = "rendered_interactive"
	StateRenderedStaticPrimary  RenderState = "rendered_static_primary"
	StateRenderedStaticFallback RenderState = "rendered_static_fallback"
	StateFailed                 RenderState = "failed"
	StateEmpty                  RenderState = "empty"
)

// validTransitions defines the render state machine. EMPTY is reachable from any
// non-terminal state and handled separately in CanTransitionTo.
var validTransitions = map[RenderState][]RenderState{
	StateIdle:                   {StateResolving},
	StateResolving:              {StateRenderedInteractive, StateRenderedStaticPrimary},
	StateRenderedInteractive:    {},
	StateRenderedStaticPrimary:  {StateRenderedStaticFallback},
	StateRenderedStaticFallback: {StateFailed},
	StateFailed:                 {},
	StateEmpty:                  {},
}

// IsValid returns true if the state is recognized.
func (s RenderState) IsValid() bool {
	_, exists := validTransitions[s]
	return exists
}

// CanTransitionTo returns true if moving from s to target is allowed.
func (s RenderState) CanTransitionTo(target RenderState) bool {
	if target == StateEmpty {
		return s.IsValid() && !s.IsTerminal()
	}
	allowed, exists := validTransitions[s]
	if !exists {
		return false
	}
	for _, t := range allowed {
		if t == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true if no further transitions are possible.
// RENDERED_STATIC_* are not terminal because an image load can still fail.
func (s RenderState) IsTerminal() bool {
	allowed, exists := validTransitions[s]
	if !exists {
		return true
	}
	return len(allowed) == 0
}

// String returns the string representation of the state.
func (s RenderState) String() string {
	return string(s)
}

// ParseRenderState converts a string to a RenderState.
func ParseRenderState(s string) (RenderState, error) {
	state := RenderState(s)
	if !state.IsValid() {
		return "", fmt.Errorf("invalid render state: %s", s)
	}
	return state, nil
}
