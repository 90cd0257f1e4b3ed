// Package hooking lets observers follow what a cache simulator does while it
// replays a trace.
//
// A simulator declares the positions it reports, such as an access or an
// eviction, and a hook subscribes to some of them. Positions that no hook
// watches are not reported.
package hooking

import "slices"

// HookPos names a point where a simulator notifies its hooks.
type HookPos struct {
	Name string
}

// A Site is the simulator that triggers a hook.
type Site interface {
	Name() string
}

// HookCtx describes one notification. The type of Item is fixed by Pos and
// documented next to the position.
type HookCtx struct {
	Site Site
	Pos  *HookPos
	Item any
}

// Hook is invoked by the simulators it is attached to.
type Hook interface {
	Func(ctx HookCtx)
}

// Hookable is a simulator that accepts hooks.
type Hookable interface {
	// AcceptHook subscribes the hook to the positions. A hook given no
	// position receives every position.
	AcceptHook(hook Hook, positions ...*HookPos)

	// NumHooks returns the number of hooks attached.
	NumHooks() int

	// Watched tells if any hook receives the position.
	Watched(pos *HookPos) bool
}

type subscription struct {
	hook      Hook
	positions []*HookPos
}

func (s subscription) receives(pos *HookPos) bool {
	return len(s.positions) == 0 || slices.Contains(s.positions, pos)
}

// HookableBase keeps the subscriptions of a simulator. Embed it to implement
// Hookable.
type HookableBase struct {
	subscriptions []subscription
}

// AcceptHook subscribes a hook. Attaching the same hook twice panics.
func (h *HookableBase) AcceptHook(hook Hook, positions ...*HookPos) {
	for _, s := range h.subscriptions {
		if s.hook == hook {
			panic("duplicated hook")
		}
	}

	h.subscriptions = append(h.subscriptions, subscription{
		hook:      hook,
		positions: slices.Clone(positions),
	})
}

// NumHooks returns the number of hooks attached.
func (h *HookableBase) NumHooks() int {
	return len(h.subscriptions)
}

// Watched tells if any hook receives the position.
func (h *HookableBase) Watched(pos *HookPos) bool {
	for _, s := range h.subscriptions {
		if s.receives(pos) {
			return true
		}
	}

	return false
}

// InvokeHook delivers the context to the hooks subscribed to its position,
// in attach order.
func (h *HookableBase) InvokeHook(ctx HookCtx) {
	for _, s := range h.subscriptions {
		if s.receives(ctx.Pos) {
			s.hook.Func(ctx)
		}
	}
}
