package loop

import "time"

// Timer is a handle to a callback scheduled through a Group.
type Timer struct {
	name    string
	stopper Stopper
	done    bool // fired or cancelled
}

// Name returns the name the timer was scheduled under.
func (t *Timer) Name() string {
	return t.name
}

// Group tracks named timers for one owner. All methods must be called on the
// loop goroutine.
type Group struct {
	loop   *Loop
	timers map[string]*Timer
}

// NewGroup creates an empty timer group bound to l.
func (l *Loop) NewGroup() *Group {
	return &Group{
		loop:   l,
		timers: make(map[string]*Timer),
	}
}

// Schedule runs f on the loop after d. A pending timer with the same name is
// cancelled first, so at most one timer per name is ever live.
func (g *Group) Schedule(name string, d time.Duration, f func()) *Timer {
	g.Cancel(name)

	t := &Timer{name: name}
	g.timers[name] = t
	t.stopper = g.loop.clock.AfterFunc(d, func() {
		g.loop.Post(func() {
			if t.done {
				return
			}
			t.done = true
			if g.timers[name] == t {
				delete(g.timers, name)
			}
			f()
		})
	})
	return t
}

// Cancel stops the named timer. It reports whether a live timer was cancelled.
func (g *Group) Cancel(name string) bool {
	t, ok := g.timers[name]
	if !ok {
		return false
	}
	delete(g.timers, name)
	t.done = true
	t.stopper.Stop()
	return true
}

// Pending reports whether the named timer is live.
func (g *Group) Pending(name string) bool {
	_, ok := g.timers[name]
	return ok
}

// Len returns the number of live timers.
func (g *Group) Len() int {
	return len(g.timers)
}

// CancelAll stops every live timer and returns how many were cancelled.
func (g *Group) CancelAll() int {
	n := len(g.timers)
	for name, t := range g.timers {
		t.done = true
		t.stopper.Stop()
		delete(g.timers, name)
	}
	return n
}
