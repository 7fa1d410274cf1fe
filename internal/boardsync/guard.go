package boardsync

// GuardState is Suppressing while any local write may still be echoed back.
type GuardState int

const (
	Idle GuardState = iota
	Suppressing
)

func (s GuardState) String() string {
	if s == Suppressing {
		return "suppressing"
	}
	return "idle"
}

type armed struct {
	gen  uint64
	hash uint64
}

// Guard recognises the store echoing back a write this session made. It is
// owned by the session loop and is not safe for concurrent use.
//
// Every Arm starts a new generation and stays armed until a Release of that
// generation or a newer one. Several writes can be armed at once, so the
// echo of an older write is recognised while a newer one is still pending.
type Guard struct {
	pending []armed
	gen     uint64
}

// Arm records hash as the content of the write about to be issued.
func (g *Guard) Arm(hash uint64) uint64 {
	g.gen++
	g.pending = append(g.pending, armed{gen: g.gen, hash: hash})
	return g.gen
}

// Release disarms gen and every older generation. It reports whether this
// left the guard idle.
func (g *Guard) Release(gen uint64) bool {
	n := 0
	for _, a := range g.pending {
		if a.gen > gen {
			g.pending[n] = a
			n++
		}
	}
	released := n < len(g.pending)
	g.pending = g.pending[:n]
	return released && n == 0
}

// Suppresses reports whether a remote snapshot with this content hash is
// the echo of an armed write.
func (g *Guard) Suppresses(hash uint64) bool {
	for _, a := range g.pending {
		if a.hash == hash {
			return true
		}
	}
	return false
}

// State reports whether any write is armed.
func (g *Guard) State() GuardState {
	if len(g.pending) > 0 {
		return Suppressing
	}
	return Idle
}

// Generation is the generation of the latest Arm.
func (g *Guard) Generation() uint64 { return g.gen }
