package stagegl

import (
	"log/slog"
	"time"
)

// FrameStats holds the counters of the last rendered frame.
type FrameStats struct {
	// Flushes counts batch flushes, FlushReasons breaks them down by cause.
	Flushes      int
	FlushReasons map[string]int
	// Vertices is the number of batch vertices drawn.
	Vertices int
	// DrawCalls counts every device draw, batch flushes and full-surface
	// passes alike.
	DrawCalls    int
	CoverDraws   int
	CacheBuilds  int
	FilterPasses int
	// Textures is the number of registered textures at the end of the frame.
	Textures int
	Duration time.Duration
}

// FrameObserver receives the stats of each frame once it is drawn. The
// stats are a copy the observer may keep.
type FrameObserver interface {
	FrameRendered(frame int, stats FrameStats)
}

func (s *FrameStats) reset() {
	reasons := s.FlushReasons
	clear(reasons)
	*s = FrameStats{FlushReasons: reasons}
	if s.FlushReasons == nil {
		s.FlushReasons = make(map[string]int)
	}
}

func (s *FrameStats) recordFlush(reason flushReason, vertices int) {
	s.Flushes++
	s.DrawCalls++
	s.Vertices += vertices
	if s.FlushReasons == nil {
		s.FlushReasons = make(map[string]int)
	}
	s.FlushReasons[string(reason)]++
}

// clone returns a copy that does not share the reason map.
func (s FrameStats) clone() FrameStats {
	reasons := make(map[string]int, len(s.FlushReasons))
	for k, v := range s.FlushReasons {
		reasons[k] = v
	}
	s.FlushReasons = reasons
	return s
}

func (s *FrameStats) logValue() slog.Value {
	return slog.GroupValue(
		slog.Int("flushes", s.Flushes),
		slog.Int("drawCalls", s.DrawCalls),
		slog.Int("vertices", s.Vertices),
		slog.Int("coverDraws", s.CoverDraws),
		slog.Int("cacheBuilds", s.CacheBuilds),
		slog.Int("filterPasses", s.FilterPasses),
		slog.Int("textures", s.Textures),
		slog.Duration("duration", s.Duration),
	)
}

// Debug thresholds for tree shape warnings.
const (
	debugMaxTreeDepth  = 32
	debugMaxChildCount = 1000
)

// debugCheckNode warns about trees that will render slowly. Only called
// with Options.Debug.
func (r *Renderer) debugCheckNode(n *Node) {
	if len(n.children) > debugMaxChildCount {
		r.log.Warn("stagegl: node has many children", "node", n.Name, "children", len(n.children), "threshold", debugMaxChildCount)
	}
	depth := 0
	for p := n; p != nil; p = p.Parent {
		depth++
	}
	if depth > debugMaxTreeDepth {
		r.log.Warn("stagegl: deep tree", "node", n.Name, "depth", depth, "threshold", debugMaxTreeDepth)
	}
}
