package memhost

import (
	"fmt"

	"github.com/joeycumines/vlist/internal/childsize"
	"github.com/joeycumines/vlist/internal/layout"
)

// Group is a synthetic group child: an optional header, Count items and an
// optional footer.
type Group struct {
	host  *Host
	id    uint64
	index int // position in the host's child sequence
	count int

	live     map[int]*Row
	declared *childsize.Store
}

// ID returns the stable identity handed to the layout.
func (g *Group) ID() uint64 { return g.id }

func (g *Group) ItemCount() int { return g.count }

func (g *Group) Item(index int, _, _ bool) layout.Item {
	if index < 0 || index >= g.count {
		return nil
	}
	g.host.mu.Lock()
	defer g.host.mu.Unlock()
	if r, ok := g.live[index]; ok {
		return r
	}
	r := g.host.acquireLocked()
	r.Index = index
	r.Label = fmt.Sprintf("group %d / item %d", g.index, index)
	r.Size = g.host.sizeOf(index, g.count, g.index)
	g.live[index] = r
	return r
}

func (g *Group) Header() layout.Item {
	if g.host.header <= 0 {
		return nil
	}
	return &Row{Index: -1, Label: fmt.Sprintf("group %d", g.index), Size: g.host.header}
}

func (g *Group) Footer() layout.Item {
	if g.host.footer <= 0 {
		return nil
	}
	return &Row{Index: -1, Label: fmt.Sprintf("end of group %d", g.index), Size: g.host.footer}
}

func (g *Group) Lanes() int { return g.host.groupLanes }

func (g *Group) Spacing() float64 { return g.host.groupSpacing }

// DeclaredSizes returns per-item sizes when the host has a size formula.
func (g *Group) DeclaredSizes() *childsize.Store {
	if g.host.formula == nil {
		return nil
	}
	g.host.mu.Lock()
	defer g.host.mu.Unlock()
	if g.declared == nil {
		sizes := make([]float64, g.count)
		for i := range sizes {
			sizes[i] = g.host.sizeOf(i, g.count, g.index)
		}
		g.declared = childsize.New(g.host.defaultSize, sizes)
	}
	return g.declared
}

// RecycleItem returns a group item to the host pool.
func (g *Group) RecycleItem(index int) {
	g.host.mu.Lock()
	defer g.host.mu.Unlock()
	r, ok := g.live[index]
	if !ok {
		return
	}
	delete(g.live, index)
	g.host.releaseLocked(r)
}

// Live returns how many of the group's items are realized.
func (g *Group) Live() int {
	g.host.mu.Lock()
	defer g.host.mu.Unlock()
	return len(g.live)
}

func (g *Group) releaseAllLocked() {
	for i, r := range g.live {
		delete(g.live, i)
		g.host.releaseLocked(r)
	}
}
