package build

import (
	"cmp"
	"slices"

	"git.home.luguber.info/inful/docweave/internal/model"
)

// RegisterOverwrite makes frag available to the processors that own
// frag.UID. Fragments are collected during Prebuild and read from Build on.
func (c *Context) RegisterOverwrite(frag model.OverwriteFragment) {
	if frag.UID == "" {
		return
	}
	c.overwriteMu.Lock()
	defer c.overwriteMu.Unlock()
	c.overwrites[frag.UID] = append(c.overwrites[frag.UID], frag)
}

// Overwrites returns the fragments authored for uid ordered by file and
// line, so later fragments of the same build always apply last.
func (c *Context) Overwrites(uid string) []model.OverwriteFragment {
	c.overwriteMu.RLock()
	out := slices.Clone(c.overwrites[uid])
	c.overwriteMu.RUnlock()
	slices.SortStableFunc(out, func(a, b model.OverwriteFragment) int {
		if n := cmp.Compare(a.File, b.File); n != 0 {
			return n
		}
		return cmp.Compare(a.Line, b.Line)
	})
	return out
}
