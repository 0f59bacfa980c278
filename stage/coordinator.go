package stage

// coordinator owns the stage phase.
type coordinator struct {
	phase Phase

	onTransition func(from, to Phase)
}

// to moves forward to p. Moving to the current or an earlier phase is a
// no-op and reports false.
func (c *coordinator) to(p Phase) bool {
	if p <= c.phase {
		return false
	}
	from := c.phase
	c.phase = p
	if c.onTransition != nil {
		c.onTransition(from, p)
	}
	return true
}

func (c *coordinator) accepting() bool {
	return c.phase == Active
}
