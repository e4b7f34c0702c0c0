package app

// ActiveTurnTimers reports how many turn countdowns are armed.
func (e *Engine) ActiveTurnTimers() int {
	return e.core.timer.Active()
}
