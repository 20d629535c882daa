package schedule

// WrapTab maps any integer onto [0, total)
func WrapTab(i, total int) int {
	if total <= 0 {
		return 0
	}
	i %= total
	if i < 0 {
		i += total
	}
	return i
}

// TabDirection returns the slide direction when moving from prev to next on a
// ring of total tabs: 1 forward, -1 backward, 0 for no move. The shorter way
// around wins and a tie goes forward.
func TabDirection(prev, next, total int) int {
	if total <= 1 {
		return 0
	}
	prev, next = WrapTab(prev, total), WrapTab(next, total)
	if prev == next {
		return 0
	}

	forward := WrapTab(next-prev, total)
	if forward <= total-forward {
		return 1
	}
	return -1
}
