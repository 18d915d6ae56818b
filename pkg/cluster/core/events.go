package core

// eventKind distinguishes the two sources the dispatch loop drains:
// inbound datagrams and fired timers (spec §5: both are processed to
// completion on the same logical context before the next is picked
// up).
type eventKind int

const (
	evDatagram eventKind = iota
	evTimer
	evStop
)

// event is what the reader goroutine and the timer registries post to
// the dispatch loop. run is non-nil only for evTimer.
type event struct {
	kind eventKind
	from string // bare IPv4 address, port stripped
	data []byte
	run  func()
}
