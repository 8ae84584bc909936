package transfer

import "github.com/DDME36/PurrDrop/internal/rtc"

// Lane is the data-channel surface the transfer engine runs over. It is
// satisfied by *rtc.DataLane; tests substitute in-process lanes.
type Lane interface {
	Open() <-chan struct{}
	Done() <-chan struct{}
	Err() error
	OnMessage(fn func(rtc.LaneMessage))
	Send(msg rtc.LaneMessage) error
	BufferedAmount() uint64
	Drained() <-chan struct{}
	Close() error
}

var _ Lane = (*rtc.DataLane)(nil)
