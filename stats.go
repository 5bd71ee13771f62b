package cansniff

import "fmt"

// Stats is a snapshot of the pipeline counters.
type Stats struct {
	Received    uint64 // frames delivered by the source
	Filtered    uint64 // frames rejected by the software filter
	Enqueued    uint64
	Dropped     uint64 // frames lost to the overflow policy
	Relayed     uint64
	SentBytes   uint64
	WriteErrors uint64
}

func (st Stats) String() string {
	return fmt.Sprintf("recv: %d filtered: %d enqueued: %d dropped: %d relayed: %d sent: %d bytes write errors: %d",
		st.Received, st.Filtered, st.Enqueued, st.Dropped, st.Relayed, st.SentBytes, st.WriteErrors)
}
