package diag

import (
	"bufio"
	"io"
	"sync"

	"github.com/golang/glog"

	"github.com/bringyour/classroom/present"
)

// writes each frame once as a varint delimited frame, in both directions.
// Implements `present.MessageTracer`.
type FrameTrace struct {
	stateLock sync.Mutex
	w         *bufio.Writer
	lastFrame []byte
	err       error
}

func NewFrameTrace(w io.Writer) *FrameTrace {
	return &FrameTrace{
		w: bufio.NewWriter(w),
	}
}

func (self *FrameTrace) writeFrame(frameBytes []byte) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.err != nil || sameFrame(self.lastFrame, frameBytes) {
		return
	}
	self.lastFrame = frameBytes
	if err := present.WriteDelimitedFrame(self.w, frameBytes); err != nil {
		glog.Infof("[frames]write error = %s\n", err)
		self.err = err
	}
}

// present.MessageTracer
func (self *FrameTrace) MessageSent(summary *present.MessageSummary, frameBytes []byte) {
	self.writeFrame(frameBytes)
}

// present.MessageTracer
func (self *FrameTrace) MessageReceived(summary *present.MessageSummary, frameBytes []byte) {
	self.writeFrame(frameBytes)
}

func (self *FrameTrace) Flush() error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	if self.err != nil {
		return self.err
	}
	return self.w.Flush()
}
