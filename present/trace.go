package present

import (
	"encoding/json"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/bringyour/classroom/present/model"
)

// recovers a panic in `do`, logs it, and passes the error to the handlers
func HandleError(do func(), handlers ...any) (r any) {
	defer func() {
		if r = recover(); r != nil {
			glog.Warningf("Unexpected error: %s\n", ErrorJson(r, debug.Stack()))
			err, ok := r.(error)
			if !ok {
				err = fmt.Errorf("%s", r)
			}
			for _, handler := range handlers {
				switch v := handler.(type) {
				case func():
					v()
				case func(error):
					v(err)
				}
			}
		}
	}()
	do()
	return
}

func ErrorJson(err any, stack []byte) string {
	stackLines := []string{}
	for _, line := range strings.Split(string(stack), "\n") {
		stackLines = append(stackLines, strings.TrimSpace(line))
	}
	errorJson, _ := json.Marshal(map[string]any{
		"error": fmt.Sprintf("%T=%s", err, err),
		"stack": stackLines,
	})
	return string(errorJson)
}

func Trace(tag string, do func()) {
	trace(tag, func() string {
		do()
		return ""
	})
}

func TraceWithReturnError[R any](tag string, do func() (R, error)) (result R, returnErr error) {
	trace(tag, func() string {
		result, returnErr = do()
		if returnErr != nil {
			return fmt.Sprintf(" err = %s", returnErr)
		}
		return fmt.Sprintf(" = %v", result)
	})
	return
}

func trace(tag string, do func() string) {
	start := time.Now()
	glog.Infof("[%-8s]%s (%d)\n", "start", tag, start.UnixMilli())
	doTag := do()
	end := time.Now()
	millis := float32(end.Sub(start)) / float32(time.Millisecond)
	glog.Infof("[%-8s]%s (%.2fms) (%d)%s\n", "end", tag, millis, end.UnixMilli(), doTag)
}

type Direction int

const (
	DirectionSent Direction = iota
	DirectionReceived
)

func (self Direction) String() string {
	switch self {
	case DirectionSent:
		return "sent"
	default:
		return "received"
	}
}

// a summary of one message tree as it crossed the transport
type MessageSummary struct {
	Time      time.Time
	Direction Direction
	PeerId    model.Id
	RootTag   ClassTag
	LeafTag   ClassTag
	LeafId    model.Id
	Group     Group
	Priority  Priority
	NodeCount int
	ByteCount model.ByteCount
}

func NewMessageSummary(direction Direction, peerId model.Id, message *Message, byteCount model.ByteCount) *MessageSummary {
	leaf := message.Leaf()
	return &MessageSummary{
		Time:      time.Now(),
		Direction: direction,
		PeerId:    peerId,
		RootTag:   message.ClassTag(),
		LeafTag:   leaf.ClassTag(),
		LeafId:    leaf.TargetId,
		Group:     message.RootGroup(),
		Priority:  message.Priority(),
		NodeCount: message.Count(),
		ByteCount: byteCount,
	}
}

func (self *MessageSummary) String() string {
	return fmt.Sprintf(
		"%s %s %s/%s %s group=%s priority=%s nodes=%d bytes=%d",
		self.Direction,
		self.PeerId,
		self.RootTag,
		self.LeafTag,
		self.LeafId,
		self.Group,
		self.Priority,
		self.NodeCount,
		self.ByteCount,
	)
}

// receives summaries of sent and received trees, e.g. for a diagnostic log.
// Implementations must not block.
type MessageTracer interface {
	MessageSent(summary *MessageSummary, frameBytes []byte)
	MessageReceived(summary *MessageSummary, frameBytes []byte)
}

// optionally implemented by a `MessageTracer` to receive the timing of the hub link
type LinkTracer interface {
	Latency(latency time.Duration) error
	// `skew` is the remote clock minus the local clock
	ClockSkew(skew time.Duration) error
}

type glogTracer struct{}

func (self *glogTracer) MessageSent(summary *MessageSummary, frameBytes []byte) {
	glog.V(2).Infof("[trace]%s\n", summary)
}

func (self *glogTracer) MessageReceived(summary *MessageSummary, frameBytes []byte) {
	glog.V(2).Infof("[trace]%s\n", summary)
}

func NewGlogTracer() MessageTracer {
	return &glogTracer{}
}

type multiTracer struct {
	tracers []MessageTracer
}

func MultiTracer(tracers ...MessageTracer) MessageTracer {
	return &multiTracer{
		tracers: tracers,
	}
}

func (self *multiTracer) MessageSent(summary *MessageSummary, frameBytes []byte) {
	for _, tracer := range self.tracers {
		HandleError(func() {
			tracer.MessageSent(summary, frameBytes)
		})
	}
}

func (self *multiTracer) MessageReceived(summary *MessageSummary, frameBytes []byte) {
	for _, tracer := range self.tracers {
		HandleError(func() {
			tracer.MessageReceived(summary, frameBytes)
		})
	}
}

func (self *multiTracer) Latency(latency time.Duration) error {
	for _, tracer := range self.tracers {
		if linkTracer, ok := tracer.(LinkTracer); ok {
			HandleError(func() {
				linkTracer.Latency(latency)
			})
		}
	}
	return nil
}

func (self *multiTracer) ClockSkew(skew time.Duration) error {
	for _, tracer := range self.tracers {
		if linkTracer, ok := tracer.(LinkTracer); ok {
			HandleError(func() {
				linkTracer.ClockSkew(skew)
			})
		}
	}
	return nil
}
