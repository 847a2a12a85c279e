package present

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/bringyour/classroom/present/model"
)

type testFrame struct {
	frameBytes []byte
	group      Group
	priority   Priority
}

func (self *testFrame) messages(t *testing.T) []*Message {
	messages, treeErrs, err := DecodeFrame(self.frameBytes)
	assert.Equal(t, err, nil)
	assert.Equal(t, len(treeErrs), 0)
	return messages
}

func testSend(frames chan *testFrame) SendFunction {
	return func(frameBytes []byte, group Group, priority Priority) error {
		frames <- &testFrame{
			frameBytes: frameBytes,
			group:      group,
			priority:   priority,
		}
		return nil
	}
}

// flushes only on `Flush`, except for real time work
func manualFlushSenderSettings() *SenderSettings {
	settings := DefaultSenderSettings()
	settings.IdleFlushTimeout = time.Hour
	settings.MaxCoalesceTimeout = time.Hour
	return settings
}

func nextFrame(t *testing.T, frames chan *testFrame) *testFrame {
	select {
	case frame := <-frames:
		return frame
	case <-time.After(5 * time.Second):
		t.Fatal("no frame")
		return nil
	}
}

func noFrame(t *testing.T, frames chan *testFrame) {
	select {
	case frame := <-frames:
		t.Fatalf("unexpected frame with %d bytes", len(frame.frameBytes))
	default:
	}
}

func TestSenderRouting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	instructor := model.NewParticipant(model.RoleInstructor, "i")
	student := model.NewParticipant(model.RoleStudent, "s")

	sender := NewSender(ctx, model.NewId(), nil, manualFlushSenderSettings())
	defer sender.Close()

	instructorFrames := make(chan *testFrame, 16)
	studentFrames := make(chan *testFrame, 16)
	multicastFrames := make(chan *testFrame, 16)
	sender.AddConnection(&Connection{
		Participant: &instructor,
		Send:        testSend(instructorFrames),
	})
	studentConnectionId := sender.AddConnection(&Connection{
		Participant: &student,
		Send:        testSend(studentFrames),
	})
	sender.AddConnection(&Connection{
		Send: testSend(multicastFrames),
	})
	assert.Equal(t, sender.ConnectionCount(), 3)

	submission := NewMessage(model.NewId(), &StudentSubmissionSlideInformation{})
	submission.Group = GroupSubmissions
	tree := spine(
		NewMessage(model.NewId(), &PresentationInformation{}),
		NewMessage(model.NewId(), &DeckInformation{}),
		submission,
	)
	assert.Equal(t, sender.Send(tree), true)
	assert.Equal(t, sender.Flush(5*time.Second), true)

	frame := nextFrame(t, instructorFrames)
	messages := frame.messages(t)
	assert.Equal(t, len(messages), 1)
	assert.Equal(t, messages[0].Leaf().TargetId, submission.TargetId)
	assert.Equal(t, frame.group, GroupAllParticipant)

	nextFrame(t, multicastFrames)
	noFrame(t, studentFrames)

	// never back to the origin
	assert.Equal(t, sender.SendFrom(NewMessage(model.NewId(), &TextSheetInformation{}), student.Id), true)
	assert.Equal(t, sender.Flush(5*time.Second), true)
	nextFrame(t, instructorFrames)
	nextFrame(t, multicastFrames)
	noFrame(t, studentFrames)

	sender.RemoveConnection(studentConnectionId)
	assert.Equal(t, sender.ConnectionCount(), 2)
	assert.Equal(t, len(sender.ConnectionIds()), 2)
}

func TestSenderCoalesce(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := NewSender(ctx, model.NewId(), nil, manualFlushSenderSettings())
	defer sender.Close()

	frames := make(chan *testFrame, 16)
	sender.AddConnection(&Connection{
		Send: testSend(frames),
	})

	inkSheet := model.NewInkSheetModel(model.NewId(), model.SheetState{})
	for i := 0; i < 4; i += 1 {
		sender.Send(NewInkSheetStrokesAddedMessage(inkSheet, model.NewStroke([]byte{byte(i)})))
	}
	assert.Equal(t, sender.Flush(5*time.Second), true)

	messages := nextFrame(t, frames).messages(t)
	assert.Equal(t, len(messages), 1)
	assert.Equal(t, len(messages[0].Body.(*InkSheetStrokesAdded).Strokes), 4)
	noFrame(t, frames)
}

func TestSenderFrameBatches(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := NewSender(ctx, model.NewId(), nil, manualFlushSenderSettings())
	defer sender.Close()

	frames := make(chan *testFrame, 16)
	sender.AddConnection(&Connection{
		Send: testSend(frames),
	})

	for i := 0; i < 3; i += 1 {
		sender.Send(NewMessage(model.NewId(), &TextSheetInformation{}))
	}
	instructors := NewMessage(model.NewId(), &TextSheetInformation{})
	instructors.Group = GroupAllInstructor
	sender.Send(instructors)
	assert.Equal(t, sender.Flush(5*time.Second), true)

	frame := nextFrame(t, frames)
	assert.Equal(t, frame.group, GroupAllParticipant)
	assert.Equal(t, frame.priority, PriorityNormal)
	assert.Equal(t, len(frame.messages(t)), 3)

	frame = nextFrame(t, frames)
	assert.Equal(t, frame.group, GroupAllInstructor)
	assert.Equal(t, len(frame.messages(t)), 1)
	noFrame(t, frames)
}

func TestSenderRealTimeFlushesImmediately(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := NewSender(ctx, model.NewId(), nil, manualFlushSenderSettings())
	defer sender.Close()

	frames := make(chan *testFrame, 16)
	sender.AddConnection(&Connection{
		Send: testSend(frames),
	})

	inkSheet := model.NewInkSheetModel(model.NewId(), model.SheetState{})
	sender.Send(NewRealTimeInkPacketsMessage(inkSheet, model.NewId(), []int32{1, 2}))

	frame := nextFrame(t, frames)
	assert.Equal(t, frame.priority, PriorityRealTime)
}

func TestSenderIdleFlush(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sender := NewSenderWithDefaults(ctx, model.NewId(), nil)
	defer sender.Close()

	frames := make(chan *testFrame, 16)
	sender.AddConnection(&Connection{
		Send: testSend(frames),
	})

	sender.Send(NewMessage(model.NewId(), &TextSheetInformation{}))
	assert.Equal(t, len(nextFrame(t, frames).messages(t)), 1)
}

func TestSenderPostDrops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	settings := manualFlushSenderSettings()
	settings.TaskBufferSize = 1
	sender := NewSender(ctx, model.NewId(), nil, settings)
	defer sender.Close()

	running := make(chan struct{})
	release := make(chan struct{})
	assert.Equal(t, sender.Post(func() {
		close(running)
		<-release
	}), true)
	<-running

	assert.Equal(t, sender.Post(func() {}), true)
	// the buffer is full
	assert.Equal(t, sender.Post(func() {}), false)
	assert.Equal(t, sender.PostWithTimeout(func() {}, 10*time.Millisecond), false)
	close(release)

	done := make(chan struct{})
	assert.Equal(t, sender.PostWithTimeout(func() {
		close(done)
	}, -1), true)
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("task did not run")
	}
}
