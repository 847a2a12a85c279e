package present

import (
	"context"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"

	"github.com/bringyour/classroom/present/model"
)

func TestRelayForward(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay := NewRelayWithDefaults(ctx, NewGlogTracer())
	defer relay.Close()

	joined := make(chan model.Participant, 8)
	left := make(chan model.Participant, 8)
	relay.OnParticipantJoined(func(participant model.Participant) {
		joined <- participant
	})
	relay.OnParticipantLeft(func(participant model.Participant) {
		left <- participant
	})

	instructor := model.NewParticipant(model.RoleInstructor, "instructor")
	studentA := model.NewParticipant(model.RoleStudent, "a")
	studentB := model.NewParticipant(model.RoleStudent, "b")

	instructorFrames := make(chan *testFrame, 16)
	studentAFrames := make(chan *testFrame, 16)
	studentBFrames := make(chan *testFrame, 16)

	leaveInstructor, err := relay.Join(instructor, testSend(instructorFrames))
	assert.Equal(t, err, nil)
	leaveA, err := relay.Join(studentA, testSend(studentAFrames))
	assert.Equal(t, err, nil)
	_, err = relay.Join(studentB, testSend(studentBFrames))
	assert.Equal(t, err, nil)

	_, err = relay.Join(studentA, testSend(studentAFrames))
	assert.NotEqual(t, err, nil)

	assert.Equal(t, (<-joined).Id, instructor.Id)
	assert.Equal(t, (<-joined).Id, studentA.Id)
	assert.Equal(t, (<-joined).Id, studentB.Id)
	assert.Equal(t, len(relay.Participants()), 3)

	content := newTestContent(model.DeckDispositionNormal)
	frameBytes, err := EncodeFrame(content.slideTree())
	assert.Equal(t, err, nil)
	assert.Equal(t, relay.Forward(instructor.Id, frameBytes), nil)

	for _, frames := range []chan *testFrame{studentAFrames, studentBFrames} {
		messages := nextFrame(t, frames).messages(t)
		assert.Equal(t, len(messages), 1)
		assert.Equal(t, messages[0].TargetId, content.presentation.Id())
	}
	relay.Flush(time.Second)
	noFrame(t, instructorFrames)

	// a submission from one student reaches only the instructor
	submission := newTestContent(model.DeckDispositionStudentSubmission)
	submissionTree := submission.slideTree()
	submissionTree.Child.Child.Group = GroupSubmissions
	frameBytes, err = EncodeFrame(submissionTree)
	assert.Equal(t, err, nil)
	assert.Equal(t, relay.Forward(studentA.Id, frameBytes), nil)

	messages := nextFrame(t, instructorFrames).messages(t)
	assert.Equal(t, len(messages), 1)
	assert.Equal(t, messages[0].Child.Child.TargetId, submission.slide.Id())
	relay.Flush(time.Second)
	noFrame(t, studentAFrames)
	noFrame(t, studentBFrames)

	leaveA()
	leaveA()
	assert.Equal(t, (<-left).Id, studentA.Id)
	assert.Equal(t, len(relay.Participants()), 2)

	frameBytes, err = EncodeFrame(content.slideTree())
	assert.Equal(t, err, nil)
	relay.Forward(instructor.Id, frameBytes)
	nextFrame(t, studentBFrames)
	relay.Flush(time.Second)
	noFrame(t, studentAFrames)

	leaveInstructor()
	assert.Equal(t, (<-left).Id, instructor.Id)
}

func TestRelayForwardDropsMalformed(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay := NewRelayWithDefaults(ctx, NewGlogTracer())
	defer relay.Close()

	instructor := model.NewParticipant(model.RoleInstructor, "instructor")
	student := model.NewParticipant(model.RoleStudent, "student")
	studentFrames := make(chan *testFrame, 16)
	relay.Join(instructor, testSend(make(chan *testFrame, 16)))
	relay.Join(student, testSend(studentFrames))

	content := newTestContent(model.DeckDispositionNormal)
	frameBytes, err := EncodeFrame(content.slideTree())
	assert.Equal(t, err, nil)
	// truncate the only tree
	err = relay.Forward(instructor.Id, frameBytes[:len(frameBytes)-1])
	assert.NotEqual(t, err, nil)
	relay.Flush(time.Second)
	noFrame(t, studentFrames)
}
