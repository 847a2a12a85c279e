package present

import (
	"testing"

	"github.com/go-playground/assert/v2"

	"github.com/bringyour/classroom/present/model"
)

type testReceiver struct {
	participant      model.Participant
	classroom        *model.ClassroomModel
	table            *LocalObjectTable
	submissionStatus *model.SubmissionStatusModel
	receiver         *Receiver
}

func newTestReceiver(role model.Role) *testReceiver {
	participant := model.NewParticipant(role, role.String())
	classroom := model.NewClassroomModel()
	table := NewLocalObjectTable()
	submissionStatus := model.NewSubmissionStatusModel()
	return &testReceiver{
		participant:      participant,
		classroom:        classroom,
		table:            table,
		submissionStatus: submissionStatus,
		receiver:         NewReceiver(participant, table, classroom, submissionStatus, nil),
	}
}

// goes through the codec so that no sender objects leak into the receiver
func (self *testReceiver) receive(t *testing.T, senderId model.Id, messages ...*Message) {
	frameBytes, err := EncodeFrame(messages...)
	assert.Equal(t, err, nil)
	assert.Equal(t, self.receiver.Receive(senderId, frameBytes), nil)
}

// nests each message as the child of the previous one
func spine(messages ...*Message) *Message {
	for i := len(messages) - 1; 0 < i; i -= 1 {
		messages[i-1].InsertChild(messages[i])
	}
	return messages[0]
}

type testContent struct {
	presentation *model.PresentationModel
	deck         *model.DeckModel
	slide        *model.SlideModel
}

func newTestContent(deckDisposition model.DeckDisposition) *testContent {
	return &testContent{
		presentation: model.NewPresentationModel(model.NewId(), model.PresentationState{
			HumanName: "Lecture",
		}),
		deck: model.NewDeckModel(model.NewId(), model.DeckState{
			HumanName:       "Deck",
			DeckDisposition: deckDisposition,
		}),
		slide: model.NewSlideModel(model.NewId(), model.SlideState{
			Title:  "Intro",
			Bounds: model.Rect(0, 0, 800, 600),
		}),
	}
}

func (self *testContent) slideTree(leaves ...*Message) *Message {
	messages := []*Message{
		NewPresentationInformationMessage(self.presentation),
		NewDeckInformationMessage(self.deck),
		NewSlideInformationMessage(self.slide),
	}
	return spine(append(messages, leaves...)...)
}

func onlySlide(t *testing.T, classroom *model.ClassroomModel) *model.SlideModel {
	presentations := classroom.Presentations().Members()
	assert.Equal(t, len(presentations), 1)
	decks := presentations[0].Decks().Members()
	assert.Equal(t, len(decks), 1)
	slides := decks[0].Slides().Members()
	assert.Equal(t, len(slides), 1)
	return slides[0]
}

func TestReceiveSlideTree(t *testing.T) {
	content := newTestContent(model.DeckDispositionNormal)
	r := newTestReceiver(model.RoleStudent)
	senderId := model.NewId()

	r.receive(t, senderId, content.slideTree())

	presentation := r.classroom.Presentations().Members()[0]
	assert.Equal(t, presentation.Id(), content.presentation.Id())
	assert.Equal(t, presentation.HumanName(), "Lecture")
	assert.Equal(t, presentation.Remote(), true)

	slide := onlySlide(t, r.classroom)
	assert.Equal(t, slide.Id(), content.slide.Id())
	assert.Equal(t, slide.Title(), "Intro")
	assert.Equal(t, slide.Bounds(), model.Rect(0, 0, 800, 600))
	assert.Equal(t, slide.Remote(), true)
	assert.Equal(t, r.table.Len(), 3)

	// applying the same tree again changes nothing
	r.receive(t, senderId, content.slideTree())
	assert.Equal(t, onlySlide(t, r.classroom), slide)
	assert.Equal(t, r.table.Len(), 3)

	// an update resolves to the same instance
	content.slide.SetTitle("Intro 2")
	r.receive(t, senderId, content.slideTree())
	assert.Equal(t, onlySlide(t, r.classroom), slide)
	assert.Equal(t, slide.Title(), "Intro 2")
}

func TestReceiveOutOfOrder(t *testing.T) {
	content := newTestContent(model.DeckDispositionNormal)
	textSheet := model.NewTextSheetModel(model.NewId(), model.SheetState{
		Bounds: model.Rect(10, 10, 100, 20),
	}, model.TextSheetState{
		Text: "hello",
	})
	r := newTestReceiver(model.RoleStudent)
	senderId := model.NewId()

	sheetTree := content.slideTree(NewTextSheetInformationMessage(textSheet))
	content.slide.SetTitle("Newer")
	slideTree := content.slideTree()

	// the sheet tree carries the whole ancestor spine, so it applies on its own
	r.receive(t, senderId, sheetTree)
	slide := onlySlide(t, r.classroom)
	assert.Equal(t, slide.Title(), "Intro")
	assert.Equal(t, slide.Sheets().Len(), 1)

	r.receive(t, senderId, slideTree)
	assert.Equal(t, onlySlide(t, r.classroom), slide)
	assert.Equal(t, slide.Title(), "Newer")
	sheet, ok := slide.SheetById(textSheet.Id())
	assert.Equal(t, ok, true)
	assert.Equal(t, sheet.(*model.TextSheetModel).Snapshot().Text, "hello")
}

func TestReceiveSubmissionFilter(t *testing.T) {
	content := newTestContent(model.DeckDispositionStudentSubmission)
	submitter := model.NewParticipant(model.RoleStudent, "submitter")
	submission := model.NewSlideModel(model.NewId(), model.SlideState{
		Title:        "My answer",
		SubmissionId: model.NewId(),
		OwnerId:      submitter.Id,
	})

	tree := func() *Message {
		slideMessage := NewStudentSubmissionSlideInformationMessage(submission)
		slideMessage.Group = GroupSubmissions
		return spine(
			NewPresentationInformationMessage(content.presentation),
			NewDeckInformationMessage(content.deck),
			slideMessage,
		)
	}

	instructor := newTestReceiver(model.RoleInstructor)
	instructor.receive(t, submitter.Id, tree())
	slide := onlySlide(t, instructor.classroom)
	assert.Equal(t, slide.Snapshot().OwnerId, submitter.Id)
	assert.Equal(t, slide.Snapshot().IsSubmission(), true)

	display := newTestReceiver(model.RolePublicDisplay)
	display.receive(t, submitter.Id, tree())
	onlySlide(t, display.classroom)

	// the deck applies for another student but the submission does not
	student := newTestReceiver(model.RoleStudent)
	student.receive(t, submitter.Id, tree())
	decks := student.classroom.Presentations().Members()[0].Decks().Members()
	assert.Equal(t, len(decks), 1)
	assert.Equal(t, decks[0].Slides().Len(), 0)
}

func TestReceiveUnresolved(t *testing.T) {
	content := newTestContent(model.DeckDispositionNormal)
	r := newTestReceiver(model.RoleInstructor)
	senderId := model.NewId()

	// a deck with no enclosing presentation is skipped with its children
	r.receive(t, senderId, spine(
		NewDeckInformationMessage(content.deck),
		NewSlideInformationMessage(content.slide),
	))
	assert.Equal(t, r.classroom.Presentations().Len(), 0)
	_, ok := r.table.Lookup(content.slide.Id())
	assert.Equal(t, ok, false)

	// an id bound to another kind does not resolve
	mismatch := model.NewSlideModel(content.deck.Id(), model.SlideState{})
	r.table.Bind(mismatch)
	r.receive(t, senderId, content.slideTree())
	presentation := r.classroom.Presentations().Members()[0]
	assert.Equal(t, presentation.Decks().Len(), 0)
}

func TestReceiveRemovals(t *testing.T) {
	content := newTestContent(model.DeckDispositionNormal)
	r := newTestReceiver(model.RoleStudent)
	senderId := model.NewId()

	r.receive(t, senderId, content.slideTree())
	slide := onlySlide(t, r.classroom)

	r.receive(t, senderId, spine(
		NewPresentationInformationMessage(content.presentation),
		NewDeckInformationMessage(content.deck),
		NewSlideDeletedMessage(content.slide),
	))
	deck := r.classroom.Presentations().Members()[0].Decks().Members()[0]
	assert.Equal(t, deck.Slides().Contains(slide), false)

	r.receive(t, senderId, spine(
		NewPresentationInformationMessage(content.presentation),
		NewDeckRemovedMessage(content.deck),
	))
	assert.Equal(t, r.classroom.Presentations().Members()[0].Decks().Len(), 0)
}

func TestReceiveInk(t *testing.T) {
	content := newTestContent(model.DeckDispositionNormal)
	inkSheet := model.NewInkSheetModel(model.NewId(), model.SheetState{})
	r := newTestReceiver(model.RoleStudent)
	senderId := model.NewId()

	strokeId := model.NewId()
	r.receive(t, senderId, content.slideTree(
		NewInkSheetInformationMessage(inkSheet),
		NewRealTimeInkPacketsMessage(inkSheet, strokeId, []int32{1, 2, 3}),
	))
	sheet, ok := onlySlide(t, r.classroom).SheetById(inkSheet.Id())
	assert.Equal(t, ok, true)
	remoteInkSheet := sheet.(*model.InkSheetModel)
	assert.Equal(t, remoteInkSheet.RealTimePackets(strokeId), []int32{1, 2, 3})

	stroke := &model.Stroke{
		Id:  strokeId,
		Ink: []byte{9, 9},
	}
	r.receive(t, senderId, content.slideTree(
		NewInkSheetInformationMessage(inkSheet),
		NewInkSheetStrokesAddedMessage(inkSheet, stroke),
	))
	remoteStroke, ok := remoteInkSheet.StrokeById(strokeId)
	assert.Equal(t, ok, true)
	assert.Equal(t, remoteStroke.Ink, []byte{9, 9})
	assert.Equal(t, len(remoteInkSheet.RealTimePackets(strokeId)), 0)

	// packets for a committed stroke are ignored
	r.receive(t, senderId, content.slideTree(
		NewInkSheetInformationMessage(inkSheet),
		NewRealTimeInkPacketsMessage(inkSheet, strokeId, []int32{4}),
	))
	assert.Equal(t, len(remoteInkSheet.RealTimePackets(strokeId)), 0)

	r.receive(t, senderId, content.slideTree(
		NewInkSheetInformationMessage(inkSheet),
		NewInkSheetStrokesDeletingMessage(inkSheet, strokeId),
	))
	assert.Equal(t, remoteInkSheet.Strokes().Len(), 0)
}

func TestReceiveSubmissionStatus(t *testing.T) {
	r := newTestReceiver(model.RoleStudent)
	submissionId := model.NewId()

	message := NewSubmissionStatusMessage(submissionId, model.SubmissionStatusReceived)
	message.Group = GroupSingleton(r.participant.Id)
	r.receive(t, model.NewId(), message)
	assert.Equal(t, r.submissionStatus.Status(submissionId), model.SubmissionStatusReceived)

	// not addressed to this participant
	otherId := model.NewId()
	message = NewSubmissionStatusMessage(otherId, model.SubmissionStatusReceived)
	message.Group = GroupSingleton(model.NewId())
	r.receive(t, model.NewId(), message)
	assert.Equal(t, r.submissionStatus.Status(otherId), model.SubmissionStatusUnknown)
}

func TestReceiveQuickPoll(t *testing.T) {
	content := newTestContent(model.DeckDispositionNormal)
	quickPoll := model.NewQuickPollModel(model.NewId(), model.QuickPollState{
		Style:   model.QuickPollStyleABC,
		Enabled: true,
	})
	voter := model.NewParticipant(model.RoleStudent, "voter")
	result := model.NewQuickPollResultModel(model.NewId(), model.QuickPollResultState{
		OwnerId: voter.Id,
		Choice:  "B",
	})

	resultMessage := NewQuickPollResultInformationMessage(result)
	resultMessage.Group = GroupSubmissions
	tree := spine(
		NewPresentationInformationMessage(content.presentation),
		NewQuickPollInformationMessage(quickPoll),
		resultMessage,
	)

	r := newTestReceiver(model.RoleInstructor)
	r.receive(t, voter.Id, tree)
	presentation := r.classroom.Presentations().Members()[0]
	remoteQuickPoll := presentation.QuickPolls().Members()[0]
	assert.Equal(t, remoteQuickPoll.Snapshot().Enabled, true)
	assert.Equal(t, remoteQuickPoll.Tally()["B"], 1)
}

func TestReceiveKeepsLocalObjects(t *testing.T) {
	content := newTestContent(model.DeckDispositionNormal)
	r := newTestReceiver(model.RoleInstructor)
	senderId := model.NewId()

	r.classroom.Presentations().Add(content.presentation)
	content.presentation.Decks().Add(content.deck)
	r.table.AddLocalRef(content.presentation)
	r.table.AddLocalRef(content.deck)

	stale := model.NewPresentationModel(content.presentation.Id(), model.PresentationState{
		HumanName: "Stale",
	})

	// a removal of a local deck from another participant is ignored
	r.receive(t, senderId, spine(
		NewPresentationInformationMessage(stale),
		NewDeckRemovedMessage(content.deck),
	))
	assert.Equal(t, content.presentation.Snapshot().HumanName, "Lecture")
	assert.Equal(t, content.presentation.Decks().Len(), 1)

	// a stale wrapper does not re-attach a deck removed locally
	content.presentation.Decks().Remove(content.deck)
	r.receive(t, senderId, spine(
		NewPresentationInformationMessage(stale),
		NewDeckInformationMessage(content.deck),
		NewSlideInformationMessage(content.slide),
	))
	assert.Equal(t, content.presentation.Decks().Len(), 0)
	assert.Equal(t, r.classroom.Presentations().Len(), 1)
	assert.Equal(t, content.presentation.Remote(), false)
}

func TestReceiveStaleEnclosingNodes(t *testing.T) {
	content := newTestContent(model.DeckDispositionNormal)
	textSheet := model.NewTextSheetModel(model.NewId(), model.SheetState{}, model.TextSheetState{
		Text: "hello",
	})
	r := newTestReceiver(model.RoleStudent)
	senderId := model.NewId()

	// built before the rename but delivered after it
	staleSheetTree := content.slideTree(NewTextSheetInformationMessage(textSheet))
	content.presentation.Update(func(state *model.PresentationState) {
		state.HumanName = "Lecture 2"
	})
	content.slide.SetTitle("Newer")

	r.receive(t, senderId, NewPresentationInformationMessage(content.presentation))
	r.receive(t, senderId, content.slideTree())
	slide := onlySlide(t, r.classroom)
	assert.Equal(t, slide.Title(), "Newer")

	r.receive(t, senderId, staleSheetTree)
	assert.Equal(t, onlySlide(t, r.classroom), slide)
	assert.Equal(t, slide.Title(), "Newer")
	assert.Equal(t, r.classroom.Presentations().Members()[0].HumanName(), "Lecture 2")
	assert.Equal(t, slide.Sheets().Len(), 1)

	// a stale tree does not bring back a removed slide
	staleSlideTree := content.slideTree(NewTextSheetInformationMessage(textSheet))
	r.receive(t, senderId, spine(
		NewPresentationInformationMessage(content.presentation),
		NewDeckInformationMessage(content.deck),
		NewSlideDeletedMessage(content.slide),
	))
	deck := r.classroom.Presentations().Members()[0].Decks().Members()[0]
	assert.Equal(t, deck.Slides().Len(), 0)

	r.receive(t, senderId, staleSlideTree)
	assert.Equal(t, deck.Slides().Len(), 0)
}
