package present

import (
	"github.com/bringyour/classroom/present/model"
)

type PresentationService struct {
	service

	presentation *model.PresentationModel

	decks      *CollectionObserver[*model.DeckModel, *DeckService]
	quickPolls *CollectionObserver[*model.QuickPollModel, *QuickPollService]
}

func newPresentationService(context *serviceContext, presentation *model.PresentationModel) *PresentationService {
	presentationService := &PresentationService{
		presentation: presentation,
	}
	presentationService.init(context, unwrapped, presentationService.information)

	presentationService.watch(presentation, presentationService.sendInformation)

	if !presentation.Remote() {
		presentationService.sendInformation()
	}

	presentationService.decks = NewCollectionObserver(
		presentation.Decks(),
		func(index int, deck *model.DeckModel) (*DeckService, bool) {
			return newDeckService(context, presentationService.childWrap, deck), true
		},
		func(index int, deck *model.DeckModel, deckService *DeckService) {
			deckService.Close()
			if !deck.Remote() && !presentationService.isClosing() {
				presentationService.sendChild(NewDeckRemovedMessage(deck))
			}
		},
	)
	presentationService.quickPolls = NewCollectionObserver(
		presentation.QuickPolls(),
		func(index int, quickPoll *model.QuickPollModel) (*QuickPollService, bool) {
			return newQuickPollService(context, presentationService.childWrap, quickPoll), true
		},
		func(index int, quickPoll *model.QuickPollModel, quickPollService *QuickPollService) {
			quickPollService.Close()
		},
	)

	return presentationService
}

func (self *PresentationService) information() *Message {
	return NewPresentationInformationMessage(self.presentation)
}

func (self *PresentationService) sendInformation() {
	self.build(self.information)
}

func (self *PresentationService) ForceUpdate(group Group) {
	if !self.presentation.Remote() {
		self.sendToGroup(self.information(), group)
	}
	for _, deckService := range self.decks.OrderedTags() {
		deckService.ForceUpdate(group)
	}
	for _, quickPollService := range self.quickPolls.OrderedTags() {
		quickPollService.ForceUpdate(group)
	}
}

func (self *PresentationService) Close() {
	if self.close() {
		self.decks.Close()
		self.quickPolls.Close()
	}
}

type DeckService struct {
	service

	deck *model.DeckModel

	slides *CollectionObserver[*model.SlideModel, *SlideService]
}

func newDeckService(context *serviceContext, wrap wrapFunction, deck *model.DeckModel) *DeckService {
	deckService := &DeckService{
		deck: deck,
	}
	deckService.init(context, wrap, deckService.information)

	deckService.watch(deck, deckService.sendInformation)

	if !deck.Remote() {
		deckService.sendInformation()
	}

	deckService.slides = NewCollectionObserver(
		deck.Slides(),
		func(index int, slide *model.SlideModel) (*SlideService, bool) {
			deckService.acknowledgeSubmission(slide)
			return newSlideService(context, deckService.childWrap, slide), true
		},
		func(index int, slide *model.SlideModel, slideService *SlideService) {
			slideService.Close()
			if !slide.Remote() && !deckService.isClosing() {
				deckService.sendChild(NewSlideDeletedMessage(slide))
			}
		},
	)

	return deckService
}

func (self *DeckService) information() *Message {
	return NewDeckInformationMessage(self.deck)
}

func (self *DeckService) sendInformation() {
	self.build(self.information)
}

// an instructor acknowledges each received submission back to its owner
func (self *DeckService) acknowledgeSubmission(slide *model.SlideModel) {
	if self.context.participant.Role != model.RoleInstructor {
		return
	}
	if !slide.Remote() || self.deck.DeckDisposition() != model.DeckDispositionStudentSubmission {
		return
	}
	state := slide.Snapshot()
	if !state.IsSubmission() {
		return
	}
	message := NewSubmissionStatusMessage(state.SubmissionId, model.SubmissionStatusReceived)
	message.Group = GroupSingleton(state.OwnerId)
	if !self.context.sender.Send(message) {
		treesDroppedTotal.WithLabelValues("post").Inc()
	}
}

func (self *DeckService) ForceUpdate(group Group) {
	if !self.deck.Remote() {
		self.sendToGroup(self.information(), group)
	}
	for _, slideService := range self.slides.OrderedTags() {
		slideService.ForceUpdate(group)
	}
}

func (self *DeckService) Close() {
	if self.close() {
		self.slides.Close()
	}
}
