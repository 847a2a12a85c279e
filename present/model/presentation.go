package model

const (
	PresentationPropertyHumanName = "HumanName"
	PresentationPropertyOwnerId   = "OwnerId"
)

// the receiver's domain model root
type ClassroomModel struct {
	presentations *Collection[*PresentationModel]
}

func NewClassroomModel() *ClassroomModel {
	return &ClassroomModel{
		presentations: NewCollection[*PresentationModel](),
	}
}

func (self *ClassroomModel) Presentations() *Collection[*PresentationModel] {
	return self.presentations
}

type PresentationState struct {
	HumanName string
	// the instructor that owns the presentation
	OwnerId Id
}

type PresentationModel struct {
	object

	state PresentationState

	decks      *Collection[*DeckModel]
	quickPolls *Collection[*QuickPollModel]
}

func NewPresentationModel(id Id, state PresentationState) *PresentationModel {
	presentation := &PresentationModel{
		state:      state,
		decks:      NewCollection[*DeckModel](),
		quickPolls: NewCollection[*QuickPollModel](),
	}
	presentation.init(id, KindPresentation, presentation)
	return presentation
}

func (self *PresentationModel) Snapshot() PresentationState {
	return snapshotState(&self.object, &self.state)
}

func (self *PresentationModel) Update(mutate func(*PresentationState)) []string {
	return updateState(&self.object, &self.state, mutate, diffPresentationState)
}

func (self *PresentationModel) HumanName() string {
	return self.Snapshot().HumanName
}

func (self *PresentationModel) SetHumanName(humanName string) {
	self.Update(func(state *PresentationState) {
		state.HumanName = humanName
	})
}

func (self *PresentationModel) Decks() *Collection[*DeckModel] {
	return self.decks
}

func (self *PresentationModel) QuickPolls() *Collection[*QuickPollModel] {
	return self.quickPolls
}

func (self *PresentationModel) DeckById(deckId Id) (*DeckModel, bool) {
	return self.decks.Find(func(deck *DeckModel) bool {
		return deck.Id() == deckId
	})
}

func diffPresentationState(a PresentationState, b PresentationState) []string {
	properties := []string{}
	if a.HumanName != b.HumanName {
		properties = append(properties, PresentationPropertyHumanName)
	}
	if a.OwnerId != b.OwnerId {
		properties = append(properties, PresentationPropertyOwnerId)
	}
	return properties
}
