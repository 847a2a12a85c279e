package present

import (
	"context"
	"time"

	"github.com/golang/glog"

	"github.com/bringyour/classroom/present/model"
)

type SessionSettings struct {
	// 0 for no limit
	MaxImageByteCount model.ByteCount
	// resend the whole state to each participant that connects
	ForceUpdateOnConnect bool
	SenderSettings       *SenderSettings
}

func DefaultSessionSettings() *SessionSettings {
	return &SessionSettings{
		MaxImageByteCount:    8 * 1024 * 1024,
		ForceUpdateOnConnect: true,
		SenderSettings:       DefaultSenderSettings(),
	}
}

// one participant's end of the replication protocol.
// The session owns the local object table, the sender worker, the receiver and
// the network services for every presentation in the classroom.
type Session struct {
	ctx    context.Context
	cancel context.CancelFunc

	participant      model.Participant
	classroom        *model.ClassroomModel
	table            *LocalObjectTable
	submissionStatus *model.SubmissionStatusModel

	sender   *Sender
	receiver *Receiver
	tracer   MessageTracer

	presentations *CollectionObserver[*model.PresentationModel, *PresentationService]

	settings *SessionSettings
}

func NewSessionWithDefaults(ctx context.Context, participant model.Participant, classroom *model.ClassroomModel, tracer MessageTracer) *Session {
	return NewSession(ctx, participant, classroom, tracer, DefaultSessionSettings())
}

func NewSession(
	ctx context.Context,
	participant model.Participant,
	classroom *model.ClassroomModel,
	tracer MessageTracer,
	settings *SessionSettings,
) *Session {
	cancelCtx, cancel := context.WithCancel(ctx)

	table := NewLocalObjectTable()
	submissionStatus := model.NewSubmissionStatusModel()
	sender := NewSender(cancelCtx, participant.Id, tracer, settings.SenderSettings)
	receiver := NewReceiver(participant, table, classroom, submissionStatus, tracer)

	session := &Session{
		ctx:              cancelCtx,
		cancel:           cancel,
		participant:      participant,
		classroom:        classroom,
		table:            table,
		submissionStatus: submissionStatus,
		sender:           sender,
		receiver:         receiver,
		tracer:           tracer,
		settings:         settings,
	}

	networkContext := &serviceContext{
		participant:      participant,
		table:            table,
		sender:           sender,
		submissionStatus: submissionStatus,
		settings:         settings,
	}
	session.presentations = NewCollectionObserver(
		classroom.Presentations(),
		func(index int, presentation *model.PresentationModel) (*PresentationService, bool) {
			return newPresentationService(networkContext, presentation), true
		},
		func(index int, presentation *model.PresentationModel, presentationService *PresentationService) {
			presentationService.Close()
		},
	)

	go func() {
		<-cancelCtx.Done()
		session.presentations.Close()
	}()

	return session
}

func (self *Session) Participant() model.Participant {
	return self.participant
}

func (self *Session) Classroom() *model.ClassroomModel {
	return self.classroom
}

func (self *Session) Table() *LocalObjectTable {
	return self.table
}

func (self *Session) SubmissionStatus() *model.SubmissionStatusModel {
	return self.submissionStatus
}

// the decode callback of the transport
func (self *Session) Receive(senderId model.Id, frameBytes []byte) error {
	select {
	case <-self.ctx.Done():
		return self.ctx.Err()
	default:
	}
	return self.receiver.Receive(senderId, frameBytes)
}

func (self *Session) AddConnection(connection *Connection) model.Id {
	connectionId := self.sender.AddConnection(connection)
	if self.settings.ForceUpdateOnConnect {
		group := GroupAllParticipant
		if connection.Participant != nil {
			group = GroupSingleton(connection.Participant.Id)
		}
		self.ForceUpdate(group)
	}
	return connectionId
}

func (self *Session) RemoveConnection(connectionId model.Id) {
	self.sender.RemoveConnection(connectionId)
}

// a participant joined behind a multicast connection
func (self *Session) ParticipantJoined(participant model.Participant) {
	if participant.Id == self.participant.Id {
		return
	}
	if self.settings.ForceUpdateOnConnect {
		self.ForceUpdate(GroupSingleton(participant.Id))
	}
}

// resends the whole local state to the group. This is the repair path for lost updates.
func (self *Session) ForceUpdate(group Group) {
	glog.V(1).Infof("[session]force update %s\n", group)
	for _, presentationService := range self.presentations.OrderedTags() {
		presentationService.ForceUpdate(group)
	}
}

func (self *Session) Flush(timeout time.Duration) bool {
	return self.sender.Flush(timeout)
}

func (self *Session) Close() {
	self.cancel()
	self.sender.Close()
}
