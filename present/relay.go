package present

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang/glog"

	"github.com/bringyour/classroom/present/model"
)

type RelaySettings struct {
	SenderSettings *SenderSettings
}

func DefaultRelaySettings() *RelaySettings {
	return &RelaySettings{
		SenderSettings: DefaultSenderSettings(),
	}
}

type ParticipantFunction = func(participant model.Participant)

type relayParticipant struct {
	participant  model.Participant
	connectionId model.Id
}

// the bridge hop. Trees received from one participant are forwarded to every
// other participant they reach, queued by bridge priority.
type Relay struct {
	ctx    context.Context
	cancel context.CancelFunc

	relayId model.Id
	sender  *Sender

	stateLock    sync.Mutex
	participants map[model.Id]*relayParticipant

	joinedCallbacks *model.CallbackList[ParticipantFunction]
	leftCallbacks   *model.CallbackList[ParticipantFunction]
}

func NewRelayWithDefaults(ctx context.Context, tracer MessageTracer) *Relay {
	return NewRelay(ctx, tracer, DefaultRelaySettings())
}

func NewRelay(ctx context.Context, tracer MessageTracer, settings *RelaySettings) *Relay {
	cancelCtx, cancel := context.WithCancel(ctx)
	relayId := model.NewId()
	return &Relay{
		ctx:             cancelCtx,
		cancel:          cancel,
		relayId:         relayId,
		sender:          NewSender(cancelCtx, relayId, tracer, settings.SenderSettings),
		participants:    map[model.Id]*relayParticipant{},
		joinedCallbacks: model.NewCallbackList[ParticipantFunction](),
		leftCallbacks:   model.NewCallbackList[ParticipantFunction](),
	}
}

func (self *Relay) RelayId() model.Id {
	return self.relayId
}

// returns a function that removes the participant
func (self *Relay) Join(participant model.Participant, send SendFunction) (func(), error) {
	var joined bool
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		if _, ok := self.participants[participant.Id]; ok {
			return
		}
		connectionId := self.sender.AddConnection(&Connection{
			Participant: &participant,
			Bridge:      true,
			Send:        send,
		})
		self.participants[participant.Id] = &relayParticipant{
			participant:  participant,
			connectionId: connectionId,
		}
		relayConnectionsGauge.Set(float64(len(self.participants)))
		joined = true
	}()
	if !joined {
		return nil, fmt.Errorf("Participant %s already joined.", participant.Id)
	}

	glog.Infof("[relay]joined %s %s\n", participant, participant.HumanName)
	for _, callback := range self.joinedCallbacks.Get() {
		HandleError(func() {
			callback(participant)
		})
	}

	var leaveOnce sync.Once
	return func() {
		leaveOnce.Do(func() {
			self.leave(participant)
		})
	}, nil
}

func (self *Relay) leave(participant model.Participant) {
	var left bool
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		p, ok := self.participants[participant.Id]
		if !ok {
			return
		}
		delete(self.participants, participant.Id)
		self.sender.RemoveConnection(p.connectionId)
		relayConnectionsGauge.Set(float64(len(self.participants)))
		left = true
	}()
	if !left {
		return
	}

	glog.Infof("[relay]left %s\n", participant)
	for _, callback := range self.leftCallbacks.Get() {
		HandleError(func() {
			callback(participant)
		})
	}
}

func (self *Relay) Participants() []model.Participant {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	participants := []model.Participant{}
	for _, p := range self.participants {
		participants = append(participants, p.participant)
	}
	return participants
}

// forwards every tree in the frame. A malformed tree is dropped alone.
func (self *Relay) Forward(senderId model.Id, frameBytes []byte) error {
	messages, treeErrs, err := DecodeFrame(frameBytes)
	for range treeErrs {
		treesDroppedTotal.WithLabelValues("malformed").Inc()
	}
	for _, message := range messages {
		if !self.sender.SendFrom(message, senderId) {
			glog.Infof("[relay]drop tree from %s\n", senderId)
		}
	}
	return err
}

func (self *Relay) OnParticipantJoined(callback ParticipantFunction) func() {
	callbackId := self.joinedCallbacks.Add(callback)
	return func() {
		self.joinedCallbacks.Remove(callbackId)
	}
}

func (self *Relay) OnParticipantLeft(callback ParticipantFunction) func() {
	callbackId := self.leftCallbacks.Add(callback)
	return func() {
		self.leftCallbacks.Remove(callbackId)
	}
}

func (self *Relay) Flush(timeout time.Duration) bool {
	return self.sender.Flush(timeout)
}

func (self *Relay) Close() {
	self.cancel()
	self.sender.Close()
}
