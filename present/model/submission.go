package model

import (
	"sync"

	"golang.org/x/exp/maps"
)

type SubmissionStatus int

const (
	SubmissionStatusUnknown SubmissionStatus = iota
	SubmissionStatusSending
	SubmissionStatusReceived
	SubmissionStatusFailed
)

func (self SubmissionStatus) String() string {
	switch self {
	case SubmissionStatusSending:
		return "sending"
	case SubmissionStatusReceived:
		return "received"
	case SubmissionStatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type SubmissionStatusFunction = func(submissionId Id, status SubmissionStatus)

// the submission status of one participant's session.
// This is owned by the session and passed explicitly where needed.
type SubmissionStatusModel struct {
	stateLock sync.Mutex
	statuses  map[Id]SubmissionStatus

	callbacks *CallbackList[SubmissionStatusFunction]
}

func NewSubmissionStatusModel() *SubmissionStatusModel {
	return &SubmissionStatusModel{
		statuses:  map[Id]SubmissionStatus{},
		callbacks: NewCallbackList[SubmissionStatusFunction](),
	}
}

func (self *SubmissionStatusModel) Status(submissionId Id) SubmissionStatus {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return self.statuses[submissionId]
}

func (self *SubmissionStatusModel) Statuses() map[Id]SubmissionStatus {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	return maps.Clone(self.statuses)
}

func (self *SubmissionStatusModel) SetStatus(submissionId Id, status SubmissionStatus) {
	changed := false
	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		if self.statuses[submissionId] != status {
			self.statuses[submissionId] = status
			changed = true
		}
	}()
	if changed {
		for _, callback := range self.callbacks.Get() {
			callback(submissionId, status)
		}
	}
}

func (self *SubmissionStatusModel) OnStatus(callback SubmissionStatusFunction) func() {
	callbackId := self.callbacks.Add(callback)
	return func() {
		self.callbacks.Remove(callbackId)
	}
}
