package present

import (
	"github.com/bringyour/classroom/present/model"
)

type QuickPollService struct {
	service

	quickPoll *model.QuickPollModel

	results *CollectionObserver[*model.QuickPollResultModel, *QuickPollResultService]
}

func newQuickPollService(context *serviceContext, wrap wrapFunction, quickPoll *model.QuickPollModel) *QuickPollService {
	quickPollService := &QuickPollService{
		quickPoll: quickPoll,
	}
	quickPollService.init(context, wrap, quickPollService.information)

	quickPollService.watch(quickPoll, quickPollService.sendInformation)

	if !quickPoll.Remote() {
		quickPollService.sendInformation()
	}

	quickPollService.results = NewCollectionObserver(
		quickPoll.Results(),
		func(index int, result *model.QuickPollResultModel) (*QuickPollResultService, bool) {
			if result.Remote() {
				return nil, false
			}
			return newQuickPollResultService(context, quickPollService.childWrap, result), true
		},
		func(index int, result *model.QuickPollResultModel, resultService *QuickPollResultService) {
			resultService.Close()
		},
	)

	return quickPollService
}

func (self *QuickPollService) information() *Message {
	return NewQuickPollInformationMessage(self.quickPoll)
}

func (self *QuickPollService) sendInformation() {
	self.build(self.information)
}

func (self *QuickPollService) ForceUpdate(group Group) {
	if !self.quickPoll.Remote() {
		self.sendToGroup(self.information(), group)
	}
	for _, resultService := range self.results.OrderedTags() {
		resultService.ForceUpdate(group)
	}
}

func (self *QuickPollService) Close() {
	if self.close() {
		self.results.Close()
	}
}

// votes are visible to the submissions group only
type QuickPollResultService struct {
	service

	result *model.QuickPollResultModel
}

func newQuickPollResultService(context *serviceContext, wrap wrapFunction, result *model.QuickPollResultModel) *QuickPollResultService {
	resultService := &QuickPollResultService{
		result: result,
	}
	resultService.init(context, wrap, resultService.information)

	resultService.watch(result, resultService.sendInformation)
	resultService.sendInformation()

	return resultService
}

func (self *QuickPollResultService) information() *Message {
	message := NewQuickPollResultInformationMessage(self.result)
	message.Group = GroupSubmissions
	return message
}

func (self *QuickPollResultService) sendInformation() {
	self.build(self.information)
}

func (self *QuickPollResultService) ForceUpdate(group Group) {
	self.sendToGroup(self.information(), group)
}

func (self *QuickPollResultService) Close() {
	self.close()
}
