package present

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
	"github.com/gorilla/websocket"

	"github.com/bringyour/classroom/present/model"
)

func TestHubControlJson(t *testing.T) {
	participant := model.NewParticipant(model.RoleStudent, "Ada")

	controlBytes, err := json.Marshal(&hubControl{
		Joined: newHubParticipant(participant),
	})
	assert.Equal(t, err, nil)

	var control hubControl
	err = json.Unmarshal(controlBytes, &control)
	assert.Equal(t, err, nil)
	assert.Equal(t, control.Left == nil, true)
	parsed, err := control.Joined.Participant()
	assert.Equal(t, err, nil)
	assert.Equal(t, parsed, participant)
}

func TestWebSocketHub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay := NewRelayWithDefaults(ctx, NewGlogTracer())
	defer relay.Close()
	server := httptest.NewServer(NewWebSocketRelayHandlerWithDefaults(ctx, relay))
	defer server.Close()
	hubUrl := "ws" + strings.TrimPrefix(server.URL, "http")

	connect := func(role model.Role) (*Session, *WebSocketTransport) {
		session := newTestSession(ctx, role, DefaultSessionSettings())
		token, err := NewParticipantToken(session.Participant(), []byte("test"))
		assert.Equal(t, err, nil)
		return session, NewWebSocketTransportWithDefaults(ctx, hubUrl, token, session)
	}

	instructor, instructorTransport := connect(model.RoleInstructor)
	defer instructor.Close()
	defer instructorTransport.Close()

	presentation := model.NewPresentationModel(model.NewId(), model.PresentationState{
		HumanName: "Lecture",
	})
	instructor.Classroom().Presentations().Add(presentation)

	eventually(t, func() bool {
		return len(relay.Participants()) == 1
	})

	// the instructor sends its state to the student on join
	student, studentTransport := connect(model.RoleStudent)
	defer student.Close()
	defer studentTransport.Close()

	var remotePresentation *model.PresentationModel
	eventually(t, func() bool {
		presentations := student.Classroom().Presentations().Members()
		if len(presentations) != 1 {
			return false
		}
		remotePresentation = presentations[0]
		return true
	})
	assert.Equal(t, remotePresentation.Id(), presentation.Id())
	assert.Equal(t, remotePresentation.Remote(), true)

	presentation.Update(func(state *model.PresentationState) {
		state.HumanName = "Lecture 2"
	})
	eventually(t, func() bool {
		return remotePresentation.Snapshot().HumanName == "Lecture 2"
	})

	studentTransport.Close()
	eventually(t, func() bool {
		return len(relay.Participants()) == 1
	})
}

type linkTestTracer struct {
	stateLock sync.Mutex
	latencies []time.Duration
	skews     []time.Duration
}

func (self *linkTestTracer) MessageSent(summary *MessageSummary, frameBytes []byte) {}

func (self *linkTestTracer) MessageReceived(summary *MessageSummary, frameBytes []byte) {}

func (self *linkTestTracer) Latency(latency time.Duration) error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.latencies = append(self.latencies, latency)
	return nil
}

func (self *linkTestTracer) ClockSkew(skew time.Duration) error {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	self.skews = append(self.skews, skew)
	return nil
}

func (self *linkTestTracer) counts() (int, int) {
	self.stateLock.Lock()
	defer self.stateLock.Unlock()
	return len(self.latencies), len(self.skews)
}

func TestWebSocketLinkTiming(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay := NewRelayWithDefaults(ctx, NewGlogTracer())
	defer relay.Close()
	server := httptest.NewServer(NewWebSocketRelayHandlerWithDefaults(ctx, relay))
	defer server.Close()
	hubUrl := "ws" + strings.TrimPrefix(server.URL, "http")

	linkTracer := &linkTestTracer{}
	participant := model.NewParticipant(model.RoleInstructor, "instructor")
	session := NewSession(
		ctx,
		participant,
		model.NewClassroomModel(),
		MultiTracer(NewGlogTracer(), linkTracer),
		DefaultSessionSettings(),
	)
	defer session.Close()
	token, err := NewParticipantToken(participant, []byte("test"))
	assert.Equal(t, err, nil)

	settings := DefaultWebSocketTransportSettings()
	settings.PingTimeout = 20 * time.Millisecond
	transport := NewWebSocketTransport(ctx, hubUrl, token, session, settings)
	defer transport.Close()

	eventually(t, func() bool {
		latencyCount, skewCount := linkTracer.counts()
		return 2 <= latencyCount && 1 <= skewCount
	})

	linkTracer.stateLock.Lock()
	defer linkTracer.stateLock.Unlock()
	for _, latency := range linkTracer.latencies {
		assert.Equal(t, 0 <= latency && latency < 5*time.Second, true)
	}
	// same host
	for _, skew := range linkTracer.skews {
		assert.Equal(t, -5*time.Second < skew && skew < 5*time.Second, true)
	}
}

func TestWebSocketHubReadLimit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	relay := NewRelayWithDefaults(ctx, NewGlogTracer())
	defer relay.Close()
	settings := DefaultWebSocketTransportSettings()
	settings.MaxMessageByteCount = 1024
	server := httptest.NewServer(NewWebSocketRelayHandler(ctx, relay, settings))
	defer server.Close()
	hubUrl := "ws" + strings.TrimPrefix(server.URL, "http")

	participant := model.NewParticipant(model.RoleStudent, "student")
	token, err := NewParticipantToken(participant, []byte("test"))
	assert.Equal(t, err, nil)

	ws, _, err := websocket.DefaultDialer.Dial(hubUrl, nil)
	assert.Equal(t, err, nil)
	defer ws.Close()

	err = ws.WriteMessage(websocket.TextMessage, []byte(token))
	assert.Equal(t, err, nil)
	messageType, echo, err := ws.ReadMessage()
	assert.Equal(t, err, nil)
	assert.Equal(t, messageType, websocket.TextMessage)
	assert.Equal(t, string(echo), token)

	eventually(t, func() bool {
		return len(relay.Participants()) == 1
	})

	err = ws.WriteMessage(websocket.BinaryMessage, make([]byte, 4096))
	assert.Equal(t, err, nil)

	// the hub drops the connection
	eventually(t, func() bool {
		return len(relay.Participants()) == 0
	})
	ws.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}
}
