package present

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/bringyour/classroom/present/model"
)

// serves the hub protocol of `WebSocketTransport` in front of a `Relay`
type WebSocketRelayHandler struct {
	ctx   context.Context
	relay *Relay

	upgrader websocket.Upgrader

	stateLock sync.Mutex
	// participant id -> control channel
	controls map[model.Id]chan []byte

	settings *WebSocketTransportSettings
}

func NewWebSocketRelayHandlerWithDefaults(ctx context.Context, relay *Relay) *WebSocketRelayHandler {
	return NewWebSocketRelayHandler(ctx, relay, DefaultWebSocketTransportSettings())
}

func NewWebSocketRelayHandler(ctx context.Context, relay *Relay, settings *WebSocketTransportSettings) *WebSocketRelayHandler {
	handler := &WebSocketRelayHandler{
		ctx:   ctx,
		relay: relay,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: settings.WsHandshakeTimeout,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		controls: map[model.Id]chan []byte{},
		settings: settings,
	}
	relay.OnParticipantJoined(func(participant model.Participant) {
		handler.broadcastControl(participant.Id, &hubControl{
			Joined: newHubParticipant(participant),
		})
	})
	relay.OnParticipantLeft(func(participant model.Participant) {
		handler.broadcastControl(participant.Id, &hubControl{
			Left: newHubParticipant(participant),
		})
	})
	return handler
}

func (self *WebSocketRelayHandler) broadcastControl(exceptId model.Id, control *hubControl) {
	control.Time = time.Now().UnixMilli()
	controlBytes, err := json.Marshal(control)
	if err != nil {
		glog.Infof("[hub]control error = %s\n", err)
		return
	}

	self.stateLock.Lock()
	defer self.stateLock.Unlock()

	for participantId, controls := range self.controls {
		if participantId == exceptId {
			continue
		}
		select {
		case controls <- controlBytes:
		default:
			glog.Infof("[hub]drop control to %s\n", participantId)
		}
	}
}

func (self *WebSocketRelayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := self.upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Infof("[hub]upgrade error = %s\n", err)
		return
	}
	defer ws.Close()

	ws.SetReadLimit(self.settings.MaxMessageByteCount)
	ws.SetReadDeadline(time.Now().Add(self.settings.AuthTimeout))
	messageType, authBytes, err := ws.ReadMessage()
	if err != nil || messageType != websocket.TextMessage {
		glog.Infof("[hub]auth error = %v\n", err)
		return
	}
	participant, err := ParseParticipantTokenUnverified(string(authBytes))
	if err != nil {
		glog.Infof("[hub]auth error = %s\n", err)
		return
	}
	ws.SetWriteDeadline(time.Now().Add(self.settings.AuthTimeout))
	if err := ws.WriteMessage(websocket.TextMessage, authBytes); err != nil {
		return
	}

	handleCtx, handleCancel := context.WithCancel(self.ctx)
	defer handleCancel()

	send := make(chan []byte, TransportBufferSize)
	controls := make(chan []byte, TransportBufferSize)

	// the first control only carries the hub clock
	if clockBytes, err := json.Marshal(&hubControl{Time: time.Now().UnixMilli()}); err == nil {
		controls <- clockBytes
	}

	func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		self.controls[participant.Id] = controls
	}()
	defer func() {
		self.stateLock.Lock()
		defer self.stateLock.Unlock()

		if self.controls[participant.Id] == controls {
			delete(self.controls, participant.Id)
		}
	}()

	leave, err := self.relay.Join(participant, func(frameBytes []byte, group Group, priority Priority) error {
		select {
		case <-handleCtx.Done():
			return fmt.Errorf("Done.")
		case send <- frameBytes:
			return nil
		case <-time.After(self.settings.WriteTimeout):
			return fmt.Errorf("Write timeout.")
		}
	})
	if err != nil {
		glog.Infof("[hub]join error = %s\n", err)
		return
	}
	defer leave()

	go func() {
		defer handleCancel()

		for {
			select {
			case <-handleCtx.Done():
				return
			case message := <-send:
				ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
				if err := ws.WriteMessage(websocket.BinaryMessage, message); err != nil {
					glog.Infof("[hub]->%s error = %s\n", participant.Id, err)
					return
				}
			case message := <-controls:
				ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
				if err := ws.WriteMessage(websocket.TextMessage, message); err != nil {
					glog.Infof("[hub]->%s error = %s\n", participant.Id, err)
					return
				}
			case <-time.After(self.settings.PingTimeout):
				ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
				if err := ws.WriteMessage(websocket.BinaryMessage, make([]byte, 0)); err != nil {
					return
				}
			}
		}
	}()

	go func() {
		defer handleCancel()

		for {
			ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
			messageType, message, err := ws.ReadMessage()
			if err != nil {
				glog.Infof("[hub]<-%s error = %s\n", participant.Id, err)
				return
			}
			switch messageType {
			case websocket.BinaryMessage:
				if len(message) == 0 {
					continue
				}
				if err := self.relay.Forward(participant.Id, message); err != nil {
					glog.Infof("[hub]<-%s frame error = %s\n", participant.Id, err)
				}
			default:
				glog.V(2).Infof("[hub]other=%d <-%s\n", messageType, participant.Id)
			}
		}
	}()

	<-handleCtx.Done()
}
