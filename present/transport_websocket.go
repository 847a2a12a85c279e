package present

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/bringyour/classroom/present/model"
)

// Hub protocol, one websocket per participant:
// - the client opens with its participant token as a text message, and the hub echoes it
// - binary messages carry frames. An empty binary message is a ping.
// - text messages after the auth carry hub control json. Each control is stamped with the hub clock.
// - websocket pings carry the sender clock, echoed in the pong, to time the round trip

const TransportBufferSize = 32

type WebSocketTransportSettings struct {
	WsHandshakeTimeout time.Duration
	AuthTimeout        time.Duration
	ReconnectTimeout   time.Duration
	PingTimeout        time.Duration
	WriteTimeout       time.Duration
	ReadTimeout        time.Duration
	// bounds one websocket message, and so one frame
	MaxMessageByteCount int64
}

func DefaultWebSocketTransportSettings() *WebSocketTransportSettings {
	return &WebSocketTransportSettings{
		WsHandshakeTimeout: 2 * time.Second,
		AuthTimeout:        2 * time.Second,
		ReconnectTimeout:   5 * time.Second,
		PingTimeout:        1 * time.Second,
		WriteTimeout:       5 * time.Second,
		ReadTimeout:        15 * time.Second,
		// room for a max size image plus the tree around it
		MaxMessageByteCount: 16 * 1024 * 1024,
	}
}

type hubParticipant struct {
	Id   model.Id `json:"id"`
	Role string   `json:"role"`
	Name string   `json:"name"`
}

type hubControl struct {
	// hub clock in unix millis
	Time   int64           `json:"time,omitempty"`
	Joined *hubParticipant `json:"joined,omitempty"`
	Left   *hubParticipant `json:"left,omitempty"`
}

func newHubParticipant(participant model.Participant) *hubParticipant {
	return &hubParticipant{
		Id:   participant.Id,
		Role: participant.Role.String(),
		Name: participant.HumanName,
	}
}

func (self *hubParticipant) Participant() (model.Participant, error) {
	role, err := model.ParseRole(self.Role)
	if err != nil {
		return model.Participant{}, err
	}
	return model.Participant{
		Id:        self.Id,
		Role:      role,
		HumanName: self.Name,
	}, nil
}

// connects a session to a relay hub and reconnects when the connection drops
type WebSocketTransport struct {
	ctx    context.Context
	cancel context.CancelFunc

	hubUrl  string
	token   string
	session *Session

	settings *WebSocketTransportSettings
}

func NewWebSocketTransportWithDefaults(ctx context.Context, hubUrl string, token string, session *Session) *WebSocketTransport {
	return NewWebSocketTransport(ctx, hubUrl, token, session, DefaultWebSocketTransportSettings())
}

func NewWebSocketTransport(
	ctx context.Context,
	hubUrl string,
	token string,
	session *Session,
	settings *WebSocketTransportSettings,
) *WebSocketTransport {
	cancelCtx, cancel := context.WithCancel(ctx)
	transport := &WebSocketTransport{
		ctx:      cancelCtx,
		cancel:   cancel,
		hubUrl:   hubUrl,
		token:    token,
		session:  session,
		settings: settings,
	}
	go transport.run()
	return transport
}

func (self *WebSocketTransport) run() {
	defer self.cancel()

	participantId := self.session.Participant().Id

	for {
		connect := func() (*websocket.Conn, error) {
			dialer := &websocket.Dialer{
				HandshakeTimeout: self.settings.WsHandshakeTimeout,
			}
			ws, _, err := dialer.DialContext(self.ctx, self.hubUrl, nil)
			if err != nil {
				return nil, err
			}

			success := false
			defer func() {
				if !success {
					ws.Close()
				}
			}()

			ws.SetReadLimit(self.settings.MaxMessageByteCount)

			authBytes := []byte(self.token)
			ws.SetWriteDeadline(time.Now().Add(self.settings.AuthTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, authBytes); err != nil {
				return nil, err
			}
			ws.SetReadDeadline(time.Now().Add(self.settings.AuthTimeout))
			if messageType, message, err := ws.ReadMessage(); err != nil {
				return nil, err
			} else {
				// verify the auth echo
				switch messageType {
				case websocket.TextMessage:
					if !bytes.Equal(authBytes, message) {
						return nil, fmt.Errorf("Auth response error: bad bytes.")
					}
				default:
					return nil, fmt.Errorf("Auth response error.")
				}
			}

			success = true
			return ws, nil
		}

		var ws *websocket.Conn
		var err error
		if glog.V(2) {
			ws, err = TraceWithReturnError(fmt.Sprintf("[ws]connect %s", participantId), connect)
		} else {
			ws, err = connect()
		}
		if err != nil {
			glog.Infof("[ws]auth error %s = %s\n", participantId, err)
			select {
			case <-self.ctx.Done():
				return
			case <-time.After(self.settings.ReconnectTimeout):
				continue
			}
		}

		c := func() {
			defer ws.Close()

			handleCtx, handleCancel := context.WithCancel(self.ctx)
			defer handleCancel()

			ws.SetPongHandler(func(appData string) error {
				pingUnixNano, err := strconv.ParseInt(appData, 10, 64)
				if err != nil {
					glog.V(2).Infof("[ws]bad pong %s<-\n", participantId)
					return nil
				}
				self.traceLatency(time.Since(time.Unix(0, pingUnixNano)))
				return nil
			})

			send := make(chan []byte, TransportBufferSize)

			connectionId := self.session.AddConnection(&Connection{
				Send: func(frameBytes []byte, group Group, priority Priority) error {
					select {
					case <-handleCtx.Done():
						return fmt.Errorf("Done.")
					case send <- frameBytes:
						return nil
					case <-time.After(self.settings.WriteTimeout):
						return fmt.Errorf("Write timeout.")
					}
				},
			})
			defer self.session.RemoveConnection(connectionId)

			go func() {
				defer handleCancel()

				for {
					select {
					case <-handleCtx.Done():
						return
					case message := <-send:
						ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
						if err := ws.WriteMessage(websocket.BinaryMessage, message); err != nil {
							// note that for websocket a deadline timeout cannot be recovered
							glog.Infof("[ws]%s-> error = %s\n", participantId, err)
							return
						}
						glog.V(2).Infof("[ws]%s->\n", participantId)
					case <-time.After(self.settings.PingTimeout):
						ws.SetWriteDeadline(time.Now().Add(self.settings.WriteTimeout))
						if err := ws.WriteMessage(websocket.BinaryMessage, make([]byte, 0)); err != nil {
							return
						}
						pingBytes := []byte(strconv.FormatInt(time.Now().UnixNano(), 10))
						if err := ws.WriteControl(websocket.PingMessage, pingBytes, time.Now().Add(self.settings.WriteTimeout)); err != nil {
							return
						}
					}
				}
			}()

			go func() {
				defer handleCancel()

				for {
					select {
					case <-handleCtx.Done():
						return
					default:
					}

					ws.SetReadDeadline(time.Now().Add(self.settings.ReadTimeout))
					messageType, message, err := ws.ReadMessage()
					if err != nil {
						glog.Infof("[ws]%s<- error = %s\n", participantId, err)
						return
					}

					switch messageType {
					case websocket.BinaryMessage:
						if len(message) == 0 {
							// ping
							continue
						}
						// frames arrive through the relay, which is not a participant
						if err := self.session.Receive(model.Id{}, message); err != nil {
							glog.Infof("[ws]%s<- frame error = %s\n", participantId, err)
						}
					case websocket.TextMessage:
						self.handleControl(message)
					default:
						glog.V(2).Infof("[ws]other=%d %s<-\n", messageType, participantId)
					}
				}
			}()

			<-handleCtx.Done()
		}
		if glog.V(2) {
			Trace(fmt.Sprintf("[ws]connect run %s", participantId), c)
		} else {
			c()
		}
		select {
		case <-self.ctx.Done():
			return
		case <-time.After(self.settings.ReconnectTimeout):
		}
	}
}

func (self *WebSocketTransport) handleControl(message []byte) {
	var control hubControl
	if err := json.Unmarshal(message, &control); err != nil {
		glog.Infof("[ws]bad control = %s\n", err)
		return
	}
	if control.Time != 0 {
		// includes the one way latency from the hub
		self.traceClockSkew(time.UnixMilli(control.Time).Sub(time.Now()))
	}
	if control.Joined != nil {
		participant, err := control.Joined.Participant()
		if err != nil {
			glog.Infof("[ws]bad joined participant = %s\n", err)
			return
		}
		self.session.ParticipantJoined(participant)
	}
}

func (self *WebSocketTransport) traceLatency(latency time.Duration) {
	if linkTracer, ok := self.session.tracer.(LinkTracer); ok {
		HandleError(func() {
			linkTracer.Latency(latency)
		})
	}
}

func (self *WebSocketTransport) traceClockSkew(skew time.Duration) {
	if linkTracer, ok := self.session.tracer.(LinkTracer); ok {
		HandleError(func() {
			linkTracer.ClockSkew(skew)
		})
	}
}

func (self *WebSocketTransport) Close() {
	self.cancel()
}
