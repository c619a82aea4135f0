package live

import (
	"encoding/json"
)

// Envelope is the wire frame: {"type":"...","payload":{...}}.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Inbound frame types.
const (
	msgAuth           = "auth"
	msgCreateRoom     = "create_room"
	msgJoinRoom       = "join_room"
	msgQuickMatch     = "quick_match"
	msgCancelQueue    = "cancel_queue"
	msgMove           = "move"
	msgResign         = "resign"
	msgDrawOffer      = "draw_offer"
	msgDrawRespond    = "draw_respond"
	msgRematchOffer   = "rematch_offer"
	msgRematchRespond = "rematch_respond"
)

// Outbound frame types.
const (
	msgAuthOK               = "auth_ok"
	msgRoomCreated          = "room_created"
	msgGameStart            = "game_start"
	msgRematchStart         = "rematch_start"
	msgMoveAck              = "move_ack"
	msgGameEnd              = "game_end"
	msgDrawOffered          = "draw_offered"
	msgDrawDeclined         = "draw_declined"
	msgRematchOffered       = "rematch_offered"
	msgRematchDeclined      = "rematch_declined"
	msgOpponentDisconnected = "opponent_disconnected"
	msgOpponentReconnected  = "opponent_reconnected"
	msgReconnect            = "reconnect"
	msgQueueJoined          = "queue_joined"
	msgQueueLeft            = "queue_left"
	msgError                = "error"
)

type authPayload struct {
	SessionID string `json:"sessionId"`
}

type createRoomPayload struct {
	Name        string `json:"name"`
	TimeControl string `json:"timeControl"`
}

type joinRoomPayload struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

type quickMatchPayload struct {
	Name        string `json:"name"`
	TimeControl string `json:"timeControl"`
}

type movePayload struct {
	SAN string `json:"san"`
}

type respondPayload struct {
	Accept bool `json:"accept"`
}

type errorPayload struct {
	Message string `json:"message"`
}

type roomCreatedPayload struct {
	RoomID string `json:"roomId"`
	Color  string `json:"color"`
}

type gameStartPayload struct {
	RoomID       string `json:"roomId"`
	Color        string `json:"color"`
	FEN          string `json:"fen"`
	TimeControl  string `json:"timeControl"`
	OpponentName string `json:"opponentName"`
}

// clockPayload carries remaining milliseconds per side.
type clockPayload struct {
	W int64 `json:"w"`
	B int64 `json:"b"`
}

type moveBroadcastPayload struct {
	SAN    string        `json:"san"`
	FEN    string        `json:"fen"`
	Clocks *clockPayload `json:"clocks"`
}

type moveAckPayload struct {
	Clocks *clockPayload `json:"clocks"`
}

type gameEndPayload struct {
	Result string `json:"result"`
	Reason string `json:"reason"`
}

type opponentDisconnectedPayload struct {
	Timeout int `json:"timeout"`
}

type reconnectPayload struct {
	RoomID            string        `json:"roomId"`
	Color             string        `json:"color"`
	FEN               string        `json:"fen"`
	TimeControl       string        `json:"timeControl"`
	Moves             []string      `json:"moves"`
	Clocks            *clockPayload `json:"clocks"`
	OpponentName      string        `json:"opponentName"`
	OpponentConnected bool          `json:"opponentConnected"`
}

type queueJoinedPayload struct {
	TimeControl string `json:"timeControl"`
	Position    int    `json:"position"`
}

// frame builds an outbound envelope. Marshalling a local payload struct cannot
// fail; a nil payload yields {"type":...,"payload":{}}.
func frame(msgType string, payload any) Envelope {
	if payload == nil {
		payload = struct{}{}
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		raw = []byte("{}")
	}
	return Envelope{Type: msgType, Payload: raw}
}
