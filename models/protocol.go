// models/protocol.go
package models

import "time"

// Message types carried in the "type" field of every duplex frame.
const (
	MsgTypeInput        = "input"
	MsgTypePrivate      = "private"
	MsgTypeParty        = "party"
	MsgTypeStart        = "start"
	MsgTypeGame         = "game"
	MsgTypeStop         = "stop"
	MsgTypePause        = "pause"
	MsgTypeReconnect    = "reconnect"
	MsgTypeJoin         = "join"
	MsgTypeNotification = "notification"
)

// InputMessage 客户端输入，不落库
type InputMessage struct {
	Type string `json:"type"`
	Game uint   `json:"game"`
	Team int    `json:"team"`
	Up   bool   `json:"up"`
	Down bool   `json:"down"`
}

// ChatMessage covers both private and party chat. The server stamps From
// and SendAt before relaying.
type ChatMessage struct {
	Type    string    `json:"type"`
	To      string    `json:"to,omitempty"`
	From    string    `json:"from,omitempty"`
	Message string    `json:"message"`
	SendAt  time.Time `json:"send_at,omitzero"`
}

// StartMessage announces a (re)started match to one member.
type StartMessage struct {
	Type    string   `json:"type"`
	Game    uint     `json:"game"`
	Team    int      `json:"team"`
	Team1   int      `json:"team1"`
	Team2   int      `json:"team2"`
	Resume  bool     `json:"resume"`
	Players []string `json:"players"`
	Timer   int      `json:"timer"`
}

// GameState 每tick广播的标准化(0-1)坐标
type GameState struct {
	Paddle1Y float64 `json:"paddle1Y"`
	Paddle2Y float64 `json:"paddle2Y"`
	BallX    float64 `json:"ballX"`
	BallY    float64 `json:"ballY"`
	Score1   int     `json:"score1"`
	Score2   int     `json:"score2"`
}

// GameMessage wraps the per-tick state frame.
type GameMessage struct {
	Type string    `json:"type"`
	Data GameState `json:"data"`
}

// StopMessage ends a match for its recipients.
type StopMessage struct {
	Type   string    `json:"type"`
	Winner string    `json:"winner"`
	Round  int       `json:"round"`
	Mode   PartyMode `json:"mode"`
}

// StatusMessage is a bare status ping (pause/reconnect/join/notification).
type StatusMessage struct {
	Type    string `json:"type"`
	Party   uint   `json:"party,omitempty"`
	User    string `json:"user,omitempty"`
	Message string `json:"message,omitempty"`
}
