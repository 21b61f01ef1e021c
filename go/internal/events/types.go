// Package events defines the messages exchanged with clients over the duplex channel.
package events

// Type names a message on the wire.
type Type string

// Client to server.
const (
	TypeCreateRoom     Type = "room:create"
	TypeJoinRoom       Type = "room:join"
	TypeLeaveRoom      Type = "room:leave"
	TypePlayerReady    Type = "player:ready"
	TypeStartGame      Type = "game:start"
	TypeGuessSubmitted Type = "game:guessSubmitted"
	TypeRematchRequest Type = "game:rematchRequest"
	TypeRestoreSession Type = "session:restore"
	TypePing           Type = "ping"
)

// Server to client.
const (
	TypeConnectSuccess          Type = "connect:success"
	TypeAck                     Type = "ack"
	TypePong                    Type = "pong"
	TypeRoomUpdated             Type = "room:updated"
	TypePlayerJoined            Type = "player:joined"
	TypePlayerLeft              Type = "player:left"
	TypePlayerReadyChanged      Type = "player:readyChanged"
	TypeGameStarted             Type = "game:started"
	TypeRoundStarted            Type = "round:started"
	TypePlayerGuessed           Type = "player:guessed"
	TypeRoundComplete           Type = "game:roundComplete"
	TypeCountdownTick           Type = "countdown:tick"
	TypeGameComplete            Type = "game:complete"
	TypeRematchStatusUpdated    Type = "rematch:statusUpdated"
	TypeRematchCountdownStarted Type = "rematch:countdownStarted"
	TypeRematchCountdownTick    Type = "rematch:countdownTick"
	TypePlayerDisconnected      Type = "player:disconnected"
	TypePlayerLeftResults       Type = "game:playerLeftResults"
)

// IsRequest reports whether t is a message clients may send.
func (t Type) IsRequest() bool {
	switch t {
	case TypeCreateRoom, TypeJoinRoom, TypeLeaveRoom, TypePlayerReady, TypeStartGame,
		TypeGuessSubmitted, TypeRematchRequest, TypeRestoreSession, TypePing:
		return true
	}
	return false
}
