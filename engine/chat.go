// engine/chat.go
package engine

import (
	"time"

	"github.com/wfunc/pongserver/models"
)

// PartyChat relays a chat line to the sender's party. The server stamps
// nothing; from/send_at are set here so all members see the same instant.
func (e *Engine) PartyChat(identity, message string) error {
	var opErr error
	err := e.do(func() {
		member, err := e.db.CurrentMembership(identity)
		if err != nil {
			opErr = ErrNotInGame
			return
		}
		members, err := e.db.Members(member.PartyID)
		if err != nil {
			opErr = err
			return
		}
		e.bc.SendToParty(identitiesOf(presentOf(members)), identity, models.ChatMessage{
			Type:    models.MsgTypeParty,
			From:    identity,
			Message: message,
			SendAt:  time.Now(),
		})
	})
	if err != nil {
		return err
	}
	return opErr
}
