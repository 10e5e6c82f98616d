package session

import "github.com/deb2000-sudo/cloudvault/internal/protocol"

const disconnectingStateName = "Disconnecting"

// disconnectingState is terminal: every packet that arrives after entering
// it gets an error response and the connection closes once Run observes
// this state (see Session.Run).
type disconnectingState struct{}

func (disconnectingState) Name() string       { return disconnectingStateName }
func (disconnectingState) OnEnter(s *Session) {}
func (disconnectingState) OnExit(s *Session)  {}

func (disconnectingState) Handle(s *Session, p *protocol.Packet) (*protocol.Packet, State) {
	return protocol.ErrorPacket(p.UserID, "Session is disconnecting"), nil
}
