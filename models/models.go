// models/models.go
package models

// PartyMode 游戏模式
type PartyMode string

const (
	Mode1v1Online         PartyMode = "1v1_online"
	Mode1v1Offline        PartyMode = "1v1_offline"
	Mode2v2               PartyMode = "2v2"
	ModeVsAI              PartyMode = "vs_ai"
	ModeTournament        PartyMode = "tournament"
	ModeOfflineTournament PartyMode = "offline_tournament"
)

// PartyStatus 对局状态
type PartyStatus string

const (
	PartyWaiting  PartyStatus = "waiting"
	PartyLobby    PartyStatus = "lobby"
	PartyActive   PartyStatus = "active"
	PartyPaused   PartyStatus = "paused"
	PartyFinished PartyStatus = "finished"
)

// MemberStatus 成员状态
type MemberStatus string

const (
	MemberInvited      MemberStatus = "invited"
	MemberLobby        MemberStatus = "lobby"
	MemberWaiting      MemberStatus = "waiting"
	MemberActive       MemberStatus = "active"
	MemberDisconnected MemberStatus = "disconnected"
	MemberEliminated   MemberStatus = "eliminated"
	MemberLeft         MemberStatus = "left"
)

// Valid reports whether the mode is one of the known modes.
func (m PartyMode) Valid() bool {
	switch m {
	case Mode1v1Online, Mode1v1Offline, Mode2v2, ModeVsAI, ModeTournament, ModeOfflineTournament:
		return true
	}
	return false
}

// Capacity returns the maximum number of memberships for the mode.
func (m PartyMode) Capacity() int {
	switch m {
	case Mode1v1Online:
		return 2
	case Mode2v2:
		return 4
	case ModeTournament, ModeOfflineTournament:
		return 8
	default:
		// 单连接模式：一条连接控制全部球拍
		return 1
	}
}

// MinPlayers returns the present-member count required to start the mode.
func (m PartyMode) MinPlayers() int {
	switch m {
	case Mode1v1Online:
		return 2
	case Mode2v2:
		return 4
	case ModeTournament, ModeOfflineTournament:
		return 4
	default:
		return 1
	}
}

// Solo reports whether the party is driven by a single connection.
func (m PartyMode) Solo() bool {
	switch m {
	case Mode1v1Offline, ModeVsAI:
		return true
	}
	return false
}

// Bracket reports whether the mode runs a tournament bracket.
func (m PartyMode) Bracket() bool {
	return m == ModeTournament || m == ModeOfflineTournament
}

// Online reports whether members are registered identities with their own
// connections. Offline modes host local aliases behind one connection, so
// failed delivery to them must not trigger the disconnect side effect.
func (m PartyMode) Online() bool {
	switch m {
	case Mode1v1Offline, ModeOfflineTournament:
		return false
	}
	return true
}

// Present reports whether the member still counts toward capacity and play.
func (s MemberStatus) Present() bool {
	return s != MemberLeft && s != MemberDisconnected
}
