// Package packet implements the Bancho binary wire codec: frame
// splitting, scalar/string readers and writers, and the fixed packet
// id table the rest of the server dispatches on.
package packet

// ID identifies a Bancho frame. Client-originated ids are prefixed
// OSU, server-originated ids SRV. Values are fixed by the wire
// protocol and must not be renumbered.
type ID uint16

const (
	OSUChangeAction        ID = 0
	OSUSendPublicMessage   ID = 1
	OSULogout              ID = 2
	OSURequestStatusUpdate ID = 3
	OSUPing                ID = 4
	OSUStartSpectating     ID = 16
	OSUStopSpectating      ID = 17
	OSUSpectateFrames      ID = 18
	OSUCantSpectate        ID = 21
	OSUSendPrivateMessage  ID = 25
	OSUFriendAdd           ID = 73
	OSUFriendRemove        ID = 74
	OSUChannelJoin         ID = 63
	OSUJoinLobby           ID = 30
	OSUReceiveUpdates      ID = 79
	OSUChannelPart         ID = 78
	OSUUserStatsRequest    ID = 85

	// OSUHeartbeat is the client keepalive; it shares OSUPing's id.
	OSUHeartbeat = OSUPing

	SRVLoginReply             ID = 5
	SRVSendMessage            ID = 7
	SRVPong                   ID = 8
	SRVUserStats              ID = 11
	SRVUserLogout             ID = 12
	SRVSpectatorJoined        ID = 13
	SRVSpectatorLeft          ID = 14
	SRVSpectateFrames         ID = 15
	SRVProtocolVersion        ID = 75
	SRVSpectatorCantSpectate  ID = 22
	SRVNotification           ID = 24
	SRVFellowSpectatorJoined  ID = 42
	SRVFellowSpectatorLeft    ID = 43
	SRVChannelJoinSuccess     ID = 64
	SRVChannelInfo            ID = 65
	SRVPrivileges             ID = 71
	SRVFriendsList            ID = 72
	SRVUserPresence           ID = 83
	SRVRestart                ID = 86
	SRVChannelInfoEnd         ID = 89
	SRVChannelKick            ID = 66
	SRVSilenceEnd             ID = 92
	SRVUserDMBlocked          ID = 100
	SRVTargetIsSilenced       ID = 101
)

// restrictedAllowed lists the ids a restricted user may still send.
var restrictedAllowed = map[ID]bool{
	OSUHeartbeat:            true,
	OSUChangeAction:         true,
	OSURequestStatusUpdate:  true,
	OSUUserStatsRequest:     true,
	OSUChannelJoin:          true,
	OSUChannelPart:          true,
	OSULogout:               true,
	OSUReceiveUpdates:       true,
}

// RestrictedAllowed reports whether a restricted user may execute id.
func RestrictedAllowed(id ID) bool {
	return restrictedAllowed[id]
}
