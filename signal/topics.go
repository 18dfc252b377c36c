package signal

import "fmt"

// Topic naming scheme.
//
// Topics are addressed per (scope, purpose, recipient) so the broker
// delivers each message to exactly the intended participant. The
// recipient identity is always the last path segment; brokers that
// enforce per-user topic ACLs can do so on that suffix.

// SignalTopic is the per-participant topic carrying negotiation
// envelopes (offer/answer/candidate) for every scope the participant
// takes part in.
func SignalTopic(identity string) string {
	return fmt.Sprintf("/topic/webrtc/connection/%s", identity)
}

// IncomingCallTopic is the per-participant topic on which new incoming
// calls are announced.
func IncomingCallTopic(identity string) string {
	return fmt.Sprintf("/topic/incoming/call/%s", identity)
}

// CallEventTopic carries out-of-band lifecycle events (ringing,
// accepted, rejected, ready, ended, media toggles) for one call,
// scoped to one participant.
func CallEventTopic(callID, identity string) string {
	return fmt.Sprintf("/topic/call/%s/%s", callID, identity)
}

// RosterAddTopic announces participants joining a meeting.
func RosterAddTopic(meetingCode string) string {
	return fmt.Sprintf("/topic/meeting/%s/participant/add", meetingCode)
}

// RosterRemoveTopic announces participants leaving a meeting.
func RosterRemoveTopic(meetingCode string) string {
	return fmt.Sprintf("/topic/meeting/%s/participant/remove", meetingCode)
}
