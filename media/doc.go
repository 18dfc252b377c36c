// Package media owns the local capture side of a call: the audio and
// video tracks attached to every peer link, and the mute state that
// gates what actually goes out on them.
//
// Toggling a track writes silence into the pipeline instead of
// renegotiating; the peer connection never notices a mute. The remote
// side learns about camera/mic state through the call's out-of-band
// event channel, not through SDP.
package media
