// Package meeting implements N-party meetings as a full mesh of 1:1
// peer links, one per remote participant.
//
// Offer direction follows a single convention that rules out glare:
// participants already in the meeting initiate toward each new
// arrival, and the arrival answers. A joiner therefore never offers;
// it learns the current roster, subscribes, and waits for the
// incumbents' offers.
//
// Each remote participant is isolated: a failed or departed peer takes
// down exactly its own link and queued candidates, never the rest of
// the mesh.
package meeting
