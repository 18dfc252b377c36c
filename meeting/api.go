package meeting

import "context"

// RosterAPI is the meeting REST surface the orchestrator drives. The
// api package provides the production implementation; tests substitute
// a recording fake.
type RosterAPI interface {
	// CanJoin reports whether identity may enter the meeting or must
	// wait for admission.
	CanJoin(ctx context.Context, code, identity string) (bool, error)

	// Join registers identity as a meeting participant. The server
	// announces the arrival on the roster-add topic.
	Join(ctx context.Context, code, identity string) error

	// Leave removes identity from the meeting. The server announces the
	// departure on the roster-remove topic.
	Leave(ctx context.Context, code, identity string) error

	// Participants returns the current roster.
	Participants(ctx context.Context, code string) ([]string, error)

	// WaitingUsers returns identities waiting for admission.
	WaitingUsers(ctx context.Context, code string) ([]string, error)

	// Admit lets a waiting identity into the meeting.
	Admit(ctx context.Context, code, identity string) error
}
