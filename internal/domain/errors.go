package domain

import "errors"

var (
	// ErrRoomNotFound is returned when no session exists for a room code.
	ErrRoomNotFound = errors.New("room not found")
	// ErrPlayerNotFound is returned when a player acts before joining.
	ErrPlayerNotFound = errors.New("player not found in room")
	// ErrRoomNotJoinable is returned when joining a room that already started.
	ErrRoomNotJoinable = errors.New("room is not accepting players")
	// ErrNicknameTaken is returned on a case-insensitive nickname collision.
	ErrNicknameTaken = errors.New("nickname already taken in this room")
	// ErrRoomCodeTaken is returned by stores when a live session holds the code.
	ErrRoomCodeTaken = errors.New("room code already in use")
	// ErrNotHost is returned when a non-host issues a host-only command.
	ErrNotHost = errors.New("only the host may do that")
	// ErrInvalidTransition is returned on an illegal status change.
	ErrInvalidTransition = errors.New("invalid session state for this action")
	// ErrEmptyRoom is returned when starting a quiz with no players.
	ErrEmptyRoom = errors.New("cannot start a quiz with no players")
	// ErrStaleCommand is returned when a progression command carries an
	// out-of-date question index.
	ErrStaleCommand = errors.New("stale progression command")
	// ErrNotAcceptingAnswers is returned for submissions outside the
	// active question window.
	ErrNotAcceptingAnswers = errors.New("not accepting answers")
	// ErrContentUnavailable is returned when the vocabulary pool cannot
	// fill the requested question count.
	ErrContentUnavailable = errors.New("not enough vocabulary for this quiz")
	// ErrContention is surfaced after the transactional retry budget is
	// exhausted; callers may simply retry.
	ErrContention = errors.New("too much contention on session")
)
