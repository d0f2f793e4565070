package msgbus

import (
	"sync/atomic"

	"github.com/randalmurphal/msgbus/pkg/msgbus/snapshot"
	"github.com/randalmurphal/msgbus/pkg/msgbus/typeid"
)

// EmissionID identifies one emission on a bus.
type EmissionID = snapshot.EmissionID

// InstanceID identifies a subscriber owner, or the target or source of an
// addressed message. It carries no ownership.
type InstanceID int64

// None is the zero InstanceID. Untargeted dispatch runs with None as context.
const None InstanceID = 0

var instanceSeq atomic.Int64

// NewInstanceID returns a process-unique InstanceID. Ids start at 1.
func NewInstanceID() InstanceID {
	return InstanceID(instanceSeq.Add(1))
}

// Handle identifies one staged registration inside a Token.
type Handle uint64

// Mode is the addressing mode a callback subscribes with.
type Mode uint8

const (
	// Untargeted handlers receive every untargeted message of their type.
	Untargeted Mode = iota

	// Targeted handlers receive targeted messages addressed to one InstanceID.
	Targeted

	// TargetedWithoutTargeting handlers receive every targeted message of their
	// type together with its target.
	TargetedWithoutTargeting

	// Broadcast handlers receive broadcast messages from one source InstanceID.
	Broadcast

	// BroadcastWithoutSource handlers receive every broadcast message of their
	// type together with its source.
	BroadcastWithoutSource

	// GlobalAcceptAll handlers receive every message of every type on a bus.
	GlobalAcceptAll

	modeCount
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case Untargeted:
		return "untargeted"
	case Targeted:
		return "targeted"
	case TargetedWithoutTargeting:
		return "targeted_without_targeting"
	case Broadcast:
		return "broadcast"
	case BroadcastWithoutSource:
		return "broadcast_without_source"
	case GlobalAcceptAll:
		return "global_accept_all"
	default:
		return "unknown"
	}
}

// ParseMode converts a mode name back to a Mode.
func ParseMode(s string) (Mode, bool) {
	for m := Untargeted; m < modeCount; m++ {
		if m.String() == s {
			return m, true
		}
	}
	return 0, false
}

// addressed reports whether handlers of this mode are keyed by InstanceID.
func (m Mode) addressed() bool {
	return m == Targeted || m == Broadcast
}

// Kind is how a message was emitted.
type Kind uint8

const (
	// KindUntargeted messages carry no address.
	KindUntargeted Kind = iota

	// KindTargeted messages are addressed to one recipient.
	KindTargeted

	// KindBroadcast messages are stamped with their source.
	KindBroadcast
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindUntargeted:
		return "untargeted"
	case KindTargeted:
		return "targeted"
	case KindBroadcast:
		return "broadcast"
	default:
		return "unknown"
	}
}

// modes returns the addressed and without-addressing modes for a kind.
// Untargeted messages have no without-addressing mode.
func (k Kind) modes() (addressed, without Mode, hasWithout bool) {
	switch k {
	case KindTargeted:
		return Targeted, TargetedWithoutTargeting, true
	case KindBroadcast:
		return Broadcast, BroadcastWithoutSource, true
	default:
		return Untargeted, 0, false
	}
}

// Envelope is what GlobalAcceptAll handlers receive. Message holds the
// emitter's pointer; mutating through it is visible to later handlers.
type Envelope struct {
	Kind    Kind
	Type    typeid.ID
	Context InstanceID
	Message any
}
