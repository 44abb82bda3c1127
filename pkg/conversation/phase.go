package conversation

// Phase is the explicit state of a conversation session.
type Phase string

const (
	// PhaseIdle has no current scene and nothing loading.
	PhaseIdle Phase = "idle"
	// PhaseLoading has a scene fetch in flight.
	PhaseLoading Phase = "loading"
	// PhaseAwaitingChoice has a scene loaded and no choice made.
	PhaseAwaitingChoice Phase = "awaiting_choice"
	// PhaseChoiceMade has a choice made on an intermediate round.
	PhaseChoiceMade Phase = "choice_made"
	// PhaseRoundAdvancing has the previous round archived and the next round not loaded yet.
	PhaseRoundAdvancing Phase = "round_advancing"
	// PhaseConversationResolved has the terminal round's outcome set.
	PhaseConversationResolved Phase = "conversation_resolved"
)

// canRequest reports whether RequestScene may start from p.
func (p Phase) canRequest() bool {
	switch p {
	case PhaseIdle, PhaseAwaitingChoice, PhaseRoundAdvancing:
		return true
	default:
		return false
	}
}
