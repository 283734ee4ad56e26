// Package draft implements the deterministic two-team ban/pick state
// machine. All transitions are pure: they take a State by value and return
// a new State, so the same action stream produces the same state on both
// peers. Rejected actions return the input unchanged rather than an error;
// the protocol relies on idempotent no-op rejection.
package draft

// Team is one of the two fixed team labels.
type Team string

const (
	TeamFirst  Team = "first"
	TeamSecond Team = "second"
)

// Opposite returns the other team label.
func (t Team) Opposite() Team {
	if t == TeamFirst {
		return TeamSecond
	}
	return TeamFirst
}

type Phase string

const (
	PhaseBan1      Phase = "ban1"
	PhaseBan2      Phase = "ban2"
	PhasePick      Phase = "pick"
	PhaseCompleted Phase = "completed"
)

// ActionKind distinguishes the two ways an item gets consumed.
type ActionKind string

const (
	ActionBan  ActionKind = "ban"
	ActionPick ActionKind = "pick"
)

// Role is a position in the order table, resolved against FirstAttackSide.
type Role string

const (
	RoleFirst  Role = "first"
	RoleSecond Role = "second"
)

// Step is one entry of the order table.
type Step struct {
	Phase Phase
	Role  Role
}

// Action returns the action kind a step expects.
func (s Step) Action() ActionKind {
	if s.Phase == PhasePick {
		return ActionPick
	}
	return ActionBan
}

// HistoryEntry is one accepted action; the history log is append-only.
type HistoryEntry struct {
	Step   int        `json:"step"`
	Team   Team       `json:"team"`
	Action ActionKind `json:"action"`
	Item   string     `json:"item"`
}

// State is the replicated draft state. Each peer holds its own copy; the
// message protocol keeps the copies convergent. StepCounter is the single
// authoritative position in the order table — Phase and Turn are derived
// from it, never set independently.
type State struct {
	Phase           Phase             `json:"phase"`
	Turn            Team              `json:"turn"`
	StepCounter     int               `json:"stepCounter"`
	FirstAttackSide Team              `json:"firstAttackSide"`
	Banned          map[string]bool   `json:"banned"`
	Picked          map[string]bool   `json:"picked"`
	TeamBans        map[Team][]string `json:"teamBans"`
	TeamPicks       map[Team][]string `json:"teamPicks"`
	History         []HistoryEntry    `json:"history"`
}

// NewState returns the fresh-draft state: step 0, ban1, first attack with
// TeamFirst.
func NewState() State {
	return newStateWithSide(TeamFirst)
}

func newStateWithSide(side Team) State {
	s := State{
		StepCounter:     0,
		FirstAttackSide: side,
		Banned:          map[string]bool{},
		Picked:          map[string]bool{},
		TeamBans:        map[Team][]string{TeamFirst: {}, TeamSecond: {}},
		TeamPicks:       map[Team][]string{TeamFirst: {}, TeamSecond: {}},
		History:         []HistoryEntry{},
	}
	s.Phase = Order[0].Phase
	s.Turn = s.teamFor(Order[0].Role)
	return s
}

// Clone deep-copies the state so transitions never alias the caller's maps.
func (s State) Clone() State {
	c := s
	c.Banned = make(map[string]bool, len(s.Banned))
	for k, v := range s.Banned {
		c.Banned[k] = v
	}
	c.Picked = make(map[string]bool, len(s.Picked))
	for k, v := range s.Picked {
		c.Picked[k] = v
	}
	c.TeamBans = map[Team][]string{
		TeamFirst:  append([]string{}, s.TeamBans[TeamFirst]...),
		TeamSecond: append([]string{}, s.TeamBans[TeamSecond]...),
	}
	c.TeamPicks = map[Team][]string{
		TeamFirst:  append([]string{}, s.TeamPicks[TeamFirst]...),
		TeamSecond: append([]string{}, s.TeamPicks[TeamSecond]...),
	}
	c.History = append([]HistoryEntry{}, s.History...)
	return c
}

// teamFor resolves an order-table role to a team label under the current
// first-attack assignment.
func (s State) teamFor(r Role) Team {
	if s.FirstAttackSide == TeamFirst {
		return Team(r)
	}
	return Team(r).Opposite()
}

// CurrentStep returns the pending order-table entry, or done=true once the
// draft is complete.
func (s State) CurrentStep() (Step, bool) {
	if s.StepCounter >= len(Order) {
		return Step{}, true
	}
	return Order[s.StepCounter], false
}

// Used reports whether an item has already been consumed by any ban or pick.
func (s State) Used(item string) bool {
	return s.Banned[item] || s.Picked[item]
}

// Completed reports whether all steps have been taken.
func (s State) Completed() bool {
	return s.Phase == PhaseCompleted
}

// Apply performs the ban or pick the order table expects at the current
// step. It returns (next, true) on acceptance and (s, false) when the draft
// is complete or the item was already consumed. Apply does not check turn
// ownership: both peers apply the same accepted stream in the same order,
// which is what keeps the copies convergent.
func Apply(s State, item string) (State, bool) {
	if s.Completed() || s.StepCounter < 0 || s.StepCounter >= len(Order) {
		return s, false
	}
	if item == "" || s.Used(item) {
		return s, false
	}

	step := Order[s.StepCounter]
	team := s.teamFor(step.Role)

	next := s.Clone()
	switch step.Action() {
	case ActionBan:
		next.TeamBans[team] = append(next.TeamBans[team], item)
		next.Banned[item] = true
	case ActionPick:
		next.TeamPicks[team] = append(next.TeamPicks[team], item)
		next.Picked[item] = true
	}
	next.History = append(next.History, HistoryEntry{
		Step:   s.StepCounter,
		Team:   team,
		Action: step.Action(),
		Item:   item,
	})

	next.StepCounter++
	if next.StepCounter >= len(Order) {
		next.Phase = PhaseCompleted
		return next, true
	}
	next.Phase = Order[next.StepCounter].Phase
	next.Turn = next.teamFor(Order[next.StepCounter].Role)
	return next, true
}

// Consistent reports whether a state could have been produced by this
// state machine: the step counter indexes the order table, phase and turn
// are the ones derived from it, and the consumed-item accounting matches
// the number of completed steps. Snapshots arriving from the peer are
// checked before they replace local state; a snapshot that fails here is
// garbage, not a reachable state.
func (s State) Consistent() bool {
	if s.FirstAttackSide != TeamFirst && s.FirstAttackSide != TeamSecond {
		return false
	}
	if s.StepCounter < 0 || s.StepCounter > len(Order) {
		return false
	}
	if s.StepCounter == len(Order) {
		if s.Phase != PhaseCompleted {
			return false
		}
	} else {
		if s.Phase != Order[s.StepCounter].Phase {
			return false
		}
		if s.Turn != s.teamFor(Order[s.StepCounter].Role) {
			return false
		}
	}
	if len(s.Banned)+len(s.Picked) != s.StepCounter {
		return false
	}
	if len(s.History) != s.StepCounter {
		return false
	}
	if len(s.TeamBans[TeamFirst]) > MaxBansPerTeam || len(s.TeamBans[TeamSecond]) > MaxBansPerTeam {
		return false
	}
	if len(s.TeamPicks[TeamFirst]) > MaxPicksPerTeam || len(s.TeamPicks[TeamSecond]) > MaxPicksPerTeam {
		return false
	}
	return true
}

// Reset returns the fresh state, preserving the current first-attack side.
func Reset(s State) State {
	return newStateWithSide(s.FirstAttackSide)
}

// ToggleFirstAttack flips which team holds the first-attack role. Allowed
// only before the first action; afterwards it is a no-op.
func ToggleFirstAttack(s State) (State, bool) {
	if s.StepCounter != 0 {
		return s, false
	}
	next := s.Clone()
	next.FirstAttackSide = next.FirstAttackSide.Opposite()
	next.Turn = next.teamFor(Order[0].Role)
	return next, true
}

// SetFirstAttack assigns the first-attack side outright, with the same
// step-0 guard as ToggleFirstAttack. Remote toggles carry the resulting
// side rather than a flip, so application is idempotent.
func SetFirstAttack(s State, side Team) (State, bool) {
	if s.StepCounter != 0 {
		return s, false
	}
	if side != TeamFirst && side != TeamSecond {
		return s, false
	}
	next := s.Clone()
	next.FirstAttackSide = side
	next.Turn = next.teamFor(Order[0].Role)
	return next, true
}
