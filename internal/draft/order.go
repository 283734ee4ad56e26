package draft

// Order is the fixed 14-step ban/pick sequence. Roles are relative to
// FirstAttackSide: a Step with RoleFirst belongs to whichever team label
// currently holds the first-attack role.
var Order = []Step{
	// Ban Phase 1
	{Phase: PhaseBan1, Role: RoleFirst},
	{Phase: PhaseBan1, Role: RoleSecond},
	// Ban Phase 2
	{Phase: PhaseBan2, Role: RoleFirst},
	{Phase: PhaseBan2, Role: RoleSecond},
	// Pick Phase (snake: F S S F F S S F F S)
	{Phase: PhasePick, Role: RoleFirst},
	{Phase: PhasePick, Role: RoleSecond},
	{Phase: PhasePick, Role: RoleSecond},
	{Phase: PhasePick, Role: RoleFirst},
	{Phase: PhasePick, Role: RoleFirst},
	{Phase: PhasePick, Role: RoleSecond},
	{Phase: PhasePick, Role: RoleSecond},
	{Phase: PhasePick, Role: RoleFirst},
	{Phase: PhasePick, Role: RoleFirst},
	{Phase: PhasePick, Role: RoleSecond},
}

// TotalSteps is the number of accepted actions in a full draft.
const TotalSteps = 14

// MaxBansPerTeam and MaxPicksPerTeam bound the per-team lists; the order
// table already guarantees them, they exist for callers that size buffers.
const (
	MaxBansPerTeam  = 2
	MaxPicksPerTeam = 5
)
