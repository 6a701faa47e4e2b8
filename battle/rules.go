package battle

import "showdown-engine/lexicon"

// RuleSet is a bitset of the standard clauses recognized by name. Clauses the
// library does not recognize are kept as free text in the state's
// nonstandard-rule set instead.
type RuleSet uint64

const (
	// Rule2AbilityClause limits two of each ability (Hackmons).
	Rule2AbilityClause RuleSet = 1 << iota
	// Rule3BatonPassClause limits three Baton Passers.
	Rule3BatonPassClause
	// RuleAccuracyMovesClause bans accuracy-lowering moves.
	RuleAccuracyMovesClause
	// RuleBatonPassClause limits one Baton Passer.
	RuleBatonPassClause
	// RuleCFZClause bans crystal-free Z-Moves (Hackmons).
	RuleCFZClause
	// RuleDynamaxClause bans dynamaxing.
	RuleDynamaxClause
	// RuleEndlessBattleClause bans forcing endless battles.
	RuleEndlessBattleClause
	// RuleEvasionAbilitiesClause bans evasion abilities.
	RuleEvasionAbilitiesClause
	// RuleEvasionMovesClause bans evasion moves.
	RuleEvasionMovesClause
	// RuleExactHPMod shows exact HP.
	RuleExactHPMod
	// RuleFreezeClauseMod limits one foe frozen.
	RuleFreezeClauseMod
	// RuleHPPercentageMod shows HP in percentages rather than /48.
	RuleHPPercentageMod
	// RuleInverseMod inverts type effectiveness.
	RuleInverseMod
	// RuleItemClause limits one of each item.
	RuleItemClause
	// RuleMegaRayquazaClause bans mega-evolving Rayquaza.
	RuleMegaRayquazaClause
	// RuleMoodyClause bans Moody.
	RuleMoodyClause
	// RuleNFEClause bans fully evolved Pokémon.
	RuleNFEClause
	// RuleOHKOClause bans OHKO moves.
	RuleOHKOClause
	// RuleSameTypeClause requires a shared type across the team.
	RuleSameTypeClause
	// RuleSleepClauseMod limits one foe put to sleep; the only clause the
	// server enforces by deviating from cartridge mechanics.
	RuleSleepClauseMod
	// RuleSpeciesClause limits one of each Pokémon.
	RuleSpeciesClause
	// RuleSwaggerClause bans Swagger.
	RuleSwaggerClause
	// RuleSwitchPriorityClauseMod makes faster Pokémon switch first.
	RuleSwitchPriorityClauseMod
	// RuleZMoveClause bans Z-Moves.
	RuleZMoveClause
)

var ruleTable = lexicon.MustNew([]lexicon.Entry{
	{Key: "2 ability clause", Value: int(Rule2AbilityClause)},
	{Key: "3 baton pass clause", Value: int(Rule3BatonPassClause)},
	{Key: "accuracy moves clause", Value: int(RuleAccuracyMovesClause)},
	{Key: "baton pass clause", Value: int(RuleBatonPassClause)},
	{Key: "cfz clause", Value: int(RuleCFZClause)},
	{Key: "dynamax clause", Value: int(RuleDynamaxClause)},
	{Key: "endless battle clause", Value: int(RuleEndlessBattleClause)},
	{Key: "evasion abilities clause", Value: int(RuleEvasionAbilitiesClause)},
	{Key: "evasion moves clause", Value: int(RuleEvasionMovesClause)},
	{Key: "exact hp mod", Value: int(RuleExactHPMod)},
	{Key: "freeze clause mod", Value: int(RuleFreezeClauseMod)},
	{Key: "hp percentage mod", Value: int(RuleHPPercentageMod)},
	{Key: "inverse mod", Value: int(RuleInverseMod)},
	{Key: "item clause", Value: int(RuleItemClause)},
	{Key: "mega rayquaza clause", Value: int(RuleMegaRayquazaClause)},
	{Key: "moody clause", Value: int(RuleMoodyClause)},
	{Key: "nfe clause", Value: int(RuleNFEClause)},
	{Key: "ohko clause", Value: int(RuleOHKOClause)},
	{Key: "same type clause", Value: int(RuleSameTypeClause)},
	{Key: "sleep clause mod", Value: int(RuleSleepClauseMod)},
	{Key: "species clause", Value: int(RuleSpeciesClause)},
	{Key: "swagger clause", Value: int(RuleSwaggerClause)},
	{Key: "switch priority clause mod", Value: int(RuleSwitchPriorityClauseMod)},
	{Key: "z-move clause", Value: int(RuleZMoveClause)},
})

// RuleByName resolves a clause name as sent in a rule record (without the
// trailing description). Unrecognized clauses return lexicon.ErrNotFound and
// belong in the nonstandard set.
func RuleByName(name string) (RuleSet, error) {
	v, err := ruleTable.Lookup(name, false)
	if err != nil {
		return 0, err
	}
	return RuleSet(v), nil
}
