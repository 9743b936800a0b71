package main

// Object names. Effects are dispatched by name through the hook table
// below, never by type hierarchy.
const (
	ObjectBird        = "bird"
	ObjectFlag        = "flag"
	ObjectSaberFang   = "saber-fang"
	ObjectTurtleShell = "turtle-shell"
	ObjectMeat        = "meat"
	ObjectBone        = "bone"
)

// ObjectDef describes one placeable object
type ObjectDef struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// ObjectCatalog is the full list of objects a map may place
var ObjectCatalog = []ObjectDef{
	{Name: ObjectBird, Label: "Bird", Description: "Fly to any tile, ignoring movement cost — unless carrying the flag"},
	{Name: ObjectFlag, Label: "Flag", Description: "Bring it back to your spawn point to win the hunt"},
	{Name: ObjectSaberFang, Label: "Saber Fang", Description: "Wins the fight outright when its holder is below half health"},
	{Name: ObjectTurtleShell, Label: "Turtle Shell", Description: "A defeat while holding it grants the opponent no victory"},
	{Name: ObjectMeat, Label: "Meat", Description: "+2 max health while held"},
	{Name: ObjectBone, Label: "Bone", Description: "+2 attack while held"},
}

// ObjectCatalogMap provides O(1) lookup by object name
var ObjectCatalogMap map[string]ObjectDef

func init() {
	ObjectCatalogMap = make(map[string]ObjectDef, len(ObjectCatalog))
	for _, def := range ObjectCatalog {
		ObjectCatalogMap[def.Name] = def
	}
}

// ObjectEffect carries the hook functions of one object. Nil hooks are
// skipped. Each hook mutates its players directly; the combat resolver and
// game model invoke them at fixed points.
type ObjectEffect struct {
	// BeforeAttack may decide the fight before dice roll. Returns true when
	// the holder wins instantly.
	BeforeAttack func(holder, opponent *Player) bool
	// OnCombatEnd fires when the holder loses a fight. Returns true when the
	// opponent's victory increment must be suppressed.
	OnCombatEnd func(holder, opponent *Player) bool
	// OnPickup applies the object's passive bonus when it enters an inventory
	OnPickup func(holder *Player)
	// OnDrop reverts the passive bonus when the object leaves an inventory
	OnDrop func(holder *Player)
	// OnPlayerReset fires at end-of-match cleanup
	OnPlayerReset func(holder *Player)
}

// objectEffects is the static hook table keyed by object name
var objectEffects = map[string]ObjectEffect{
	ObjectSaberFang: {
		BeforeAttack: func(holder, opponent *Player) bool {
			return holder.Attributes.Health*2 < holder.Attributes.MaxHealth
		},
	},
	ObjectTurtleShell: {
		OnCombatEnd: func(holder, opponent *Player) bool {
			return true
		},
	},
	ObjectMeat: {
		OnPickup: func(holder *Player) {
			holder.Attributes.MaxHealth += 2
			holder.Attributes.Health += 2
		},
		OnDrop: func(holder *Player) {
			holder.Attributes.MaxHealth -= 2
			if holder.Attributes.Health > holder.Attributes.MaxHealth {
				holder.Attributes.Health = holder.Attributes.MaxHealth
			}
		},
		OnPlayerReset: func(holder *Player) {
			holder.Attributes.MaxHealth -= 2
			if holder.Attributes.Health > holder.Attributes.MaxHealth {
				holder.Attributes.Health = holder.Attributes.MaxHealth
			}
		},
	},
	ObjectBone: {
		OnPickup: func(holder *Player) {
			holder.Attributes.Attack.Value += 2
		},
		OnDrop: func(holder *Player) {
			holder.Attributes.Attack.Value -= 2
		},
		OnPlayerReset: func(holder *Player) {
			holder.Attributes.Attack.Value -= 2
		},
	},
}

// fireBeforeAttack runs every BeforeAttack hook of the holder's inventory,
// returning true when any grants an instant win
func fireBeforeAttack(holder, opponent *Player) bool {
	for _, name := range holder.Inventory {
		if eff, ok := objectEffects[name]; ok && eff.BeforeAttack != nil {
			if eff.BeforeAttack(holder, opponent) {
				return true
			}
		}
	}
	return false
}

// fireOnCombatEnd runs the loser's OnCombatEnd hooks, returning true when
// the winner's victory increment must be suppressed
func fireOnCombatEnd(loser, winner *Player) bool {
	suppressed := false
	for _, name := range loser.Inventory {
		if eff, ok := objectEffects[name]; ok && eff.OnCombatEnd != nil {
			if eff.OnCombatEnd(loser, winner) {
				suppressed = true
			}
		}
	}
	return suppressed
}

// fireOnPickup applies a newly held object's passive effect
func fireOnPickup(holder *Player, name string) {
	if eff, ok := objectEffects[name]; ok && eff.OnPickup != nil {
		eff.OnPickup(holder)
	}
}

// fireOnDrop reverts a dropped object's passive effect
func fireOnDrop(holder *Player, name string) {
	if eff, ok := objectEffects[name]; ok && eff.OnDrop != nil {
		eff.OnDrop(holder)
	}
}

// fireOnPlayerReset runs end-of-match cleanup for every held object
func fireOnPlayerReset(holder *Player) {
	for _, name := range holder.Inventory {
		if eff, ok := objectEffects[name]; ok && eff.OnPlayerReset != nil {
			eff.OnPlayerReset(holder)
		}
	}
	holder.Inventory = nil
}
