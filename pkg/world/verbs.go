package world

import "github.com/crystal-mush/graphworld/pkg/gamedb"

// DefaultRegistry returns a registry holding every built-in verb.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(goVerb{}, "walk", "move")
	r.Register(followVerb())
	r.Register(unfollowVerb())
	r.Register(getVerb(), "take")
	r.Register(putVerb(), "place")
	r.Register(dropVerb())
	r.Register(giveVerb(), "hand")
	r.Register(stealVerb())
	r.Register(equipVerb("wear", gamedb.ClassWearable, equipWorn, gamedb.PropDefense,
		"You put on {1}.", "{0} puts on {1}."))
	r.Register(equipVerb("wield", gamedb.ClassWieldable, equipWielded, gamedb.PropDamage,
		"You wield {1}.", "{0} wields {1}."))
	r.Register(removeVerb(), "unwield")
	r.Register(consumeVerb("eat", gamedb.ClassFood, "You eat {1}.", "{0} eats {1}."))
	r.Register(consumeVerb("drink", gamedb.ClassDrink, "You drink {1}.", "{0} drinks {1}."))
	r.Register(hitVerb(), "attack")
	r.Register(hugVerb())
	r.Register(lockVerb("lock", true))
	r.Register(lockVerb("unlock", false))
	r.Register(examineVerb(), "x")
	r.Register(lookVerb())
	r.Register(inventoryVerb())
	r.Register(healthVerb())
	r.Register(speechVerb{name: "say"})
	r.Register(speechVerb{name: "tell", addressed: true})
	r.Register(speechVerb{name: "whisper", addressed: true, private: true, prep: " to"})
	for name, third := range emotes {
		r.Register(emoteVerb(name, third))
	}
	return r
}
