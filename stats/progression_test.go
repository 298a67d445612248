package stats

import "testing"

func TestXPForNextLevel(t *testing.T) {
	for level := 1; level <= MaxClassLevel; level++ {
		want := 100 + 50*(level-1)
		if got := XPForNextLevel(level); got != want {
			t.Fatalf("XPForNextLevel(%d) = %d, want %d", level, got, want)
		}
	}
	if got := XPForNextLevel(0); got != 100 {
		t.Fatalf("XPForNextLevel(0) = %d, want 100", got)
	}
}

func TestRewardMultiplier(t *testing.T) {
	tests := []struct {
		total int
		want  float64
	}{
		{total: 1, want: 1},
		{total: 0, want: 1},
		{total: 3, want: 1.1},
		{total: 21, want: 2},
		{total: 41, want: 3},
		{total: 200, want: 3},
	}
	for _, tc := range tests {
		got := RewardMultiplier(tc.total)
		if diff := got - tc.want; diff > 1e-9 || diff < -1e-9 {
			t.Fatalf("RewardMultiplier(%d) = %v, want %v", tc.total, got, tc.want)
		}
	}
}

func TestTotalLevelFloorsAtOne(t *testing.T) {
	classes := map[string]ClassProgress{
		"firemage": {Level: 4},
		"legacy":   {Level: 0},
	}
	if got := TotalLevel(classes); got != 5 {
		t.Fatalf("TotalLevel = %d, want 5", got)
	}
	if got := TotalLevel(nil); got != 0 {
		t.Fatalf("TotalLevel(nil) = %d, want 0", got)
	}
}

func TestKillExperience(t *testing.T) {
	t.Run("base reward", func(t *testing.T) {
		if got := KillExperience(20, 1, 1, 1); got != 20 {
			t.Fatalf("xp = %d, want 20", got)
		}
	})
	t.Run("minimum of one", func(t *testing.T) {
		if got := KillExperience(0, 1, 1, 1); got != 1 {
			t.Fatalf("xp = %d, want 1", got)
		}
	})
	t.Run("anti farming", func(t *testing.T) {
		if got := KillExperience(20, 1, 4, 1); got != 0 {
			t.Fatalf("xp = %d, want 0 at a three level gap", got)
		}
		if got := KillExperience(20, 1, 3, 1); got != 20 {
			t.Fatalf("xp = %d, want 20 at a two level gap", got)
		}
	})
	t.Run("scaled and floored", func(t *testing.T) {
		if got := KillExperience(40, 1.1, 2, 2); got != 44 {
			t.Fatalf("xp = %d, want 44", got)
		}
	})
}

func TestKillGoldHasNoMinimum(t *testing.T) {
	if got := KillGold(0, 2); got != 0 {
		t.Fatalf("gold = %d, want 0", got)
	}
	if got := KillGold(5, 1.5); got != 7 {
		t.Fatalf("gold = %d, want 7", got)
	}
}

func TestDeathExperienceLoss(t *testing.T) {
	if got := DeathExperienceLoss(50); got != 5 {
		t.Fatalf("loss = %d, want 5", got)
	}
	if got := DeathExperienceLoss(9); got != 0 {
		t.Fatalf("loss = %d, want 0", got)
	}
}

func TestGrantExperienceLevelsUp(t *testing.T) {
	bag := NewClassProgress()
	bag.HP = 95
	gained := GrantExperience(&bag, 120)
	if gained != 1 {
		t.Fatalf("gained = %d, want 1", gained)
	}
	if bag.Level != 2 || bag.XP != 20 {
		t.Fatalf("bag = %+v, want level 2 with 20 xp", bag)
	}
	if bag.HPMax != 105 || bag.HP != 105 {
		t.Fatalf("health = %d/%d, want 105/105", bag.HP, bag.HPMax)
	}
}

func TestGrantExperienceRespectsCap(t *testing.T) {
	bag := NewClassProgress()
	GrantExperience(&bag, 1_000_000)
	if bag.Level != MaxClassLevel {
		t.Fatalf("level = %d, want cap %d", bag.Level, MaxClassLevel)
	}
	if bag.HPMax != DefaultClassHP+5*(MaxClassLevel-1) {
		t.Fatalf("hpMax = %d", bag.HPMax)
	}
	if GrantExperience(&bag, 10_000) != 0 {
		t.Fatal("no levels may be gained at the cap")
	}
}

func TestNormalizedFillsDefaults(t *testing.T) {
	got := ClassProgress{HP: 500}.Normalized()
	want := ClassProgress{Level: 1, HPMax: 100, HP: 100}
	if got != want {
		t.Fatalf("Normalized = %+v, want %+v", got, want)
	}
}
