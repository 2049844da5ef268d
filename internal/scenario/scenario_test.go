package scenario

import "testing"

func TestFilterMatches(t *testing.T) {
	sc := Scenario{ID: "sc1", Type: TypeRoleplay, Difficulty: DifficultyEasy}

	cases := []struct {
		name   string
		filter Filter
		want   bool
	}{
		{"empty filter matches", Filter{}, true},
		{"type match", Filter{Type: TypeRoleplay}, true},
		{"type mismatch", Filter{Type: TypeDiscussion}, false},
		{"difficulty match", Filter{Difficulty: DifficultyEasy}, true},
		{"difficulty mismatch", Filter{Difficulty: DifficultyHard}, false},
		{"both match", Filter{Type: TypeRoleplay, Difficulty: DifficultyEasy}, true},
		{"one of two mismatched", Filter{Type: TypeRoleplay, Difficulty: DifficultyMedium}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.filter.Matches(sc); got != tc.want {
				t.Fatalf("Matches = %v, want %v", got, tc.want)
			}
		})
	}
}
