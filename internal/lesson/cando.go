package lesson

import (
	"fmt"
	"sort"
)

// CanDo is a short pedagogical descriptor of a learner capability the
// lesson builds toward, in the JF Standard style.
type CanDo struct {
	// ID is the catalog identifier, e.g. "JF:105".
	ID string

	// Statement is the capability description, e.g.
	// "Can identify family members and state simple relationships."
	Statement string

	// Level is the CEFR-style level label.
	Level string

	// Topic is a coarse topic tag used for prompt context.
	Topic string
}

// catalog is the seeded CanDo catalog indexed by ID.
var catalog = map[string]CanDo{}

func register(cds ...CanDo) {
	for _, cd := range cds {
		catalog[cd.ID] = cd
	}
}

func init() {
	register(
		CanDo{ID: "JF:101", Level: "A1", Topic: "self",
			Statement: "Can introduce themselves with name, nationality, and occupation."},
		CanDo{ID: "JF:102", Level: "A1", Topic: "daily-life",
			Statement: "Can describe their daily routine using time expressions."},
		CanDo{ID: "JF:103", Level: "A1", Topic: "shopping",
			Statement: "Can ask for prices and make simple purchases at a shop."},
		CanDo{ID: "JF:104", Level: "A1", Topic: "food",
			Statement: "Can order food and drink at a restaurant."},
		CanDo{ID: "JF:105", Level: "A1", Topic: "family",
			Statement: "Can identify family members and state simple relationships."},
		CanDo{ID: "JF:106", Level: "A1", Topic: "directions",
			Statement: "Can ask for and understand simple directions to nearby places."},
		CanDo{ID: "JF:201", Level: "A2", Topic: "travel",
			Statement: "Can make travel arrangements such as buying tickets and booking rooms."},
		CanDo{ID: "JF:202", Level: "A2", Topic: "health",
			Statement: "Can describe symptoms and understand simple advice at a clinic."},
		CanDo{ID: "JF:203", Level: "A2", Topic: "work",
			Statement: "Can describe their job and workplace in simple terms."},
	)
}

// GetCanDo returns the catalog entry for an ID.
func GetCanDo(id string) (CanDo, error) {
	cd, ok := catalog[id]
	if !ok {
		return CanDo{}, fmt.Errorf("unknown CanDo id: %q", id)
	}
	return cd, nil
}

// AllCanDos returns the catalog sorted by ID.
func AllCanDos() []CanDo {
	out := make([]CanDo, 0, len(catalog))
	for _, cd := range catalog {
		out = append(out, cd)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
