package leads

import "time"

// Lead is the identity anchor for a customer. The CRUD layer owns mutation;
// this package only reads lead-to-phone mappings to resolve carrier events.
type Lead struct {
	ID   string `json:"id" db:"id"`
	Name string `json:"name" db:"name"`

	// Up to three reachable numbers, E.164 where possible.
	Phone  string `json:"phone" db:"phone"`
	Phone2 string `json:"phone2,omitempty" db:"phone2"`
	Phone3 string `json:"phone3,omitempty" db:"phone3"`

	Address string `json:"address,omitempty" db:"address"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Phones returns the lead's non-empty numbers.
func (l Lead) Phones() []string {
	out := make([]string, 0, 3)
	for _, p := range []string{l.Phone, l.Phone2, l.Phone3} {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
