package semanticrouter

import "github.com/botirk38/semanticrouter/options"

// DefaultSeeds is the FAQ set loaded into the index when no seeds are configured.
func DefaultSeeds() []options.Seed {
	return []options.Seed{
		{Question: "Working hours", Answer: "Our company is open Saturday to Wednesday from 8 AM to 5 PM."},
		{Question: "Company address", Answer: "Tehran, Valiasr Street, Felan Alley, No. 10"},
		{Question: "Products", Answer: "We offer products A, B and C."},
		{Question: "Support", Answer: "For support, call ********021."},
	}
}
