package sets

import "strings"

// Table maps a short set code (as printed on decklists) to a catalog set id.
type Table map[string]string

// ScarletViolet returns the Scarlet & Violet era codes.
func ScarletViolet() Table {
	return Table{
		"SVI": "sv1",
		"PAL": "sv2",
		"OBF": "sv3",
		"MEW": "sv3pt5",
		"PAR": "sv4",
		"PAF": "sv4pt5",
		"TEF": "sv5",
		"TWM": "sv6",
		"SFA": "sv6pt5",
		"SCR": "sv7",
		"SSP": "sv8",
		"PRE": "sv8pt5",
	}
}

// SwordShield returns the Sword & Shield era codes.
func SwordShield() Table {
	return Table{
		"SWSH": "swsh1",
		"RCL":  "swsh2",
		"DAA":  "swsh3",
		"CPA":  "swsh35",
		"VIV":  "swsh4",
		"SHF":  "swsh45",
		"BST":  "swsh5",
		"CRE":  "swsh6",
		"EVS":  "swsh7",
		"CEL":  "cel25",
		"FST":  "swsh8",
		"BRS":  "swsh9",
		"ASR":  "swsh10",
		"PGO":  "pgo",
		"LOR":  "swsh11",
		"SIT":  "swsh12",
		"CRZ":  "swsh12pt5",
	}
}

// Resolver looks codes up in an ordered list of tables. It never mutates its
// tables after construction, so it can be shared between goroutines.
type Resolver struct {
	tables []Table
}

// NewResolver copies the given tables, normalising codes to upper case.
// Earlier tables win when a code appears in more than one.
func NewResolver(tables ...Table) *Resolver {
	r := &Resolver{tables: make([]Table, 0, len(tables))}
	for _, t := range tables {
		cp := make(Table, len(t))
		for code, id := range t {
			cp[normalize(code)] = id
		}
		r.tables = append(r.tables, cp)
	}
	return r
}

// Default returns a resolver over the built-in tables, followed by extra.
func Default(extra ...Table) *Resolver {
	tables := append([]Table{ScarletViolet(), SwordShield()}, extra...)
	return NewResolver(tables...)
}

// Resolve returns the set id for code and whether it was found.
func (r *Resolver) Resolve(code string) (string, bool) {
	code = normalize(code)
	for _, t := range r.tables {
		if id, ok := t[code]; ok {
			return id, true
		}
	}
	return "", false
}

// Len returns the number of distinct codes known to the resolver.
func (r *Resolver) Len() int {
	seen := make(map[string]struct{})
	for _, t := range r.tables {
		for code := range t {
			seen[code] = struct{}{}
		}
	}
	return len(seen)
}

func normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
