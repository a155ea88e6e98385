package constraint

import (
	"regexp"
	"strings"

	"github.com/c360studio/claimwatch/model"
)

// Wikidata items naming constraint kinds on constraint statements
// (P2302 values). Unknown items are skipped at translation time; the kind
// itself stays an open set for checkers.
var kindByItem = map[string]Kind{
	"Q21510859": KindOneOf,
	"Q52558054": KindNoneOf,
	"Q21502404": KindFormat,
	"Q21514353": KindUnits,
	"Q52848401": KindInteger,
	"Q51723761": KindNoBounds,
	"Q21510860": KindRange,
	"Q21510865": KindValueType,
	"Q21510864": KindValueRequires,
	"Q21510855": KindInverse,
	"Q21510862": KindSymmetric,
	"Q21510851": KindAllowedQualifiers,
	"Q21510856": KindRequiredQualifiers,
	"Q19474404": KindSingleValue,
	"Q21503247": KindItemRequires,
	"Q21502838": KindConflictsWith,
	"Q21503250": KindSubjectType,
	"Q53869507": KindPropertyScope,
}

// Relation items on the P2309 qualifier of the type kinds.
var relationByItem = map[string][]string{
	"Q21503252": {"P31"},
	"Q21514624": {"P279"},
	"Q30208840": {"P31", "P279"},
}

// Scope items on the P5314 qualifier of property-scope constraints.
var scopeByItem = map[string]Scope{
	"Q54828448": ScopeMain,
	"Q54828449": ScopeQualifier,
	"Q54828450": ScopeReference,
}

// Checking-scope items on the P4680 qualifier of any constraint.
var checkScopeByItem = map[string]Scope{
	"Q46466787": ScopeMain,
	"Q46466783": ScopeQualifier,
	"Q46466805": ScopeReference,
}

// Row is one tabular result row from the query service: one parameter
// qualifier of one constraint statement. A constraint with no parameters
// produces a single row with empty Qualifier/Value.
type Row struct {
	ID        string // constraint statement ID
	TypeItem  string // kind item (P2302 value)
	Qualifier string // parameter property ID, e.g. "P2306"
	Value     string // parameter value: entity ID, raw string, or snak sentinel
}

// translateRows groups parameter rows by constraint statement and builds
// Definition records. Rows whose kind item is unknown, or whose required
// parameters are missing or invalid (e.g. an uncompilable format pattern),
// are dropped: a half-parsed constraint must not produce spurious
// violations.
func translateRows(property string, rows []Row) []Definition {
	var order []string
	grouped := make(map[string][]Row)
	for _, row := range rows {
		if row.ID == "" {
			continue
		}
		if _, ok := grouped[row.ID]; !ok {
			order = append(order, row.ID)
		}
		grouped[row.ID] = append(grouped[row.ID], row)
	}

	var out []Definition
	for _, id := range order {
		group := grouped[id]
		kind, ok := kindByItem[group[0].TypeItem]
		if !ok {
			continue
		}
		def, ok := buildDefinition(property, id, kind, group)
		if ok {
			out = append(out, def)
		}
	}
	return out
}

func buildDefinition(property, id string, kind Kind, rows []Row) (Definition, bool) {
	def := Definition{
		ID:       id,
		Property: property,
		Kind:     kind,
		Status:   StatusRegular,
	}

	var lowerQuantity, upperQuantity, lowerTime, upperTime string
	for _, row := range rows {
		switch row.Qualifier {
		case "": // parameterless constraint
		case "P2305":
			def.Params.Values = append(def.Params.Values, row.Value)
		case "P2306":
			def.Params.Property = row.Value
		case "P2308":
			def.Params.Classes = append(def.Params.Classes, row.Value)
		case "P2309":
			if rel, ok := relationByItem[row.Value]; ok {
				def.Params.Relations = rel
			}
		case "P1793":
			def.Params.Pattern = row.Value
		case "P2313":
			lowerQuantity = row.Value
		case "P2312":
			upperQuantity = row.Value
		case "P2310":
			lowerTime = row.Value
		case "P2311":
			upperTime = row.Value
		case "P2303":
			def.Params.Exceptions = append(def.Params.Exceptions, row.Value)
		case "P2316":
			switch row.Value {
			case "Q21502408":
				def.Status = StatusMandatory
			case "Q62026391":
				def.Status = StatusSuggestion
			}
		case "P4680":
			if s, ok := checkScopeByItem[row.Value]; ok {
				def.Scopes = append(def.Scopes, s)
			}
		case "P5314":
			if s, ok := scopeByItem[row.Value]; ok {
				def.Params.AllowedScopes = append(def.Params.AllowedScopes, s)
			}
		}
	}

	switch kind {
	case KindUnits:
		def.Params.Units = def.Params.Values
		def.Params.Values = nil
		if len(def.Params.Units) == 0 {
			return def, false
		}
	case KindOneOf, KindNoneOf:
		if len(def.Params.Values) == 0 {
			return def, false
		}
	case KindFormat:
		if def.Params.Pattern == "" {
			return def, false
		}
		if _, err := regexp.Compile(def.Params.Pattern); err != nil {
			return def, false
		}
	case KindValueType, KindSubjectType:
		if len(def.Params.Classes) == 0 || len(def.Params.Relations) == 0 {
			return def, false
		}
	case KindItemRequires, KindConflictsWith, KindValueRequires, KindInverse:
		if def.Params.Property == "" {
			return def, false
		}
	case KindAllowedQualifiers, KindRequiredQualifiers:
		// P2306 repeats for these kinds; collect every occurrence.
		def.Params.Values = nil
		for _, row := range rows {
			if row.Qualifier == "P2306" && row.Value != "" {
				def.Params.Values = append(def.Params.Values, row.Value)
			}
		}
		def.Params.Property = ""
		if kind == KindRequiredQualifiers && len(def.Params.Values) == 0 {
			return def, false
		}
	case KindRange:
		def.Params.Lower = rangeBound(lowerQuantity, lowerTime)
		def.Params.Upper = rangeBound(upperQuantity, upperTime)
		if def.Params.Lower == nil && def.Params.Upper == nil {
			return def, false
		}
	case KindPropertyScope:
		if len(def.Params.AllowedScopes) == 0 {
			return def, false
		}
	}

	return def, true
}

// rangeBound parses one bound of a range constraint. Quantity bounds come
// as raw decimal strings, time bounds as wikibase timestamps. The snak
// sentinels mean "open bound" (novalue) or "now" (somevalue); the latter
// is left open too, since comparing against a moving bound is not
// reproducible.
func rangeBound(quantity, timestamp string) *model.Value {
	if quantity != "" && quantity != "novalue" && quantity != "somevalue" {
		v := model.QuantityValue(model.Quantity{Amount: quantity})
		return &v
	}
	if timestamp != "" && timestamp != "novalue" && timestamp != "somevalue" {
		v := model.TimeValue(model.Time{Time: timestamp, Precision: timePrecision(timestamp)})
		return &v
	}
	return nil
}

// timePrecision infers a precision from a timestamp's trailing zero
// components, so "+2000-00-00T00:00:00Z" compares at year granularity.
func timePrecision(ts string) int {
	s := strings.TrimSuffix(ts, "Z")
	if i := strings.IndexByte(s, 'T'); i >= 0 {
		clock := s[i+1:]
		if clock != "00:00:00" {
			return 14
		}
		s = s[:i]
	}
	parts := strings.Split(strings.TrimLeft(s, "+-"), "-")
	if len(parts) == 3 && parts[2] != "00" {
		return 11
	}
	if len(parts) >= 2 && parts[1] != "00" {
		return 10
	}
	return 9
}
