package wikiapi

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/c360studio/claimwatch/model"
)

// entityDocument is the wikibase entity JSON shape, reduced to the fields
// the snapshot model carries. Labels, descriptions and sitelinks are
// ignored.
type entityDocument struct {
	ID     string                `json:"id"`
	Claims map[string][]rawClaim `json:"claims"`
}

type rawClaim struct {
	ID              string               `json:"id"`
	Rank            string               `json:"rank"`
	MainSnak        rawSnak              `json:"mainsnak"`
	Qualifiers      map[string][]rawSnak `json:"qualifiers"`
	QualifiersOrder []string             `json:"qualifiers-order"`
	References      []struct {
		Snaks      map[string][]rawSnak `json:"snaks"`
		SnaksOrder []string             `json:"snaks-order"`
	} `json:"references"`
}

type rawSnak struct {
	SnakType  string `json:"snaktype"`
	Property  string `json:"property"`
	DataValue *struct {
		Type  string          `json:"type"`
		Value json.RawMessage `json:"value"`
	} `json:"datavalue"`
}

// parseEntityJSON converts a wikibase entity document into a snapshot.
func parseEntityJSON(data []byte, revisionID int64) (*model.RevisionWrapper, error) {
	var doc entityDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &model.MalformedEntityError{Reason: fmt.Sprintf("decode entity document: %v", err)}
	}
	if doc.ID == "" {
		return nil, &model.MalformedEntityError{Reason: "entity document has no id"}
	}

	// The claims object decodes into a Go map, so its keys are iterated
	// in sorted order to keep snapshot property order deterministic.
	var statements []model.Statement
	for _, property := range sortedProperties(doc.Claims) {
		for _, claim := range doc.Claims[property] {
			stmt, err := parseClaim(property, claim)
			if err != nil {
				return nil, &model.MalformedEntityError{EntityID: doc.ID, Reason: err.Error()}
			}
			statements = append(statements, stmt)
		}
	}

	return model.NewRevisionWrapper(doc.ID, revisionID, statements)
}

// sortedProperties orders property IDs numerically (P31 before P2048),
// falling back to lexicographic order for non-standard IDs.
func sortedProperties(claims map[string][]rawClaim) []string {
	out := make([]string, 0, len(claims))
	for property := range claims {
		out = append(out, property)
	}
	sort.Slice(out, func(i, j int) bool {
		a, aerr := strconv.Atoi(strings.TrimPrefix(out[i], "P"))
		b, berr := strconv.Atoi(strings.TrimPrefix(out[j], "P"))
		if aerr != nil || berr != nil {
			return out[i] < out[j]
		}
		return a < b
	})
	return out
}

func parseClaim(property string, claim rawClaim) (model.Statement, error) {
	value, err := parseSnakValue(claim.MainSnak)
	if err != nil {
		return model.Statement{}, fmt.Errorf("statement %s: %w", claim.ID, err)
	}

	stmt := model.Statement{
		ID:       claim.ID,
		Property: property,
		Value:    value,
		Rank:     model.Rank(claim.Rank),
	}

	for _, prop := range snakOrder(claim.QualifiersOrder, claim.Qualifiers) {
		for _, snak := range claim.Qualifiers[prop] {
			v, err := parseSnakValue(snak)
			if err != nil {
				return model.Statement{}, fmt.Errorf("statement %s qualifier %s: %w", claim.ID, prop, err)
			}
			stmt.Qualifiers = append(stmt.Qualifiers, model.Snak{Property: prop, Value: v})
		}
	}

	for _, ref := range claim.References {
		var parsed model.Reference
		for _, prop := range snakOrder(ref.SnaksOrder, ref.Snaks) {
			for _, snak := range ref.Snaks[prop] {
				v, err := parseSnakValue(snak)
				if err != nil {
					return model.Statement{}, fmt.Errorf("statement %s reference %s: %w", claim.ID, prop, err)
				}
				parsed.Snaks = append(parsed.Snaks, model.Snak{Property: prop, Value: v})
			}
		}
		stmt.References = append(stmt.References, parsed)
	}

	return stmt, nil
}

// snakOrder prefers the document's explicit order list and falls back to
// map iteration for documents that omit it.
func snakOrder(order []string, snaks map[string][]rawSnak) []string {
	if len(order) > 0 {
		return order
	}
	out := make([]string, 0, len(snaks))
	for prop := range snaks {
		out = append(out, prop)
	}
	return out
}

func parseSnakValue(snak rawSnak) (model.Value, error) {
	switch snak.SnakType {
	case "novalue":
		return model.NoValue(), nil
	case "somevalue":
		return model.SomeValue(), nil
	case "value", "":
	default:
		return model.Value{}, fmt.Errorf("unknown snaktype %q", snak.SnakType)
	}

	if snak.DataValue == nil {
		return model.Value{}, fmt.Errorf("value snak without datavalue")
	}

	switch snak.DataValue.Type {
	case "wikibase-entityid":
		var v struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(snak.DataValue.Value, &v); err != nil || v.ID == "" {
			return model.Value{}, fmt.Errorf("malformed entityid value")
		}
		return model.EntityValue(v.ID), nil

	case "string":
		var s string
		if err := json.Unmarshal(snak.DataValue.Value, &s); err != nil {
			return model.Value{}, fmt.Errorf("malformed string value")
		}
		return model.StringValue(s), nil

	case "monolingualtext":
		var v struct {
			Text     string `json:"text"`
			Language string `json:"language"`
		}
		if err := json.Unmarshal(snak.DataValue.Value, &v); err != nil {
			return model.Value{}, fmt.Errorf("malformed monolingualtext value")
		}
		return model.MonolingualValue(v.Text, v.Language), nil

	case "quantity":
		var v struct {
			Amount     string `json:"amount"`
			Unit       string `json:"unit"`
			LowerBound string `json:"lowerBound"`
			UpperBound string `json:"upperBound"`
		}
		if err := json.Unmarshal(snak.DataValue.Value, &v); err != nil || v.Amount == "" {
			return model.Value{}, fmt.Errorf("malformed quantity value")
		}
		return model.QuantityValue(model.Quantity{
			Amount:     v.Amount,
			Unit:       unitID(v.Unit),
			LowerBound: v.LowerBound,
			UpperBound: v.UpperBound,
		}), nil

	case "time":
		var v struct {
			Time          string `json:"time"`
			Precision     int    `json:"precision"`
			CalendarModel string `json:"calendarmodel"`
		}
		if err := json.Unmarshal(snak.DataValue.Value, &v); err != nil || v.Time == "" {
			return model.Value{}, fmt.Errorf("malformed time value")
		}
		return model.TimeValue(model.Time{
			Time:      v.Time,
			Precision: v.Precision,
			Calendar:  entityIDFromIRI(v.CalendarModel),
		}), nil

	case "globecoordinate":
		var v struct {
			Latitude  float64 `json:"latitude"`
			Longitude float64 `json:"longitude"`
			Precision float64 `json:"precision"`
			Globe     string  `json:"globe"`
		}
		if err := json.Unmarshal(snak.DataValue.Value, &v); err != nil {
			return model.Value{}, fmt.Errorf("malformed globecoordinate value")
		}
		return model.CoordinateValue(model.Coordinate{
			Latitude:  v.Latitude,
			Longitude: v.Longitude,
			Precision: v.Precision,
			Globe:     entityIDFromIRI(v.Globe),
		}), nil

	default:
		return model.Value{}, fmt.Errorf("unknown datavalue type %q", snak.DataValue.Type)
	}
}

// unitID maps the quantity unit IRI to an entity ID. The literal "1"
// marks a dimensionless quantity.
func unitID(unit string) string {
	if unit == "" || unit == "1" {
		return ""
	}
	return entityIDFromIRI(unit)
}

func entityIDFromIRI(iri string) string {
	if i := strings.LastIndex(iri, "/entity/"); i >= 0 {
		return iri[i+len("/entity/"):]
	}
	return iri
}
