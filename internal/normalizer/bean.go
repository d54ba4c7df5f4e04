package normalizer

import (
	"context"

	"github.com/bean-lens/beanlens/internal/dictionary"
	"github.com/bean-lens/beanlens/internal/matcher"
	"github.com/bean-lens/beanlens/internal/models"
)

// NormalizedOrigin mirrors models.Origin with the country resolved
type NormalizedOrigin struct {
	Country *matcher.NormalizedField `json:"country,omitempty"`
	Region  string                   `json:"region,omitempty"`
	Farm    string                   `json:"farm,omitempty"`
}

// NormalizedBeanInfo mirrors models.BeanInfo with every domain field resolved.
// Fields outside the dictionary domains pass through unchanged. The list
// confidences are the minimum over their values and are nil when the list
// was not extracted.
type NormalizedBeanInfo struct {
	DictionaryVersion     string                    `json:"dictionary_version"`
	Roastery              string                    `json:"roastery,omitempty"`
	Name                  string                    `json:"name,omitempty"`
	Origin                *NormalizedOrigin         `json:"origin,omitempty"`
	Varieties             []matcher.NormalizedField `json:"varieties"`
	VarietiesConfidence   *float64                  `json:"varieties_confidence,omitempty"`
	Process               *matcher.NormalizedField  `json:"process,omitempty"`
	RoastLevel            *matcher.NormalizedField  `json:"roast_level,omitempty"`
	FlavorNotes           []matcher.NormalizedField `json:"flavor_notes"`
	FlavorNotesConfidence *float64                  `json:"flavor_notes_confidence,omitempty"`
	RoastDate             string                    `json:"roast_date,omitempty"`
	Altitude              string                    `json:"altitude,omitempty"`
	Warnings              []string                  `json:"warnings"`
}

// BeanRecord converts the populated domain fields of bean into a Record
func BeanRecord(bean models.BeanInfo) Record {
	rec := make(Record)
	if bean.Process != "" {
		rec[dictionary.Process] = Single(bean.Process)
	}
	if bean.RoastLevel != "" {
		rec[dictionary.RoastLevel] = Single(bean.RoastLevel)
	}
	if country := bean.Country(); country != "" {
		rec[dictionary.Country] = Single(country)
	}
	if len(bean.Variety) > 0 {
		rec[dictionary.Variety] = Multi(bean.Variety...)
	}
	if len(bean.FlavorNotes) > 0 {
		rec[dictionary.FlavorNote] = Multi(bean.FlavorNotes...)
	}
	return rec
}

// NormalizeBean normalizes an extracted bean record. Lists are deduplicated
// by canonical key, or by normalized raw text for unknown values.
func (n *Normalizer) NormalizeBean(ctx context.Context, bean models.BeanInfo) NormalizedBeanInfo {
	result := n.Normalize(ctx, BeanRecord(bean))

	out := NormalizedBeanInfo{
		DictionaryVersion:     result.DictionaryVersion,
		Roastery:              bean.Roastery,
		Name:                  bean.Name,
		Varieties:             dedupe(result.Fields[dictionary.Variety].Values),
		VarietiesConfidence:   confidence(result.Fields, dictionary.Variety),
		Process:               first(result.Fields, dictionary.Process),
		RoastLevel:            first(result.Fields, dictionary.RoastLevel),
		FlavorNotes:           dedupe(result.Fields[dictionary.FlavorNote].Values),
		FlavorNotesConfidence: confidence(result.Fields, dictionary.FlavorNote),
		RoastDate:             bean.RoastDate,
		Altitude:              bean.Altitude,
		Warnings:              result.Warnings,
	}
	if bean.Origin != nil {
		out.Origin = &NormalizedOrigin{
			Country: first(result.Fields, dictionary.Country),
			Region:  bean.Origin.Region,
			Farm:    bean.Origin.Farm,
		}
	}
	return out
}

func first(fields map[dictionary.Domain]Field, domain dictionary.Domain) *matcher.NormalizedField {
	field, ok := fields[domain]
	if !ok || len(field.Values) == 0 {
		return nil
	}
	v := field.Values[0]
	return &v
}

func confidence(fields map[dictionary.Domain]Field, domain dictionary.Domain) *float64 {
	field, ok := fields[domain]
	if !ok {
		return nil
	}
	c := field.Confidence
	return &c
}

func dedupe(values []matcher.NormalizedField) []matcher.NormalizedField {
	out := []matcher.NormalizedField{}
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		key := v.Key
		if key == "" {
			key = "raw:" + dictionary.Normalize(v.Raw)
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
