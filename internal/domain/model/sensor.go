package model

import (
	"fmt"
	"sort"
)

// SensorFamily groups Landsat generations that share a band layout.
type SensorFamily string

const (
	FamilyTM  SensorFamily = "TM/ETM+" // Landsat 5 and 7
	FamilyOLI SensorFamily = "OLI"     // Landsat 8 and 9
)

// NoBit marks a quality flag the sensor does not report.
const NoBit = -1

// SensorProfile is the band layout of one Landsat collection.
type SensorProfile struct {
	CollectionID   string       `json:"collection_id"`
	Family         SensorFamily `json:"family"`
	GreenBand      string       `json:"green_band"`
	SWIRBand       string       `json:"swir_band"`
	QualityBand    string       `json:"quality_band"`
	CloudBit       int          `json:"cloud_bit"`
	CloudShadowBit int          `json:"cloud_shadow_bit"`
	CirrusBit      int          `json:"cirrus_bit"`
}

// QualityMask is the OR of every flagged bit the profile reports.
func (p SensorProfile) QualityMask() int64 {
	var m int64
	for _, b := range []int{p.CloudBit, p.CloudShadowBit, p.CirrusBit} {
		if b != NoBit {
			m |= 1 << uint(b)
		}
	}
	return m
}

// Collection 2 Level-2 QA_PIXEL: bit 2 cirrus (OLI only), bit 3 cloud, bit 4 cloud shadow.
func tmProfile(id string) SensorProfile {
	return SensorProfile{
		CollectionID:   id,
		Family:         FamilyTM,
		GreenBand:      "SR_B2",
		SWIRBand:       "SR_B5",
		QualityBand:    "QA_PIXEL",
		CloudBit:       3,
		CloudShadowBit: 4,
		CirrusBit:      NoBit,
	}
}

func oliProfile(id string) SensorProfile {
	return SensorProfile{
		CollectionID:   id,
		Family:         FamilyOLI,
		GreenBand:      "SR_B3",
		SWIRBand:       "SR_B6",
		QualityBand:    "QA_PIXEL",
		CloudBit:       3,
		CloudShadowBit: 4,
		CirrusBit:      2,
	}
}

const (
	CollectionLandsat5 = "LANDSAT/LT05/C02/T1_L2"
	CollectionLandsat7 = "LANDSAT/LE07/C02/T1_L2"
	CollectionLandsat8 = "LANDSAT/LC08/C02/T1_L2"
	CollectionLandsat9 = "LANDSAT/LC09/C02/T1_L2"
)

var sensors = map[string]SensorProfile{
	CollectionLandsat5: tmProfile(CollectionLandsat5),
	CollectionLandsat7: tmProfile(CollectionLandsat7),
	CollectionLandsat8: oliProfile(CollectionLandsat8),
	CollectionLandsat9: oliProfile(CollectionLandsat9),
}

// LookupSensor returns the profile registered for collectionID.
func LookupSensor(collectionID string) (SensorProfile, error) {
	p, ok := sensors[collectionID]
	if !ok {
		return SensorProfile{}, fmt.Errorf("%w: %q", ErrUnsupportedCollection, collectionID)
	}
	return p, nil
}

// SupportedCollections lists every registered profile ordered by collection id.
func SupportedCollections() []SensorProfile {
	out := make([]SensorProfile, 0, len(sensors))
	for _, p := range sensors {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CollectionID < out[j].CollectionID })
	return out
}

// SuggestCollection picks the Landsat generation flying through most of [startYear, endYear].
func SuggestCollection(startYear, endYear int) string {
	mid := (startYear + endYear) / 2
	switch {
	case mid < 2000:
		return CollectionLandsat5
	case mid < 2013:
		return CollectionLandsat7
	case mid < 2021:
		return CollectionLandsat8
	default:
		return CollectionLandsat9
	}
}
