package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupSensor(t *testing.T) {
	tm, err := LookupSensor(CollectionLandsat7)
	require.NoError(t, err)
	assert.Equal(t, FamilyTM, tm.Family)
	assert.Equal(t, "SR_B2", tm.GreenBand)
	assert.Equal(t, "SR_B5", tm.SWIRBand)
	assert.Equal(t, NoBit, tm.CirrusBit)
	assert.Equal(t, int64(0b11000), tm.QualityMask())

	oli, err := LookupSensor(CollectionLandsat9)
	require.NoError(t, err)
	assert.Equal(t, FamilyOLI, oli.Family)
	assert.Equal(t, "SR_B3", oli.GreenBand)
	assert.Equal(t, "SR_B6", oli.SWIRBand)
	assert.Equal(t, int64(0b11100), oli.QualityMask())

	_, err = LookupSensor("LANDSAT/FAKE")
	assert.ErrorIs(t, err, ErrUnsupportedCollection)
	assert.ErrorContains(t, err, "LANDSAT/FAKE")
}

func TestSupportedCollectionsSorted(t *testing.T) {
	var ids []string
	for _, p := range SupportedCollections() {
		ids = append(ids, p.CollectionID)
	}
	assert.Equal(t, []string{CollectionLandsat8, CollectionLandsat9, CollectionLandsat7, CollectionLandsat5}, ids)
}

func TestSuggestCollection(t *testing.T) {
	tests := []struct {
		start, end int
		want       string
	}{
		{1985, 1995, CollectionLandsat5},
		{1995, 2005, CollectionLandsat7},
		{2010, 2012, CollectionLandsat7},
		{2014, 2018, CollectionLandsat8},
		{2021, 2024, CollectionLandsat9},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SuggestCollection(tt.start, tt.end), "%d-%d", tt.start, tt.end)
	}
}
