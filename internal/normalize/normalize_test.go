package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kunzeritter/docpipeline/internal/model"
)

func TestManufacturer_CanonicalizesKnownAliases(t *testing.T) {
	assert.Equal(t, "HP Inc.", Manufacturer("hp"))
	assert.Equal(t, "HP Inc.", Manufacturer("Hewlett Packard"))
	assert.Equal(t, "HP Inc.", Manufacturer("HP, Inc."))
}

func TestManufacturer_UnknownPassesThroughTitleCased(t *testing.T) {
	assert.Equal(t, "Acme Printing Co", Manufacturer("acme printing co"))
}

func TestEffectiveManufacturer_UsesOEMWhenApplicable(t *testing.T) {
	got := EffectiveManufacturer("Lexmark International, Inc.", "CX920", PurposeErrorCodes)
	assert.Equal(t, "Konica Minolta, Inc.", got)
}

func TestEffectiveManufacturer_FallsBackWhenPurposeNotApplicable(t *testing.T) {
	got := EffectiveManufacturer("Lexmark International, Inc.", "CX920", PurposeAccessories)
	assert.Equal(t, "Lexmark International, Inc.", got)
}

func TestEffectiveManufacturer_UtaxIsAlwaysKyocera(t *testing.T) {
	got := EffectiveManufacturer("UTAX", "2507ci", PurposeAccessories)
	assert.Equal(t, "Kyocera Document Solutions Inc.", got)
}

func TestDetectAccessoryType_PrefixMatch(t *testing.T) {
	pt, ok := DetectAccessoryType("FS-534")
	assert.True(t, ok)
	assert.Equal(t, model.ProductFinisher, pt)
}

func TestProductType_AccessoryPrefixWinsOverSeries(t *testing.T) {
	pt := ProductType("TN-328", "bizhub", true)
	assert.Equal(t, model.ProductTonerCartridge, pt)
}

func TestProductType_FallsBackToLaserMultifunctionWhenManufacturerKnown(t *testing.T) {
	pt := ProductType("XYZ-1", "unknown-series", true)
	assert.Equal(t, model.ProductLaserMultifunction, pt)
}

func TestProductType_EmptyWhenNoSignalAndManufacturerUnknown(t *testing.T) {
	pt := ProductType("XYZ-1", "unknown-series", false)
	assert.Empty(t, pt)
}
