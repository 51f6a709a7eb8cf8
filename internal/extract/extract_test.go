package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunzeritter/docpipeline/internal/model"
)

func TestErrorCodes_UsesManufacturerPatternAndCapturesSolution(t *testing.T) {
	content := "Error C1234 occurs when the fuser is cold. Replace the fuser unit and restart the device.\n\n1.2 Next Section"
	matches := ErrorCodes(content, "Konica Minolta, Inc.")
	require.Len(t, matches, 1)
	assert.Equal(t, "C1234", matches[0].Code)
	assert.Contains(t, matches[0].Solution, "Replace the fuser unit")
	assert.NotContains(t, matches[0].Solution, "Next Section")
	assert.Equal(t, model.ExtractionRegex, matches[0].ExtractionMethod)
}

func TestErrorCodes_FallsBackToGenericForUnknownManufacturer(t *testing.T) {
	matches := ErrorCodes("Fault E042 detected.", "Acme Printing Co")
	require.Len(t, matches, 1)
	assert.Equal(t, "E042", matches[0].Code)
}

func TestVersions_ExtractsDottedVersionStrings(t *testing.T) {
	got := Versions("Firmware 3.01 is required. Upgrade from v2.5.0 if needed.")
	assert.Contains(t, got, "3.01")
	assert.Contains(t, got, "2.5.0")
}

func TestLinks_ExtractsAndDedupesURLs(t *testing.T) {
	got := Links("See https://example.com/manual.pdf for details. Also https://example.com/manual.pdf.")
	assert.Equal(t, []string{"https://example.com/manual.pdf"}, got)
}

func TestVideos_FiltersToKnownHosts(t *testing.T) {
	content := "Tutorial: https://www.youtube.com/watch?v=abc123 and also https://example.com/page"
	got := Videos(content)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "youtube.com")
}

func TestPartNumbers_PairsTokenWithTrailingDescription(t *testing.T) {
	got := PartNumbers("Replace part RM2-5415-000 — Fuser Assembly, 110V.")
	require.Len(t, got, 1)
	assert.Equal(t, "RM2-5415-000", got[0].PartNumber)
	assert.Contains(t, got[0].Description, "Fuser Assembly")
}

func TestProducts_FindsModelLikeTokens(t *testing.T) {
	got := Products("The CX920de and MX611dhe share a common engine.")
	var models []string
	for _, p := range got {
		models = append(models, p.ModelNumber)
	}
	assert.Contains(t, models, "CX920de")
	assert.Contains(t, models, "MX611dhe")
}
