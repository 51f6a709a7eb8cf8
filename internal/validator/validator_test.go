package validator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kunzeritter/docpipeline/internal/model"
)

type fakeGraph struct {
	edges map[string][]model.ProductAccessory
}

func (f fakeGraph) Edges(_ context.Context, productID string) ([]model.ProductAccessory, error) {
	return f.edges[productID], nil
}

func TestValidate_MissingRequiresIsAnError(t *testing.T) {
	g := fakeGraph{edges: map[string][]model.ProductAccessory{
		"printer-1": {{ProductID: "printer-1", AccessoryID: "finisher-1", CompatibilityType: model.CompatRequires}},
	}}
	res, err := Validate(context.Background(), g, "printer-1", nil)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
}

func TestValidate_RequiresSatisfiedIsValid(t *testing.T) {
	g := fakeGraph{edges: map[string][]model.ProductAccessory{
		"printer-1": {{ProductID: "printer-1", AccessoryID: "finisher-1", CompatibilityType: model.CompatRequires}},
	}}
	res, err := Validate(context.Background(), g, "printer-1", []string{"finisher-1"})
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
}

func TestValidate_ConflictingPairIsAnError(t *testing.T) {
	g := fakeGraph{edges: map[string][]model.ProductAccessory{
		"finisher-a": {{ProductID: "finisher-a", AccessoryID: "finisher-b", CompatibilityType: model.CompatConflicts}},
	}}
	res, err := Validate(context.Background(), g, "printer-1", []string{"finisher-a", "finisher-b"})
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
}

func TestValidate_AlternativeIsWarningNotError(t *testing.T) {
	g := fakeGraph{edges: map[string][]model.ProductAccessory{
		"printer-1": {{ProductID: "printer-1", AccessoryID: "finisher-alt", CompatibilityType: model.CompatAlternative}},
	}}
	res, err := Validate(context.Background(), g, "printer-1", nil)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.Len(t, res.Warnings, 1)
}

func TestValidate_RecommendedSurfacesRecommendation(t *testing.T) {
	g := fakeGraph{edges: map[string][]model.ProductAccessory{
		"printer-1": {{ProductID: "printer-1", AccessoryID: "cabinet-1", CompatibilityType: model.CompatRecommended}},
	}}
	res, err := Validate(context.Background(), g, "printer-1", nil)
	require.NoError(t, err)
	assert.Len(t, res.Recommendations, 1)
}

func TestValidate_CycleInRequiresIsDetected(t *testing.T) {
	g := fakeGraph{edges: map[string][]model.ProductAccessory{
		"a": {{ProductID: "a", AccessoryID: "b", CompatibilityType: model.CompatRequires}},
		"b": {{ProductID: "b", AccessoryID: "a", CompatibilityType: model.CompatRequires}},
	}}
	_, err := Validate(context.Background(), g, "a", []string{"b"})
	require.Error(t, err)
}
