package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/glasshouse-ai/glasshouse/pkg/models"
)

func TestGradeFor(t *testing.T) {
	tests := []struct {
		name string
		pct  float64
		want models.Grade
	}{
		{name: "top of scale", pct: 100, want: models.GradeA},
		{name: "A boundary", pct: 80, want: models.GradeA},
		{name: "just under A", pct: 79.9, want: models.GradeB},
		{name: "B boundary", pct: 60, want: models.GradeB},
		{name: "C boundary", pct: 40, want: models.GradeC},
		{name: "just under C", pct: 39.9, want: models.GradeD},
		{name: "D boundary", pct: 20, want: models.GradeD},
		{name: "just under D", pct: 19.9, want: models.GradeF},
		{name: "bottom of scale", pct: 0, want: models.GradeF},
		{name: "below scale", pct: -10, want: models.GradeF},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GradeFor(tt.pct))
		})
	}
}

func TestGradeFor_NeverAssignsE(t *testing.T) {
	for pct := -50.0; pct <= 150; pct += 0.5 {
		assert.NotEqual(t, models.GradeE, GradeFor(pct), "pct %f", pct)
	}
}

func TestClampRiskScore(t *testing.T) {
	tests := []struct {
		name    string
		in      int
		want    int
		clamped bool
	}{
		{name: "in range", in: 50, want: 50, clamped: false},
		{name: "lower bound", in: 0, want: 0, clamped: false},
		{name: "upper bound", in: 100, want: 100, clamped: false},
		{name: "negative", in: -5, want: 0, clamped: true},
		{name: "above range", in: 150, want: 100, clamped: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, clamped := ClampRiskScore(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.clamped, clamped)
		})
	}
}
