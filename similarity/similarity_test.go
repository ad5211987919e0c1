// Copyright 2025 The ChapaUY Authors
// SPDX-License-Identifier: Apache-2.0

package similarity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSimilar(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want bool
	}{
		{name: "identical", a: "Avignon", b: "Avignon", want: true},
		{name: "case only", a: "PARIS", b: "paris", want: true},
		{name: "one letter off", a: "Paris", b: "Pariz", want: true},
		{name: "accents folded", a: "Besalú", b: "Besalu", want: true},
		{name: "long suffix falls below threshold", a: "Albalate", b: "Albalate de Cinca", want: false},
		{name: "short suffix", a: "Murcia", b: "Murcia la", want: true},
		{name: "second word", a: "Burgos", b: "Burgos Osma", want: true},
		{name: "dropped letter", a: "Avignon", b: "Avinion", want: true},
		{name: "latin name", a: "Avignon", b: "Avenio", want: false},
		{name: "blank left", a: "", b: "Paris", want: false},
		{name: "blank right", a: "Paris", b: "  ", want: false},
		{name: "both blank", a: "", b: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Similar(tt.a, tt.b), "Score(%q, %q) = %f", tt.a, tt.b, Score(tt.a, tt.b))
		})
	}
}

func TestSimilarReflexive(t *testing.T) {
	for _, name := range []string{"a", "Zaragoza", "Santiago de Compostela", "Ñ", "Lleida"} {
		assert.True(t, Similar(name, name), name)
		assert.InDelta(t, 1.0, Score(name, name), 1e-12, name)
	}
}

func TestScore(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"Paris", "Pariz", 0.8},
		{"Murcia", "Murcia la", 0.8},
		{"Burgos", "Burgos Osma", 12.0 / 17.0},
		{"Albalate", "Albalate de Cinca", 0.64},
		{"Avignon", "Avenio", 8.0 / 13.0},
		{"", "x", 0},
		// multibyte runes count as one character
		{"Besalú", "Besalx", 10.0 / 12.0},
	}

	for _, tt := range tests {
		assert.InDelta(t, tt.want, Score(tt.a, tt.b), 1e-9, "Score(%q, %q)", tt.a, tt.b)
		assert.InDelta(t, tt.want, Score(tt.b, tt.a), 1e-9, "Score(%q, %q)", tt.b, tt.a)
	}
}

func TestDistance(t *testing.T) {
	assert.Equal(t, 1, Distance("Paris", "Pariz"))
	assert.Equal(t, 0, Distance("Besalú", "besalu"))
	assert.Equal(t, 3, Distance("Murcia", "Murcia la"))
}

func TestBestMatch(t *testing.T) {
	candidates := []string{"Barcelona", "Girona", "Gerona", "Lleida"}

	m, ok := BestMatch("Gerona", candidates)
	assert.True(t, ok)
	assert.Equal(t, 2, m.Index)
	assert.Equal(t, "Gerona", m.Name)
	assert.InDelta(t, 1.0, m.Score, 1e-12)

	m, ok = BestMatch("Girone", candidates)
	assert.True(t, ok)
	assert.Equal(t, "Girona", m.Name)

	_, ok = BestMatch("Paris", nil)
	assert.False(t, ok)

	_, ok = BestMatch("", candidates)
	assert.False(t, ok)
}
