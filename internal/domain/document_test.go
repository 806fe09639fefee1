package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTitle(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Coastal Dynamics of Golfo San Jorge", "coastal dynamics of golfo san jorge"},
		{"  Tides — and: currents!  ", "tides and currents"},
		{"CO2 fluxes (2019-2021)", "co2 fluxes 2019 2021"},
		{"", ""},
		{"---", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeTitle(tc.in), "input %q", tc.in)
	}
}

func TestFirstAuthor(t *testing.T) {
	assert.Equal(t, "", Document{}.FirstAuthor())
	assert.Equal(t, "A. Researcher",
		Document{Authors: []string{"A. Researcher", "B. Colleague"}}.FirstAuthor())
}
