package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDisplayKey(t *testing.T) {
	assert.Equal(t, "Temperature in °C", DisplayKey("Temperature", "°C"))

	s := Sensor{Title: "rel. Luftfeuchte", Unit: "%"}
	assert.Equal(t, "rel. Luftfeuchte in %", s.DisplayKey())
}
