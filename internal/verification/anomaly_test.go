package verification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHaversineKm(t *testing.T) {
	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
		wantKm                 float64
		delta                  float64
	}{
		{"identical points", 40.7128, -74.0060, 40.7128, -74.0060, 0, 0.001},
		{"one degree of longitude at the equator", 0, 0, 0, 1, 111.19, 0.5},
		{"london to paris", 51.5074, -0.1278, 48.8566, 2.3522, 343.5, 2},
		{"new york to los angeles", 40.7128, -74.0060, 34.0522, -118.2437, 3936, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HaversineKm(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.InDelta(t, tt.wantKm, got, tt.delta)

			// Distance is symmetric.
			assert.InDelta(t, got, HaversineKm(tt.lat2, tt.lon2, tt.lat1, tt.lon1), 0.001)
		})
	}
}
