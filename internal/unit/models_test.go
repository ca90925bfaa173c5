package unit

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		name    string
		from    UnitStatus
		to      UnitStatus
		allowed bool
	}{
		{"active can be dispensed", StatusActive, StatusDispensed, true},
		{"active can be quarantined", StatusActive, StatusQuarantined, true},
		{"in transit can be dispensed", StatusInTransit, StatusDispensed, true},
		{"dispensed can revert to active", StatusDispensed, StatusActive, true},
		{"quarantined can be destroyed", StatusQuarantined, StatusDestroyed, true},
		{"dispensed cannot be dispensed again", StatusDispensed, StatusDispensed, false},
		{"quarantined cannot be dispensed", StatusQuarantined, StatusDispensed, false},
		{"destroyed is terminal", StatusDestroyed, StatusActive, false},
		{"recalled is terminal", StatusRecalled, StatusActive, false},
		{"active cannot be destroyed directly", StatusActive, StatusDestroyed, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransition(tt.from, tt.to))
		})
	}
}
