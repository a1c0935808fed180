package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/menta2k/meal-analyzer/pkg/types"
)

func TestRouteSplitsAtThreshold(t *testing.T) {
	dets := []types.Detection{
		det("a", 0.9, 0, 0, 10, 10),
		det("b", 0.55, 0, 0, 10, 10),
		det("c", 0.54, 0, 0, 10, 10),
		det("d", 0.3, 0, 0, 10, 10),
	}

	confident, uncertain := Route(dets, 0.55, 5)

	assert.Equal(t, []types.Detection{dets[0], dets[1]}, confident)
	assert.Equal(t, []types.Detection{dets[2], dets[3]}, uncertain)
}

func TestRouteKeepsLowestUncertainInInputOrder(t *testing.T) {
	dets := []types.Detection{
		det("a", 0.5, 0, 0, 10, 10),
		det("b", 0.2, 0, 0, 10, 10),
		det("c", 0.4, 0, 0, 10, 10),
		det("d", 0.3, 0, 0, 10, 10),
	}

	_, uncertain := Route(dets, 0.55, 2)

	assert.Equal(t, []types.Detection{dets[1], dets[3]}, uncertain)
}

func TestRouteZeroCapDropsUncertain(t *testing.T) {
	dets := []types.Detection{
		det("a", 0.9, 0, 0, 10, 10),
		det("b", 0.2, 0, 0, 10, 10),
	}

	confident, uncertain := Route(dets, 0.55, 0)

	assert.Len(t, confident, 1)
	assert.Empty(t, uncertain)
}

func TestRouteEmpty(t *testing.T) {
	confident, uncertain := Route(nil, 0.55, 5)

	assert.Empty(t, confident)
	assert.Empty(t, uncertain)
}
