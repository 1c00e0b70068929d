package swagger

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swaggo/swag"
)

func TestFreeDaysDocumentsNumDaysCap(t *testing.T) {
	doc, err := swag.ReadDoc()
	require.NoError(t, err)

	var spec struct {
		Paths map[string]map[string]struct {
			Parameters []map[string]interface{} `json:"parameters"`
		} `json:"paths"`
	}
	require.NoError(t, json.Unmarshal([]byte(doc), &spec))

	op, ok := spec.Paths["/calendar/free-days"]["get"]
	require.True(t, ok)

	var numDays map[string]interface{}
	for _, p := range op.Parameters {
		if p["name"] == "num_days" {
			numDays = p
		}
	}
	require.NotNil(t, numDays)
	assert.EqualValues(t, 60, numDays["maximum"])
	assert.Contains(t, numDays["description"], "AVAILABILITY_MAX_NUM_DAYS")
}
