package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{
		Headers: []string{"day", "start", "patient"},
		Rows: []map[string]string{
			{"day": "2026-10-21", "start": "10:00", "patient": "Ana, Maria"},
			{"day": "2026-10-21", "start": "10:30"},
		},
	}
	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	assert.Equal(t, "day,start,patient\n2026-10-21,10:00,\"Ana, Maria\"\n2026-10-21,10:30,\n", string(out))

	_, err = NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	data := Dataset{
		Headers: []string{"day", "start"},
		Rows:    []map[string]string{{"day": "2026-10-21", "start": "10:00"}},
	}
	out, err := NewPDFExporter().Render(data, "Agenda")
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}
