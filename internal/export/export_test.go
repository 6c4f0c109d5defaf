package export

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/Anudeepreddynarala/email-recruiters/internal/model"
)

func testRows() []Row {
	created := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	return []Row{
		{
			Contact: model.Contact{
				Name:      "Jane Doe",
				Title:     "Engineering Manager",
				Email:     "jane@acme.com",
				Company:   "Acme Corp",
				Status:    model.ContactStatusNew,
				Source:    model.SourceExternalSearch,
				CreatedAt: created,
			},
			Job: &model.JobPosting{Title: "Senior Backend Engineer", Company: "Acme Corp"},
		},
		{
			Contact: model.Contact{
				Name:      "John Smith",
				Status:    model.ContactStatusContacted,
				Source:    model.SourceManual,
				CreatedAt: created,
			},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, testRows()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, contactHeader, records[0])
	assert.Equal(t, "Jane Doe", records[1][0])
	assert.Equal(t, "jane@acme.com", records[1][2])
	assert.Equal(t, "Senior Backend Engineer", records[1][5])

	// Contact without a job leaves the job columns empty.
	assert.Equal(t, "John Smith", records[2][0])
	assert.Equal(t, "", records[2][5])
	assert.Equal(t, "contacted", records[2][7])
}

func TestWriteXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "contacts.xlsx")
	require.NoError(t, WriteXLSX(path, testRows()))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)

	sheet, ok := f.Sheet["Contacts"]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)

	assert.Equal(t, "Name", sheet.Rows[0].Cells[0].String())
	assert.Equal(t, "Jane Doe", sheet.Rows[1].Cells[0].String())
	assert.Equal(t, "Acme Corp", sheet.Rows[1].Cells[6].String())
}
