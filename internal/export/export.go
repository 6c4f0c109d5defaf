// Package export writes saved contacts to XLSX or CSV files.
package export

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/Anudeepreddynarala/email-recruiters/internal/model"
)

var contactHeader = []string{
	"Name", "Title", "Email", "Profile URL", "Company",
	"Job Title", "Job Company", "Status", "Source", "Created",
}

// Row pairs a contact with the job it was found for. Job may be nil for
// manually added contacts.
type Row struct {
	Contact model.Contact
	Job     *model.JobPosting
}

func (r Row) values() []string {
	jobTitle, jobCompany := "", ""
	if r.Job != nil {
		jobTitle = r.Job.Title
		jobCompany = r.Job.Company
	}
	return []string{
		r.Contact.Name,
		r.Contact.Title,
		r.Contact.Email,
		r.Contact.ProfileURL,
		r.Contact.Company,
		jobTitle,
		jobCompany,
		string(r.Contact.Status),
		r.Contact.Source,
		r.Contact.CreatedAt.Format(time.RFC3339),
	}
}

// WriteXLSX writes the rows to an XLSX workbook at path.
func WriteXLSX(path string, rows []Row) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Contacts")
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	headerRow := sheet.AddRow()
	for _, h := range contactHeader {
		headerRow.AddCell().SetString(h)
	}

	for _, r := range rows {
		row := sheet.AddRow()
		for _, v := range r.values() {
			row.AddCell().SetString(v)
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// WriteCSV writes the rows as CSV.
func WriteCSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(contactHeader); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, r := range rows {
		if err := cw.Write(r.values()); err != nil {
			return eris.Wrapf(err, "export: write row for %s", r.Contact.Name)
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "export: flush")
}
