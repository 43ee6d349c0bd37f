// Package export writes campaign leads to CSV, JSON, or XLSX files.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/Marius-prog/Leads-generator/internal/model"
)

// Format selects the output file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format string.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(s)) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatJSON:
		return FormatJSON, nil
	case FormatXLSX:
		return FormatXLSX, nil
	}
	return "", eris.Errorf("export: unknown format %q", s)
}

// Exporter writes leads for one campaign into a directory.
type Exporter struct {
	dir string
}

func New(dir string) *Exporter {
	if dir == "" {
		dir = "exports"
	}
	return &Exporter{dir: dir}
}

var unsafeFilenameRe = regexp.MustCompile(`[^a-zA-Z0-9._\-]+`)

// Export writes the campaign's leads in the given format and returns
// the path of the file it created. Existing files are never
// overwritten; a numeric suffix is appended instead.
func (e *Exporter) Export(campaign model.Campaign, leads []model.Lead, format Format) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", eris.Wrap(err, "export: create directory")
	}

	base := unsafeFilenameRe.ReplaceAllString(strings.ToLower(campaign.Name), "_")
	base = strings.Trim(base, "_")
	if base == "" {
		base = campaign.ID
	}
	name := fmt.Sprintf("%s_%s", base, time.Now().Format("20060102_150405"))
	path := e.uniquePath(name, string(format))

	var err error
	switch format {
	case FormatCSV:
		err = writeCSV(path, leads)
	case FormatJSON:
		err = writeJSON(path, campaign, leads)
	case FormatXLSX:
		err = writeXLSX(path, campaign, leads)
	default:
		return "", eris.Errorf("export: unknown format %q", format)
	}
	if err != nil {
		return "", err
	}
	return path, nil
}

func (e *Exporter) uniquePath(name, ext string) string {
	path := filepath.Join(e.dir, name+"."+ext)
	for i := 1; ; i++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return path
		}
		path = filepath.Join(e.dir, fmt.Sprintf("%s_%d.%s", name, i, ext))
	}
}

var csvHeader = []string{
	"name", "address", "city", "state", "postal_code", "country",
	"phone", "email", "website",
	"category", "rating", "reviews_count", "latitude", "longitude", "status",
	"email_valid", "phone_valid", "company_valid",
	"linkedin_url", "research_summary", "message_subject", "message_body",
}

func leadRow(l model.Lead) []string {
	row := []string{
		l.Name, l.Address, l.City, l.State, l.PostalCode, l.Country,
		l.Phone, l.Email, l.Website,
		l.Category,
		strconv.FormatFloat(l.Rating, 'f', -1, 64),
		strconv.Itoa(l.Reviews),
		strconv.FormatFloat(l.Latitude, 'f', -1, 64),
		strconv.FormatFloat(l.Longitude, 'f', -1, 64),
		string(l.Status),
		strconv.FormatBool(l.EmailValid),
		strconv.FormatBool(l.PhoneValid),
		strconv.FormatBool(l.CompanyValid),
		"", "", "", "",
	}
	if l.LinkedInProfile != nil {
		row[18] = l.LinkedInProfile.ProfileURL
	}
	if l.ResearchData != nil {
		row[19] = l.ResearchData.CompanyOverview
	}
	if l.Personalized != nil {
		row[20] = l.Personalized.Subject
		row[21] = l.Personalized.Message
	}
	return row
}

func writeCSV(path string, leads []model.Lead) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create csv")
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	for _, l := range leads {
		if err := w.Write(leadRow(l)); err != nil {
			return eris.Wrapf(err, "export: write csv row for %q", l.Name)
		}
	}
	w.Flush()
	return eris.Wrap(w.Error(), "export: flush csv")
}

// jsonEnvelope is the JSON export layout: campaign metadata up front,
// leads below.
type jsonEnvelope struct {
	Campaign   jsonCampaign `json:"campaign"`
	ExportedAt time.Time    `json:"exported_at"`
	LeadCount  int          `json:"lead_count"`
	Leads      []model.Lead `json:"leads"`
}

type jsonCampaign struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	BusinessType string `json:"business_type"`
	Location     string `json:"location"`
	Status       string `json:"status"`
}

func writeJSON(path string, campaign model.Campaign, leads []model.Lead) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrap(err, "export: create json")
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(jsonEnvelope{
		Campaign: jsonCampaign{
			ID:           campaign.ID,
			Name:         campaign.Name,
			BusinessType: campaign.BusinessType,
			Location:     campaign.Location,
			Status:       string(campaign.Status),
		},
		ExportedAt: time.Now().UTC(),
		LeadCount:  len(leads),
		Leads:      leads,
	}), "export: encode json")
}

func writeXLSX(path string, campaign model.Campaign, leads []model.Lead) error {
	f := xlsx.NewFile()

	if err := writeLeadsSheet(f, leads); err != nil {
		return err
	}
	if err := writeAnalyticsSheet(f, leads); err != nil {
		return err
	}
	if err := writeSummarySheet(f, campaign, leads); err != nil {
		return err
	}

	return eris.Wrap(f.Save(path), "export: save xlsx")
}

var titleCaser = cases.Title(language.AmericanEnglish)

func headerLabel(col string) string {
	return titleCaser.String(strings.ReplaceAll(col, "_", " "))
}

func writeLeadsSheet(f *xlsx.File, leads []model.Lead) error {
	sheet, err := f.AddSheet("Leads")
	if err != nil {
		return eris.Wrap(err, "export: add leads sheet")
	}

	header := sheet.AddRow()
	for _, col := range csvHeader {
		header.AddCell().SetString(headerLabel(col))
	}
	for _, l := range leads {
		row := sheet.AddRow()
		for _, val := range leadRow(l) {
			row.AddCell().SetString(val)
		}
	}
	return nil
}

func writeAnalyticsSheet(f *xlsx.File, leads []model.Lead) error {
	sheet, err := f.AddSheet("Analytics")
	if err != nil {
		return eris.Wrap(err, "export: add analytics sheet")
	}

	var validEmails, validPhones, validCompanies, enriched, personalized int
	byStatus := map[model.LeadStatus]int{}
	for _, l := range leads {
		byStatus[l.Status]++
		if l.EmailValid {
			validEmails++
		}
		if l.PhoneValid {
			validPhones++
		}
		if l.CompanyValid {
			validCompanies++
		}
		if l.LinkedInProfile != nil {
			enriched++
		}
		if l.Personalized != nil {
			personalized++
		}
	}

	addMetric := func(name string, value int) {
		row := sheet.AddRow()
		row.AddCell().SetString(name)
		row.AddCell().SetInt(value)
	}

	header := sheet.AddRow()
	header.AddCell().SetString("Metric")
	header.AddCell().SetString("Value")

	addMetric("Total Leads", len(leads))
	addMetric("Valid Emails", validEmails)
	addMetric("Valid Phones", validPhones)
	addMetric("Valid Companies", validCompanies)
	addMetric("Enriched", enriched)
	addMetric("Personalized", personalized)
	for status, count := range byStatus {
		addMetric("Status: "+titleCaser.String(string(status)), count)
	}
	return nil
}

func writeSummarySheet(f *xlsx.File, campaign model.Campaign, leads []model.Lead) error {
	sheet, err := f.AddSheet("Summary")
	if err != nil {
		return eris.Wrap(err, "export: add summary sheet")
	}

	addRow := func(name, value string) {
		row := sheet.AddRow()
		row.AddCell().SetString(name)
		row.AddCell().SetString(value)
	}

	addRow("Campaign", campaign.Name)
	addRow("Business Type", campaign.BusinessType)
	addRow("Location", campaign.Location)
	addRow("Status", string(campaign.Status))
	addRow("Leads Exported", strconv.Itoa(len(leads)))
	addRow("Exported At", time.Now().UTC().Format(time.RFC3339))
	return nil
}
