package report

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/phpdave11/gofpdf"

	"github.com/dharmasatrya/flightadvisor/internal/isotime"
	"github.com/dharmasatrya/flightadvisor/internal/models"
	"github.com/dharmasatrya/flightadvisor/pkg/currency"
)

// MaxFlights caps how many itineraries are printed, cheapest first.
const MaxFlights = 10

type rgb struct{ r, g, b int }

var (
	primary = rgb{41, 128, 185}
	dark    = rgb{44, 62, 80}
	success = rgb{39, 174, 96}
	gray    = rgb{149, 165, 166}
	black   = rgb{0, 0, 0}
	white   = rgb{255, 255, 255}
)

type document struct {
	pdf *gofpdf.Fpdf
	tr  func(string) string
}

// Render writes resp as a PDF document to w.
func Render(w io.Writer, resp *models.PipelineResponse) error {
	if resp == nil {
		return fmt.Errorf("report: nil response")
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	d := &document{pdf: pdf, tr: pdf.UnicodeTranslatorFromDescriptor("")}

	req := resp.SearchParameters
	title := fmt.Sprintf("Flights %s -> %s", req.Origin, req.Destination)
	pdf.SetTitle(title, true)
	pdf.SetAuthor("flightadvisor", true)
	pdf.SetMargins(15, 30, 15)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AliasNbPages("")
	pdf.SetHeaderFunc(func() { d.header(title) })
	pdf.SetFooterFunc(d.footer)
	pdf.AddPage()

	d.searchSection(resp)
	d.analysisSection(resp.Analysis)
	d.flightsSection(resp.Flights)

	d.section("Terms & Conditions")
	d.font("", 8, gray)
	pdf.MultiCell(0, 4, "This is an automatically generated summary. Please verify all details with the airline. Flight times and prices are subject to change.", "", "L", false)

	return pdf.Output(w)
}

// Bytes renders resp into memory.
func Bytes(resp *models.PipelineResponse) ([]byte, error) {
	var buf bytes.Buffer
	if err := Render(&buf, resp); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteFile renders resp to path, creating parent directories.
func WriteFile(path string, resp *models.PipelineResponse) error {
	data, err := Bytes(resp)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// FileName is the default export name for resp.
func FileName(resp *models.PipelineResponse) string {
	req := resp.SearchParameters
	return fmt.Sprintf("flights_%s_%s_%s.pdf", req.Origin, req.Destination, req.DepartureDate.String())
}

func (d *document) header(title string) {
	pdf := d.pdf
	w, _ := pdf.GetPageSize()
	pdf.SetFillColor(primary.r, primary.g, primary.b)
	pdf.Rect(0, 0, w, 22, "F")
	pdf.SetXY(15, 7)
	d.font("B", 16, white)
	pdf.CellFormat(0, 10, d.tr(title), "", 1, "L", false, 0, "")
	pdf.SetY(30)
}

func (d *document) footer() {
	pdf := d.pdf
	pdf.SetY(-15)
	d.font("I", 8, gray)
	pdf.CellFormat(0, 10, fmt.Sprintf("Page %d/{nb}", pdf.PageNo()), "", 0, "C", false, 0, "")
}

func (d *document) font(style string, size float64, c rgb) {
	d.pdf.SetFont("Helvetica", style, size)
	d.pdf.SetTextColor(c.r, c.g, c.b)
}

func (d *document) section(title string) {
	d.pdf.Ln(6)
	d.font("B", 13, dark)
	d.pdf.CellFormat(0, 8, d.tr(title), "B", 1, "L", false, 0, "")
	d.pdf.Ln(2)
	d.font("", 10, black)
}

func (d *document) field(label, value string) {
	d.pdf.CellFormat(38, 6, d.tr(label), "", 0, "L", false, 0, "")
	d.pdf.CellFormat(0, 6, d.tr(value), "", 1, "L", false, 0, "")
}

func (d *document) searchSection(resp *models.PipelineResponse) {
	req := resp.SearchParameters
	d.section("Search")

	dates := req.DepartureDate.String()
	if req.ReturnDate != nil {
		dates += " / " + req.ReturnDate.String()
	}
	d.field("Route:", req.Origin+" -> "+req.Destination)
	d.field("Dates:", dates)
	d.field("Passengers:", fmt.Sprintf("%d, %s", req.Passengers, strings.ToLower(string(req.TravelClass))))
	d.field("Results:", fmt.Sprintf("%d", resp.Metadata.ResultCount))
	if !resp.Metadata.Timestamp.IsZero() {
		d.field("Searched at:", resp.Metadata.Timestamp.Format("2006-01-02 15:04 MST"))
	}
	if resp.Metadata.SearchID != "" {
		d.field("Search ID:", resp.Metadata.SearchID)
	}
}

func (d *document) analysisSection(a models.AnalyzerResponse) {
	d.section("Analysis")
	if a.Summary.Message != "" {
		d.pdf.MultiCell(0, 5, d.tr(a.Summary.Message), "", "L", false)
	}
	for i, rec := range a.Recommendations {
		d.pdf.Ln(2)
		d.font("B", 10, black)
		d.pdf.MultiCell(0, 5, d.tr(fmt.Sprintf("%d. %s (flight #%d)", i+1, rec.Recommendation, rec.FlightIndex+1)), "", "L", false)
		d.font("", 10, black)
		if rec.Details != "" {
			d.pdf.MultiCell(0, 5, d.tr(rec.Details), "", "L", false)
		}
	}
	if a.Insights.General != "" {
		d.pdf.Ln(2)
		d.font("I", 10, dark)
		d.pdf.MultiCell(0, 5, d.tr(a.Insights.General), "", "L", false)
		d.font("", 10, black)
	}
}

func (d *document) flightsSection(flights []models.Itinerary) {
	d.section("Cheapest flights")
	if len(flights) == 0 {
		d.pdf.CellFormat(0, 6, "No flights found.", "", 1, "L", false, 0, "")
		return
	}

	for i, it := range flights {
		if i == MaxFlights {
			break
		}
		d.font("B", 11, dark)
		heading := fmt.Sprintf("%d. %s (%s)", i+1, it.AirlineName(), it.Direction)
		d.pdf.CellFormat(120, 7, d.tr(heading), "", 0, "L", false, 0, "")
		d.font("B", 11, success)
		d.pdf.CellFormat(0, 7, d.tr(currency.Format(it.Price, it.Currency)), "", 1, "R", false, 0, "")

		d.font("", 9, black)
		for _, seg := range it.Segments {
			line := fmt.Sprintf("%s  %s %s -> %s %s  (%s)",
				seg.FlightNumber,
				seg.Departure.Airport, clock(seg.Departure.At),
				seg.Arrival.Airport, clock(seg.Arrival.At),
				readableDuration(seg.Duration),
			)
			if seg.LayoverDuration != nil {
				line += "  layover " + readableDuration(*seg.LayoverDuration)
			}
			d.pdf.CellFormat(0, 5, d.tr(line), "", 1, "L", false, 0, "")
		}
		d.pdf.CellFormat(0, 5, d.tr(fmt.Sprintf("Total %s, %s", readableDuration(it.TotalDuration), stops(it.StopCount))), "", 1, "L", false, 0, "")
		if it.BookingLink != nil {
			d.font("U", 9, primary)
			d.pdf.CellFormat(0, 5, "Search this flight", "", 1, "L", false, 0, *it.BookingLink)
		}
		d.pdf.Ln(3)
	}
}

func clock(at string) string {
	ts, err := isotime.ParseTimestamp(at)
	if err != nil {
		return at
	}
	return ts.Time.Format("02 Jan 15:04")
}

func readableDuration(iso string) string {
	dur, err := isotime.ParseDuration(iso)
	if err != nil {
		return iso
	}
	m := isotime.Minutes(dur)
	return fmt.Sprintf("%dh %02dm", m/60, m%60)
}

func stops(n int) string {
	switch n {
	case 0:
		return "non-stop"
	case 1:
		return "1 stop"
	default:
		return fmt.Sprintf("%d stops", n)
	}
}
