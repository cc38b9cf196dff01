package report

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/dharmasatrya/flightadvisor/internal/models"
)

func response(flights int) *models.PipelineResponse {
	ret := models.NewDate(2099, time.September, 6)
	link := "https://www.google.com/flights?dep_iata=GRU&ar_iata=SDU&dep_date=2099-08-30&ret_date=2099-09-06"
	layover := "PT2H15M"
	name := "LATAM AIRLINES BRASIL"

	resp := &models.PipelineResponse{
		Metadata: models.Metadata{
			SearchID:    "3f1c",
			Timestamp:   time.Date(2099, time.June, 1, 10, 0, 0, 0, time.UTC),
			Source:      "amadeus",
			ResultCount: flights,
		},
		SearchParameters: models.SearchRequest{
			Origin:        "GRU",
			Destination:   "SDU",
			DepartureDate: models.NewDate(2099, time.August, 30),
			ReturnDate:    &ret,
			Passengers:    1,
			TravelClass:   models.ClassEconomy,
		},
		Analysis: models.AnalyzerResponse{
			Summary: models.Summary{Message: "Two direct options → both on LATAM"},
			Recommendations: []models.Recommendation{
				{Recommendation: "Cheapest", Details: "Morning departure", FlightIndex: 0},
			},
			Insights: models.Insights{General: "Book early for São Paulo routes."},
		},
	}
	for i := 0; i < flights; i++ {
		resp.Flights = append(resp.Flights, models.Itinerary{
			ID:            "x",
			Price:         decimal.NewFromFloat(1200.5 + float64(i)),
			Currency:      "BRL",
			Direction:     models.DirectionOutbound,
			TotalDuration: "PT3H20M",
			StopCount:     1,
			BookingLink:   &link,
			Segments: []models.Segment{
				{
					Departure:    models.Endpoint{Airport: "GRU", At: "2099-08-30T08:00:00"},
					Arrival:      models.Endpoint{Airport: "CNF", At: "2099-08-30T09:05:00"},
					AirlineCode:  "LA",
					AirlineName:  &name,
					FlightNumber: "LA3900",
					Duration:     "PT1H5M",
				},
				{
					Departure:       models.Endpoint{Airport: "CNF", At: "2099-08-30T11:20:00"},
					Arrival:         models.Endpoint{Airport: "SDU", At: "2099-08-30T11:20:00"},
					AirlineCode:     "LA",
					FlightNumber:    "LA3901",
					Duration:        "PT1H",
					LayoverDuration: &layover,
				},
			},
		})
	}
	return resp
}

func TestBytesProducesPDF(t *testing.T) {
	for _, n := range []int{0, 2, 25} {
		data, err := Bytes(response(n))
		if err != nil {
			t.Fatalf("render %d flights: %v", n, err)
		}
		if !bytes.HasPrefix(data, []byte("%PDF-")) || !bytes.Contains(data, []byte("%%EOF")) {
			t.Fatalf("output for %d flights is not a PDF", n)
		}
	}
}

func TestRenderRejectsNil(t *testing.T) {
	if err := Render(&bytes.Buffer{}, nil); err == nil {
		t.Fatalf("expected error")
	}
}

func TestWriteFile(t *testing.T) {
	resp := response(1)
	path := filepath.Join(t.TempDir(), "out", FileName(resp))

	if err := WriteFile(path, resp); err != nil {
		t.Fatalf("write: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		t.Fatalf("expected non-empty file at %s: %v", path, err)
	}
	if filepath.Base(path) != "flights_GRU_SDU_2099-08-30.pdf" {
		t.Fatalf("unexpected file name %s", filepath.Base(path))
	}
}

func TestReadableDuration(t *testing.T) {
	if got := readableDuration("PT2H5M"); got != "2h 05m" {
		t.Fatalf("unexpected %q", got)
	}
	if got := readableDuration("bogus"); got != "bogus" {
		t.Fatalf("unparseable durations should pass through, got %q", got)
	}
}
