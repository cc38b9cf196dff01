package assembler

import (
	"net/url"
	"strings"

	"github.com/dharmasatrya/flightadvisor/internal/models"
	"github.com/dharmasatrya/flightadvisor/internal/ranking"
)

const DefaultFrontendHost = "www.google.com"

type Assembler struct {
	host string
}

// New returns an Assembler linking to host. host may be a bare host name or a
// full base URL; an empty value selects DefaultFrontendHost.
func New(host string) *Assembler {
	host = strings.TrimSpace(host)
	host = strings.TrimPrefix(host, "https://")
	host = strings.TrimPrefix(host, "http://")
	host = strings.TrimSuffix(host, "/")
	if host == "" {
		host = DefaultFrontendHost
	}
	return &Assembler{host: host}
}

// DeepLink builds the public search front-end URL for req. Parameters are
// emitted in a fixed order so links are comparable as strings.
func (a *Assembler) DeepLink(req models.SearchRequest) string {
	var b strings.Builder
	b.WriteString("https://")
	b.WriteString(a.host)
	b.WriteString("/flights?dep_iata=")
	b.WriteString(url.QueryEscape(req.Origin))
	b.WriteString("&ar_iata=")
	b.WriteString(url.QueryEscape(req.Destination))
	b.WriteString("&dep_date=")
	b.WriteString(url.QueryEscape(req.DepartureDate.String()))
	if req.ReturnDate != nil {
		b.WriteString("&ret_date=")
		b.WriteString(url.QueryEscape(req.ReturnDate.String()))
	}
	return b.String()
}

// Assemble composes the envelope. its is sorted cheapest first (stable) and
// each itinerary gets a deep link and a best-value score. The metadata
// result count is set from the final list; the rest of meta is kept.
func (a *Assembler) Assemble(meta models.Metadata, req models.SearchRequest, its []models.Itinerary, analysis models.AnalyzerResponse) *models.PipelineResponse {
	flights := ranking.CalculateScores(its)
	ranking.SortByPrice(flights)

	link := a.DeepLink(req)
	for i := range flights {
		l := link
		flights[i].BookingLink = &l
	}
	if flights == nil {
		flights = []models.Itinerary{}
	}
	if analysis.Recommendations == nil {
		analysis.Recommendations = []models.Recommendation{}
	}

	meta.ResultCount = len(flights)
	return &models.PipelineResponse{
		Metadata:         meta,
		SearchParameters: req,
		Flights:          flights,
		Analysis:         analysis,
	}
}
