package enrichment

// StaticAirports names the airports that are looked up most often.
var StaticAirports = map[string]string{
	"GRU": "São Paulo-Guarulhos International Airport",
	"SDU": "Santos Dumont Airport",
	"BSB": "Brasília International Airport",
	"CNF": "Confins International Airport",
	"GIG": "Rio de Janeiro-Galeão International Airport",
	"CGH": "São Paulo-Congonhas Airport",
	"VCP": "Viracopos International Airport",
	"POA": "Porto Alegre-Salgado Filho International Airport",
	"SSA": "Salvador International Airport",
	"REC": "Recife-Guararapes International Airport",
	"FOR": "Fortaleza International Airport",
	"CWB": "Curitiba-Afonso Pena International Airport",
	"EZE": "Buenos Aires-Ezeiza International Airport",
	"SCL": "Santiago International Airport",
	"LIM": "Lima-Jorge Chávez International Airport",
	"BOG": "Bogotá-El Dorado International Airport",
	"PTY": "Panama City-Tocumen International Airport",
	"MIA": "Miami International Airport",
	"JFK": "New York-John F. Kennedy International Airport",
	"LAX": "Los Angeles International Airport",
	"LIS": "Lisbon Humberto Delgado Airport",
	"MAD": "Madrid-Barajas Airport",
	"CDG": "Paris-Charles de Gaulle Airport",
	"LHR": "London Heathrow Airport",
}
