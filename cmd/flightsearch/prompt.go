package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

var errNoInput = errors.New("no input")

type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewScanner(in), out: out}
}

func (p *prompter) ask(question string) (string, error) {
	fmt.Fprint(p.out, question)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", errNoInput
	}
	return strings.TrimSpace(p.in.Text()), nil
}

// askUntil repeats question until parse accepts the answer. Empty answers
// are passed to parse so that optional fields can accept them.
func (p *prompter) askUntil(question string, parse func(string) error) error {
	for {
		answer, err := p.ask(question)
		if err != nil {
			return err
		}
		if err := parse(answer); err != nil {
			fmt.Fprintf(p.out, "  %v\n", err)
			continue
		}
		return nil
	}
}

// collect asks for every search parameter and returns them in the shape the
// validator accepts.
func (p *prompter) collect() (map[string]any, error) {
	raw := make(map[string]any)

	if err := p.askUntil("Origin airport (IATA, e.g. GRU): ", func(s string) error {
		if s == "" {
			return errors.New("origin is required")
		}
		raw["origin"] = s
		return nil
	}); err != nil {
		return nil, err
	}

	if err := p.askUntil("Destination airport (IATA, e.g. SDU): ", func(s string) error {
		if s == "" {
			return errors.New("destination is required")
		}
		raw["destination"] = s
		return nil
	}); err != nil {
		return nil, err
	}

	if err := p.askUntil("Departure date (DD-MM-YYYY): ", func(s string) error {
		d, err := parseDayFirst(s)
		if err != nil {
			return err
		}
		raw["departure_date"] = d
		return nil
	}); err != nil {
		return nil, err
	}

	if err := p.askUntil("Return date (DD-MM-YYYY, empty for one way): ", func(s string) error {
		if s == "" {
			return nil
		}
		d, err := parseDayFirst(s)
		if err != nil {
			return err
		}
		raw["return_date"] = d
		return nil
	}); err != nil {
		return nil, err
	}

	if err := p.askUntil("Passengers [1]: ", func(s string) error {
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.New("enter a whole number")
		}
		raw["passengers"] = n
		return nil
	}); err != nil {
		return nil, err
	}

	prefs := make(map[string]any)
	if err := p.askUntil("Budget (optional): ", func(s string) error {
		if s == "" {
			return nil
		}
		b, err := strconv.ParseFloat(strings.ReplaceAll(s, ",", "."), 64)
		if err != nil || math.IsInf(b, 0) || math.IsNaN(b) {
			return errors.New("enter a number")
		}
		prefs["budget"] = b
		return nil
	}); err != nil {
		return nil, err
	}

	if err := p.askUntil("Maximum stops (optional): ", func(s string) error {
		if s == "" {
			return nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.New("enter a whole number")
		}
		prefs["max_stops"] = n
		return nil
	}); err != nil {
		return nil, err
	}
	if len(prefs) > 0 {
		raw["preferences"] = prefs
	}

	return raw, nil
}

// parseDayFirst converts DD-MM-YYYY into the ISO form.
func parseDayFirst(s string) (string, error) {
	t, err := time.Parse("02-01-2006", s)
	if err != nil {
		return "", fmt.Errorf("%q is not a DD-MM-YYYY date", s)
	}
	return t.Format("2006-01-02"), nil
}
