package store

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

const (
	// SalesCSV and TicketsCSV are the snapshot file names under the examples directory.
	SalesCSV   = "sales.csv"
	TicketsCSV = "support_tickets.csv"

	salesMonths = 24
	ticketCount = 600

	salesSeed  = 42
	ticketSeed = 7
)

var (
	salesRegions  = []string{"Norte", "Centro", "Sur"}
	salesProducts = []string{"Alpha", "Beta", "Gamma"}

	salesHeader   = []string{"date", "region", "product", "sales", "cost"}
	ticketsHeader = []string{"created_at", "resolved_at", "priority", "resolution_hours"}
)

// Seed origins reported in SeedResult.
const (
	SeedSourceExisting  = "existing"
	SeedSourceCSV       = "csv"
	SeedSourceGenerated = "generated"
)

// SeedResult describes what Seed did for each table.
type SeedResult struct {
	SalesRows     int    `json:"sales_rows"`
	SalesSource   string `json:"sales_source"`
	TicketRows    int    `json:"ticket_rows"`
	TicketsSource string `json:"tickets_source"`
}

// Seed fills empty analytics tables. Each table is loaded from its CSV
// snapshot in examplesDir when present, otherwise generated deterministically
// relative to now and written back as a snapshot. Non-empty tables are left alone.
func (s *Store) Seed(ctx context.Context, examplesDir string, now time.Time) (*SeedResult, error) {
	result := &SeedResult{}

	n, err := s.driver.CountSales(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count sales")
	}
	if n > 0 {
		result.SalesRows, result.SalesSource = n, SeedSourceExisting
	} else {
		sales, source, err := ensureSales(filepath.Join(examplesDir, SalesCSV), now)
		if err != nil {
			return nil, err
		}
		if err := s.driver.InsertSales(ctx, sales); err != nil {
			return nil, errors.Wrap(err, "failed to insert sales")
		}
		result.SalesRows, result.SalesSource = len(sales), source
	}

	n, err = s.driver.CountTickets(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to count tickets")
	}
	if n > 0 {
		result.TicketRows, result.TicketsSource = n, SeedSourceExisting
	} else {
		tickets, source, err := ensureTickets(filepath.Join(examplesDir, TicketsCSV), now)
		if err != nil {
			return nil, err
		}
		if err := s.driver.InsertTickets(ctx, tickets); err != nil {
			return nil, errors.Wrap(err, "failed to insert tickets")
		}
		result.TicketRows, result.TicketsSource = len(tickets), source
	}

	slog.Info("analytics store seeded",
		slog.Int("sales_rows", result.SalesRows),
		slog.String("sales_source", result.SalesSource),
		slog.Int("ticket_rows", result.TicketRows),
		slog.String("tickets_source", result.TicketsSource))
	return result, nil
}

func ensureSales(path string, now time.Time) ([]*Sale, string, error) {
	records, err := readCSV(path, salesHeader)
	if err != nil {
		return nil, "", err
	}
	if records != nil {
		sales, err := parseSales(records)
		if err != nil {
			return nil, "", errors.Wrapf(err, "invalid sales snapshot %s", path)
		}
		return sales, SeedSourceCSV, nil
	}

	sales := GenerateSales(now)
	rows := make([][]string, len(sales))
	for i, s := range sales {
		rows[i] = []string{
			s.Date.Format(time.DateOnly), s.Region, s.Product,
			strconv.FormatInt(s.Sales, 10), strconv.FormatInt(s.Cost, 10),
		}
	}
	if err := writeCSV(path, salesHeader, rows); err != nil {
		return nil, "", err
	}
	return sales, SeedSourceGenerated, nil
}

func ensureTickets(path string, now time.Time) ([]*Ticket, string, error) {
	records, err := readCSV(path, ticketsHeader)
	if err != nil {
		return nil, "", err
	}
	if records != nil {
		tickets, err := parseTickets(records)
		if err != nil {
			return nil, "", errors.Wrapf(err, "invalid tickets snapshot %s", path)
		}
		return tickets, SeedSourceCSV, nil
	}

	tickets := GenerateTickets(now)
	rows := make([][]string, len(tickets))
	for i, t := range tickets {
		rows[i] = []string{
			t.CreatedAt.Format(time.DateTime), t.ResolvedAt.Format(time.DateTime), t.Priority,
			strconv.FormatFloat(t.ResolutionHours, 'f', -1, 64),
		}
	}
	if err := writeCSV(path, ticketsHeader, rows); err != nil {
		return nil, "", err
	}
	return tickets, SeedSourceGenerated, nil
}

// GenerateSales produces 24 monthly rows per region and product, ending at
// the month containing now. Figures depend only on the fixed seed.
func GenerateSales(now time.Time) []*Sale {
	rng := rand.New(rand.NewPCG(salesSeed, 0))
	end := firstOfMonth(now)

	sales := make([]*Sale, 0, salesMonths*len(salesRegions)*len(salesProducts))
	for m := salesMonths - 1; m >= 0; m-- {
		date := end.AddDate(0, -m, 0)
		for _, region := range salesRegions {
			for _, product := range salesProducts {
				amount := max(1000, int64(rng.NormFloat64()*1200+5000))
				cost := int64(float64(amount) * (0.45 + rng.Float64()*0.25))
				sales = append(sales, &Sale{Date: date, Region: region, Product: product, Sales: amount, Cost: cost})
			}
		}
	}
	return sales
}

// GenerateTickets produces 600 tickets created over the two years before now.
// Half are low priority, 35% medium and 15% high.
func GenerateTickets(now time.Time) []*Ticket {
	rng := rand.New(rand.NewPCG(ticketSeed, 0))
	start := firstOfMonth(now).AddDate(0, -salesMonths, 0)

	tickets := make([]*Ticket, ticketCount)
	for i := range tickets {
		created := start.AddDate(0, 0, rng.IntN(730))
		var priority string
		switch p := rng.Float64(); {
		case p < 0.5:
			priority = "low"
		case p < 0.85:
			priority = "medium"
		default:
			priority = "high"
		}
		hours := 2 + rng.IntN(118)
		tickets[i] = &Ticket{
			CreatedAt:       created,
			ResolvedAt:      created.Add(time.Duration(hours) * time.Hour),
			Priority:        priority,
			ResolutionHours: float64(hours),
		}
	}
	return tickets
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// readCSV returns the data records of path, or nil when the file does not exist.
func readCSV(path string, header []string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "failed to open %s", path)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read %s", path)
	}
	if len(records) == 0 {
		return nil, errors.Errorf("%s is empty", path)
	}
	if len(records[0]) < len(header) {
		return nil, errors.Errorf("%s: expected columns %v, got %v", path, header, records[0])
	}
	for i, col := range header {
		if records[0][i] != col {
			return nil, errors.Errorf("%s: expected columns %v, got %v", path, header, records[0])
		}
	}
	return records[1:], nil
}

func writeCSV(path string, header []string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", path)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to write %s", path)
	}
	if err := w.WriteAll(rows); err != nil {
		f.Close()
		return errors.Wrapf(err, "failed to write %s", path)
	}
	return f.Close()
}

func parseSales(records [][]string) ([]*Sale, error) {
	sales := make([]*Sale, 0, len(records))
	for i, r := range records {
		date, err := parseTime(r[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		amount, err := strconv.ParseFloat(r[3], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: sales: %w", i+1, err)
		}
		cost, err := strconv.ParseFloat(r[4], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: cost: %w", i+1, err)
		}
		sales = append(sales, &Sale{Date: date, Region: r[1], Product: r[2], Sales: int64(amount), Cost: int64(cost)})
	}
	return sales, nil
}

func parseTickets(records [][]string) ([]*Ticket, error) {
	tickets := make([]*Ticket, 0, len(records))
	for i, r := range records {
		created, err := parseTime(r[0])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		resolved, err := parseTime(r[1])
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+1, err)
		}
		hours, err := strconv.ParseFloat(r[3], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: resolution_hours: %w", i+1, err)
		}
		tickets = append(tickets, &Ticket{CreatedAt: created, ResolvedAt: resolved, Priority: r[2], ResolutionHours: hours})
	}
	return tickets, nil
}

var timeLayouts = []string{time.DateOnly, time.DateTime, time.RFC3339, "2006-01-02 15:04:05.999999999"}

func parseTime(s string) (time.Time, error) {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", s)
}
