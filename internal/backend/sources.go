package backend

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/krishimitr/assistant/internal/observability"
	"github.com/krishimitr/assistant/internal/storage"
)

// Provenance labels of the generated rows.
const (
	SourceWeather = "IMD Weather Portal"
	SourceMarket  = "Agmarknet Portal"
	SourcePolicy  = "Government Policy Portal"
)

const pmKisanText = "The PM-KISAN scheme provides eligible farmers with an income support of " +
	"Rs. 6,000 per year in three equal installments. Verification is done via Aadhaar."

// RawSources names the raw data files of one ETL run. Empty paths are skipped.
type RawSources struct {
	Weather string // IMD weather CSV: Date, City, Temperature, Humidity, Rainfall_mm
	Market  string // Agmarknet JSON array
}

// BuildKnowledgeBase turns the raw files into knowledge base rows: weather
// rows first, then market prices, then the policy rows. A missing file is
// logged and skipped; a malformed one fails the run.
func BuildKnowledgeBase(src RawSources, logger *observability.Logger) ([]storage.Record, error) {
	if logger == nil {
		logger = observability.Nop()
	}
	log := logger.WithOperation("etl")

	var records []storage.Record
	steps := []struct {
		name, path string
		parse      func(io.Reader) ([]storage.Record, error)
	}{
		{"weather", src.Weather, WeatherRecords},
		{"market", src.Market, MarketRecords},
	}
	for _, step := range steps {
		if step.path == "" {
			continue
		}
		f, err := os.Open(step.path)
		if errors.Is(err, fs.ErrNotExist) {
			log.Warn().Str("source", step.name).Str("path", step.path).Msg("Raw data file not found")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("open %s data: %w", step.name, err)
		}
		recs, err := step.parse(f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("%s data %s: %w", step.name, step.path, err)
		}
		log.Info().Str("source", step.name).Int("records", len(recs)).Msg("Raw data converted")
		records = append(records, recs...)
	}

	return append(records, PolicyRecords()...), nil
}

// WeatherRecords converts IMD forecast rows into one sentence per row.
func WeatherRecords(r io.Reader) ([]storage.Record, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := headerIndex(header)
	required := []string{"date", "city", "temperature", "humidity", "rainfall_mm"}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("csv header missing %q column", name)
		}
	}

	var records []storage.Record
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return records, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", line, err)
		}
		get := func(name string) string { return strings.TrimSpace(row[cols[name]]) }

		text := fmt.Sprintf("On %s, the weather in %s is expected to have a temperature of %s°C, humidity of %s%%, and rainfall of %smm.",
			get("date"), get("city"), get("temperature"), get("humidity"), get("rainfall_mm"))
		records = append(records, storage.Record{Content: text, Source: SourceWeather})
	}
}

type marketPrice struct {
	Commodity       string      `json:"commodity"`
	Market          string      `json:"market"`
	Date            string      `json:"date"`
	PricePerQuintal json.Number `json:"price_per_quintal"`
}

// MarketRecords converts an Agmarknet JSON array into price sentences.
func MarketRecords(r io.Reader) ([]storage.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var items []marketPrice
	if err := dec.Decode(&items); err != nil {
		return nil, fmt.Errorf("decode market prices: %w", err)
	}

	records := make([]storage.Record, 0, len(items))
	for i, it := range items {
		if it.Commodity == "" || it.Market == "" || it.PricePerQuintal == "" {
			return nil, fmt.Errorf("market item %d: commodity, market and price_per_quintal are required", i)
		}
		text := fmt.Sprintf("The market price for %s in %s on %s is Rs. %s per quintal.",
			it.Commodity, it.Market, it.Date, it.PricePerQuintal)
		records = append(records, storage.Record{Content: text, Source: SourceMarket})
	}
	return records, nil
}

// PolicyRecords returns the built-in scheme summaries.
func PolicyRecords() []storage.Record {
	return []storage.Record{{Content: pmKisanText, Source: SourcePolicy}}
}

// WriteCSV writes records in the layout ParseCSV reads back.
func WriteCSV(w io.Writer, records []storage.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"source", "content", "content_hi", "query_en"}); err != nil {
		return err
	}
	for _, rec := range records {
		if err := cw.Write([]string{rec.Source, rec.Content, rec.ContentHI, rec.Query}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func headerIndex(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))] = i
	}
	return cols
}
