package reference

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Data holds the reference sets used to validate extraction candidates.
// It is built once at startup and read-only for the lifetime of a run.
type Data struct {
	// Blacklist rejects candidates outright.
	Blacklist map[string]struct{}
	// Universe is the set of known ticker symbols (uppercase, separator
	// normalized to "/").
	Universe map[string]struct{}
	// CaseSensitive holds tickers that coincide with ordinary English
	// words or commonly lowercased slang; these are only accepted when
	// written in all caps in the source text.
	CaseSensitive map[string]struct{}
}

// Paths locates the reference inputs on disk.
type Paths struct {
	BlacklistDir string
	RegularWords string
	SlangWords   string
	TickersCSV   string
}

// Load builds the reference data from disk. Any missing input is an
// error; ingestion must not start with partial reference data.
func Load(p Paths) (*Data, error) {
	blacklist, err := LoadWordDir(p.BlacklistDir)
	if err != nil {
		return nil, fmt.Errorf("load blacklist: %w", err)
	}

	regular, err := LoadWordFile(p.RegularWords)
	if err != nil {
		return nil, fmt.Errorf("load regular words: %w", err)
	}
	slang, err := LoadWordFile(p.SlangWords)
	if err != nil {
		return nil, fmt.Errorf("load slang words: %w", err)
	}

	universe, err := LoadTickerCSV(p.TickersCSV)
	if err != nil {
		return nil, fmt.Errorf("load ticker universe: %w", err)
	}

	caseSensitive := make(map[string]struct{}, len(regular)+len(slang))
	for w := range regular {
		caseSensitive[w] = struct{}{}
	}
	for w := range slang {
		caseSensitive[w] = struct{}{}
	}

	return &Data{
		Blacklist:     blacklist,
		Universe:      universe,
		CaseSensitive: caseSensitive,
	}, nil
}

// LoadWordDir reads every .txt file in dir, one word per line, uppercased.
func LoadWordDir(dir string) (map[string]struct{}, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read dir %s: %w", dir, err)
	}

	words := make(map[string]struct{})
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".txt" {
			continue
		}
		fileWords, err := LoadWordFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		for w := range fileWords {
			words[w] = struct{}{}
		}
	}
	return words, nil
}

// LoadWordFile reads a word list, one word per line, uppercased. Blank
// lines are skipped.
func LoadWordFile(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list %s: %w", path, err)
	}
	defer f.Close()

	words := make(map[string]struct{})
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		w := strings.TrimSpace(scanner.Text())
		if w == "" {
			continue
		}
		words[strings.ToUpper(w)] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read word list %s: %w", path, err)
	}
	return words, nil
}

// LoadTickerCSV reads the one-column ticker universe CSV written by
// SaveTickerCSV, skipping the header row.
func LoadTickerCSV(path string) (map[string]struct{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open tickers csv %s: %w", path, err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if _, err := reader.Read(); err != nil { // header
		return nil, fmt.Errorf("read tickers csv %s: %w", path, err)
	}

	tickers := make(map[string]struct{})
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tickers csv %s: %w", path, err)
		}
		if len(row) == 0 {
			continue
		}
		sym := strings.ToUpper(strings.TrimSpace(row[0]))
		if sym == "" {
			continue
		}
		tickers[sym] = struct{}{}
	}
	if len(tickers) == 0 {
		return nil, fmt.Errorf("tickers csv %s is empty", path)
	}
	return tickers, nil
}

// SaveTickerCSV writes the ticker universe as a one-column CSV with a
// header row, creating the parent directory if needed.
func SaveTickerCSV(path string, tickers []string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create tickers dir: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create tickers csv %s: %w", path, err)
	}
	defer f.Close()

	writer := csv.NewWriter(f)
	if err := writer.Write([]string{"Ticker Symbol"}); err != nil {
		return fmt.Errorf("write tickers csv %s: %w", path, err)
	}
	for _, t := range tickers {
		if err := writer.Write([]string{t}); err != nil {
			return fmt.Errorf("write tickers csv %s: %w", path, err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush tickers csv %s: %w", path, err)
	}
	return nil
}
