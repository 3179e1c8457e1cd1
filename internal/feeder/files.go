package feeder

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/tidwall/gjson"
)

// readCSV treats the first row as the header.
func readCSV(path string) ([]Record, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read CSV: %w", err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("CSV file must have a header row and at least one data row")
	}

	header := rows[0]
	records := make([]Record, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if len(row) != len(header) {
			return nil, fmt.Errorf("row %d has %d fields, expected %d", i+2, len(row), len(header))
		}
		record := make(Record, len(header))
		for j, field := range header {
			record[field] = row[j]
		}
		records = append(records, record)
	}
	return records, nil
}

// readJSON expects an array of flat objects; nested values are kept as raw JSON.
func readJSON(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open JSON file: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("decode JSON: invalid document")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsArray() {
		return nil, fmt.Errorf("decode JSON: expected array of objects")
	}

	items := doc.Array()
	if len(items) == 0 {
		return nil, fmt.Errorf("JSON file contains empty array")
	}
	records := make([]Record, 0, len(items))
	for i, item := range items {
		if !item.IsObject() {
			return nil, fmt.Errorf("record %d is not an object", i)
		}
		record := make(Record)
		item.ForEach(func(key, value gjson.Result) bool {
			if value.IsObject() || value.IsArray() {
				record[key.String()] = value.Raw
			} else {
				record[key.String()] = value.String()
			}
			return true
		})
		if len(record) == 0 {
			return nil, fmt.Errorf("record %d is empty", i)
		}
		records = append(records, record)
	}
	return records, nil
}
