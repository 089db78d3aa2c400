package app

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/hydronet/catchflow/pkg/rainfall"
	"github.com/hydronet/catchflow/pkg/timeseries"
)

// ReadTips loads a tip log from a CSV file. Each record is an RFC3339
// timestamp with an optional volume column; records without a volume
// get the configured bucket volume. A header row is skipped if the
// first field does not parse as a timestamp.
func ReadTips(path string, bucketVolume float64) ([]rainfall.Tip, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var tips []rainfall.Tip
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		line++

		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(record[0]))
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("%s line %d: bad timestamp %q", path, line, record[0])
		}

		vol := bucketVolume
		if len(record) > 1 && strings.TrimSpace(record[1]) != "" {
			vol, err = strconv.ParseFloat(strings.TrimSpace(record[1]), 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: bad volume %q", path, line, record[1])
			}
		}
		tips = append(tips, rainfall.Tip{Time: ts, Volume: vol})
	}
	return tips, nil
}

// ReadDaily loads a timestamped value series from a CSV file. Empty,
// "nan" or "na" value fields become missing samples so gaps survive
// ingestion.
func ReadDaily(path string) (timeseries.Series, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1

	var samples []timeseries.Sample
	line := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		line++

		if len(record) < 2 {
			return nil, fmt.Errorf("%s line %d: expected time,value", path, line)
		}
		ts, err := time.Parse(time.RFC3339, strings.TrimSpace(record[0]))
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, fmt.Errorf("%s line %d: bad timestamp %q", path, line, record[0])
		}

		field := strings.ToLower(strings.TrimSpace(record[1]))
		value := timeseries.Missing()
		if field != "" && field != "nan" && field != "na" {
			value, err = strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: bad value %q", path, line, record[1])
			}
		}
		samples = append(samples, timeseries.Sample{Time: ts, Value: value})
	}
	return timeseries.New(samples)
}
