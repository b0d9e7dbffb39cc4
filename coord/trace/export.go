package trace

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ExportVersion is the current trace file version.
const ExportVersion = 1

// ExportHeader captures metadata written next to a delivery CSV.
type ExportHeader struct {
	Version     int    `yaml:"trace_version"`
	Coordinator string `yaml:"coordinator"`
	SharingMode string `yaml:"sharing_mode"`
	PoolSize    int    `yaml:"pool_size"`
	ShareInit   bool   `yaml:"share_init"`
	Seed        int64  `yaml:"seed"`
	Points      int    `yaml:"points"`
	Padding     int    `yaml:"padding_points"`
	Rounds      int    `yaml:"rounds"`
}

// Exported combines a header and its deliveries.
type Exported struct {
	Header     ExportHeader
	Deliveries []DeliveryRecord
}

var deliveryColumns = []string{"round", "consumer", "generator", "point", "token", "value"}

// Export writes header (YAML) and the deliveries of rt (CSV) to separate
// files. Point, padding and round counts of header are filled from rt.
func Export(header ExportHeader, rt *RoundTrace, headerPath, dataPath string) error {
	s := Summarize(rt)
	header.Version = ExportVersion
	header.Points = s.TotalPoints
	header.Padding = s.PaddingPoints
	header.Rounds = s.Rounds

	headerData, err := yaml.Marshal(&header)
	if err != nil {
		return fmt.Errorf("marshaling trace header: %w", err)
	}
	if err := os.WriteFile(headerPath, headerData, 0644); err != nil {
		return fmt.Errorf("writing trace header: %w", err)
	}

	file, err := os.Create(dataPath)
	if err != nil {
		return fmt.Errorf("creating trace data file: %w", err)
	}
	defer func() { _ = file.Close() }()

	writer := csv.NewWriter(file)
	if err := writer.Write(deliveryColumns); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	var deliveries []DeliveryRecord
	if rt != nil {
		deliveries = rt.Deliveries
	}
	for i, d := range deliveries {
		row := []string{
			strconv.Itoa(d.Round),
			strconv.Itoa(d.Consumer),
			strconv.Itoa(d.Generator),
			strconv.Itoa(d.Point),
			d.Token,
			strconv.FormatFloat(d.Value, 'g', -1, 64),
		}
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", i, err)
		}
	}
	writer.Flush()
	return writer.Error()
}

// Load reads a trace written by Export.
func Load(headerPath, dataPath string) (*Exported, error) {
	headerData, err := os.ReadFile(headerPath)
	if err != nil {
		return nil, fmt.Errorf("reading trace header: %w", err)
	}
	var header ExportHeader
	if err := yaml.Unmarshal(headerData, &header); err != nil {
		return nil, fmt.Errorf("parsing trace header: %w", err)
	}
	if header.Version != ExportVersion {
		return nil, fmt.Errorf("unsupported trace version %d", header.Version)
	}

	file, err := os.Open(dataPath)
	if err != nil {
		return nil, fmt.Errorf("opening trace data: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = len(deliveryColumns)
	if _, err := reader.Read(); err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	var deliveries []DeliveryRecord
	for line := 2; ; line++ {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV row: %w", err)
		}
		d, err := parseDelivery(row)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		deliveries = append(deliveries, d)
	}
	return &Exported{Header: header, Deliveries: deliveries}, nil
}

func parseDelivery(row []string) (DeliveryRecord, error) {
	var ints [4]int
	for i := range ints {
		v, err := strconv.Atoi(row[i])
		if err != nil {
			return DeliveryRecord{}, fmt.Errorf("column %s: %w", deliveryColumns[i], err)
		}
		ints[i] = v
	}
	value, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return DeliveryRecord{}, fmt.Errorf("column value: %w", err)
	}
	return DeliveryRecord{
		Round: ints[0], Consumer: ints[1], Generator: ints[2], Point: ints[3],
		Token: row[4], Value: value,
	}, nil
}
