package ingestion

import (
	"bufio"
	"bytes"
	"fmt"
	"os"

	"trendline-lab/internal/domain"
)

// ReadTicksFile loads ticks from a file holding either one JSON payload
// (object or array) or newline-delimited payloads. Blank lines are ignored.
func ReadTicksFile(path, defaultInstrument string) ([]domain.Tick, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	if ticks, err := DecodeTicks(data, defaultInstrument); err == nil {
		return ticks, nil
	}

	var ticks []domain.Tick
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		payload := bytes.TrimSpace(scanner.Bytes())
		if len(payload) == 0 {
			continue
		}
		decoded, err := DecodeTicks(payload, defaultInstrument)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		ticks = append(ticks, decoded...)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}

	return ticks, nil
}
