package engine

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// readProgress consumes ffmpeg -progress key=value output and reports encode
// fractions. ffmpeg emits out_time_us (microseconds of output written) in
// blocks terminated by a progress= line; progress=end marks completion.
func readProgress(r io.Reader, totalDuration float64, onProgress ProgressFunc) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		switch key {
		case "out_time_us", "out_time_ms":
			if onProgress == nil || totalDuration <= 0 {
				continue
			}
			if fraction, ok := fractionFromMicros(value, totalDuration); ok {
				onProgress(fraction)
			}
		case "progress":
			if onProgress != nil && strings.TrimSpace(value) == "end" {
				onProgress(1)
			}
		}
	}
}

// fractionFromMicros converts an out_time_us value into a fraction of the
// total duration, clamped to [0,1]. Despite the name, ffmpeg's out_time_ms
// key also carries microseconds.
func fractionFromMicros(value string, totalDuration float64) (float64, bool) {
	micros, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || micros < 0 {
		return 0, false
	}
	fraction := (float64(micros) / 1e6) / totalDuration
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	return fraction, true
}
