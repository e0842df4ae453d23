// Package evaluate judges decode outcomes against ground truth.
package evaluate

import "github.com/signalnine/qrscale/internal/decoder"

// Matches reports whether o decoded exactly the expected payload. There is
// no partial credit and an outcome that found nothing never matches.
func Matches(o decoder.Outcome, groundTruth string) bool {
	return o.Found && o.Payload == groundTruth
}

// Select reduces repeated attempts on the same image to one outcome: the
// most common payload among attempts that found something, ties going to
// the payload seen first. hits counts the attempts that found a payload.
func Select(outcomes []decoder.Outcome) (best decoder.Outcome, hits int) {
	counts := make(map[string]int)
	var order []string
	for _, o := range outcomes {
		if !o.Found {
			continue
		}
		hits++
		if counts[o.Payload] == 0 {
			order = append(order, o.Payload)
		}
		counts[o.Payload]++
	}
	if hits == 0 {
		return decoder.NotFound(), 0
	}
	top := order[0]
	for _, p := range order[1:] {
		if counts[p] > counts[top] {
			top = p
		}
	}
	return decoder.Found(top), hits
}
