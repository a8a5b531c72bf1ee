package llm

// Per-million-token USD prices, used when the provider does not report cost
// directly. Unknown models fall back to the flash rate.
type modelPrice struct {
	inputPerM  float64
	outputPerM float64
}

var prices = map[string]modelPrice{
	"gemini-2.5-pro":   {inputPerM: 1.25, outputPerM: 10.00},
	"gemini-2.5-flash": {inputPerM: 0.30, outputPerM: 2.50},
	"gemini-2.0-flash": {inputPerM: 0.10, outputPerM: 0.40},
}

var fallbackPrice = modelPrice{inputPerM: 0.30, outputPerM: 2.50}

// EstimateCost converts reported usage into USD. Token counts are clamped
// to non-negative before the conversion.
func EstimateCost(model string, usage Usage) float64 {
	p, ok := prices[model]
	if !ok {
		p = fallbackPrice
	}
	in := usage.InputTokens
	if in < 0 {
		in = 0
	}
	out := usage.OutputTokens
	if out < 0 {
		out = 0
	}
	return float64(in)/1e6*p.inputPerM + float64(out)/1e6*p.outputPerM
}
