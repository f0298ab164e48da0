package cost

// Rates holds OCR pricing in USD per image, keyed by vendor name.
type Rates map[string]float64

// Calculator computes recognition costs.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator. Vendors missing from rates fall back to
// DefaultRates.
func NewCalculator(rates Rates) *Calculator {
	merged := DefaultRates()
	for vendor, usd := range rates {
		if usd >= 0 {
			merged[vendor] = usd
		}
	}
	return &Calculator{rates: merged}
}

// PerImage returns the USD price of one image for vendor, or 0 if unknown.
func (c *Calculator) PerImage(vendor string) float64 {
	return c.rates[vendor]
}

// Recognition returns the cost of sending images pages to vendor. A
// non-positive page count is billed as one image.
func (c *Calculator) Recognition(vendor string, images int) float64 {
	if images <= 0 {
		images = 1
	}
	return c.rates[vendor] * float64(images)
}

// DefaultRates returns list prices for the supported vendors.
func DefaultRates() Rates {
	return Rates{
		"vision":    0.0015,
		"ocrspace":  0.0005,
		"tesseract": 0,
	}
}
