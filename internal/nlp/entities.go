package nlp

import "regexp"

// Entity patterns, applied in a fixed order so output ordering is
// stable. Spans are byte offsets into the original text.
var entityPatterns = []struct {
	label       string
	description string
	re          *regexp.Regexp
}{
	{"MONEY", "Monetary amount", regexp.MustCompile(`\$?\d+(?:\.\d{2})?`)},
	{"CURRENCY", "Currency code", regexp.MustCompile(`(?i)\b(?:USD|EUR|GBP|JPY|INR|CAD|AUD|BTC|ETH|MATIC)\b`)},
	{"EMAIL", "Email address", regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{"PHONE", "Phone number", regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)},
}

// ExtractEntities finds typed spans (amounts, currency codes, emails,
// phone numbers) in the text.
func (s *Service) ExtractEntities(text string) []Entity {
	var entities []Entity

	for _, p := range entityPatterns {
		for _, span := range p.re.FindAllStringIndex(text, -1) {
			entities = append(entities, Entity{
				Text:        text[span[0]:span[1]],
				Label:       p.label,
				Start:       span[0],
				End:         span[1],
				Description: p.description,
			})
		}
	}

	return entities
}
