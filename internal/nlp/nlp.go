// Package nlp provides lightweight text analysis for the transaction
// and chat endpoints: intent detection, entity extraction, sentiment,
// categorization, summarization, and keyword extraction. All analysis
// is lexicon and pattern based; there is no model to load.
package nlp

import (
	"log/slog"
	"sort"
	"strings"
	"time"
)

// IntentResult is the outcome of intent detection over a chat message.
type IntentResult struct {
	Intent     string   `json:"intent"`
	Confidence float64  `json:"confidence"`
	Entities   []Entity `json:"entities"`
}

// Entity is a span of text recognized as a typed value.
type Entity struct {
	Text        string `json:"text"`
	Label       string `json:"label"`
	Start       int    `json:"start"`
	End         int    `json:"end"`
	Description string `json:"description,omitempty"`
}

// Categorization is the outcome of transaction categorization.
type Categorization struct {
	Category   string   `json:"category"`
	Confidence float64  `json:"confidence"`
	Tags       []string `json:"tags"`
}

// TransactionAnalysis is the combined categorization, insight, and
// recommendation output for one transaction description.
type TransactionAnalysis struct {
	Category        string   `json:"category"`
	Confidence      float64  `json:"confidence"`
	Tags            []string `json:"tags"`
	Insights        []string `json:"insights"`
	Recommendations []string `json:"recommendations"`
}

// Service runs the analyses. Stateless apart from its logger; safe for
// concurrent use.
type Service struct {
	logger *slog.Logger

	// now is swappable for the time-based insight rules in tests.
	now func() time.Time
}

func NewService(logger *slog.Logger) *Service {
	return &Service{
		logger: logger.With("component", "nlp"),
		now:    time.Now,
	}
}

// intentKeywords maps each intent to its trigger words. Slice order is
// the tie-break order when two intents score equally.
var intentKeywords = []struct {
	intent   string
	keywords []string
}{
	{"send_money", []string{"send", "transfer", "pay", "give"}},
	{"receive_money", []string{"receive", "get", "collect", "earn"}},
	{"check_balance", []string{"balance", "amount", "money", "funds"}},
	{"transaction_history", []string{"history", "transactions", "past", "previous"}},
	{"help", []string{"help", "support", "assist", "guide"}},
	{"security", []string{"security", "safe", "secure", "protect"}},
	{"currency", []string{"currency", "exchange", "convert", "rate"}},
}

// DetectIntent scores each known intent by keyword hits and returns the
// best one. Text with no keyword hits maps to the "general" intent.
func (s *Service) DetectIntent(text string) *IntentResult {
	lower := strings.ToLower(text)
	words := strings.Fields(lower)

	bestIntent := "general"
	bestScore := 0
	for _, group := range intentKeywords {
		score := 0
		for _, kw := range group.keywords {
			if strings.Contains(lower, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestIntent = group.intent
		}
	}

	confidence := 0.0
	if len(words) > 0 {
		confidence = float64(bestScore) / float64(len(words))
		if confidence > 1 {
			confidence = 1
		}
	}

	return &IntentResult{
		Intent:     bestIntent,
		Confidence: confidence,
		Entities:   s.ExtractEntities(text),
	}
}

// transactionCategories maps each spending category to its trigger
// words. Slice order is the tie-break order.
var transactionCategories = []struct {
	category string
	keywords []string
}{
	{"food_dining", []string{"restaurant", "food", "dining", "cafe", "coffee", "lunch", "dinner"}},
	{"transportation", []string{"taxi", "uber", "lyft", "bus", "train", "gas", "fuel", "parking"}},
	{"shopping", []string{"store", "shop", "mall", "amazon", "purchase", "buy", "retail"}},
	{"entertainment", []string{"movie", "cinema", "theater", "concert", "game", "entertainment"}},
	{"utilities", []string{"electric", "water", "gas", "internet", "phone", "utility", "bill"}},
	{"healthcare", []string{"doctor", "hospital", "pharmacy", "medical", "health", "clinic"}},
	{"education", []string{"school", "university", "course", "education", "tuition", "book"}},
	{"travel", []string{"hotel", "flight", "travel", "vacation", "trip", "booking"}},
	{"groceries", []string{"grocery", "supermarket", "food", "grocery store", "market"}},
}

// CategorizeTransaction assigns a spending category from the
// description and merchant text.
func (s *Service) CategorizeTransaction(description string, amount float64, merchant string) *Categorization {
	text := strings.ToLower(strings.TrimSpace(description + " " + merchant))
	words := strings.Fields(text)

	bestCategory := "other"
	bestScore := 0
	for _, group := range transactionCategories {
		score := 0
		for _, kw := range group.keywords {
			if strings.Contains(text, kw) {
				score++
			}
		}
		if score > bestScore {
			bestScore = score
			bestCategory = group.category
		}
	}

	confidence := 0.0
	if len(words) > 0 {
		confidence = float64(bestScore) / float64(len(words))
		if confidence > 1 {
			confidence = 1
		}
	}

	return &Categorization{
		Category:   bestCategory,
		Confidence: confidence,
		Tags:       generateTags(text, amount),
	}
}

func generateTags(text string, amount float64) []string {
	var tags []string

	if amount > 1000 {
		tags = append(tags, "high-value")
	} else if amount < 10 {
		tags = append(tags, "low-value")
	}

	if containsAny(text, "online", "internet", "web") {
		tags = append(tags, "online")
	}
	if containsAny(text, "recurring", "subscription", "monthly") {
		tags = append(tags, "recurring")
	}
	if containsAny(text, "refund", "return", "credit") {
		tags = append(tags, "refund")
	}
	if containsAny(text, "fee", "charge", "cost") {
		tags = append(tags, "fee")
	}

	return tags
}

func containsAny(text string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// AnalyzeTransaction runs the full categorization, insight, and
// recommendation pipeline for one transaction.
func (s *Service) AnalyzeTransaction(description string, amount float64, merchant string) *TransactionAnalysis {
	categorization := s.CategorizeTransaction(description, amount, merchant)
	sentiment := s.AnalyzeSentiment(description)

	return &TransactionAnalysis{
		Category:        categorization.Category,
		Confidence:      categorization.Confidence,
		Tags:            categorization.Tags,
		Insights:        s.insights(amount, categorization, sentiment),
		Recommendations: recommendations(amount, categorization),
	}
}

func (s *Service) insights(amount float64, c *Categorization, sentiment *Sentiment) []string {
	var insights []string

	if amount > 500 {
		insights = append(insights, "High-value transaction detected")
	}

	switch c.Category {
	case "food_dining":
		insights = append(insights, "Dining expense - consider budgeting for meals")
	case "transportation":
		insights = append(insights, "Transportation cost - track for tax deductions")
	case "entertainment":
		insights = append(insights, "Entertainment expense - monitor discretionary spending")
	}

	if sentiment.Sentiment == "negative" {
		insights = append(insights, "Transaction description suggests dissatisfaction")
	}

	hour := s.now().Hour()
	if hour < 6 || hour > 22 {
		insights = append(insights, "Late night transaction - unusual timing")
	}

	return insights
}

func recommendations(amount float64, c *Categorization) []string {
	var recs []string

	if c.Category == "food_dining" || c.Category == "entertainment" {
		recs = append(recs, "Consider setting a monthly budget for this category")
	}
	if amount > 100 {
		recs = append(recs, "Consider if this expense aligns with your financial goals")
	}
	for _, tag := range c.Tags {
		if tag == "online" {
			recs = append(recs, "Verify this is a legitimate online transaction")
			break
		}
	}

	return recs
}

// Summarize returns an extractive summary: the full text when short
// enough, otherwise the first sentence, truncated to maxLength.
func (s *Service) Summarize(text string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = 100
	}
	if len(text) <= maxLength {
		return text
	}

	first := firstSentence(text)
	if len(first) <= maxLength {
		return first
	}
	if maxLength <= 3 {
		return first[:maxLength]
	}
	return first[:maxLength-3] + "..."
}

func firstSentence(text string) string {
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' {
			return strings.TrimSpace(text[:i+1])
		}
	}
	return strings.TrimSpace(text)
}

// Keywords extracts up to maxKeywords distinct content words, longest
// first. Stop words and short tokens are dropped.
func (s *Service) Keywords(text string, maxKeywords int) []string {
	if maxKeywords <= 0 {
		maxKeywords = 10
	}

	seen := make(map[string]bool)
	var keywords []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,!?;:\"'()[]")
		if len(word) <= 2 || stopWords[word] || seen[word] {
			continue
		}
		seen[word] = true
		keywords = append(keywords, word)
	}

	sort.SliceStable(keywords, func(i, j int) bool {
		return len(keywords[i]) > len(keywords[j])
	})

	if len(keywords) > maxKeywords {
		keywords = keywords[:maxKeywords]
	}
	return keywords
}

var stopWords = map[string]bool{
	"the": true, "and": true, "for": true, "are": true, "but": true,
	"not": true, "you": true, "all": true, "can": true, "had": true,
	"her": true, "was": true, "one": true, "our": true, "out": true,
	"his": true, "has": true, "how": true, "man": true, "new": true,
	"now": true, "old": true, "see": true, "two": true, "way": true,
	"who": true, "did": true, "get": true, "its": true, "let": true,
	"she": true, "too": true, "use": true, "that": true, "with": true,
	"have": true, "this": true, "will": true, "your": true, "from": true,
	"they": true, "been": true, "were": true, "there": true, "their": true,
	"what": true, "about": true, "which": true, "when": true, "would": true,
}

// DetectLanguage guesses among English, Spanish, and French from
// common function words, defaulting to English.
func (s *Service) DetectLanguage(text string) string {
	english := []string{"the", "and", "or", "but", "in", "on", "at", "to", "for", "of", "with", "by"}
	spanish := []string{"el", "la", "de", "que", "y", "a", "en", "un", "es", "se", "no", "te", "lo", "le"}
	french := []string{"le", "la", "de", "et", "à", "un", "il", "être", "en", "avoir", "que", "pour"}

	words := make(map[string]bool)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		words[strings.Trim(w, ".,!?;:")] = true
	}

	score := func(list []string) int {
		n := 0
		for _, w := range list {
			if words[w] {
				n++
			}
		}
		return n
	}

	en, es, fr := score(english), score(spanish), score(french)
	switch {
	case en > es && en > fr:
		return "en"
	case es > fr:
		return "es"
	case fr > 0:
		return "fr"
	default:
		return "en"
	}
}
