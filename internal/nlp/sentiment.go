package nlp

import (
	"math"
	"strings"
)

// Sentiment is the outcome of lexicon-based sentiment analysis.
type Sentiment struct {
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
	Scores     struct {
		Polarity     float64 `json:"polarity"`
		Subjectivity float64 `json:"subjectivity"`
	} `json:"scores"`
}

// polarityLexicon scores opinion words in [-1, 1].
var polarityLexicon = map[string]float64{
	"good": 0.7, "great": 0.8, "excellent": 1.0, "amazing": 0.9,
	"love": 0.8, "happy": 0.8, "best": 1.0, "wonderful": 1.0,
	"fantastic": 0.9, "nice": 0.6, "perfect": 1.0, "easy": 0.4,
	"fast": 0.3, "helpful": 0.6, "thanks": 0.4, "thank": 0.4,
	"pleased": 0.7, "smooth": 0.5, "reliable": 0.6, "secure": 0.5,

	"bad": -0.7, "terrible": -1.0, "awful": -1.0, "horrible": -1.0,
	"hate": -0.8, "worst": -1.0, "poor": -0.6, "slow": -0.3,
	"broken": -0.7, "useless": -0.8, "angry": -0.8, "disappointed": -0.7,
	"problem": -0.4, "issue": -0.3, "error": -0.4, "failed": -0.6,
	"fraud": -0.8, "scam": -0.9, "stolen": -0.8, "wrong": -0.5,
	"annoying": -0.6, "confusing": -0.4, "expensive": -0.3,
}

// negations flip the polarity of the following opinion word.
var negations = map[string]bool{
	"not": true, "no": true, "never": true, "isnt": true, "dont": true,
	"didnt": true, "cant": true, "wont": true, "wasnt": true,
}

// AnalyzeSentiment computes polarity and subjectivity over the lexicon.
// Polarity above 0.1 is positive, below -0.1 negative, otherwise
// neutral; confidence is the polarity magnitude.
func (s *Service) AnalyzeSentiment(text string) *Sentiment {
	words := strings.Fields(strings.ToLower(text))

	var sum float64
	var matched int
	negate := false
	for _, word := range words {
		word = strings.Trim(word, ".,!?;:\"'()")
		word = strings.ReplaceAll(word, "'", "")

		if negations[word] {
			negate = true
			continue
		}

		if score, ok := polarityLexicon[word]; ok {
			if negate {
				score = -score
			}
			sum += score
			matched++
		}
		negate = false
	}

	result := &Sentiment{Sentiment: "neutral"}
	if matched > 0 {
		result.Scores.Polarity = sum / float64(matched)
	}
	if len(words) > 0 {
		result.Scores.Subjectivity = float64(matched) / float64(len(words))
	}
	result.Confidence = math.Abs(result.Scores.Polarity)

	switch {
	case result.Scores.Polarity > 0.1:
		result.Sentiment = "positive"
	case result.Scores.Polarity < -0.1:
		result.Sentiment = "negative"
	}

	return result
}
