package nlp

import (
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	s := NewService(slog.New(slog.NewTextHandler(io.Discard, nil)))
	// Pin to midday so the late-night insight rule stays off.
	s.now = func() time.Time { return time.Date(2026, 3, 2, 12, 0, 0, 0, time.UTC) }
	return s
}

func TestDetectIntent(t *testing.T) {
	s := newTestService(t)

	tests := []struct {
		text string
		want string
	}{
		{"I want to send money to my friend", "send_money"},
		{"please transfer 50 dollars and pay the bill", "send_money"},
		{"what is my balance", "check_balance"},
		{"show me my transaction history", "transaction_history"},
		{"I need help with my account", "help"},
		{"is my account secure and safe", "security"},
		{"what is the exchange rate today", "currency"},
		{"hello there", "general"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			got := s.DetectIntent(tt.text)
			if got.Intent != tt.want {
				t.Errorf("%q: expected intent %s, got %s", tt.text, tt.want, got.Intent)
			}
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Errorf("confidence out of range: %f", got.Confidence)
			}
		})
	}

	t.Run("GeneralHasZeroConfidence", func(t *testing.T) {
		got := s.DetectIntent("xylophone weather")
		if got.Intent != "general" || got.Confidence != 0 {
			t.Errorf("expected general/0, got %s/%f", got.Intent, got.Confidence)
		}
	})
}

func TestExtractEntities(t *testing.T) {
	s := newTestService(t)

	text := "Send $150.00 USD to alice@example.com or call 555-123-4567"
	entities := s.ExtractEntities(text)

	byLabel := make(map[string][]Entity)
	for _, e := range entities {
		byLabel[e.Label] = append(byLabel[e.Label], e)
	}

	t.Run("Money", func(t *testing.T) {
		if len(byLabel["MONEY"]) == 0 {
			t.Fatal("expected a MONEY entity")
		}
		if byLabel["MONEY"][0].Text != "$150.00" {
			t.Errorf("unexpected money text: %s", byLabel["MONEY"][0].Text)
		}
	})

	t.Run("Currency", func(t *testing.T) {
		if len(byLabel["CURRENCY"]) != 1 || byLabel["CURRENCY"][0].Text != "USD" {
			t.Errorf("unexpected currency entities: %v", byLabel["CURRENCY"])
		}
	})

	t.Run("Email", func(t *testing.T) {
		if len(byLabel["EMAIL"]) != 1 || byLabel["EMAIL"][0].Text != "alice@example.com" {
			t.Errorf("unexpected email entities: %v", byLabel["EMAIL"])
		}
	})

	t.Run("Phone", func(t *testing.T) {
		if len(byLabel["PHONE"]) != 1 || byLabel["PHONE"][0].Text != "555-123-4567" {
			t.Errorf("unexpected phone entities: %v", byLabel["PHONE"])
		}
	})

	t.Run("SpansMatchSource", func(t *testing.T) {
		for _, e := range entities {
			if text[e.Start:e.End] != e.Text {
				t.Errorf("span mismatch for %s: %q vs %q", e.Label, text[e.Start:e.End], e.Text)
			}
		}
	})

	t.Run("Empty", func(t *testing.T) {
		if got := s.ExtractEntities("nothing to see here"); len(got) != 0 {
			t.Errorf("expected no entities, got %v", got)
		}
	})
}

func TestAnalyzeSentiment(t *testing.T) {
	s := newTestService(t)

	tests := []struct {
		name string
		text string
		want string
	}{
		{"Positive", "this service is great, fast and reliable", "positive"},
		{"Negative", "terrible experience, my transfer failed", "negative"},
		{"Neutral", "I paid the invoice on Tuesday", "neutral"},
		{"Negated", "this is not good at all", "negative"},
		{"Empty", "", "neutral"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.AnalyzeSentiment(tt.text)
			if got.Sentiment != tt.want {
				t.Errorf("%q: expected %s, got %s (polarity %f)", tt.text, tt.want, got.Sentiment, got.Scores.Polarity)
			}
			if got.Confidence < 0 || got.Confidence > 1 {
				t.Errorf("confidence out of range: %f", got.Confidence)
			}
		})
	}
}

func TestCategorizeTransaction(t *testing.T) {
	s := newTestService(t)

	tests := []struct {
		name        string
		description string
		merchant    string
		want        string
	}{
		{"Dining", "dinner at the cafe", "", "food_dining"},
		{"Transport", "uber ride downtown", "", "transportation"},
		{"MerchantCounts", "weekly order", "amazon", "shopping"},
		{"Travel", "flight and hotel booking", "", "travel"},
		{"Unknown", "zzzz", "", "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.CategorizeTransaction(tt.description, 50, tt.merchant)
			if got.Category != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got.Category)
			}
		})
	}

	t.Run("Tags", func(t *testing.T) {
		got := s.CategorizeTransaction("monthly online subscription fee", 1500, "")
		wantTags := []string{"high-value", "online", "recurring", "fee"}
		if strings.Join(got.Tags, ",") != strings.Join(wantTags, ",") {
			t.Errorf("expected tags %v, got %v", wantTags, got.Tags)
		}
	})

	t.Run("LowValueTag", func(t *testing.T) {
		got := s.CategorizeTransaction("coffee", 4.5, "")
		if len(got.Tags) != 1 || got.Tags[0] != "low-value" {
			t.Errorf("expected low-value tag, got %v", got.Tags)
		}
	})
}

func TestAnalyzeTransaction(t *testing.T) {
	s := newTestService(t)

	got := s.AnalyzeTransaction("dinner at a nice restaurant", 600, "")

	if got.Category != "food_dining" {
		t.Errorf("expected food_dining, got %s", got.Category)
	}

	wantInsights := []string{
		"High-value transaction detected",
		"Dining expense - consider budgeting for meals",
	}
	if strings.Join(got.Insights, "|") != strings.Join(wantInsights, "|") {
		t.Errorf("expected insights %v, got %v", wantInsights, got.Insights)
	}

	wantRecs := []string{
		"Consider setting a monthly budget for this category",
		"Consider if this expense aligns with your financial goals",
	}
	if strings.Join(got.Recommendations, "|") != strings.Join(wantRecs, "|") {
		t.Errorf("expected recommendations %v, got %v", wantRecs, got.Recommendations)
	}
}

func TestAnalyzeTransactionLateNight(t *testing.T) {
	s := newTestService(t)
	s.now = func() time.Time { return time.Date(2026, 3, 2, 3, 0, 0, 0, time.UTC) }

	got := s.AnalyzeTransaction("parking", 5, "")
	found := false
	for _, in := range got.Insights {
		if in == "Late night transaction - unusual timing" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected late-night insight, got %v", got.Insights)
	}
}

func TestSummarize(t *testing.T) {
	s := newTestService(t)

	t.Run("ShortPassesThrough", func(t *testing.T) {
		if got := s.Summarize("short text", 100); got != "short text" {
			t.Errorf("unexpected summary: %q", got)
		}
	})

	t.Run("FirstSentence", func(t *testing.T) {
		text := "This is the lead sentence. " + strings.Repeat("Filler follows. ", 20)
		if got := s.Summarize(text, 100); got != "This is the lead sentence." {
			t.Errorf("unexpected summary: %q", got)
		}
	})

	t.Run("TruncatesLongSentence", func(t *testing.T) {
		text := strings.Repeat("word ", 50)
		got := s.Summarize(text, 20)
		if len(got) > 20 {
			t.Errorf("summary exceeds max length: %d", len(got))
		}
		if !strings.HasSuffix(got, "...") {
			t.Errorf("expected ellipsis, got %q", got)
		}
	})
}

func TestKeywords(t *testing.T) {
	s := newTestService(t)

	got := s.Keywords("The quick brown fox jumps over the lazy dog", 5)
	if len(got) == 0 || len(got) > 5 {
		t.Fatalf("unexpected keyword count: %d", len(got))
	}
	for _, kw := range got {
		if kw == "the" {
			t.Error("stop word leaked into keywords")
		}
		if len(kw) <= 2 {
			t.Errorf("short token leaked: %q", kw)
		}
	}
}

func TestDetectLanguage(t *testing.T) {
	s := newTestService(t)

	tests := []struct {
		text string
		want string
	}{
		{"the cat is on the table and it is happy", "en"},
		{"el gato es un animal que vive en la casa", "es"},
		{"le chat est un animal et il vit pour manger", "fr"},
		{"", "en"},
	}

	for _, tt := range tests {
		if got := s.DetectLanguage(tt.text); got != tt.want {
			t.Errorf("%q: expected %s, got %s", tt.text, tt.want, got)
		}
	}
}
