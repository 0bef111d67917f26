package dialog

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/m3rciful/assistbot/bot/coins"
)

// Messages holds every user-facing text the router produces.
type Messages struct {
	PromptCrypto    string
	PromptAI        string
	PromptKnowledge string
	ChooseOption    string
	// NotFound is formatted with the user input and the hint symbols.
	NotFound    string
	RateLimited string
	// FormatError is formatted with the coin id.
	FormatError string
	Unavailable string
	HintSymbols []string
}

// DefaultMessages returns the stock English texts.
func DefaultMessages() Messages {
	return Messages{
		PromptCrypto:    "Send a crypto symbol or name, like BTC or ethereum.",
		PromptAI:        "Ask me anything and I'll respond with AI!",
		PromptKnowledge: "Ask me anything about general knowledge!",
		ChooseOption:    "Please choose an option from the menu first.",
		NotFound:        "Crypto data not available for %q. Try these: %s",
		RateLimited:     "The market data service is busy right now. Please try again in a minute.",
		FormatError:     "Found %s, but its market data could not be read. Please try again later.",
		Unavailable:     "Service is temporarily unavailable. Please try again later.",
		HintSymbols:     []string{"BTC", "ETH", "DOGE", "SOL"},
	}
}

func (m Messages) withDefaults() Messages {
	d := DefaultMessages()
	fill := func(dst *string, def string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = def
		}
	}
	fill(&m.PromptCrypto, d.PromptCrypto)
	fill(&m.PromptAI, d.PromptAI)
	fill(&m.PromptKnowledge, d.PromptKnowledge)
	fill(&m.ChooseOption, d.ChooseOption)
	fill(&m.NotFound, d.NotFound)
	fill(&m.RateLimited, d.RateLimited)
	fill(&m.FormatError, d.FormatError)
	fill(&m.Unavailable, d.Unavailable)
	if len(m.HintSymbols) == 0 {
		m.HintSymbols = d.HintSymbols
	}
	return m
}

var printer = message.NewPrinter(language.English)

// FormatQuote renders a quote with grouped thousands.
func FormatQuote(q coins.Quote) string {
	price := printer.Sprintf("%.2f", q.PriceUSD)
	if q.PriceUSD != 0 && q.PriceUSD < 1 && q.PriceUSD > -1 {
		price = printer.Sprintf("%.6f", q.PriceUSD)
	}
	arrow := "📈"
	if q.Change24hPercent < 0 {
		arrow = "📉"
	}
	var b strings.Builder
	b.WriteString(printer.Sprintf("💰 %s (%s)\n", q.Name, strings.ToUpper(q.Symbol)))
	b.WriteString("Price: $" + price + "\n")
	b.WriteString(printer.Sprintf("%s 24h change: %+.2f%%\n", arrow, q.Change24hPercent))
	b.WriteString(printer.Sprintf("Market cap: $%.0f", q.MarketCapUSD))
	return b.String()
}
