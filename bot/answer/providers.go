package answer

import (
	"fmt"

	coreconfig "github.com/m3rciful/assistbot/core/config"
)

// FromConfig builds providers in configured order.
func FromConfig(cfgs []coreconfig.ProviderConfig) ([]Provider, error) {
	out := make([]Provider, 0, len(cfgs))
	for _, pc := range cfgs {
		switch pc.Kind {
		case coreconfig.ProviderOpenAI:
			out = append(out, NewOpenAI(OpenAIOptions{
				Name:      pc.Name,
				Endpoint:  pc.Endpoint,
				Model:     pc.Model,
				APIKey:    pc.APIKey,
				MaxTokens: pc.MaxTokens,
				Timeout:   pc.Timeout(),
			}))
		case coreconfig.ProviderOllama:
			p, err := NewOllama(OllamaOptions{
				Name:      pc.Name,
				Endpoint:  pc.Endpoint,
				Model:     pc.Model,
				MaxTokens: pc.MaxTokens,
				Timeout:   pc.Timeout(),
			})
			if err != nil {
				return nil, err
			}
			out = append(out, p)
		default:
			return nil, fmt.Errorf("answer: unknown provider kind %q", pc.Kind)
		}
	}
	return out, nil
}
