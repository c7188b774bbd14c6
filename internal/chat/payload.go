package chat

// Reasoning はプロバイダーへの推論強度ヒント。
type Reasoning struct {
	Effort string `json:"effort"`
}

// Payload はOpenAI互換のchat/completionsリクエストボディ。
type Payload struct {
	Model       string     `json:"model"`
	Stream      bool       `json:"stream"`
	Temperature float64    `json:"temperature"`
	TopP        float64    `json:"top_p"`
	MaxTokens   int        `json:"max_tokens"`
	Reasoning   *Reasoning `json:"reasoning,omitempty"`
	Messages    []Message  `json:"messages"`
}

// BuildPayload はシステムメッセージを先頭に付けたプロバイダーペイロードを組み立てる。
func BuildPayload(res Resolution, upstreamModel, systemPrompt string, msgs []Message) Payload {
	messages := make([]Message, 0, len(msgs)+1)
	messages = append(messages, Message{Role: "system", Content: systemPrompt})
	messages = append(messages, msgs...)

	p := Payload{
		Model:       upstreamModel,
		Stream:      true,
		Temperature: res.Temperature,
		TopP:        res.TopP,
		MaxTokens:   res.MaxTokens,
		Messages:    messages,
	}
	if res.Reasoning {
		p.Reasoning = &Reasoning{Effort: "medium"}
	}
	return p
}
