package chat

import (
	"context"
	"strings"

	"github.com/6ixhq/creator/internal/model"
)

// PlanHeader はプラン解決で参照する信頼済みヘッダー。
const PlanHeader = "X-6ix-Plan"

// Mode はリクエストされた応答モード。
type Mode string

const (
	ModeAuto     Mode = "auto"
	ModeInstant  Mode = "instant"
	ModeThinking Mode = "thinking"
)

// ContentMode は応答内容の種類の指定。
type ContentMode string

const (
	ContentAuto  ContentMode = "auto"
	ContentText  ContentMode = "text"
	ContentCode  ContentMode = "code"
	ContentImage ContentMode = "image"
)

// Message はチャット履歴の1メッセージ。
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request はクライアントから受け取るチャットリクエスト。
type Request struct {
	Model            string    `json:"model"`
	Mode             string    `json:"mode"`
	ContentMode      string    `json:"contentMode"`
	AllowControlTags bool      `json:"allowControlTags"`
	Theme            string    `json:"theme"`
	Messages         []Message `json:"messages"`
	Plan             string    `json:"plan"`
}

// PlanVerifier は認証済みユーザーのプランを権威あるストアから取得する。
// 見つからない場合は空のPlanを返す。
type PlanVerifier interface {
	VerifyPlan(ctx context.Context, userID string) (model.Plan, error)
}

// NoPlanVerifier は常に空を返すPlanVerifier。課金連携が入るまでの既定実装。
type NoPlanVerifier struct{}

// VerifyPlan は常に空のPlanを返す。
func (NoPlanVerifier) VerifyPlan(context.Context, string) (model.Plan, error) {
	return "", nil
}

// ResolvePlan は優先順位（権威あるストア → 信頼済みヘッダー → ボディ → free）でプランを決める。
// 最初の空でないシグナルだけを採用する。その値が未知のプラン名ならfreeとし、下位のシグナルは見ない。
func ResolvePlan(verified model.Plan, header, body string) model.Plan {
	for _, signal := range []string{string(verified), header, body} {
		if strings.TrimSpace(signal) == "" {
			continue
		}
		if p, ok := model.ParsePlan(signal); ok {
			return p
		}
		return model.PlanFree
	}
	return model.PlanFree
}

// Resolution はプランに応じて確定した生成パラメーター。
type Resolution struct {
	Plan             model.Plan
	Entry            Entry
	RequestedModel   string // 差し替えた場合のみ、リクエストされたモデルID
	Mode             Mode
	ContentMode      ContentMode
	Temperature      float64
	TopP             float64
	MaxTokens        int
	Reasoning        bool
	AllowControlTags bool
	Theme            string
}

// Substituted はリクエストされたモデルを既定モデルに差し替えたかどうかを返す。
func (r Resolution) Substituted() bool {
	return r.RequestedModel != ""
}

// 生成パラメーター
const (
	temperatureDefault  = 0.4
	temperatureInstant  = 0.2
	temperatureThinking = 0.7

	maxTokensDefault  = 6000
	maxTokensInstant  = 8000
	maxTokensGenerous = 12000

	topP = 0.9
)

// Resolve はプランとリクエストからモデル、モード、生成パラメーターを決める。
func Resolve(plan model.Plan, req *Request) Resolution {
	res := Resolution{
		Plan:             plan,
		AllowControlTags: req.AllowControlTags,
		Theme:            parseTheme(req.Theme),
		TopP:             topP,
	}

	requested := strings.TrimSpace(req.Model)
	if e, ok := Lookup(requested); ok && e.Allows(plan) {
		res.Entry = e
	} else {
		res.Entry = DefaultFor(plan)
		res.RequestedModel = requested
	}

	res.Mode = parseMode(req.Mode)
	if res.Mode == ModeThinking && !plan.IsTop() {
		res.Mode = ModeAuto
	}
	res.ContentMode = parseContentMode(req.ContentMode)

	res.Temperature, res.MaxTokens = knobs(plan, res.Entry, res.Mode)
	res.Reasoning = (res.Mode == ModeThinking && plan.IsTop()) || res.Entry.Thinking

	return res
}

// knobs は(プラン, モデル, モード)から温度とトークン上限を決める。
func knobs(plan model.Plan, e Entry, mode Mode) (float64, int) {
	temperature, maxTokens := temperatureDefault, maxTokensDefault

	switch {
	case mode == ModeInstant || (mode == ModeAuto && e.Speed == SpeedInstant):
		temperature, maxTokens = temperatureInstant, maxTokensInstant
	case mode == ModeThinking || (mode == ModeAuto && e.Speed == SpeedThinking):
		temperature = temperatureThinking
	}

	if plan.IsTop() || e.ID == ModelMaxThinking {
		maxTokens = maxTokensGenerous
	}
	return temperature, maxTokens
}

// FilterMessages はクライアントのsystemメッセージと、内容が空のassistantメッセージを除く。
func FilterMessages(msgs []Message) []Message {
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		switch role {
		case "user":
		case "assistant":
			if strings.TrimSpace(m.Content) == "" {
				continue
			}
		default:
			continue
		}
		out = append(out, Message{Role: role, Content: m.Content})
	}
	return out
}

func parseMode(s string) Mode {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case ModeInstant, ModeThinking:
		return m
	default:
		return ModeAuto
	}
}

func parseContentMode(s string) ContentMode {
	switch c := ContentMode(strings.ToLower(strings.TrimSpace(s))); c {
	case ContentText, ContentCode, ContentImage:
		return c
	default:
		return ContentAuto
	}
}

func parseTheme(s string) string {
	if strings.EqualFold(strings.TrimSpace(s), "light") {
		return "light"
	}
	return "dark"
}
