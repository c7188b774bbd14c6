// Package chat はプラン別の機能制限付きでAIプロバイダーのチャット補完をSSEで中継する。
package chat

import "github.com/6ixhq/creator/internal/model"

// Speed はモデルの応答速度クラス。
type Speed string

const (
	SpeedStandard Speed = "standard"
	SpeedInstant  Speed = "instant"
	SpeedThinking Speed = "thinking"
)

// upstreamKind はカタログエントリがどの上流モデル設定を使うかを表す。
type upstreamKind int

const (
	upstreamCore upstreamKind = iota
	upstreamThinking
)

// Entry はモデルカタログの1行。プロセス起動中は変更しない。
type Entry struct {
	ID          string
	Label       string
	upstream    upstreamKind
	Speed       Speed
	Plans       []model.Plan
	Code        bool
	LongContext bool
	Thinking    bool
}

// Allows はプランがこのモデルを使えるかどうかを返す。
func (e Entry) Allows(plan model.Plan) bool {
	for _, p := range e.Plans {
		if p == plan {
			return true
		}
	}
	return false
}

// モデルID
const (
	ModelFreeCore    = "free-core"
	ModelProCore     = "pro-core"
	ModelProInstant  = "pro-instant"
	ModelMaxCore     = "max-core"
	ModelMaxThinking = "max-thinking"
)

var catalog = []Entry{
	{
		ID:       ModelFreeCore,
		Label:    "6IX Core",
		upstream: upstreamCore,
		Speed:    SpeedStandard,
		Plans:    []model.Plan{model.PlanFree, model.PlanPro, model.PlanMax},
	},
	{
		ID:       ModelProCore,
		Label:    "6IX Pro",
		upstream: upstreamCore,
		Speed:    SpeedStandard,
		Plans:    []model.Plan{model.PlanPro, model.PlanMax},
		Code:     true,
	},
	{
		ID:       ModelProInstant,
		Label:    "6IX Instant",
		upstream: upstreamCore,
		Speed:    SpeedInstant,
		Plans:    []model.Plan{model.PlanPro, model.PlanMax},
		Code:     true,
	},
	{
		ID:          ModelMaxCore,
		Label:       "6IX Max",
		upstream:    upstreamCore,
		Speed:       SpeedStandard,
		Plans:       []model.Plan{model.PlanMax},
		Code:        true,
		LongContext: true,
	},
	{
		ID:          ModelMaxThinking,
		Label:       "6IX Thinking",
		upstream:    upstreamThinking,
		Speed:       SpeedThinking,
		Plans:       []model.Plan{model.PlanMax},
		Code:        true,
		LongContext: true,
		Thinking:    true,
	},
}

var catalogByID = func() map[string]Entry {
	m := make(map[string]Entry, len(catalog))
	for _, e := range catalog {
		m[e.ID] = e
	}
	return m
}()

var planDefaults = map[model.Plan]string{
	model.PlanFree: ModelFreeCore,
	model.PlanPro:  ModelProCore,
	model.PlanMax:  ModelMaxCore,
}

// Lookup はIDでカタログエントリを探す。
func Lookup(id string) (Entry, bool) {
	e, ok := catalogByID[id]
	return e, ok
}

// DefaultFor はプランの既定モデルを返す。
func DefaultFor(plan model.Plan) Entry {
	id, ok := planDefaults[plan]
	if !ok {
		id = ModelFreeCore
	}
	return catalogByID[id]
}

// UpstreamModels は上流プロバイダー側のモデル名。環境変数で差し替える。
type UpstreamModels struct {
	Core     string
	Thinking string
}

// NameFor はエントリに対応する上流モデル名を返す。
func (u UpstreamModels) NameFor(e Entry) string {
	if e.upstream == upstreamThinking {
		return u.Thinking
	}
	return u.Core
}
