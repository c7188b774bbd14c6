package model

import "strings"

// Plan はサブスクリプションのプランを表す。
type Plan string

const (
	PlanFree Plan = "free"
	PlanPro  Plan = "pro"
	PlanMax  Plan = "max"
)

// planRank はプランの序列。値が大きいほど上位プラン。
var planRank = map[Plan]int{
	PlanFree: 0,
	PlanPro:  1,
	PlanMax:  2,
}

// ParsePlan は文字列をPlanに変換する。大文字小文字と前後の空白は無視する。
// 未知の値の場合はokがfalseになる。
func ParsePlan(s string) (Plan, bool) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := planRank[p]; !ok {
		return "", false
	}
	return p, true
}

// rank はプランの序列を返す。未知のプランは最下位扱い。
func (p Plan) rank() int {
	return planRank[p]
}

// IsTop は最上位プランかどうかを返す。
func (p Plan) IsTop() bool {
	return p.rank() == PlanMax.rank()
}
