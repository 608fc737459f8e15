// Package scoring converts quiz responses into a qualification decision.
//
// Points are computed by the form layer from each question's scoring weight;
// the engine only sums, normalizes against the question set's maximum and maps
// the percentage onto a tier. Two independent engines exist, one per question
// set version: Production and Demo.
package scoring

import (
	"encoding/json"
	"math"
	"sort"
)

// Response 单题作答
type Response struct {
	QuestionNumber int             `json:"question_number"`
	Answer         json.RawMessage `json:"answer"`
	PointsEarned   int             `json:"points_earned"`
}

// Threshold 分档下限（含）
type Threshold struct {
	Tier       Tier
	MinPercent int
}

// Bucket 题号区间 [From, To] 归入同一分类
type Bucket struct {
	Name string
	From int
	To   int
}

// Engine 一套题目版本对应的评分器
type Engine struct {
	MaxPossiblePoints int
	Thresholds        []Threshold // 按 MinPercent 从高到低
	Fallback          Tier
	Buckets           []Bucket
}

// Result 评分结果
type Result struct {
	TotalPoints       int            `json:"total_points"`
	MaxPossiblePoints int            `json:"max_possible_points"`
	PercentageScore   int            `json:"percentage_score"`
	Tier              Tier           `json:"tier"`
	Breakdown         map[string]int `json:"breakdown"`
}

const (
	ProductionMaxPoints = 699
	DemoMaxPoints       = 92
)

// Production 正式测评
var Production = Engine{
	MaxPossiblePoints: ProductionMaxPoints,
	Thresholds: []Threshold{
		{Tier: TierQualified, MinPercent: 80},
		{Tier: TierHot, MinPercent: 60},
		{Tier: TierWarm, MinPercent: 40},
	},
	Fallback: TierCold,
	Buckets: []Bucket{
		{Name: "contactInfo", From: 1, To: 3},
		{Name: "currentState", From: 4, To: 8},
		{Name: "goals", From: 9, To: 11},
		{Name: "readiness", From: 12, To: 16},
	},
}

// Demo 演示测评
var Demo = Engine{
	MaxPossiblePoints: DemoMaxPoints,
	Thresholds: []Threshold{
		{Tier: TierGreatFit, MinPercent: 70},
		{Tier: TierGoodFit, MinPercent: 40},
	},
	Fallback: TierNotReady,
	Buckets: []Bucket{
		{Name: "contactInfo", From: 1, To: 1},
		{Name: "business", From: 2, To: 4},
		{Name: "goals", From: 5, To: 6},
		{Name: "readiness", From: 7, To: 8},
	},
}

// Score 计算总分、百分比、分档与分类明细
func (e Engine) Score(responses []Response) Result {
	total := 0
	breakdown := make(map[string]int, len(e.Buckets))
	for _, b := range e.Buckets {
		breakdown[b.Name] = 0
	}

	for _, r := range responses {
		total += r.PointsEarned
		if name, ok := e.bucketFor(r.QuestionNumber); ok {
			breakdown[name] += r.PointsEarned
		}
	}

	pct := e.Percentage(total)
	return Result{
		TotalPoints:       total,
		MaxPossiblePoints: e.MaxPossiblePoints,
		PercentageScore:   pct,
		Tier:              e.TierFor(pct),
		Breakdown:         breakdown,
	}
}

// Percentage round(total / max * 100)，截断到 [0,100]
func (e Engine) Percentage(total int) int {
	if e.MaxPossiblePoints <= 0 {
		return 0
	}
	pct := int(math.Round(float64(total) / float64(e.MaxPossiblePoints) * 100))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// TierFor 下限包含在内
func (e Engine) TierFor(percentage int) Tier {
	thresholds := make([]Threshold, len(e.Thresholds))
	copy(thresholds, e.Thresholds)
	sort.SliceStable(thresholds, func(i, j int) bool {
		return thresholds[i].MinPercent > thresholds[j].MinPercent
	})
	for _, t := range thresholds {
		if percentage >= t.MinPercent {
			return t.Tier
		}
	}
	return e.Fallback
}

func (e Engine) bucketFor(questionNumber int) (string, bool) {
	for _, b := range e.Buckets {
		if questionNumber >= b.From && questionNumber <= b.To {
			return b.Name, true
		}
	}
	return "", false
}
