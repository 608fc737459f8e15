package scoring

// Tier 资格分档。集合是封闭的，新增分档必须同时补充 ActionFor 与 AllTiers。
type Tier string

const (
	TierQualified Tier = "qualified"
	TierHot       Tier = "hot"
	TierWarm      Tier = "warm"
	TierCold      Tier = "cold"

	TierGreatFit Tier = "great-fit"
	TierGoodFit  Tier = "good-fit"
	TierNotReady Tier = "not-ready"
)

// Action 分档后的处理动作
type Action string

const (
	ActionTriggerWorkflow Action = "trigger_workflow"
	ActionNurture         Action = "nurture"
	ActionManualReview    Action = "manual_review"
)

// AllTiers 返回全部已知分档
func AllTiers() []Tier {
	return []Tier{
		TierQualified, TierHot, TierWarm, TierCold,
		TierGreatFit, TierGoodFit, TierNotReady,
	}
}

// ParseTier 将存储的字符串还原为分档，未知值返回 false
func ParseTier(s string) (Tier, bool) {
	for _, t := range AllTiers() {
		if string(t) == s {
			return t, true
		}
	}
	return Tier(s), false
}

// ActionFor 分档到动作的纯查表；未知分档进入人工审核
func ActionFor(t Tier) Action {
	switch t {
	case TierQualified, TierHot:
		return ActionTriggerWorkflow
	case TierWarm, TierCold:
		return ActionNurture
	case TierGreatFit:
		return ActionManualReview
	case TierGoodFit, TierNotReady:
		return ActionNurture
	default:
		return ActionManualReview
	}
}

// ActionForString 对存储的原始字符串做同样的映射
func ActionForString(s string) Action {
	t, ok := ParseTier(s)
	if !ok {
		return ActionManualReview
	}
	return ActionFor(t)
}
