package constraint

// VerdictKind 是约束评估结论的封闭枚举
type VerdictKind string

const (
	KindEligible        VerdictKind = "eligible"         // 没有任何规则命中，可以正常排班
	KindPreferred       VerdictKind = "preferred"        // 员工明确倾向于该时段值班
	KindSoftDiscouraged VerdictKind = "soft_discouraged" // 不建议但不禁止排班
	KindHardBlocked     VerdictKind = "hard_blocked"     // 排班在规则上不合法
)

type Reason string

const (
	ReasonNone                Reason = ""
	ReasonUnknownShift        Reason = "unknown_shift"
	ReasonBusy                Reason = "busy"
	ReasonRestViolation       Reason = "rest_violation"
	ReasonConsecutiveDays     Reason = "consecutive_days"
	ReasonWeeklyCannotWork    Reason = "weekly_cannot_work"
	ReasonWeeklyPreferWork    Reason = "weekly_prefer_work"
	ReasonPermanentCannotWork Reason = "permanent_cannot_work"
	ReasonPermanentPreferWork Reason = "permanent_prefer_work"
	ReasonCrossPosition       Reason = "cross_position"
)

var reasonLabels = map[Reason]string{
	ReasonUnknownShift:        "槽位引用的班次不存在",
	ReasonBusy:                "该时段已有其他班次",
	ReasonRestViolation:       "与相邻班次的休息时间不足",
	ReasonConsecutiveDays:     "连续工作天数已达上限",
	ReasonWeeklyCannotWork:    "当周约束为不可值班",
	ReasonWeeklyPreferWork:    "当周约束为倾向值班",
	ReasonPermanentCannotWork: "固定约束为不可值班",
	ReasonPermanentPreferWork: "固定约束为倾向值班",
	ReasonCrossPosition:       "非默认岗位",
}

// Label 返回原因的可读描述，用于接口返回给操作者
func (r Reason) Label() string {
	if label, exists := reasonLabels[r]; exists {
		return label
	}
	return string(r)
}

type Verdict struct {
	Kind   VerdictKind `json:"kind"`
	Reason Reason      `json:"reason"`
}

func (v Verdict) HardBlocked() bool {
	return v.Kind == KindHardBlocked
}

func (v Verdict) Assignable() bool {
	return v.Kind != KindHardBlocked
}
