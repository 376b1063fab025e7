// Package domain names the actions the authorization gate decides on.
package domain

// Action is a protected operation checked by the gate.
type Action string

const (
	ActionAccountDecide  Action = "account.decide"
	ActionAccountList    Action = "account.list"
	ActionAccountDelete  Action = "account.delete"
	ActionAccountSelf    Action = "account.self"
	ActionProfileUpdate  Action = "profile.update"
	ActionActivityCreate Action = "activity.create"
	ActionActivityManage Action = "activity.manage"
	ActionActivityRead   Action = "activity.read"
	ActionActivityEnroll Action = "activity.enroll"
	ActionStatsRead      Action = "stats.read"
	ActionAuditRead      Action = "audit.read"
	ActionSurveyManage   Action = "survey.manage"
	ActionSurveyRead     Action = "survey.read"
	ActionSurveyRespond  Action = "survey.respond"
)

// Actions lists every known action.
var Actions = []Action{
	ActionAccountDecide,
	ActionAccountList,
	ActionAccountDelete,
	ActionAccountSelf,
	ActionProfileUpdate,
	ActionActivityCreate,
	ActionActivityManage,
	ActionActivityRead,
	ActionActivityEnroll,
	ActionStatsRead,
	ActionAuditRead,
	ActionSurveyManage,
	ActionSurveyRead,
	ActionSurveyRespond,
}
