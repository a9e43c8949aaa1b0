package gateway

// Kind is one entry of the closed remote command catalog.
type Kind int

const (
	KindUnknown Kind = iota
	KindCreateProject
	KindInviteMember
	KindRemoveMember
	KindListMembers
	KindListTasks
	KindCreateTask
	KindUpdateTaskStatus
	KindUpdateTaskAssignee
	KindListMessages
	KindSendMessage
	KindUpsertPresence
	KindSubscribe
	KindUnsubscribe
	KindGetSession
	KindGetUser
	KindSignIn
	KindSignUp
	KindSignOut
	KindGenerateWorkBreakdown
	KindSuggestFromSelection
	KindRepoSummary
	KindCreatePullRequest
	KindCommentPullRequest
	KindMergePullRequest
)

var kindIDs = map[Kind]string{
	KindCreateProject:         "projects.create",
	KindInviteMember:          "members.invite",
	KindRemoveMember:          "members.remove",
	KindListMembers:           "members.list",
	KindListTasks:             "tasks.list",
	KindCreateTask:            "tasks.create",
	KindUpdateTaskStatus:      "tasks.updateStatus",
	KindUpdateTaskAssignee:    "tasks.updateAssignee",
	KindListMessages:          "messages.list",
	KindSendMessage:           "messages.send",
	KindUpsertPresence:        "presence.upsert",
	KindSubscribe:             "realtime.subscribe",
	KindUnsubscribe:           "realtime.unsubscribe",
	KindGetSession:            "auth.getSession",
	KindGetUser:               "auth.getUser",
	KindSignIn:                "auth.signIn",
	KindSignUp:                "auth.signUp",
	KindSignOut:               "auth.signOut",
	KindGenerateWorkBreakdown: "ai.generateWorkBreakdown",
	KindSuggestFromSelection:  "ai.suggestFromSelection",
	KindRepoSummary:           "github.repoSummary",
	KindCreatePullRequest:     "github.createPullRequest",
	KindCommentPullRequest:    "github.commentPullRequest",
	KindMergePullRequest:      "github.mergePullRequest",
}

var kindsByID = func() map[string]Kind {
	m := make(map[string]Kind, len(kindIDs))
	for k, id := range kindIDs {
		m[id] = k
	}
	return m
}()

// ID returns the wire command id, or "" for KindUnknown.
func (k Kind) ID() string {
	return kindIDs[k]
}

func (k Kind) String() string {
	if id, ok := kindIDs[k]; ok {
		return id
	}
	return "unknown"
}

// Long reports whether k runs against a slow backend (AI generation or
// the code host) and so gets the long timeout.
func (k Kind) Long() bool {
	switch k {
	case KindGenerateWorkBreakdown, KindSuggestFromSelection,
		KindRepoSummary, KindCreatePullRequest, KindCommentPullRequest, KindMergePullRequest:
		return true
	default:
		return false
	}
}

// KindFromID maps a wire command id back to its Kind.
func KindFromID(id string) (Kind, bool) {
	k, ok := kindsByID[id]
	return k, ok
}

// Kinds returns every catalog entry in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindIDs))
	for k := KindCreateProject; k <= KindMergePullRequest; k++ {
		out = append(out, k)
	}
	return out
}
