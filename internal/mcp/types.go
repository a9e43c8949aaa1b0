package mcp

// TaskInfo is a board card as tools report it.
type TaskInfo struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Status     string `json:"status"`
	AssigneeID string `json:"assignee_id,omitempty"`
	UpdatedAt  string `json:"updated_at"`
	Pending    bool   `json:"pending,omitempty" jsonschema:"True while the host has not confirmed the card yet"`
}

// MessageInfo is a chat line as tools report it.
type MessageInfo struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Sender    string `json:"sender" jsonschema:"user or assistant"`
	Text      string `json:"text"`
	Status    string `json:"status,omitempty" jsonschema:"sending or failed for unconfirmed local messages"`
	Timestamp string `json:"timestamp"`
}

// ListTasksInput is the input for the list_tasks MCP tool.
type ListTasksInput struct {
	Status  string `json:"status,omitempty" jsonschema:"Only return cards in this column: backlog, in_progress or done"`
	Refresh bool   `json:"refresh,omitempty" jsonschema:"Fetch from the host before listing instead of reading the last poll"`
}

// ListTasksOutput is the output for the list_tasks MCP tool.
type ListTasksOutput struct {
	Tasks []TaskInfo `json:"tasks"`
	Count int        `json:"count"`
}

// CreateTaskInput is the input for the create_task MCP tool.
type CreateTaskInput struct {
	Title      string `json:"title" jsonschema:"Short imperative title"`
	Status     string `json:"status,omitempty" jsonschema:"backlog, in_progress or done. Default backlog"`
	AssigneeID string `json:"assignee_id,omitempty" jsonschema:"User id of the assignee"`
}

// TaskOutput is the output for tools that return one card.
type TaskOutput struct {
	Task TaskInfo `json:"task"`
}

// MoveTaskInput is the input for the move_task MCP tool.
type MoveTaskInput struct {
	TaskID string `json:"task_id" jsonschema:"Card to move"`
	Status string `json:"status,omitempty" jsonschema:"Target column. Empty advances the card one column"`
}

// ListMessagesInput is the input for the list_messages MCP tool.
type ListMessagesInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"Max messages to return, most recent last. Default 50"`
}

// ListMessagesOutput is the output for the list_messages MCP tool.
type ListMessagesOutput struct {
	Status   string        `json:"status" jsonschema:"Result status: messages or empty"`
	Messages []MessageInfo `json:"messages"`
}

// SendMessageInput is the input for the send_message MCP tool.
type SendMessageInput struct {
	Text string `json:"text" jsonschema:"Message text"`
}

// SendMessageOutput is the output for the send_message MCP tool.
type SendMessageOutput struct {
	Status    string `json:"status" jsonschema:"Delivery status: delivered"`
	MessageID string `json:"message_id" jsonschema:"ID of the sent message"`
}

// PlanWorkInput is the input for the plan_work MCP tool.
type PlanWorkInput struct {
	Goal        string   `json:"goal" jsonschema:"What the team wants to achieve"`
	Constraints []string `json:"constraints,omitempty" jsonschema:"Extra instructions for the planner"`
	Repo        string   `json:"repo,omitempty" jsonschema:"owner/name of a repository whose recent activity informs the plan"`
	MaxTasks    int      `json:"max_tasks,omitempty" jsonschema:"Upper bound on proposed tasks, 3 to 25"`
}

// PlanWorkOutput is the output for the plan_work MCP tool.
type PlanWorkOutput struct {
	Created []TaskInfo `json:"created"`
	Failed  []string   `json:"failed,omitempty" jsonschema:"Titles the host refused to create"`
	Notes   []string   `json:"notes,omitempty"`
}

// ListPresenceInput is the input for the list_presence MCP tool.
type ListPresenceInput struct{}

// PresenceInfo is one user's liveness.
type PresenceInfo struct {
	UserID       string `json:"user_id"`
	Status       string `json:"status" jsonschema:"online or idle"`
	LastActiveAt string `json:"last_active_at"`
}

// ListPresenceOutput is the output for the list_presence MCP tool.
type ListPresenceOutput struct {
	Presence []PresenceInfo `json:"presence"`
	Count    int            `json:"count"`
}
