package eventbus

// MessagePayload is the Data of MESSAGE_TO_5GLABX and LAYER_<L>_UPDATE events.
type MessagePayload struct {
	Layer     string         `json:"layer"`
	Protocol  string         `json:"protocol"`
	Message   any            `json:"message"`
	IEMap     map[string]any `json:"ieMap"`
	Execution any            `json:"execution,omitempty"`
}

// StatusPayload is the Data of the execution lifecycle events.
type StatusPayload struct {
	Status   string `json:"status"`
	Progress int    `json:"progress"`
	Error    string `json:"error,omitempty"`
}
