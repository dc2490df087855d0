package chatevent

// Wire types match the JSON emitted by signal-cli in "-o json receive" mode

type wireLine struct {
	Envelope wireEnvelope `json:"envelope"`
	Account  string       `json:"account"`
}

type wireEnvelope struct {
	Source       string           `json:"source"`
	SourceNumber string           `json:"sourceNumber"`
	SourceUUID   string           `json:"sourceUuid"`
	Timestamp    int64            `json:"timestamp"`
	DataMessage  *wireDataMessage `json:"dataMessage"`
}

type wireDataMessage struct {
	Message     *string          `json:"message"`
	Attachments []wireAttachment `json:"attachments"`
	GroupInfo   *wireGroupInfo   `json:"groupInfo"`
	Quote       *wireQuote       `json:"quote"`
	Reaction    *wireReaction    `json:"reaction"`
}

type wireAttachment struct {
	ID          string  `json:"id"`
	Filename    *string `json:"filename"`
	ContentType string  `json:"contentType"`
	Size        int64   `json:"size"`
}

type wireGroupInfo struct {
	GroupID string `json:"groupId"`
}

type wireQuote struct {
	ID           int64   `json:"id"`
	AuthorNumber string  `json:"authorNumber"`
	AuthorUUID   string  `json:"authorUuid"`
	Text         *string `json:"text"`
}

type wireReaction struct {
	Emoji               string `json:"emoji"`
	TargetAuthorNumber  string `json:"targetAuthorNumber"`
	TargetAuthorUUID    string `json:"targetAuthorUuid"`
	TargetSentTimestamp int64  `json:"targetSentTimestamp"`
}
