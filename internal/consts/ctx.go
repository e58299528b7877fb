package consts

// CtxKey is the type used for context value keys across the runtime.
type CtxKey string

const (
	CtxKeyLogID     CtxKey = "log_id"
	CtxKeyUserID    CtxKey = "user_id"
	CtxKeyChannelID CtxKey = "channel_id"
	CtxKeyThreadID  CtxKey = "thread_id"
)
