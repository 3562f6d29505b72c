package campaign

var (
	ParseEmail = parseEmail
	StripFence = stripFence
)
