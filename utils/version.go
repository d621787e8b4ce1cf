package utils

// Set via linker flags at build time.
var (
	Tag        string
	GitHash    string
	BuildStamp string
)
