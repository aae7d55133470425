package version

// Current is the release version, without a leading "v".
const Current = "0.1.0"

// UserAgent is the default User-Agent for outbound fetches.
func UserAgent() string {
	return "dealprep/" + Current + " (+https://github.com/longhornrumble/dealprep)"
}
