package artifacts

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Job kinds. The kind is the working directory prefix.
const (
	KindVideo = "video"
	KindRegen = "regen"
)

const (
	tokenLength   = 6
	tokenAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
)

var workDirPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^video_[A-Za-z0-9_-]+$`),
	regexp.MustCompile(`^regen_[A-Za-z0-9]+$`),
}

// NewJobID mints "<kind>_<token>" where token is six alphanumeric characters.
func NewJobID(kind string) (string, error) {
	switch kind {
	case KindVideo, KindRegen:
	default:
		return "", fmt.Errorf("unknown job kind %q", kind)
	}
	return kind + "_" + newToken(), nil
}

// tokenByteLimit is the largest multiple of the alphabet size that fits in a
// byte; bytes at or above it are skipped so every character is equally likely.
const tokenByteLimit = 256 - 256%len(tokenAlphabet)

func newToken() string {
	token := make([]byte, 0, tokenLength)
	for len(token) < tokenLength {
		id := uuid.New()
		for _, b := range id {
			if int(b) >= tokenByteLimit {
				continue
			}
			token = append(token, tokenAlphabet[int(b)%len(tokenAlphabet)])
			if len(token) == tokenLength {
				break
			}
		}
	}
	return string(token)
}

// Token strips the kind prefix from a job id.
func Token(jobID string) string {
	for _, kind := range []string{KindVideo, KindRegen} {
		if rest, ok := strings.CutPrefix(jobID, kind+"_"); ok && rest != "" {
			return rest
		}
	}
	return jobID
}

// KindOf returns the kind prefix of a job id, or "" when it has none.
func KindOf(jobID string) string {
	for _, kind := range []string{KindVideo, KindRegen} {
		if strings.HasPrefix(jobID, kind+"_") {
			return kind
		}
	}
	return ""
}

// IsWorkDirName reports whether name matches a working directory pattern.
func IsWorkDirName(name string) bool {
	for _, pattern := range workDirPatterns {
		if pattern.MatchString(name) {
			return true
		}
	}
	return false
}

// FinalName is the basename of the promoted video for jobID.
func FinalName(jobID string) string {
	return "video_" + Token(jobID) + ".mp4"
}

// ThumbnailName is the basename of the thumbnail for jobID.
func ThumbnailName(jobID string) string {
	return "video_" + Token(jobID) + ".jpg"
}
